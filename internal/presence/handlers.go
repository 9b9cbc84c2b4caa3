package presence

import (
	"context"
	"errors"
	"net/http"

	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/httpx"
	"github.com/ahmedtaha100/RotateStay/backend/internal/repository"
	"github.com/gin-gonic/gin"
)

type Registry interface {
	IsOnline(userID string) bool
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

type Service struct {
	Registry Registry
	Users    Users
}

func Register(rg *gin.RouterGroup, reg Registry, users Users) {
	s := Service{
		Registry: reg,
		Users:    users,
	}
	rg.GET("/:id/presence", s.getPresence)
}

func (s Service) getPresence(c *gin.Context) {
	userID := c.Param("id")
	if _, err := s.Users.GetUserByID(c.Request.Context(), userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httpx.Err(c, http.StatusNotFound, "user not found")
			return
		}
		httpx.Err(c, http.StatusInternalServerError, "database error")
		return
	}
	httpx.OK(c, gin.H{"userId": userID, "online": s.Registry.IsOnline(userID)})
}
