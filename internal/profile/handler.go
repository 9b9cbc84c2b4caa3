package profile

import (
	"context"
	"errors"
	"net/http"

	"github.com/ahmedtaha100/RotateStay/backend/internal/auth"
	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/httpx"
	"github.com/ahmedtaha100/RotateStay/backend/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Store interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

type Service struct {
	Store Store
	Log   *zap.Logger
}

func Register(rg *gin.RouterGroup, store Store, log *zap.Logger) {
	s := Service{
		Store: store,
		Log:   log,
	}
	rg.GET("/me", s.getMe)
}

func (s Service) getMe(c *gin.Context) {
	id := auth.MustIdentity(c)

	u, err := s.Store.GetUserByID(c.Request.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httpx.Err(c, http.StatusNotFound, "user not found")
			return
		}
		s.Log.Error("get me", zap.String("user_id", id.UserID), zap.Error(err))
		httpx.Err(c, http.StatusInternalServerError, "database error")
		return
	}
	httpx.OK(c, u)
}
