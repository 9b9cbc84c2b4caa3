package notifications

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ahmedtaha100/RotateStay/backend/internal/auth"
	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/httpx"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Lister interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
}

func Register(rg *gin.RouterGroup, store Lister, log *zap.Logger) {
	rg.GET("", func(c *gin.Context) {
		me := auth.MustIdentity(c)
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit <= 0 || limit > 200 {
			limit = 50
		}
		list, err := store.ListNotifications(c.Request.Context(), me.UserID, limit)
		if err != nil {
			log.Error("list notifications", zap.String("user_id", me.UserID), zap.Error(err))
			httpx.Err(c, http.StatusInternalServerError, "Failed to fetch notifications")
			return
		}
		httpx.OK(c, list)
	})
}
