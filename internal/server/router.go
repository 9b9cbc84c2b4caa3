// Package server assembles the HTTP surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/auth"
	"github.com/ahmedtaha100/RotateStay/backend/internal/chat"
	"github.com/ahmedtaha100/RotateStay/backend/internal/config"
	"github.com/ahmedtaha100/RotateStay/backend/internal/conversations"
	"github.com/ahmedtaha100/RotateStay/backend/internal/httpx"
	"github.com/ahmedtaha100/RotateStay/backend/internal/messages"
	"github.com/ahmedtaha100/RotateStay/backend/internal/messaging"
	"github.com/ahmedtaha100/RotateStay/backend/internal/notifications"
	"github.com/ahmedtaha100/RotateStay/backend/internal/presence"
	"github.com/ahmedtaha100/RotateStay/backend/internal/profile"
	"github.com/ahmedtaha100/RotateStay/backend/internal/repository"
	"github.com/ahmedtaha100/RotateStay/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Deps struct {
	Config   config.Config
	Log      *zap.Logger
	Store    *repository.Store
	Hub      *chat.Hub
	Messages *messaging.Service
	Tracker  *messaging.Tracker
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.Logger(d.Log), httpx.CORS(d.Config.ClientURL))

	authn := &auth.Authenticator{Secret: d.Config.JWTSecret, Users: d.Store}

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			httpx.Err(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		httpx.OK(c, gin.H{"status": "ok"})
	})
	if d.Config.BlobBackend == config.BlobDisk {
		r.Static(d.Config.UploadURLPrefix, d.Config.UploadDir)
	}

	users.RegisterPublic(r.Group("/api/auth"), d.Store, d.Config, d.Log)

	api := r.Group("/api", auth.Middleware(authn))
	userGroup := api.Group("/users")
	profile.Register(userGroup, d.Store, d.Log)
	presence.Register(userGroup, d.Hub.Registry, d.Store)

	msgGroup := api.Group("/messages")
	conversations.Register(msgGroup, d.Store, d.Hub, d.Log)
	messages.Register(msgGroup, d.Store, d.Messages, d.Tracker, d.Log)

	notifications.Register(api.Group("/notifications"), d.Store, d.Log)

	chat.RegisterWS(&r.RouterGroup, d.Hub, authn, d.Log)
	return r
}
