package chat

import (
	"net/http"

	"github.com/ahmedtaha100/RotateStay/backend/internal/auth"
	"github.com/ahmedtaha100/RotateStay/backend/internal/httpx"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RegisterWS mounts GET /ws. The token is verified before the upgrade, from
// the Authorization header or the token query parameter.
func RegisterWS(rg *gin.RouterGroup, hub *Hub, authn *auth.Authenticator, log *zap.Logger) {
	rg.GET("/ws", func(c *gin.Context) {
		id, err := authn.Authenticate(c.Request.Context(), auth.TokenFromRequest(c.Request))
		if err != nil {
			log.Info("websocket auth rejected", zap.String("client_ip", c.ClientIP()), zap.Error(err))
			httpx.Err(c, http.StatusUnauthorized, "Authentication failed")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Info("websocket upgrade failed", zap.Error(err))
			return
		}
		hub.Connect(conn, id)
	})
}
