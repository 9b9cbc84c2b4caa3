package auth

import (
	"net/http"

	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/httpx"
	"github.com/gin-gonic/gin"
)

type ctxKey string

const CtxIdentity ctxKey = "identity"

func Middleware(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.Authenticate(c.Request.Context(), TokenFromRequest(c.Request))
		if err != nil {
			httpx.Abort(c, http.StatusUnauthorized, "Authentication failed")
			return
		}
		c.Set(string(CtxIdentity), id)
		c.Next()
	}
}

func MustIdentity(c *gin.Context) domain.Identity {
	if v, ok := c.Get(string(CtxIdentity)); ok {
		if id, ok := v.(domain.Identity); ok {
			return id
		}
	}
	return domain.Identity{}
}
