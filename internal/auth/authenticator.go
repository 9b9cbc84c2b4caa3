package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
)

// ErrAuthFailed covers every reason a token is refused: bad signature, expiry,
// unknown user or deactivated user.
var ErrAuthFailed = errors.New("authentication failed")

type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

type Authenticator struct {
	Secret string
	Users  UserLoader
}

// Authenticate verifies token and resolves it to an active user.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing token", ErrAuthFailed)
	}
	claims, err := ParseToken(a.Secret, token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	u, err := a.Users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if !u.IsActive {
		return domain.Identity{}, fmt.Errorf("%w: user inactive", ErrAuthFailed)
	}
	return u.Identity(), nil
}

// TokenFromRequest reads the bearer token from the Authorization header,
// falling back to the token query parameter used by browser websockets.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
