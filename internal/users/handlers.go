package users

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/auth"
	"github.com/ahmedtaha100/RotateStay/backend/internal/config"
	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/httpx"
	"github.com/ahmedtaha100/RotateStay/backend/internal/repository"
	"github.com/ahmedtaha100/RotateStay/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

type Service struct {
	Store     Store
	JWTSecret string
	JWTTTL    time.Duration
	Log       *zap.Logger
}

type registerReq struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func RegisterPublic(rg *gin.RouterGroup, store Store, cfg config.Config, log *zap.Logger) {
	s := Service{
		Store:     store,
		JWTSecret: cfg.JWTSecret,
		JWTTTL:    cfg.JWTTTL(),
		Log:       log,
	}
	rg.POST("/register", s.register)
	rg.POST("/login", s.login)
}

func (s Service) register(c *gin.Context) {
	var req registerReq
	if !utils.BindJSON(c, &req) {
		return
	}

	_, err := s.Store.GetUserByEmail(c.Request.Context(), req.Email)
	if err == nil {
		httpx.Err(c, http.StatusConflict, "Email already registered")
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.Log.Error("lookup user", zap.Error(err))
		httpx.Err(c, http.StatusInternalServerError, "Registration failed")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "Registration failed")
		return
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Store.CreateUser(c.Request.Context(), u); err != nil {
		s.Log.Error("create user", zap.Error(err))
		httpx.Err(c, http.StatusInternalServerError, "Registration failed")
		return
	}

	tok, err := auth.NewToken(s.JWTSecret, u.ID, s.JWTTTL)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "Token Generation Failed")
		return
	}
	httpx.Created(c, gin.H{"token": tok, "user": u})
}

func (s Service) login(c *gin.Context) {
	var req loginReq
	if !utils.BindJSON(c, &req) {
		return
	}

	u, err := s.Store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.Log.Error("lookup user", zap.Error(err))
		}
		httpx.Err(c, http.StatusUnauthorized, "Invalid Credentials")
		return
	}
	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		httpx.Err(c, http.StatusUnauthorized, "Invalid Credentials")
		return
	}
	if !u.IsActive {
		httpx.Err(c, http.StatusForbidden, "Account is deactivated")
		return
	}

	tok, err := auth.NewToken(s.JWTSecret, u.ID, s.JWTTTL)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "Token Generation Failed")
		return
	}
	httpx.OK(c, gin.H{"token": tok, "user": u})
}
