package messages

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/auth"
	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/httpx"
	"github.com/ahmedtaha100/RotateStay/backend/internal/messaging"
	"github.com/ahmedtaha100/RotateStay/backend/internal/repository"
	"github.com/ahmedtaha100/RotateStay/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type Store interface {
	GetConversation(ctx context.Context, id string) (domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]domain.Message, error)
}

type Sender interface {
	Send(ctx context.Context, sender domain.Identity, req messaging.SendRequest) (domain.Message, error)
}

type Reader interface {
	MarkAsRead(ctx context.Context, who domain.Identity, conversationID string) (time.Time, error)
}

type Service struct {
	Store  Store
	Sender Sender
	Reader Reader
	Log    *zap.Logger
}

type sendReq struct {
	ConversationID string `json:"conversationId" binding:"required"`
	Content        string `json:"content" binding:"required"`
}

type pageReq struct {
	Limit  int `form:"limit" binding:"min=0"`
	Offset int `form:"offset" binding:"min=0"`
}

func Register(rg *gin.RouterGroup, store Store, sender Sender, reader Reader, log *zap.Logger) {
	s := Service{
		Store:  store,
		Sender: sender,
		Reader: reader,
		Log:    log,
	}
	rg.POST("", s.send)
	rg.GET("/:conversationId", s.list)
}

// list returns one page of the conversation and marks what the caller has
// now seen as read.
func (s Service) list(c *gin.Context) {
	me := auth.MustIdentity(c)
	convID := c.Param("conversationId")

	var page pageReq
	if err := c.ShouldBindQuery(&page); err != nil {
		httpx.Err(c, http.StatusBadRequest, "Invalid pagination")
		return
	}
	if page.Limit == 0 {
		page.Limit = defaultLimit
	}
	if page.Limit > maxLimit {
		page.Limit = maxLimit
	}

	ctx := c.Request.Context()
	conv, err := s.Store.GetConversation(ctx, convID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !conv.HasParticipant(me.UserID)) {
		httpx.Err(c, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		s.Log.Error("load conversation", zap.String("conversation_id", convID), zap.Error(err))
		httpx.Err(c, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}

	msgs, err := s.Store.ListMessages(ctx, convID, page.Limit, page.Offset)
	if err != nil {
		s.Log.Error("list messages", zap.String("conversation_id", convID), zap.Error(err))
		httpx.Err(c, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}

	if _, err := s.Reader.MarkAsRead(ctx, me, convID); err != nil {
		s.Log.Warn("mark as read on fetch", zap.String("conversation_id", convID), zap.Error(err))
	}
	httpx.OK(c, msgs)
}

// send is the HTTP fallback for clients without a live socket. It runs the
// same pipeline as the send-message event.
func (s Service) send(c *gin.Context) {
	me := auth.MustIdentity(c)
	var req sendReq
	if !utils.BindJSON(c, &req) {
		return
	}

	msg, err := s.Sender.Send(c.Request.Context(), me, messaging.SendRequest{
		ConversationID: req.ConversationID,
		Content:        req.Content,
	})
	if err != nil {
		httpx.Err(c, statusFor(err), messaging.ClientMessage(err))
		return
	}
	httpx.Created(c, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, messaging.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, messaging.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, messaging.ErrPersistence):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
