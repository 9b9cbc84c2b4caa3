package conversations

import (
	"context"
	"errors"
	"net/http"

	"github.com/ahmedtaha100/RotateStay/backend/internal/auth"
	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/httpx"
	"github.com/ahmedtaha100/RotateStay/backend/internal/repository"
	"github.com/ahmedtaha100/RotateStay/backend/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Store interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	FindOrCreateDirect(ctx context.Context, a, b string) (domain.Conversation, bool, error)
	Summarize(ctx context.Context, conversationID, userID string) (domain.ConversationSummary, error)
}

// Attacher subscribes live connections to a freshly created conversation.
type Attacher interface {
	Attach(conversationID string, userIDs ...string)
}

type Service struct {
	Store Store
	Rooms Attacher
	Log   *zap.Logger
}

type createReq struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

func Register(rg *gin.RouterGroup, store Store, rooms Attacher, log *zap.Logger) {
	s := Service{
		Store: store,
		Rooms: rooms,
		Log:   log,
	}
	rg.GET("/conversations", s.listMine)
	rg.POST("/conversations", s.createOrGet)
}

func (s Service) listMine(c *gin.Context) {
	me := auth.MustIdentity(c)

	list, err := s.Store.ListConversations(c.Request.Context(), me.UserID)
	if err != nil {
		s.Log.Error("list conversations", zap.String("user_id", me.UserID), zap.Error(err))
		httpx.Err(c, http.StatusInternalServerError, "Failed to fetch conversations")
		return
	}
	httpx.OK(c, list)
}

func (s Service) createOrGet(c *gin.Context) {
	me := auth.MustIdentity(c)
	var req createReq
	if !utils.BindJSON(c, &req) {
		return
	}
	if req.ParticipantID == me.UserID {
		httpx.Err(c, http.StatusBadRequest, "Cannot start a conversation with yourself")
		return
	}

	ctx := c.Request.Context()
	if _, err := s.Store.GetUserByID(ctx, req.ParticipantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httpx.Err(c, http.StatusNotFound, "Participant not found")
			return
		}
		s.Log.Error("load participant", zap.Error(err))
		httpx.Err(c, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	conv, created, err := s.Store.FindOrCreateDirect(ctx, me.UserID, req.ParticipantID)
	if err != nil {
		s.Log.Error("create conversation", zap.String("user_id", me.UserID), zap.Error(err))
		httpx.Err(c, http.StatusInternalServerError, "Failed to create conversation")
		return
	}
	summary, err := s.Store.Summarize(ctx, conv.ID, me.UserID)
	if err != nil {
		s.Log.Error("summarize conversation", zap.String("conversation_id", conv.ID), zap.Error(err))
		httpx.Err(c, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	if !created {
		httpx.OK(c, summary)
		return
	}
	s.Rooms.Attach(conv.ID, me.UserID, req.ParticipantID)
	httpx.Created(c, summary)
}
