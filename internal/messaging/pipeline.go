// Package messaging holds the message send pipeline and the read/typing
// tracker. It is transport agnostic: the chat hub and the HTTP handlers both
// drive it.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/attachments"
	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/ratelimit"
	"github.com/ahmedtaha100/RotateStay/backend/internal/repository"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const fileOnlyContent = "Shared a file"

type Store interface {
	GetConversation(ctx context.Context, id string) (domain.Conversation, error)
	CreateMessage(ctx context.Context, msg domain.Message) error
	MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error)
}

type Broadcaster interface {
	Broadcast(conversationID, event string, payload any)
	BroadcastExcept(conversationID, event string, payload any, excludeConnID string)
}

type Presence interface {
	IsOnline(userID string) bool
}

type Notifier interface {
	MessageReceived(ctx context.Context, sender domain.Identity, recipient domain.Participant, msg domain.Message) error
}

type AttachmentProcessor interface {
	Process(ctx context.Context, f attachments.File) (attachments.Attachment, error)
}

type SendRequest struct {
	ConversationID string
	Content        string
	File           *attachments.File
}

type Service struct {
	Store       Store
	Limiter     ratelimit.Limiter
	Attachments AttachmentProcessor
	Rooms       Broadcaster
	Presence    Presence
	Notifier    Notifier
	Log         *zap.Logger

	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Send validates, stores and fans out one message from sender. Broadcast
// happens only after the message is stored; offline participants get a
// notification afterwards.
func (s *Service) Send(ctx context.Context, sender domain.Identity, req SendRequest) (domain.Message, error) {
	log := s.Log.With(zap.String("user_id", sender.UserID), zap.String("conversation_id", req.ConversationID))

	if err := s.admit(ctx, sender.UserID); err != nil {
		log.Info("message rate limited")
		return domain.Message{}, err
	}

	content := Sanitize(req.Content)
	if content == "" && req.File == nil {
		return domain.Message{}, ErrEmptyMessage
	}
	if req.ConversationID == "" {
		return domain.Message{}, ErrConversationRequired
	}

	conv, err := s.Store.GetConversation(ctx, req.ConversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Message{}, ErrUnauthorized
	}
	if err != nil {
		log.Error("load conversation", zap.Error(err))
		return domain.Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !conv.HasParticipant(sender.UserID) {
		log.Warn("send to foreign conversation")
		return domain.Message{}, ErrUnauthorized
	}

	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       sender.UserID,
		Content:        content,
		CreatedAt:      s.now(),
	}
	if p, ok := lo.Find(conv.Participants, func(p domain.Participant) bool { return p.ID == sender.UserID }); ok {
		msg.Sender = p
	}

	if req.File != nil {
		att, err := s.Attachments.Process(ctx, *req.File)
		if err != nil && !errors.Is(err, attachments.ErrInvalidAttachment) {
			log.Error("store attachment", zap.String("file_name", req.File.Name), zap.Error(err))
			return domain.Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if err != nil {
			log.Info("attachment rejected", zap.String("file_name", req.File.Name), zap.Error(err))
			return domain.Message{}, fmt.Errorf("%w: %w", ErrAttachmentInvalid, err)
		}
		msg.FileURL = lo.ToPtr(att.URL)
		msg.FileType = lo.ToPtr(att.Type)
		msg.FileName = lo.ToPtr(att.Name)
		if msg.Content == "" {
			msg.Content = fileOnlyContent
		}
	}

	if err := s.Store.CreateMessage(ctx, msg); err != nil {
		log.Error("persist message", zap.Error(err))
		return domain.Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.Rooms.Broadcast(conv.ID, EventNewMessage, NewMessagePayload{Message: msg, ConversationID: conv.ID})

	offline := lo.Filter(conv.Participants, func(p domain.Participant, _ int) bool {
		return p.ID != sender.UserID && !s.Presence.IsOnline(p.ID)
	})
	for _, p := range offline {
		if err := s.Notifier.MessageReceived(ctx, sender, p, msg); err != nil {
			log.Warn("offline notification failed", zap.String("recipient_id", p.ID), zap.Error(err))
		}
	}

	return msg, nil
}

func (s *Service) admit(ctx context.Context, userID string) error {
	d, err := s.Limiter.Consume(ctx, userID)
	if err != nil {
		s.Log.Warn("rate limiter error, admitting", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if !d.Allowed {
		return &RateLimitError{RetryAfter: d.RetryAfter}
	}
	return nil
}
