package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/repository"
	"go.uber.org/zap"
)

// Tracker relays typing state and read receipts to conversation rooms.
type Tracker struct {
	Store Store
	Rooms Broadcaster
	Log   *zap.Logger

	Now func() time.Time
}

func (t *Tracker) TypingStart(who domain.Identity, conversationID, originConnID string) {
	t.Rooms.BroadcastExcept(conversationID, EventUserTyping, TypingPayload{
		ConversationID: conversationID,
		UserID:         who.UserID,
		UserName:       who.DisplayName,
	}, originConnID)
}

func (t *Tracker) TypingStop(who domain.Identity, conversationID, originConnID string) {
	t.Rooms.BroadcastExcept(conversationID, EventUserStoppedTyping, TypingPayload{
		ConversationID: conversationID,
		UserID:         who.UserID,
	}, originConnID)
}

// MarkAsRead marks every unread message from the other participants as read
// and announces it to the room, even when nothing changed.
func (t *Tracker) MarkAsRead(ctx context.Context, who domain.Identity, conversationID string) (time.Time, error) {
	if conversationID == "" {
		return time.Time{}, ErrConversationRequired
	}
	conv, err := t.Store.GetConversation(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return time.Time{}, ErrUnauthorized
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !conv.HasParticipant(who.UserID) {
		t.Log.Warn("mark as read by non participant",
			zap.String("user_id", who.UserID), zap.String("conversation_id", conversationID))
		return time.Time{}, ErrUnauthorized
	}

	readAt := time.Now().UTC()
	if t.Now != nil {
		readAt = t.Now()
	}
	n, err := t.Store.MarkConversationRead(ctx, conversationID, who.UserID, readAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	t.Log.Debug("messages marked read",
		zap.String("user_id", who.UserID), zap.String("conversation_id", conversationID), zap.Int64("count", n))

	t.Rooms.Broadcast(conversationID, EventMessagesRead, MessagesReadPayload{
		ConversationID: conversationID,
		ReadBy:         who.UserID,
		ReadAt:         readAt,
	})
	return readAt, nil
}
