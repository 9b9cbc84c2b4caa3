package messaging

import (
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
)

// Server to client event names.
const (
	EventNewMessage        = "new-message"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
	EventMessagesRead      = "messages-read"
)

type NewMessagePayload struct {
	Message        domain.Message `json:"message"`
	ConversationID string         `json:"conversationId"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName,omitempty"`
}

type MessagesReadPayload struct {
	ConversationID string    `json:"conversationId"`
	ReadBy         string    `json:"readBy"`
	ReadAt         time.Time `json:"readAt"`
}
