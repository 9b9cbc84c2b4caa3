package messaging

import (
	"errors"
	"fmt"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/attachments"
)

var (
	ErrRateLimited          = errors.New("rate limited")
	ErrEmptyMessage         = errors.New("message cannot be empty")
	ErrConversationRequired = errors.New("conversation id is required")
	ErrUnauthorized         = errors.New("not a participant of the conversation")
	ErrAttachmentInvalid    = errors.New("attachment rejected")
	ErrPersistence          = errors.New("message could not be stored")
)

// RateLimitError carries how long the sender has to wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// ClientMessage maps a pipeline error to the text shown to the user. Storage
// details never leak.
func ClientMessage(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "Too many messages. Please slow down."
	case errors.Is(err, ErrEmptyMessage):
		return "Message cannot be empty"
	case errors.Is(err, ErrConversationRequired):
		return "Conversation is required"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, attachments.ErrUnsupportedType):
		return "Invalid file type. Only images and documents are allowed."
	case errors.Is(err, attachments.ErrTooLarge):
		return "File size must be less than 10MB"
	case errors.Is(err, ErrAttachmentInvalid):
		return "Invalid file payload"
	default:
		return "Failed to send message"
	}
}
