package chat

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/ahmedtaha100/RotateStay/backend/internal/attachments"
)

// Client to server event names.
const (
	EventJoinConversations = "join-conversations"
	EventSendMessage       = "send-message"
	EventMarkAsRead        = "mark-as-read"
	EventTypingStart       = "typing-start"
	EventTypingStop        = "typing-stop"

	EventAck = "ack"
)

// inbound is the envelope every client frame arrives in. ID is set when the
// client expects an ack.
type inbound struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data"`
}

type outbound struct {
	Event string `json:"event"`
	ID    *int64 `json:"id,omitempty"`
	Data  any    `json:"data"`
}

type ackData struct {
	Success      bool   `json:"success"`
	Message      any    `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

type roomPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type filePayload struct {
	Buffer Bytes  `json:"buffer"`
	Type   string `json:"type"`
	Name   string `json:"name"`
}

type sendPayload struct {
	ConversationID string          `json:"conversationId"`
	Content        string          `json:"content"`
	FileData       json.RawMessage `json:"fileData"`
}

// maxBufferBytes is one byte over the attachment limit: longer buffers are cut
// there, which keeps memory bounded while the size check still rejects them.
const maxBufferBytes = attachments.MaxFileSize + 1

var errByteValue = errors.New("byte value out of range")

// Bytes decodes a base64 string, a JSON array of byte values or a
// {"type":"Buffer","data":[...]} object.
type Bytes []byte

func (b *Bytes) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*b = nil
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		out, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		if len(out) > maxBufferBytes {
			out = out[:maxBufferBytes]
		}
		*b = out
		return nil
	case '[':
		out, err := decodeByteArray(data)
		if err != nil {
			return err
		}
		*b = out
		return nil
	case '{':
		var wrapped struct {
			Data Bytes `json:"data"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		*b = wrapped.Data
		return nil
	default:
		return errors.New("buffer must be a base64 string or a byte array")
	}
}

// decodeByteArray parses [n,n,...] without building an intermediate []int.
func decodeByteArray(data []byte) ([]byte, error) {
	body := bytes.TrimSpace(data)
	if len(body) < 2 || body[0] != '[' || body[len(body)-1] != ']' {
		return nil, errors.New("malformed byte array")
	}
	body = bytes.TrimSpace(body[1 : len(body)-1])
	out := make([]byte, 0, min(len(body)/2+1, maxBufferBytes))
	for len(body) > 0 {
		item, rest, more := bytes.Cut(body, []byte{','})
		item = bytes.TrimSpace(item)
		if len(item) == 0 || len(item) > 3 {
			return nil, errByteValue
		}
		v := 0
		for _, ch := range item {
			if ch < '0' || ch > '9' {
				return nil, errByteValue
			}
			v = v*10 + int(ch-'0')
		}
		if v > 255 {
			return nil, errByteValue
		}
		if len(out) < maxBufferBytes {
			out = append(out, byte(v))
		}
		body = bytes.TrimSpace(rest)
		if more && len(body) == 0 {
			return nil, errors.New("malformed byte array")
		}
	}
	return out, nil
}
