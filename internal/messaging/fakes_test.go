package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/attachments"
	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/repository"
)

// journal records the order collaborators were called in.
type journal struct {
	mu    sync.Mutex
	steps []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.steps = append(j.steps, s)
}

type fakeStore struct {
	j         *journal
	convs     map[string]domain.Conversation
	messages  []domain.Message
	createErr error
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (domain.Conversation, error) {
	c, ok := f.convs[id]
	if !ok {
		return domain.Conversation{}, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, msg domain.Message) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.j.add("persist")
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) MarkConversationRead(_ context.Context, conversationID, readerID string, at time.Time) (int64, error) {
	var n int64
	for i := range f.messages {
		m := &f.messages[i]
		if m.ConversationID == conversationID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			m.ReadAt = &at
			n++
		}
	}
	return n, nil
}

type sentEvent struct {
	room    string
	event   string
	payload any
	except  string
}

type fakeRooms struct {
	j      *journal
	events []sentEvent
}

func (f *fakeRooms) Broadcast(room, event string, payload any) {
	f.j.add("broadcast")
	f.events = append(f.events, sentEvent{room: room, event: event, payload: payload})
}

func (f *fakeRooms) BroadcastExcept(room, event string, payload any, except string) {
	f.events = append(f.events, sentEvent{room: room, event: event, payload: payload, except: except})
}

type fakePresence map[string]bool

func (f fakePresence) IsOnline(userID string) bool { return f[userID] }

type fakeNotifier struct {
	j          *journal
	recipients []string
}

func (f *fakeNotifier) MessageReceived(_ context.Context, _ domain.Identity, r domain.Participant, _ domain.Message) error {
	f.j.add("notify")
	f.recipients = append(f.recipients, r.ID)
	return nil
}

type fakeProcessor struct {
	err error
}

func (f *fakeProcessor) Process(_ context.Context, file attachments.File) (attachments.Attachment, error) {
	if f.err != nil {
		return attachments.Attachment{}, f.err
	}
	return attachments.Attachment{URL: "/uploads/abc.pdf", Type: file.Type, Name: file.Name}, nil
}
