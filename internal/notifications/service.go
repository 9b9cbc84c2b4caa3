// Package notifications records offline message notifications and, when a
// mailer is configured, e-mails them.
package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	previewRunes = 100
	mailTimeout  = 10 * time.Second
)

type Store interface {
	CreateNotification(ctx context.Context, n domain.Notification) error
}

type Service struct {
	store  Store
	mailer Mailer
	log    *zap.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

// NewService returns a notifier. mailer may be nil.
func NewService(store Store, mailer Mailer, log *zap.Logger) *Service {
	return &Service{
		store:  store,
		mailer: mailer,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// MessageReceived stores one notification for recipient about msg. The e-mail,
// if any, is sent in the background; its failure is only logged.
func (s *Service) MessageReceived(ctx context.Context, sender domain.Identity, recipient domain.Participant, msg domain.Message) error {
	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    recipient.ID,
		Type:      domain.NotificationMessage,
		Title:     sender.DisplayName,
		Content:   Preview(msg.Content),
		Link:      "/messages?conversation=" + msg.ConversationID,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if s.mailer != nil && recipient.Email != "" {
		s.wg.Add(1)
		go s.mail(recipient, n)
	}
	return nil
}

func (s *Service) mail(recipient domain.Participant, n domain.Notification) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
	defer cancel()

	subject := "New message from " + n.Title
	if err := s.mailer.Send(ctx, recipient.DisplayName(), recipient.Email, subject, n.Content); err != nil {
		s.log.Warn("offline email failed",
			zap.String("user_id", recipient.ID),
			zap.String("notification_id", n.ID),
			zap.Error(err))
	}
}

// Wait blocks until background e-mails have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Preview returns the first 100 runes of content.
func Preview(content string) string {
	r := []rune(content)
	if len(r) <= previewRunes {
		return content
	}
	return string(r[:previewRunes])
}
