package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/storage"
	"github.com/google/uuid"
)

// PairKey identifies the direct conversation between two users regardless of order.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

func (s *Store) GetConversation(ctx context.Context, id string) (domain.Conversation, error) {
	return s.getConversation(ctx, s.db, id)
}

func (s *Store) getConversation(ctx context.Context, q storage.DBTX, id string) (domain.Conversation, error) {
	const query = `
		SELECT id, last_message_at, created_at, updated_at
		FROM conversations WHERE id = $1
	`
	var (
		c    domain.Conversation
		last sql.NullTime
	)
	if err := q.QueryRowContext(ctx, query, id).Scan(&c.ID, &last, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Conversation{}, notFound(err)
	}
	c.LastMessageAt = nullTimePtr(last)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()

	participants, err := s.participants(ctx, q, id)
	if err != nil {
		return domain.Conversation{}, err
	}
	c.Participants = participants
	return c, nil
}

func (s *Store) participants(ctx context.Context, q storage.DBTX, conversationID string) ([]domain.Participant, error) {
	const query = `
		SELECT u.id, u.first_name, u.last_name, u.email
		FROM conversation_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.conversation_id = $1
		ORDER BY u.id
	`
	rows, err := q.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListConversationIDs returns the id of every conversation userID takes part in.
func (s *Store) ListConversationIDs(ctx context.Context, userID string) ([]string, error) {
	return s.queryIDs(ctx, `SELECT conversation_id FROM conversation_participants WHERE user_id = $1`, userID)
}

// ListConversations returns the caller's conversations, most recently active
// first, each with its last message and the caller's unread count.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	const query = `
		SELECT c.id
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.updated_at DESC
	`
	ids, err := s.queryIDs(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ConversationSummary, 0, len(ids))
	for _, id := range ids {
		summary, err := s.Summarize(ctx, id, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// Summarize loads one conversation as seen by userID.
func (s *Store) Summarize(ctx context.Context, conversationID, userID string) (domain.ConversationSummary, error) {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	last, err := s.lastMessage(ctx, conversationID)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	unread, err := s.CountUnread(ctx, conversationID, userID)
	if err != nil {
		return domain.ConversationSummary{}, err
	}
	return domain.ConversationSummary{Conversation: conv, LastMessage: last, UnreadCount: unread}, nil
}

// FindOrCreateDirect returns the unique conversation between a and b, creating
// it when it does not exist yet. created reports whether this call created it.
func (s *Store) FindOrCreateDirect(ctx context.Context, a, b string) (conv domain.Conversation, created bool, err error) {
	key := PairKey(a, b)
	err = s.withTx(ctx, func(ctx context.Context, tx storage.DBTX) error {
		now := s.now()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, pair_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (pair_key) DO NOTHING`,
			uuid.NewString(), key, now, now)
		if err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}

		var id string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM conversations WHERE pair_key = $1`, key).Scan(&id); err != nil {
			return fmt.Errorf("select conversation: %w", err)
		}

		if n, _ := res.RowsAffected(); n == 1 {
			created = true
			for _, uid := range []string{a, b} {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`,
					id, uid); err != nil {
					return fmt.Errorf("insert participant: %w", err)
				}
			}
		}

		conv, err = s.getConversation(ctx, tx, id)
		return err
	})
	return conv, created, err
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
