package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/storage"
)

const messageColumns = `
	m.id, m.conversation_id, m.sender_id, u.first_name, u.last_name,
	m.content, m.file_url, m.file_type, m.file_name, m.is_read, m.read_at, m.created_at
`

// CreateMessage stores msg and bumps the conversation's activity timestamp in
// one transaction.
func (s *Store) CreateMessage(ctx context.Context, msg domain.Message) error {
	return s.withTx(ctx, func(ctx context.Context, tx storage.DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, content, file_url, file_type, file_name, is_read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			msg.ID,
			msg.ConversationID,
			msg.SenderID,
			msg.Content,
			msg.FileURL,
			msg.FileType,
			msg.FileName,
			msg.IsRead,
			msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE conversations SET last_message_at = $1, updated_at = $2 WHERE id = $3`,
			msg.CreatedAt, msg.CreatedAt, msg.ConversationID)
		if err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Store) GetMessage(ctx context.Context, id string) (domain.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.id = $1`
	m, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return domain.Message{}, notFound(err)
	}
	return m, nil
}

// ListMessages returns one page of a conversation, oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at ASC, m.id ASC
		LIMIT $2 OFFSET $3`
	rows, err := s.db.QueryContext(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkConversationRead flips every unread message not sent by readerID. Only
// false->true transitions happen, so repeated calls leave state unchanged.
func (s *Store) MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_read = TRUE, read_at = $1
		WHERE conversation_id = $2 AND sender_id <> $3 AND is_read = FALSE`,
		at, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountUnread(ctx context.Context, conversationID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM messages
		WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE`,
		conversationID, userID).Scan(&n)
	return n, err
}

func (s *Store) lastMessage(ctx context.Context, conversationID string) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT 1`
	m, err := scanMessage(s.db.QueryRowContext(ctx, query, conversationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var (
		m                          domain.Message
		fileURL, fileType, fileNam sql.NullString
		readAt                     sql.NullTime
	)
	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.Sender.FirstName,
		&m.Sender.LastName,
		&m.Content,
		&fileURL,
		&fileType,
		&fileNam,
		&m.IsRead,
		&readAt,
		&m.CreatedAt,
	)
	if err != nil {
		return domain.Message{}, err
	}
	m.Sender.ID = m.SenderID
	m.FileURL = nullStringPtr(fileURL)
	m.FileType = nullStringPtr(fileType)
	m.FileName = nullStringPtr(fileNam)
	m.ReadAt = nullTimePtr(readAt)
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}
