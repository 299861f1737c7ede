package chat

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveMessage(ctx context.Context, sender, receiver, content string) (*Message, error) {
	query := `
		INSERT INTO messages (sender_username, receiver_username, message)
		VALUES ($1, $2, $3)
		RETURNING id, sent_at
	`
	var id int64
	msg := &Message{SenderUsername: sender, ReceiverUsername: receiver, Message: content}
	if err := r.db.QueryRowContext(ctx, query, sender, receiver, content).Scan(&id, &msg.SentAt); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	msg.ID = strconv.FormatInt(id, 10)
	return msg, nil
}

// GetChat returns the newest limit messages between a and b, oldest first.
func (r *Repository) GetChat(ctx context.Context, a, b string, limit int) ([]Message, error) {
	query := `
		SELECT id, sender_username, receiver_username, message, sent_at FROM (
			SELECT id, sender_username, receiver_username, message, sent_at
			FROM messages
			WHERE (sender_username = $1 AND receiver_username = $2)
			   OR (sender_username = $2 AND receiver_username = $1)
			ORDER BY sent_at DESC, id DESC
			LIMIT $3
		) recent
		ORDER BY sent_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, a, b, limit)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var id int64
		var m Message
		if err := rows.Scan(&id, &m.SenderUsername, &m.ReceiverUsername, &m.Message, &m.SentAt); err != nil {
			return nil, err
		}
		m.ID = strconv.FormatInt(id, 10)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
