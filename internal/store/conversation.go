package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Message is one stored conversation turn.
type Message struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"` // user | assistant | expert | system
	Text      string `json:"text"`
	MetaJSON  string `json:"meta_json,omitempty"`
	CreatedAt string `json:"created_at"` // RFC3339
}

// SaveMessage appends one conversation turn.
func (s *DB) SaveMessage(ctx context.Context, msg Message) error {
	createdAt := msg.CreatedAt
	if createdAt == "" {
		createdAt = now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_logs (session_id, role, text, meta_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.SessionID, msg.Role, msg.Text, nullable(msg.MetaJSON), createdAt)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// RecentMessages returns the newest limit messages in chronological order.
func (s *DB) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, text, COALESCE(meta_json, ''), created_at
		 FROM chat_logs WHERE session_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// newest-first from the query, flip to chronological
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MessagesByDate returns all messages whose created_at falls on the given
// YYYY-MM-DD date, oldest first.
func (s *DB) MessagesByDate(ctx context.Context, sessionID, date string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, text, COALESCE(meta_json, ''), created_at
		 FROM chat_logs WHERE session_id = ? AND SUBSTR(created_at, 1, 10) = ?
		 ORDER BY created_at ASC, id ASC`,
		sessionID, date)
	if err != nil {
		return nil, fmt.Errorf("messages by date: %w", err)
	}
	return scanMessages(rows)
}

// DeleteSessionMessages removes a session's entire conversation.
func (s *DB) DeleteSessionMessages(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_logs WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session messages: %w", err)
	}
	return nil
}

// DeleteLastMessage removes the newest message of a session. Returns false
// when the session has no messages.
func (s *DB) DeleteLastMessage(ctx context.Context, sessionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_logs WHERE id = (
		   SELECT id FROM chat_logs WHERE session_id = ?
		   ORDER BY created_at DESC, id DESC LIMIT 1)`,
		sessionID)
	if err != nil {
		return false, fmt.Errorf("delete last message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer func() { _ = rows.Close() }()
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Text, &m.MetaJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
