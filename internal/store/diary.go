package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DiaryEntry is one baby-voice diary record.
type DiaryEntry struct {
	ID            int64  `json:"id"`
	SessionID     string `json:"session_id"`
	Date          string `json:"date"` // YYYY-MM-DD
	Title         string `json:"title"`
	Content       string `json:"content"`
	UsedChatsJSON string `json:"used_chats_json,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// SaveDiary inserts or replaces the diary for (session, date).
func (s *DB) SaveDiary(ctx context.Context, e DiaryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO diaries (session_id, date, title, content, used_chats_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, date) DO UPDATE SET
		   title = excluded.title, content = excluded.content,
		   used_chats_json = excluded.used_chats_json`,
		e.SessionID, e.Date, e.Title, e.Content, nullable(e.UsedChatsJSON), now())
	if err != nil {
		return fmt.Errorf("save diary: %w", err)
	}
	return nil
}

// DiaryByDate returns the diary for (session, date), or nil when absent.
func (s *DB) DiaryByDate(ctx context.Context, sessionID, date string) (*DiaryEntry, error) {
	var e DiaryEntry
	var used sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, date, title, content, used_chats_json, created_at
		 FROM diaries WHERE session_id = ? AND date = ?`,
		sessionID, date).Scan(&e.ID, &e.SessionID, &e.Date, &e.Title, &e.Content, &used, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("diary by date: %w", err)
	}
	e.UsedChatsJSON = used.String
	return &e, nil
}

// ListDiaries returns a session's diaries, newest date first.
func (s *DB) ListDiaries(ctx context.Context, sessionID string) ([]DiaryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, date, title, content, COALESCE(used_chats_json, ''), created_at
		 FROM diaries WHERE session_id = ? ORDER BY date DESC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list diaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []DiaryEntry
	for rows.Next() {
		var e DiaryEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Date, &e.Title, &e.Content, &e.UsedChatsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan diary: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteDiary removes the diary for (session, date). Returns false when none
// existed.
func (s *DB) DeleteDiary(ctx context.Context, sessionID, date string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM diaries WHERE session_id = ? AND date = ?`, sessionID, date)
	if err != nil {
		return false, fmt.Errorf("delete diary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
