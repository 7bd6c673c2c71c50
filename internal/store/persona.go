package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PersonaRecord is one versioned child-persona snapshot.
type PersonaRecord struct {
	ID          int64  `json:"id"`
	SessionID   string `json:"session_id"`
	PersonaJSON string `json:"persona_json"`
	Version     int    `json:"version"`
	UpdatedAt   string `json:"updated_at"`
}

// WeeklySummary is one rolling week bucket of conversation.
type WeeklySummary struct {
	SessionID string `json:"session_id"`
	WeekStart string `json:"week_start"` // YYYY-MM-DD (Monday)
	WeekEnd   string `json:"week_end"`
	Summary   string `json:"summary"`
}

// LatestPersona returns the newest persona version, or nil when none exists.
func (s *DB) LatestPersona(ctx context.Context, sessionID string) (*PersonaRecord, error) {
	var p PersonaRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, persona_json, version, updated_at
		 FROM child_personas WHERE session_id = ?
		 ORDER BY version DESC, id DESC LIMIT 1`,
		sessionID).Scan(&p.ID, &p.SessionID, &p.PersonaJSON, &p.Version, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest persona: %w", err)
	}
	return &p, nil
}

// InsertPersonaVersion stores a new persona snapshot, bumping the version.
func (s *DB) InsertPersonaVersion(ctx context.Context, sessionID, personaJSON string) (int, error) {
	// Single-writer pool makes read-then-write safe enough; a lost version
	// bump under same-session races is acceptable (last write wins).
	latest, err := s.LatestPersona(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	version := 1
	if latest != nil {
		version = latest.Version + 1
	}
	ts := now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO child_personas (session_id, persona_json, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, personaJSON, version, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("insert persona version: %w", err)
	}
	return version, nil
}

// GetWeeklySummary returns the summary for a week bucket, or nil when absent.
func (s *DB) GetWeeklySummary(ctx context.Context, sessionID, weekStart string) (*WeeklySummary, error) {
	var w WeeklySummary
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, week_start, week_end, summary
		 FROM persona_summaries WHERE session_id = ? AND week_start = ?`,
		sessionID, weekStart).Scan(&w.SessionID, &w.WeekStart, &w.WeekEnd, &w.Summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get weekly summary: %w", err)
	}
	return &w, nil
}

// UpsertWeeklySummary inserts or replaces a week bucket's summary.
func (s *DB) UpsertWeeklySummary(ctx context.Context, w WeeklySummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO persona_summaries (session_id, week_start, week_end, summary, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, week_start) DO UPDATE SET
		   week_end = excluded.week_end, summary = excluded.summary,
		   updated_at = excluded.updated_at`,
		w.SessionID, w.WeekStart, w.WeekEnd, w.Summary, now())
	if err != nil {
		return fmt.Errorf("upsert weekly summary: %w", err)
	}
	return nil
}
