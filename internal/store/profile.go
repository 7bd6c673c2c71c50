package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BabyProfile is the per-session baby record.
type BabyProfile struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name,omitempty"`
	Week      int    `json:"week,omitempty"`
	Gender    string `json:"gender,omitempty"` // M | F | U
}

// MotherProfile is the per-session mother record.
type MotherProfile struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name,omitempty"`
	Age       int    `json:"age,omitempty"`
}

// GetBaby returns the baby profile, or nil when none exists.
func (s *DB) GetBaby(ctx context.Context, sessionID string) (*BabyProfile, error) {
	var p BabyProfile
	var name, gender sql.NullString
	var week sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, name, week, gender FROM baby_profiles WHERE session_id = ?`,
		sessionID).Scan(&p.SessionID, &name, &week, &gender)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get baby profile: %w", err)
	}
	p.Name, p.Gender, p.Week = name.String, gender.String, int(week.Int64)
	return &p, nil
}

// UpsertBaby inserts or replaces the baby profile.
func (s *DB) UpsertBaby(ctx context.Context, p BabyProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO baby_profiles (session_id, name, week, gender, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   name = excluded.name, week = excluded.week,
		   gender = excluded.gender, updated_at = excluded.updated_at`,
		p.SessionID, nullable(p.Name), p.Week, nullable(p.Gender), now())
	if err != nil {
		return fmt.Errorf("upsert baby profile: %w", err)
	}
	return nil
}

// GetMother returns the mother profile, or nil when none exists.
func (s *DB) GetMother(ctx context.Context, sessionID string) (*MotherProfile, error) {
	var p MotherProfile
	var name sql.NullString
	var age sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, name, age FROM mother_profiles WHERE session_id = ?`,
		sessionID).Scan(&p.SessionID, &name, &age)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mother profile: %w", err)
	}
	p.Name, p.Age = name.String, int(age.Int64)
	return &p, nil
}

// UpsertMother inserts or replaces the mother profile.
func (s *DB) UpsertMother(ctx context.Context, p MotherProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mother_profiles (session_id, name, age, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   name = excluded.name, age = excluded.age, updated_at = excluded.updated_at`,
		p.SessionID, nullable(p.Name), p.Age, now())
	if err != nil {
		return fmt.Errorf("upsert mother profile: %w", err)
	}
	return nil
}
