package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/halvard/gebo/internal/metadata"
)

// Credential is a cached relay auth token bound to an address.
type Credential struct {
	Address   string
	ProfileID string
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the credential is expired at t, with a leeway
// window so a token about to lapse is refreshed rather than used.
func (c Credential) Expired(t time.Time, leeway time.Duration) bool {
	return !t.Add(leeway).Before(c.ExpiresAt)
}

// Submission is one terminal publish attempt in the log.
type Submission struct {
	RecordID  string       `json:"record_id"`
	ProfileID string       `json:"profile_id"`
	Type      metadata.Tag `json:"type"`
	Status    string       `json:"status"`
	Reference string       `json:"reference,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Goal      float64      `json:"goal,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// PutCredential inserts or replaces the credential for an address.
func (db *DB) PutCredential(c Credential) error {
	_, err := db.conn.Exec(`
		INSERT INTO credentials (address, profile_id, token, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			profile_id = excluded.profile_id,
			token      = excluded.token,
			expires_at = excluded.expires_at
	`, c.Address, c.ProfileID, c.Token, c.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("store: put credential: %w", err)
	}
	return nil
}

// GetCredential returns the cached credential for an address, or nil when
// none is stored.
func (db *DB) GetCredential(address string) (*Credential, error) {
	var c Credential
	err := db.conn.QueryRow(`
		SELECT address, profile_id, token, expires_at
		FROM credentials WHERE address = ?
	`, address).Scan(&c.Address, &c.ProfileID, &c.Token, &c.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get credential: %w", err)
	}
	return &c, nil
}

// DeleteCredential removes the credential for an address.
func (db *DB) DeleteCredential(address string) error {
	if _, err := db.conn.Exec(`DELETE FROM credentials WHERE address = ?`, address); err != nil {
		return fmt.Errorf("store: delete credential: %w", err)
	}
	return nil
}

// AppendSubmission records one terminal publish attempt.
func (db *DB) AppendSubmission(s Submission) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO submissions (record_id, profile_id, type, status, reference, reason, goal, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.RecordID, s.ProfileID, string(s.Type), s.Status, s.Reference, s.Reason, s.Goal, s.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: append submission: %w", err)
	}
	return nil
}

// ListSubmissions returns the most recent submissions, newest first.
func (db *DB) ListSubmissions(limit int) ([]Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT record_id, profile_id, type, status, reference, reason, goal, created_at
		FROM submissions ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var s Submission
		var typ string
		if err := rows.Scan(&s.RecordID, &s.ProfileID, &typ, &s.Status, &s.Reference, &s.Reason, &s.Goal, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Type = metadata.Tag(typ)
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestGoal returns the most recent successfully published goal for a
// profile, or nil when the profile has never set one.
func (db *DB) LatestGoal(profileID string) (*Submission, error) {
	var s Submission
	var typ string
	err := db.conn.QueryRow(`
		SELECT record_id, profile_id, type, status, reference, reason, goal, created_at
		FROM submissions
		WHERE profile_id = ? AND type = ? AND status = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, profileID, string(metadata.TagGoal), StatusSucceeded).
		Scan(&s.RecordID, &s.ProfileID, &typ, &s.Status, &s.Reference, &s.Reason, &s.Goal, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest goal: %w", err)
	}
	s.Type = metadata.Tag(typ)
	return &s, nil
}
