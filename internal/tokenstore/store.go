// package tokenstore is the single source of truth for "is there a usable token".
//
// The store holds at most one token and one linked-device record, written
// in that order. Validity is computed lazily at read time against the
// persisted expiry; no background timer enforces it.
package tokenstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fitlink/internal/models"
	"github.com/desertthunder/fitlink/internal/shared"
)

// Store persists the token and linked device in SQLite.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// NewStore creates a Store backed by an open database with the auth
// schema applied (see shared.RunMigrations).
func NewStore(db *sql.DB, logger *log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Store overwrites the single persisted token. Replacement is total; no
// fields merge with a previous record.
//
// Empty access tokens are rejected outright. Write failures wrap
// [shared.ErrPersistence] so the caller can keep the in-memory session
// alive for the current run and warn the user instead of aborting.
func (s *Store) Store(tok models.Token) error {
	if tok.AccessToken == "" {
		return fmt.Errorf("%w: refusing to persist an empty access token", shared.ErrInvalidInput)
	}
	if tok.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: token has no expiry", shared.ErrInvalidInput)
	}

	query := `
		INSERT OR REPLACE INTO auth_token (id, access_token, expires_at, user_id, scope, stored_at)
		VALUES (1, ?, ?, ?, ?, ?)
	`

	if _, err := s.db.Exec(query, tok.AccessToken, tok.ExpiresAt, tok.UserID, tok.Scope, time.Now()); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	return nil
}

// Load retrieves the persisted token, or nil when none is stored.
func (s *Store) Load() (*models.Token, error) {
	query := `SELECT access_token, expires_at, user_id, scope FROM auth_token WHERE id = 1`

	var tok models.Token
	err := s.db.QueryRow(query).Scan(&tok.AccessToken, &tok.ExpiresAt, &tok.UserID, &tok.Scope)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	return &tok, nil
}

// IsValid reports whether a token exists and now is strictly before its
// expiry. A load failure counts as no usable token.
func (s *Store) IsValid(now time.Time) bool {
	tok, err := s.Load()
	if err != nil {
		s.logger.Warn("token load failed during validity check", "error", err)
		return false
	}
	return tok != nil && tok.Valid(now)
}

// Clear removes the token and the linked-device record. Used both for
// explicit disconnect and for cleanup after a 401 validation.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM auth_token WHERE id = 1`); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	if _, err := s.db.Exec(`DELETE FROM linked_device WHERE id = 1`); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	return nil
}

// SaveDevice overwrites the linked-device record. Written only after the
// token write succeeds; a reader that sees a token without a device treats
// the device fields as unknown, never as an error.
func (s *Store) SaveDevice(d models.LinkedDevice) error {
	query := `
		INSERT OR REPLACE INTO linked_device (id, device_id, name, battery_level, model, stored_at)
		VALUES (1, ?, ?, ?, ?, ?)
	`

	var battery sql.NullInt64
	if d.BatteryLevel != nil {
		battery = sql.NullInt64{Int64: int64(*d.BatteryLevel), Valid: true}
	}

	if _, err := s.db.Exec(query, d.ID, d.Name, battery, d.Model, time.Now()); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	return nil
}

// LoadDevice retrieves the linked-device record, or nil when none exists.
func (s *Store) LoadDevice() (*models.LinkedDevice, error) {
	query := `SELECT device_id, name, battery_level, model FROM linked_device WHERE id = 1`

	var (
		d       models.LinkedDevice
		battery sql.NullInt64
	)
	err := s.db.QueryRow(query).Scan(&d.ID, &d.Name, &battery, &d.Model)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	if battery.Valid {
		level := int(battery.Int64)
		d.BatteryLevel = &level
	}

	return &d, nil
}
