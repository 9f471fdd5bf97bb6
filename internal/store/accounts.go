package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// Upsert registers a session file for label, keeping the original creation
// time on re-login.
func (s *Store) Upsert(label, filename, source string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO accounts (label, filename, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			filename = excluded.filename,
			source = excluded.source,
			updated_at = excluded.updated_at
	`, label, filename, source, now, now)
	return err
}

// Get returns the account registered under label.
func (s *Store) Get(label string) (*Account, error) {
	var a Account
	err := s.db.QueryRow(`
		SELECT label, filename, source, created_at, updated_at
		FROM accounts WHERE label = ?
	`, label).Scan(&a.Label, &a.Filename, &a.Source, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionNotFound, label)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns every registered account ordered by label.
func (s *Store) List() ([]Account, error) {
	rows, err := s.db.Query(`
		SELECT label, filename, source, created_at, updated_at
		FROM accounts ORDER BY label
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Label, &a.Filename, &a.Source, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Remove forgets label. Removing an unknown label is not an error.
func (s *Store) Remove(label string) error {
	_, err := s.db.Exec(`DELETE FROM accounts WHERE label = ?`, label)
	return err
}
