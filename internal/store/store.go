// Package store persists the paired printer and the page's preferences
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"

	"menuca.ca/restotool/internal/link"
)

//go:embed schema.sql
var schema string

const DefaultDSN = "file:restotool.db"

type Store struct {
	Db  *sql.DB
	log *zap.Logger
}

func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("Couldn't open database:\n%w", err)
	}
	// one writer keeps sqlite from reporting busy, and keeps in-memory
	// databases on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("Couldn't initialise database:\n%w", err)
	}

	log.Debug("Opened store", zap.String("dsn", dsn))
	return &Store{Db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.Db.Close()
}

// LoadPrinter returns the saved printer, or nil if none was ever selected
func (s *Store) LoadPrinter(ctx context.Context) (*link.Device, error) {
	row := s.Db.QueryRowContext(ctx, `
		SELECT name, address
		FROM paired_printer
		WHERE id = 1`)

	var d link.Device
	if err := row.Scan(&d.Name, &d.Address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to read paired printer:\n%w", err)
	}
	return &d, nil
}

func (s *Store) SavePrinter(ctx context.Context, d link.Device) error {
	_, err := s.Db.ExecContext(ctx, `
		INSERT INTO paired_printer (id, name, address, updated_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			updated_at = excluded.updated_at`, d.Name, d.Address)
	if err != nil {
		return fmt.Errorf("Failed to save paired printer:\n%w", err)
	}
	s.log.Debug("Saved paired printer", zap.String("address", d.Address))
	return nil
}

// Preference returns the stored value for key and whether it was set
func (s *Store) Preference(ctx context.Context, key string) (string, bool, error) {
	row := s.Db.QueryRowContext(ctx, `SELECT value FROM preference WHERE key = ?`, key)

	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("Failed to read preference %q:\n%w", key, err)
	}
	return v, true, nil
}

func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	_, err := s.Db.ExecContext(ctx, `
		INSERT INTO preference (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`, key, value)
	if err != nil {
		return fmt.Errorf("Failed to save preference %q:\n%w", key, err)
	}
	return nil
}

// DeletePreference forgets key; deleting a missing key is not an error
func (s *Store) DeletePreference(ctx context.Context, key string) error {
	if _, err := s.Db.ExecContext(ctx, `DELETE FROM preference WHERE key = ?`, key); err != nil {
		return fmt.Errorf("Failed to delete preference %q:\n%w", key, err)
	}
	return nil
}
