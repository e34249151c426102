package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS device (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	url        TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// DeviceStore keeps the device URL in a single-row table so the
// registration survives restarts.
// implements port.DeviceStore
type DeviceStore struct {
	db *sql.DB
}

func Open(path string) (*DeviceStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	log.Info().Str("path", path).Msg("Device store opened")
	return &DeviceStore{db: db}, nil
}

func (s *DeviceStore) Load(ctx context.Context) (string, error) {
	var url string
	err := s.db.QueryRowContext(ctx, `SELECT url FROM device WHERE id = 1`).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load device: %w", err)
	}
	return url, nil
}

func (s *DeviceStore) Save(ctx context.Context, deviceURL string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device (id, url) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET url = excluded.url, updated_at = CURRENT_TIMESTAMP`,
		deviceURL)
	if err != nil {
		return fmt.Errorf("save device: %w", err)
	}
	return nil
}

func (s *DeviceStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM device`); err != nil {
		return fmt.Errorf("clear device: %w", err)
	}
	return nil
}

func (s *DeviceStore) Close() error {
	return s.db.Close()
}
