package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager stores the settings blob in SQLite
type Manager struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewManager creates a new settings manager
func NewManager(db *sql.DB, logger *logrus.Logger) (*Manager, error) {
	m := &Manager{
		db:     db,
		logger: logger,
	}

	// Initialize database schema
	if err := m.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return m, nil
}

// initSchema creates the options table
func (m *Manager) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS options (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := m.db.Exec(query)
	return err
}

// Load returns the saved blob. Before the first save it returns an empty blob.
func (m *Manager) Load(ctx context.Context) (Blob, error) {
	raw, err := m.getOption(ctx, OptionName)
	if errors.Is(err, ErrNotFound) {
		return Blob{}, nil
	}
	if err != nil {
		return nil, err
	}

	return decodeBlob(raw)
}

// Save replaces the whole blob in one statement
func (m *Manager) Save(ctx context.Context, blob Blob) error {
	data, err := encodeBlob(blob)
	if err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	query := `
	INSERT INTO options (name, value, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, OptionName, string(data), now, now); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	m.logger.WithField("count", len(blob)).Info("Settings saved")
	return nil
}

// Close is a no-op; the database handle belongs to the caller
func (m *Manager) Close() error {
	return nil
}

func (m *Manager) getOption(ctx context.Context, name string) (string, error) {
	var value string
	query := `SELECT value FROM options WHERE name = ?`
	err := m.db.QueryRowContext(ctx, query, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get option %s: %w", name, err)
	}
	return value, nil
}

func encodeBlob(blob Blob) ([]byte, error) {
	if blob == nil {
		blob = Blob{}
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return data, nil
}

func decodeBlob(raw string) (Blob, error) {
	var blob Blob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if blob == nil {
		blob = Blob{}
	}
	return blob, nil
}
