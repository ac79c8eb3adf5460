package settings

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Backend names accepted by Open
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Open creates the configured store under dataDir
func Open(backend, dataDir string, logger *logrus.Logger) (Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	switch backend {
	case BackendSQLite, "":
		dbPath := filepath.Join(dataDir, "opticore.db")
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		m, err := NewManager(db, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &sqliteStore{Manager: m, db: db}, nil
	case BackendBadger:
		return NewBadgerStore(filepath.Join(dataDir, "settings"), logger)
	default:
		return nil, fmt.Errorf("unsupported settings backend: %s", backend)
	}
}

// sqliteStore owns the database handle it was opened with
type sqliteStore struct {
	*Manager
	db *sql.DB
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
