package settings

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// BadgerStore keeps the settings blob in an embedded BadgerDB
type BadgerStore struct {
	db     *badger.DB
	logger *logrus.Logger
}

// NewBadgerStore opens (or creates) a BadgerDB at dir
func NewBadgerStore(dir string, logger *logrus.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	opts := badger.DefaultOptions(dir).
		WithLogger(newBadgerLogger(logger)).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger.WithField("path", dir).Info("BadgerDB settings store initialized")

	return &BadgerStore{db: db, logger: logger}, nil
}

func optionKey(name string) []byte {
	return []byte("option:" + name)
}

// Load returns the saved blob, or an empty blob before the first save
func (s *BadgerStore) Load(ctx context.Context) (Blob, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(optionKey(OptionName))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Blob{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	return decodeBlob(string(raw))
}

// Save replaces the whole blob
func (s *BadgerStore) Save(ctx context.Context, blob Blob) error {
	data, err := encodeBlob(blob)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(optionKey(OptionName), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	s.logger.WithField("count", len(blob)).Info("Settings saved")
	return nil
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger adapts logrus to BadgerDB's logger interface
type badgerLogger struct {
	logger *logrus.Logger
}

func newBadgerLogger(logger *logrus.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Tracef("[BadgerDB] "+format, args...)
}
