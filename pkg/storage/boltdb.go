package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/cuemby/storefront/pkg/metrics"
	bolt "go.etcd.io/bbolt"
)

// DatabaseFile is the name of the database file inside the data directory
const DatabaseFile = "storefront.db"

// openTimeout bounds how long Open waits for the file lock held by another process
const openTimeout = time.Second

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db          *bolt.DB
	path        string
	collections []string
}

// NewBoltStore opens (or creates) the database in dataDir and makes sure every
// named collection exists. With no names, DefaultCollections are used.
func NewBoltStore(dataDir string, collections ...string) (*BoltStore, error) {
	if len(collections) == 0 {
		collections = DefaultCollections
	}
	dbPath := filepath.Join(dataDir, DatabaseFile)

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, storageError("open", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range collections {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create collection %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, storageError("init", err)
	}

	return &BoltStore{db: db, path: dbPath, collections: append([]string(nil), collections...)}, nil
}

// Path returns the database file path
func (s *BoltStore) Path() string {
	return s.path
}

// Collections lists the collection names held by the store
func (s *BoltStore) Collections() []string {
	return append([]string(nil), s.collections...)
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// View runs fn in a read-only transaction
func (s *BoltStore) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageTxDuration, "view")

	var fnErr error
	err := s.db.View(func(btx *bolt.Tx) error {
		fnErr = fn(&Tx{tx: btx})
		return fnErr
	})
	return s.result("view", err, fnErr)
}

// errAborted signals the context expired before commit
var errAborted = errors.New("transaction aborted")

// Update runs fn in a read-write transaction. BoltDB admits one writer at a
// time, so concurrent Update calls are applied one after another.
func (s *BoltStore) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StorageTxDuration, "update")

	var fnErr error
	err := s.db.Update(func(btx *bolt.Tx) error {
		if fnErr = fn(&Tx{tx: btx}); fnErr != nil {
			return fnErr
		}
		// commit only while the caller is still waiting
		if fnErr = ctx.Err(); fnErr != nil {
			return errAborted
		}
		return nil
	})
	return s.result("update", err, fnErr)
}

func (s *BoltStore) result(kind string, err, fnErr error) error {
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}
	metrics.StorageErrors.WithLabelValues(kind).Inc()
	return storageError(kind, err)
}

// Backup writes a consistent copy of the whole database file to w
func (s *BoltStore) Backup(ctx context.Context, w io.Writer) (int64, error) {
	var n int64
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.tx.WriteTo(w)
		if err != nil {
			return storageError("backup", err)
		}
		return nil
	})
	return n, err
}
