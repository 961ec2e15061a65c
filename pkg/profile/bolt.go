package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xmhha/cortex-watch/pkg/logger"
	bolt "go.etcd.io/bbolt"
)

var bucketProfile = []byte("profile") // key -> JSON value

// boltKV implements kv using BoltDB. In transient mode db is nil and the
// file is opened for each operation only.
type boltKV struct {
	path    string
	timeout time.Duration
	db      *bolt.DB
}

// New opens (or creates) the profile database at cfg.DBPath.
//
// Returns:
//   - Configured Store
//   - Error if database cannot be opened
func New(cfg Config, log logger.Logger) (Store, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	dbPath := expandHome(cfg.DBPath)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	b := &boltKV{path: dbPath, timeout: cfg.Timeout}

	db, err := b.open()
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, createErr := tx.CreateBucketIfNotExists(bucketProfile); createErr != nil {
			return fmt.Errorf("failed to create profile bucket: %w", createErr)
		}
		return nil
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close profile database after initialization error",
				"error", closeErr)
		}
		return nil, err
	}

	if cfg.Transient {
		if err := db.Close(); err != nil {
			return nil, fmt.Errorf("failed to close profile database: %w", err)
		}
	} else {
		b.db = db
	}

	log.Debug("profile opened", "db_path", dbPath, "transient", cfg.Transient)

	return newStore(b, log), nil
}

func (b *boltKV) open() (*bolt.DB, error) {
	db, err := bolt.Open(b.path, 0600, &bolt.Options{
		Timeout: b.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open profile database: %w", err)
	}
	return db, nil
}

// withDB runs fn on the open database, or on one opened for the call.
func (b *boltKV) withDB(fn func(db *bolt.DB) error) error {
	if b.db != nil {
		return fn(b.db)
	}

	db, err := b.open()
	if err != nil {
		return err
	}
	if err := fn(db); err != nil {
		db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close profile database: %w", err)
	}
	return nil
}

func (b *boltKV) view(key string) ([]byte, error) {
	var out []byte

	err := b.withDB(func(db *bolt.DB) error {
		return db.View(func(tx *bolt.Tx) error {
			data := tx.Bucket(bucketProfile).Get([]byte(key))
			if data != nil {
				// Bolt memory is only valid inside the transaction.
				out = append([]byte(nil), data...)
			}
			return nil
		})
	})

	return out, err
}

func (b *boltKV) update(key string, fn updateFunc) error {
	return b.withDB(func(db *bolt.DB) error {
		return db.Update(func(tx *bolt.Tx) error {
			bucket := tx.Bucket(bucketProfile)

			next, remove, err := fn(bucket.Get([]byte(key)))
			if err != nil {
				return err
			}

			if remove {
				if err := bucket.Delete([]byte(key)); err != nil {
					return fmt.Errorf("failed to delete %s: %w", key, err)
				}
				return nil
			}

			if err := bucket.Put([]byte(key), next); err != nil {
				return fmt.Errorf("failed to store %s: %w", key, err)
			}
			return nil
		})
	})
}

func (b *boltKV) close() error {
	if b.db == nil {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close profile database: %w", err)
	}
	return nil
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
