package profile

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/0xmhha/cortex-watch/pkg/logger"
)

// updateFunc receives the current raw value (nil if absent) and returns the
// next value, or remove=true to delete the key.
type updateFunc func(current []byte) (next []byte, remove bool, err error)

// kv is the raw storage underneath a Store.
type kv interface {
	view(key string) ([]byte, error)
	update(key string, fn updateFunc) error
	close() error
}

// store implements Store on top of a kv backend.
type store struct {
	kv     kv
	logger logger.Logger
	closed atomic.Bool
}

func newStore(backend kv, log logger.Logger) *store {
	return &store{
		kv:     backend,
		logger: log.With("component", "profile"),
	}
}

// Get implements Store.Get.
func (s *store) Get(key string, out interface{}) (bool, error) {
	if err := s.check(key); err != nil {
		return false, err
	}

	data, err := s.kv.view(key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if data == nil {
		return false, nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return true, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	return true, nil
}

// Set implements Store.Set.
func (s *store) Set(key string, value interface{}) error {
	if err := s.check(key); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	return s.kv.update(key, func([]byte) ([]byte, bool, error) {
		return data, false, nil
	})
}

// Delete implements Store.Delete.
func (s *store) Delete(key string) error {
	if err := s.check(key); err != nil {
		return err
	}

	return s.kv.update(key, func([]byte) ([]byte, bool, error) {
		return nil, true, nil
	})
}

// Port implements Store.Port.
func (s *store) Port() (int, error) {
	var port int
	if _, err := s.Get(KeyWatcherRPCPort, &port); err != nil {
		return 0, err
	}
	return port, nil
}

// SetPort implements Store.SetPort.
func (s *store) SetPort(port int) error {
	if port <= 0 || port > 65535 {
		return ErrInvalidPort
	}
	return s.Set(KeyWatcherRPCPort, port)
}

// Watched implements Store.Watched.
func (s *store) Watched() ([]string, error) {
	var roots []string
	if _, err := s.Get(KeyWatched, &roots); err != nil {
		return nil, err
	}
	if roots == nil {
		roots = []string{}
	}
	return roots, nil
}

// AddWatched implements Store.AddWatched.
func (s *store) AddWatched(roots ...string) error {
	return s.updateWatched(func(current []string) []string {
		seen := make(map[string]bool, len(current))
		for _, r := range current {
			seen[r] = true
		}
		for _, r := range roots {
			if !seen[r] {
				current = append(current, r)
				seen[r] = true
			}
		}
		return current
	})
}

// RemoveWatched implements Store.RemoveWatched.
func (s *store) RemoveWatched(roots ...string) error {
	drop := make(map[string]bool, len(roots))
	for _, r := range roots {
		drop[r] = true
	}

	return s.updateWatched(func(current []string) []string {
		kept := current[:0]
		for _, r := range current {
			if !drop[r] {
				kept = append(kept, r)
			}
		}
		return kept
	})
}

// updateWatched applies fn to the watched list inside a single update so that
// concurrent invocations do not lose each other's entries.
func (s *store) updateWatched(fn func([]string) []string) error {
	if err := s.check(KeyWatched); err != nil {
		return err
	}

	return s.kv.update(KeyWatched, func(raw []byte) ([]byte, bool, error) {
		var current []string
		if raw != nil {
			if err := json.Unmarshal(raw, &current); err != nil {
				s.logger.Warn("discarding unreadable watched list", "error", err)
				current = nil
			}
		}

		next := fn(current)
		if next == nil {
			next = []string{}
		}

		data, err := json.Marshal(next)
		if err != nil {
			return nil, false, fmt.Errorf("failed to marshal watched list: %w", err)
		}
		return data, false, nil
	})
}

// Close implements Store.Close.
func (s *store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.kv.close()
}

func (s *store) check(key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
