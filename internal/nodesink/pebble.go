package nodesink

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleSink stores node blobs in a Pebble database. It's the backend of
// choice for a destination under heavy concurrent read load — many
// in-flight GetNodeFat lookups against a warm cache backed by cold
// storage — since Pebble's LSM and block cache are tuned for that.
type PebbleSink struct {
	db *pebble.DB
}

// OpenPebble opens (creating if necessary) a Pebble database at path.
func OpenPebble(path string) (*PebbleSink, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("nodesink: open pebble at %s: %w", path, err)
	}
	return &PebbleSink{db: db}, nil
}

func (s *PebbleSink) Close() error { return s.db.Close() }

func (s *PebbleSink) Put(digest [32]byte, blob []byte) error {
	if err := s.db.Set(digest[:], blob, pebble.Sync); err != nil {
		return fmt.Errorf("nodesink: pebble set: %w", err)
	}
	return nil
}

func (s *PebbleSink) Get(digest [32]byte) ([]byte, error) {
	value, closer, err := s.db.Get(digest[:])
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("nodesink: pebble get: %w", err)
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *PebbleSink) Has(digest [32]byte) (bool, error) {
	_, closer, err := s.db.Get(digest[:])
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("nodesink: pebble has: %w", err)
	}
	closer.Close()
	return true, nil
}

func (s *PebbleSink) Delete(digest [32]byte) error {
	if err := s.db.Delete(digest[:], pebble.Sync); err != nil {
		return fmt.Errorf("nodesink: pebble delete: %w", err)
	}
	return nil
}

func (s *PebbleSink) NewBatch() Batch {
	return &pebbleBatch{batch: s.db.NewBatch()}
}

type pebbleBatch struct {
	batch *pebble.Batch
}

func (b *pebbleBatch) Put(digest [32]byte, blob []byte) {
	// Batch.Set never returns an error for an in-memory batch; the only
	// failure mode is surfaced at Commit.
	_ = b.batch.Set(digest[:], blob, nil)
}

func (b *pebbleBatch) Commit() error {
	if err := b.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("nodesink: pebble batch commit: %w", err)
	}
	return nil
}
