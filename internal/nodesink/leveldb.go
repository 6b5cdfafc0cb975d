package nodesink

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBSink stores node blobs in a goleveldb database, one key per
// digest. It favors write-heavy, single-process deployments (a source
// feeding many destinations from local disk) over the multi-reader
// concurrency Pebble is built for.
type LevelDBSink struct {
	db *leveldb.DB
}

// OpenLevelDB opens (creating if necessary) a goleveldb database at path.
func OpenLevelDB(path string) (*LevelDBSink, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("nodesink: open leveldb at %s: %w", path, err)
	}
	return &LevelDBSink{db: db}, nil
}

func (s *LevelDBSink) Close() error { return s.db.Close() }

func (s *LevelDBSink) Put(digest [32]byte, blob []byte) error {
	if err := s.db.Put(digest[:], blob, nil); err != nil {
		return fmt.Errorf("nodesink: leveldb put: %w", err)
	}
	return nil
}

func (s *LevelDBSink) Get(digest [32]byte) ([]byte, error) {
	blob, err := s.db.Get(digest[:], nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("nodesink: leveldb get: %w", err)
	}
	return blob, nil
}

func (s *LevelDBSink) Has(digest [32]byte) (bool, error) {
	ok, err := s.db.Has(digest[:], nil)
	if err != nil {
		return false, fmt.Errorf("nodesink: leveldb has: %w", err)
	}
	return ok, nil
}

func (s *LevelDBSink) Delete(digest [32]byte) error {
	if err := s.db.Delete(digest[:], nil); err != nil {
		return fmt.Errorf("nodesink: leveldb delete: %w", err)
	}
	return nil
}

func (s *LevelDBSink) NewBatch() Batch {
	return &levelDBBatch{sink: s, batch: new(leveldb.Batch)}
}

type levelDBBatch struct {
	sink  *LevelDBSink
	batch *leveldb.Batch
}

func (b *levelDBBatch) Put(digest [32]byte, blob []byte) {
	b.batch.Put(digest[:], blob)
}

func (b *levelDBBatch) Commit() error {
	if err := b.sink.db.Write(b.batch, nil); err != nil {
		return fmt.Errorf("nodesink: leveldb batch commit: %w", err)
	}
	return nil
}
