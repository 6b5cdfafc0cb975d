package nodesink

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4"
)

// Compressed wraps a Sink and lz4-compresses every blob before it
// reaches the backend. Inner-node blobs are 513 bytes of mostly-random
// digest material and don't shrink much, but leaf values (application
// payloads) often do, and lz4's frame format decodes fast enough that
// the tradeoff is worth it for a sink backed by spinning disk or a
// network filesystem.
type Compressed struct {
	inner Sink
}

// NewCompressed wraps inner so every Put/Get round-trips through lz4.
func NewCompressed(inner Sink) *Compressed {
	return &Compressed{inner: inner}
}

func (c *Compressed) Close() error { return c.inner.Close() }

func (c *Compressed) Put(digest [32]byte, blob []byte) error {
	compressed, err := compress(blob)
	if err != nil {
		return fmt.Errorf("nodesink: compress: %w", err)
	}
	return c.inner.Put(digest, compressed)
}

func (c *Compressed) Get(digest [32]byte) ([]byte, error) {
	raw, err := c.inner.Get(digest)
	if err != nil {
		return nil, err
	}
	blob, err := decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("nodesink: decompress: %w", err)
	}
	return blob, nil
}

func (c *Compressed) Has(digest [32]byte) (bool, error) { return c.inner.Has(digest) }
func (c *Compressed) Delete(digest [32]byte) error      { return c.inner.Delete(digest) }

func compress(blob []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(blob); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
