package nodesink

import (
	"errors"
	"testing"
)

func TestCompressedRoundTrip(t *testing.T) {
	c := NewCompressed(NewMemory())
	var digest [32]byte
	digest[0] = 1
	original := []byte("a moderately repetitive payload payload payload payload")

	if err := c.Put(digest, original); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := c.Get(digest)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(original) {
		t.Fatalf("Get = %q, want %q", got, original)
	}
}

func TestCompressedStoresSmallerThanOriginalOnRepetitiveInput(t *testing.T) {
	inner := NewMemory()
	c := NewCompressed(inner)
	var digest [32]byte
	digest[0] = 2

	original := make([]byte, 4096)
	for i := range original {
		original[i] = 'x'
	}
	if err := c.Put(digest, original); err != nil {
		t.Fatalf("Put: %v", err)
	}
	stored, err := inner.Get(digest)
	if err != nil {
		t.Fatalf("inner.Get: %v", err)
	}
	if len(stored) >= len(original) {
		t.Fatalf("compressed size %d should be smaller than original %d for repetitive input", len(stored), len(original))
	}
}

func TestCompressedPropagatesNotFound(t *testing.T) {
	c := NewCompressed(NewMemory())
	var digest [32]byte
	if _, err := c.Get(digest); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
