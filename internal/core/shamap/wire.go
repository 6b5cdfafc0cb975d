package shamap

import (
	"fmt"

	crypto "github.com/ywzqhl/triesync/internal/crypto/common"
	"github.com/ywzqhl/triesync/internal/protocol"
)

// Digest is the 256-bit content address of a node: the first 32 bytes
// of SHA-512 over the node's canonical blob.
type Digest [32]byte

// ZeroDigest is the digest of an empty branch slot. It never equals the
// digest of any real node, since every real blob carries a tag byte.
var ZeroDigest Digest

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == ZeroDigest
}

func hashBlob(blob []byte) Digest {
	return Digest(crypto.Sha512Half(blob))
}

// serializeLeaf produces the canonical leaf blob: tag || key || value.
func serializeLeaf(item Item) []byte {
	key := item.Key()
	out := make([]byte, 0, 1+keyLength+len(item.Value()))
	out = append(out, protocol.TagLeafNode)
	out = append(out, key[:]...)
	out = append(out, item.Value()...)
	return out
}

// parseLeaf parses a leaf blob back into an Item. Minimum length is
// 1 (tag) + 32 (key) = 33 bytes; anything shorter is BadFormat.
func parseLeaf(blob []byte) (Item, error) {
	const minLen = 1 + keyLength
	if len(blob) < minLen {
		return Item{}, fmt.Errorf("%w: leaf blob too short (%d bytes)", ErrBadFormat, len(blob))
	}
	if blob[0] != protocol.TagLeafNode {
		return Item{}, fmt.Errorf("%w: leaf blob has wrong tag 0x%02x", ErrBadFormat, blob[0])
	}
	var key [keyLength]byte
	copy(key[:], blob[1:1+keyLength])
	value := blob[1+keyLength:]
	return NewItem(key, value), nil
}

// serializeInner produces the canonical inner blob: tag || 16 slots of
// 32 bytes each, empty slots encoded as the zero digest.
func serializeInner(slots [16]Digest) []byte {
	out := make([]byte, 0, 1+16*32)
	out = append(out, protocol.TagInnerNode)
	for _, s := range slots {
		out = append(out, s[:]...)
	}
	return out
}

// parseInner parses an inner blob back into its 16 child slots. Length
// must be exactly 1 + 16*32 = 513 bytes.
func parseInner(blob []byte) ([16]Digest, error) {
	const expectedLen = 1 + 16*32
	var slots [16]Digest
	if len(blob) != expectedLen {
		return slots, fmt.Errorf("%w: inner blob has length %d, want %d", ErrBadFormat, len(blob), expectedLen)
	}
	if blob[0] != protocol.TagInnerNode {
		return slots, fmt.Errorf("%w: inner blob has wrong tag 0x%02x", ErrBadFormat, blob[0])
	}
	for i := 0; i < 16; i++ {
		start := 1 + i*32
		copy(slots[i][:], blob[start:start+32])
	}
	return slots, nil
}
