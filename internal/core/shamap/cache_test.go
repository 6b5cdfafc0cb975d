package shamap

import "testing"

func TestBlobCacheHitAndDigestInvalidation(t *testing.T) {
	c := newBlobCache(8)
	id := RootID.ChildNodeID(0x3)
	d1 := Digest{1}
	d2 := Digest{2}

	c.put(id, d1, []byte("first"))
	if blob, ok := c.get(id, d1); !ok || string(blob) != "first" {
		t.Fatalf("expected cache hit for matching digest, got %q ok=%v", blob, ok)
	}
	if _, ok := c.get(id, d2); ok {
		t.Fatal("a stale digest should not hit the cache")
	}
}

func TestBlobCacheDisabledBySize(t *testing.T) {
	c := newBlobCache(0)
	id := RootID.ChildNodeID(0x1)
	c.put(id, Digest{1}, []byte("x"))
	if _, ok := c.get(id, Digest{1}); ok {
		t.Fatal("a zero-size cache should never report a hit")
	}
}

func TestGetNodeFatServesFromCacheOnRepeatedCalls(t *testing.T) {
	sm := New()
	if err := sm.AddItem(itemWithKeyByte(0x09, "cached")); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	first, err := sm.GetNodeFat(RootID)
	if err != nil {
		t.Fatalf("GetNodeFat: %v", err)
	}
	if _, ok := sm.blobs.get(RootID, sm.RootHash()); !ok {
		t.Fatal("GetNodeFat should have cached the root's blob")
	}
	second, err := sm.GetNodeFat(RootID)
	if err != nil {
		t.Fatalf("GetNodeFat: %v", err)
	}
	if string(first.Blobs[0]) != string(second.Blobs[0]) {
		t.Fatal("repeated GetNodeFat calls should return identical blobs whether served from cache or not")
	}
}
