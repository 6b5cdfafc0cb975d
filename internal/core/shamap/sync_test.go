package shamap

import (
	"errors"
	"math/rand"
	"testing"
)

// driveSync pumps GetMissingNodes/GetNodeFat/AddKnownNode between source
// and dest until dest reports nothing left to fetch, or round guards
// against an infinite loop from a broken implementation.
func driveSync(t *testing.T, source, dest *SHAMap) {
	t.Helper()
	const maxRounds = 1000
	for round := 0; round < maxRounds; round++ {
		missing := dest.GetMissingNodes(64)
		if len(missing) == 0 {
			return
		}
		for _, m := range missing {
			resp, err := source.GetNodeFat(m.ID)
			if err != nil {
				t.Fatalf("round %d: GetNodeFat(%s): %v", round, m.ID, err)
			}
			for i, id := range resp.IDs {
				if err := dest.AddKnownNode(id, resp.Blobs[i]); err != nil {
					t.Fatalf("round %d: AddKnownNode(%s): %v", round, id, err)
				}
			}
		}
	}
	t.Fatalf("sync did not converge within %d rounds", maxRounds)
}

func syncRoot(t *testing.T, source, dest *SHAMap) {
	t.Helper()
	rootResp, err := source.GetNodeFat(RootID)
	if err != nil {
		t.Fatalf("GetNodeFat(root): %v", err)
	}
	rootHash := source.RootHash()
	if err := dest.AddRootNode(rootResp.Blobs[0], &rootHash); err != nil {
		t.Fatalf("AddRootNode: %v", err)
	}
}

// S1: syncing an empty map completes immediately with no fetches.
func TestSyncEmptyMap(t *testing.T) {
	source := New()
	dest := NewForSync(0)
	syncRoot(t, source, dest)

	if missing := dest.GetMissingNodes(64); len(missing) != 0 {
		t.Fatalf("expected no missing nodes for an empty map, got %d", len(missing))
	}
	if err := source.DeepCompare(dest); err != nil {
		t.Fatalf("DeepCompare: %v", err)
	}
}

// S2: a single item syncs across in one root fetch plus one leaf fetch.
func TestSyncSingleItem(t *testing.T) {
	source := New()
	if err := source.AddItem(itemWithKeyByte(0x77, "lonely")); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	dest := NewForSync(0)
	syncRoot(t, source, dest)
	driveSync(t, source, dest)

	if err := source.DeepCompare(dest); err != nil {
		t.Fatalf("DeepCompare: %v", err)
	}
}

// S3: many items across many branches syncs to a structurally identical tree.
func TestSyncManyItemsAcrossBranches(t *testing.T) {
	source := New()
	for i := 0; i < 200; i++ {
		var key [keyLength]byte
		key[0] = byte(i)
		key[1] = byte(i * 7)
		if err := source.AddItem(NewItem(key, []byte{byte(i)})); err != nil {
			t.Fatalf("AddItem(%d): %v", i, err)
		}
	}

	dest := NewForSync(0)
	syncRoot(t, source, dest)
	driveSync(t, source, dest)

	if err := source.DeepCompare(dest); err != nil {
		t.Fatalf("DeepCompare: %v", err)
	}
}

// S4: a tampered blob is rejected with ErrCorrupt and never installed.
func TestSyncRejectsTamperedBlob(t *testing.T) {
	source := New()
	item := itemWithKeyByte(0x55, "authentic")
	if err := source.AddItem(item); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	dest := NewForSync(0)
	syncRoot(t, source, dest)

	missing := dest.GetMissingNodes(64)
	if len(missing) != 1 {
		t.Fatalf("expected exactly one missing node for a single-item map, got %d", len(missing))
	}
	leafID := missing[0].ID
	resp, err := source.GetNodeFat(leafID)
	if err != nil {
		t.Fatalf("GetNodeFat: %v", err)
	}
	tampered := append([]byte(nil), resp.Blobs[0]...)
	tampered[len(tampered)-1] ^= 0xFF

	if err := dest.AddKnownNode(leafID, tampered); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("AddKnownNode(tampered) err = %v, want ErrCorrupt", err)
	}
	if missing := dest.GetMissingNodes(64); len(missing) != 1 {
		t.Fatalf("tampered node should still be reported missing, got %d entries", len(missing))
	}
}

// S5: duplicate or late delivery of an already-installed node is a no-op,
// not an error, so a timed-out request that eventually arrives can't
// corrupt an already-synced destination.
func TestSyncIdempotentOnDuplicateDelivery(t *testing.T) {
	source := New()
	item := itemWithKeyByte(0x66, "value")
	if err := source.AddItem(item); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	dest := NewForSync(0)
	syncRoot(t, source, dest)
	driveSync(t, source, dest)

	branch := RootID.SelectBranch(item.Key())
	leafID := RootID.ChildNodeID(branch)
	resp, err := source.GetNodeFat(leafID)
	if err != nil {
		t.Fatalf("GetNodeFat: %v", err)
	}
	if err := dest.AddKnownNode(leafID, resp.Blobs[0]); err != nil {
		t.Fatalf("duplicate AddKnownNode should be a no-op, got %v", err)
	}

	rootBlob, err := source.GetNodeFat(RootID)
	if err != nil {
		t.Fatalf("GetNodeFat(root): %v", err)
	}
	rootHash := source.RootHash()
	if err := dest.AddRootNode(rootBlob.Blobs[0], &rootHash); err != nil {
		t.Fatalf("duplicate AddRootNode should be a no-op, got %v", err)
	}
}

func TestAddRootNodeRejectsMismatchedHashOnceInstalled(t *testing.T) {
	source := New()
	dest := NewForSync(0)
	syncRoot(t, source, dest)

	bogus := Digest{0xDE, 0xAD}
	rootResp, err := source.GetNodeFat(RootID)
	if err != nil {
		t.Fatalf("GetNodeFat: %v", err)
	}
	if err := dest.AddRootNode(rootResp.Blobs[0], &bogus); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

// S6: a randomized stress test that the destination converges to a
// byte-identical structure for 500 random keys, driven through
// driveSync's batches of 64 missing nodes.
func TestSyncRandomStress(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	source := New()
	seen := make(map[[keyLength]byte]bool)

	for i := 0; i < 500; i++ {
		var key [keyLength]byte
		rng.Read(key[:])
		if seen[key] {
			continue
		}
		seen[key] = true
		value := make([]byte, 1+rng.Intn(64))
		rng.Read(value)
		if err := source.AddItem(NewItem(key, value)); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
	}

	dest := NewForSync(32)
	syncRoot(t, source, dest)
	driveSync(t, source, dest)

	if err := source.DeepCompare(dest); err != nil {
		t.Fatalf("DeepCompare after stress sync: %v", err)
	}
}

func TestAddKnownNodeRejectsRoot(t *testing.T) {
	dest := NewForSync(0)
	if err := dest.AddKnownNode(RootID, nil); !errors.Is(err, ErrUnhookable) {
		t.Fatalf("err = %v, want ErrUnhookable", err)
	}
}

func TestAddKnownNodeRejectsUnhookableOrphan(t *testing.T) {
	source := New()
	// Two keys sharing nibble 0x1 but diverging at nibble 0x0 vs 0x5
	// force a real inner node at depth 1, with both items as leaves at
	// depth 2 beneath it.
	if err := source.AddItem(itemWithKeyByte(0x10, "v")); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := source.AddItem(itemWithKeyByte(0x15, "v")); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	dest := NewForSync(0)
	syncRoot(t, source, dest)

	// Ask for the depth-2 leaf before its depth-1 parent is resident.
	deepID := RootID.ChildNodeID(0x1).ChildNodeID(0x0)
	resp, err := source.GetNodeFat(deepID)
	if err != nil {
		t.Fatalf("GetNodeFat: %v", err)
	}
	if err := dest.AddKnownNode(deepID, resp.Blobs[0]); !errors.Is(err, ErrUnhookable) {
		t.Fatalf("err = %v, want ErrUnhookable", err)
	}
}

func TestGetNodeFatReportsIncompleteWhenChildrenMissing(t *testing.T) {
	source := New()
	for i := 0; i < 3; i++ {
		if err := source.AddItem(itemWithKeyByte(byte(i), "v")); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
	}

	dest := NewForSync(0)
	syncRoot(t, source, dest)

	resp, err := dest.GetNodeFat(RootID)
	if err != nil {
		t.Fatalf("GetNodeFat: %v", err)
	}
	if resp.Complete {
		t.Fatal("expected Complete = false before any children are resident")
	}
}

func TestGetNodeFatMissingReturnsError(t *testing.T) {
	dest := NewForSync(0)
	if _, err := dest.GetNodeFat(RootID); !errors.Is(err, ErrMissing) {
		t.Fatalf("err = %v, want ErrMissing", err)
	}
}
