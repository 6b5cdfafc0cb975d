package shamap

import (
	"fmt"

	"github.com/ywzqhl/triesync/internal/protocol"
)

// MissingNode is one entry of what getMissingNodes reports: a child
// whose parent is present but the child itself is not.
type MissingNode struct {
	ID     NodeID
	Digest Digest
}

// GetMissingNodes runs on the destination to discover what it still
// needs. It performs a depth-first walk from the root using an explicit
// stack, skipping any subtree already marked full-below, and returns up
// to max (NodeID, digest) pairs for children whose parent is resident
// but the child is not. As a side effect, any inner node all of whose
// occupied children turn out to be present (leaves outright, inner
// children themselves already full-below) has its own full-below flag
// set.
//
// Ordering is depth-first by branch index low to high, but callers
// should only depend on the returned set, not its order.
func (sm *SHAMap) GetMissingNodes(max int) []MissingNode {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if max < 1 {
		max = 1
	}

	var out []MissingNode
	stack := []*InnerNode{sm.root}

	for len(stack) > 0 && len(out) < max {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.FullBelow() {
			continue
		}

		allPresent := true
		for branch := 0; branch < branchFactor; branch++ {
			if node.IsEmptyBranch(branch) {
				continue
			}
			childID := node.id.ChildNodeID(branch)
			childHash := node.ChildDigest(branch)

			// A resident child may be a leaf or a further inner node;
			// path compression means a sibling slot of the same parent
			// can disagree, and the wire format carries no bit that
			// would tell us which without asking the store.
			if _, ok := sm.leafByID[childID]; ok {
				continue
			}
			if child, ok := sm.innerByID[childID]; ok {
				if !child.FullBelow() {
					stack = append(stack, child)
					allPresent = false
				}
				continue
			}

			allPresent = false
			if len(out) < max {
				out = append(out, MissingNode{ID: childID, Digest: childHash})
			}
		}

		if allPresent {
			node.setFullBelow()
		}
	}

	return out
}

// FatResponse is what getNodeFat returns: the requested node plus any
// of its immediate children the source happened to have on hand.
type FatResponse struct {
	IDs      []NodeID
	Blobs    [][]byte
	Complete bool // true iff every occupied child of an inner request was resident
}

// GetNodeFat runs on the source. If wanted names a resident leaf it
// returns just that leaf. Otherwise it returns the inner node plus
// every immediate child the source has resident, without going to the
// network for the ones it doesn't have; Complete reports whether all
// occupied children were resident.
func (sm *SHAMap) GetNodeFat(wanted NodeID) (FatResponse, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if leaf, ok := sm.leafByID[wanted]; ok {
		return FatResponse{IDs: []NodeID{wanted}, Blobs: [][]byte{sm.leafBlobLocked(leaf)}, Complete: true}, nil
	}

	node, ok := sm.innerByID[wanted]
	if !ok {
		return FatResponse{}, fmt.Errorf("%w: node %s", ErrMissing, wanted)
	}

	resp := FatResponse{Complete: true}
	resp.IDs = append(resp.IDs, wanted)
	resp.Blobs = append(resp.Blobs, sm.innerBlobLocked(node))

	for branch := 0; branch < branchFactor; branch++ {
		if node.IsEmptyBranch(branch) {
			continue
		}
		childID := node.id.ChildNodeID(branch)

		if leaf, ok := sm.leafByID[childID]; ok {
			resp.IDs = append(resp.IDs, childID)
			resp.Blobs = append(resp.Blobs, sm.leafBlobLocked(leaf))
			continue
		}
		if child, ok := sm.innerByID[childID]; ok {
			resp.IDs = append(resp.IDs, childID)
			resp.Blobs = append(resp.Blobs, sm.innerBlobLocked(child))
			continue
		}
		resp.Complete = false
	}

	return resp, nil
}

// innerBlobLocked and leafBlobLocked serve a node's wire encoding out of
// the blob cache when the node's digest hasn't moved since the last
// encode, falling back to a fresh serialize on a miss.
func (sm *SHAMap) innerBlobLocked(n *InnerNode) []byte {
	if blob, ok := sm.blobs.get(n.id, n.Hash()); ok {
		return blob
	}
	blob := n.serialize()
	sm.blobs.put(n.id, n.Hash(), blob)
	return blob
}

func (sm *SHAMap) leafBlobLocked(n *LeafNode) []byte {
	if blob, ok := sm.blobs.get(n.id, n.Hash()); ok {
		return blob
	}
	blob := n.serialize()
	sm.blobs.put(n.id, n.Hash(), blob)
	return blob
}

// AddRootNode installs the destination's root from a blob fetched out
// of band. If a root is already installed (even an empty one), the call is
// idempotent: it succeeds, and if expectedHash is supplied it must
// match the existing root or the call fails with ErrCorrupt.
func (sm *SHAMap) AddRootNode(rootBlob []byte, expectedHash *Digest) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.rootInstalled {
		if expectedHash != nil && sm.root.Hash() != *expectedHash {
			return fmt.Errorf("%w: root already installed with a different hash", ErrCorrupt)
		}
		return nil
	}

	node, err := parseInnerNode(RootID, rootBlob, sm.seq)
	if err != nil {
		return err
	}
	if expectedHash != nil && node.Hash() != *expectedHash {
		return fmt.Errorf("%w: root digest does not match expected hash", ErrCorrupt)
	}

	sm.root = node
	sm.rootInstalled = true
	sm.markInnerDirtyLocked(node)
	return nil
}

// AddKnownNode installs a node the destination requested and received.
// Late or duplicate delivery of an already-resident node is not an
// error: this is what makes the sync loop self-healing against a
// transport that never learns a request timed out.
//
// id alone doesn't say whether the node is a leaf or an inner node —
// path compression means a leaf can sit at any depth, not just
// MaxDepth — so the blob's own tag byte decides which parser to use.
func (sm *SHAMap) AddKnownNode(id NodeID, rawBlob []byte) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if id.IsRoot() {
		return fmt.Errorf("%w: use AddRootNode for the root", ErrUnhookable)
	}

	if _, ok := sm.leafByID[id]; ok {
		return nil
	}
	if _, ok := sm.innerByID[id]; ok {
		return nil
	}

	parent := sm.walkToLocked(id)
	if parent == nil {
		return fmt.Errorf("%w: no path toward %s", ErrUnhookable, id)
	}

	// walkToLocked never overshoots: its loop condition stops descending
	// once current.id.Depth reaches id.Depth-1, so parent.id.Depth can
	// only ever be <= id.Depth-1 here, never equal to id.Depth.
	if parent.id.Depth != id.Depth-1 {
		return fmt.Errorf("%w: parent at depth %d, want %d", ErrUnhookable, parent.id.Depth, id.Depth-1)
	}

	branch := parent.id.SelectBranch(id.Prefix)
	expected := parent.ChildDigest(branch)
	if expected.IsZero() {
		return fmt.Errorf("%w: parent has no child in that slot", ErrUnhookable)
	}

	if len(rawBlob) == 0 {
		return fmt.Errorf("%w: empty node blob", ErrBadFormat)
	}

	switch rawBlob[0] {
	case protocol.TagLeafNode:
		leaf, err := parseLeafNode(id, rawBlob, sm.seq)
		if err != nil {
			return err
		}
		if leaf.Hash() != expected {
			return fmt.Errorf("%w: leaf %s", ErrCorrupt, id)
		}
		if !id.isPrefixOf(leaf.item.Key()) {
			return fmt.Errorf("%w: leaf key does not lie under %s", ErrCorrupt, id)
		}
		sm.markLeafDirtyLocked(leaf)
		return nil

	case protocol.TagInnerNode:
		inner, err := parseInnerNode(id, rawBlob, sm.seq)
		if err != nil {
			return err
		}
		if inner.Hash() != expected {
			return fmt.Errorf("%w: inner node %s", ErrCorrupt, id)
		}
		sm.markInnerDirtyLocked(inner)
		// Deliberately not touching parent.hash or parent.fullBelow here:
		// the parent's digest already commits to this child, and
		// full-below is recomputed lazily by GetMissingNodes.
		return nil

	default:
		return fmt.Errorf("%w: unrecognized node tag %#x", ErrBadFormat, rawBlob[0])
	}
}

// walkToLocked descends from the root toward id along the unique path,
// stopping at the deepest inner node it can reach: either id's actual
// parent, or wherever the path runs out (an empty slot, or an
// unresident child).
func (sm *SHAMap) walkToLocked(id NodeID) *InnerNode {
	current := sm.root
	for current.id.Depth < id.Depth-1 {
		branch := current.id.SelectBranch(id.Prefix)
		if current.IsEmptyBranch(branch) {
			break
		}
		childID := current.id.ChildNodeID(branch)
		child, ok := sm.innerByID[childID]
		if !ok {
			break
		}
		current = child
	}
	return current
}
