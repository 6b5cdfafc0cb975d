package shamap

import "fmt"

// AddItem inserts item into the trie. It descends from the root along
// item's key one nibble at a time, stopping the moment it finds a slot
// it can occupy: an empty one, or one already holding a leaf whose key
// diverges from item's, in which case that leaf is pushed one or more
// levels deeper to make room. This is path compression: a leaf sits at
// whatever depth its key first stops colliding with everything else in
// the trie, not at a fixed depth. It fails with ErrDuplicate if the key
// is already present, and with ErrImmutable once SetImmutable has been
// called.
func (sm *SHAMap) AddItem(item Item) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.immutable {
		return ErrImmutable
	}

	key := item.Key()
	path := make([]*InnerNode, 1, MaxDepth)
	path[0] = sm.root
	current := sm.root

	for {
		branch := current.id.SelectBranch(key)

		if current.IsEmptyBranch(branch) {
			leaf := NewLeafNode(current.id.ChildNodeID(branch), item, sm.seq)
			sm.markLeafDirtyLocked(leaf)
			current.setChildDigest(branch, leaf.Hash())
			sm.dirtyInner[current.id] = current
			sm.rehashAncestorsLocked(path)
			return nil
		}

		childID := current.id.ChildNodeID(branch)

		if existing, ok := sm.leafByID[childID]; ok {
			if existing.item.Key() == key {
				return ErrDuplicate
			}
			sm.splitLeafLocked(current, branch, existing, item)
			sm.rehashAncestorsLocked(path)
			return nil
		}

		child, ok := sm.innerByID[childID]
		if !ok {
			return fmt.Errorf("shamap: occupied branch %d at %s has no resident child", branch, current.id)
		}
		current = child
		path = append(path, current)
	}
}

// splitLeafLocked handles a key colliding with an already-placed leaf.
// The leaf occupying branch of parent moves into a new inner node at
// that same slot, alongside the new item; if the two keys still agree
// on the next nibble, the chain extends one level deeper, and so on
// until they finally diverge. Every inner node created along the way
// starts out empty, so once the deepest one's two leaf children are
// known the whole chain is rehashed bottom-up: each grandparent's slot
// must commit to its child's final digest, not the empty one the child
// had the moment it was created.
func (sm *SHAMap) splitLeafLocked(parent *InnerNode, branch int, existing *LeafNode, item Item) {
	existingKey := existing.item.Key()
	newKey := item.Key()

	delete(sm.leafByID, existing.id)
	delete(sm.dirtyLeaf, existing.id)

	chain := []*InnerNode{parent}
	current := parent
	for {
		splitID := current.id.ChildNodeID(branch)
		existingBranch := splitID.SelectBranch(existingKey)
		newBranch := splitID.SelectBranch(newKey)

		split := NewInnerNode(splitID)
		sm.markInnerDirtyLocked(split)
		chain = append(chain, split)

		if existingBranch != newBranch {
			relocated := NewLeafNode(splitID.ChildNodeID(existingBranch), existing.item, sm.seq)
			added := NewLeafNode(splitID.ChildNodeID(newBranch), item, sm.seq)
			sm.markLeafDirtyLocked(relocated)
			sm.markLeafDirtyLocked(added)
			split.setChildDigest(existingBranch, relocated.Hash())
			split.setChildDigest(newBranch, added.Hash())
			break
		}

		current = split
		branch = existingBranch
	}

	for i := len(chain) - 2; i >= 0; i-- {
		node := chain[i]
		child := chain[i+1]
		childBranch := node.id.SelectBranch(child.id.Prefix)
		node.setChildDigest(childBranch, child.Hash())
		sm.dirtyInner[node.id] = node
	}
}

// rehashAncestorsLocked recomputes every node in path above its last
// entry, given that the last entry's own digest has already been
// updated by the caller. It walks bottom-up so each parent's slot picks
// up its child's new hash before the parent's own hash is recomputed in
// turn.
func (sm *SHAMap) rehashAncestorsLocked(path []*InnerNode) {
	for i := len(path) - 2; i >= 0; i-- {
		parent := path[i]
		child := path[i+1]
		branch := parent.id.SelectBranch(child.id.Prefix)
		parent.setChildDigest(branch, child.Hash())
		sm.dirtyInner[parent.id] = parent
	}
}

// SetImmutable latches the map: subsequent mutation calls fail with
// ErrImmutable. Safe to call more than once.
func (sm *SHAMap) SetImmutable() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.immutable = true
}

// IsImmutable reports whether SetImmutable has been called.
func (sm *SHAMap) IsImmutable() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.immutable
}
