// Package protocol holds the wire-format constants shared by the trie
// implementation and anything that talks to it.
package protocol

// Tag bytes prefixed onto a node's canonical encoding before hashing.
// They keep a leaf blob and an inner blob from ever hashing to the same
// digest even if their raw bytes happened to collide.
const (
	TagLeafNode  byte = 0x00
	TagInnerNode byte = 0x01
)
