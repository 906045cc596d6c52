package model

import "slices"

// Node is the stored record of a graph vertex.
type Node struct {
	ID         uint64              `msgpack:"id"`
	Tag        string              `msgpack:"tag,omitempty"`
	Properties map[string]Property `msgpack:"props,omitempty"`
	// Version is the commit sequence that last changed the node.
	Version uint64 `msgpack:"ver"`

	// Out and In hold incident edge ids in ascending order. They are
	// rebuilt from the edge records on load and never persisted.
	Out []uint64 `msgpack:"-"`
	In  []uint64 `msgpack:"-"`
}

// NewNode creates a new Node with the given ID and tag
func NewNode(id uint64, tag string) *Node {
	return &Node{
		ID:         id,
		Tag:        tag,
		Properties: make(map[string]Property),
	}
}

// AddOut records an outgoing edge, keeping Out sorted.
func (n *Node) AddOut(edgeID uint64) { n.Out = insertSorted(n.Out, edgeID) }

// AddIn records an incoming edge, keeping In sorted.
func (n *Node) AddIn(edgeID uint64) { n.In = insertSorted(n.In, edgeID) }

func insertSorted(ids []uint64, id uint64) []uint64 {
	// Ids are allocated in ascending order, so this is almost always an append.
	if len(ids) == 0 || ids[len(ids)-1] < id {
		return append(ids, id)
	}
	i, found := slices.BinarySearch(ids, id)
	if found {
		return ids
	}
	return slices.Insert(ids, i, id)
}
