package graph

import (
	"git.canoozie.net/riddling/propgraph/pkg/model"
)

// Node is a handle to a graph node. It is a plain value that stays valid
// for the life of the graph; every access goes through a transaction.
type Node struct {
	g  *Graph
	id uint64
}

// ID returns the node id.
func (n Node) ID() uint64 { return n.id }

func (n Node) check(tx *Tx) error {
	if err := tx.active(); err != nil {
		return err
	}
	if n.g != tx.g {
		return &model.ObjectNotFoundError{Object: "node", ID: n.id}
	}
	return nil
}

// Tag returns the tag the node was created with.
func (n Node) Tag(tx *Tx) (string, error) {
	if err := n.check(tx); err != nil {
		return "", err
	}
	return tx.tag(model.IndexNodes, n.id)
}

// Property returns the value stored under key. ok is false when the key is
// unset.
func (n Node) Property(tx *Tx, key string) (value model.Property, ok bool, err error) {
	if err := n.check(tx); err != nil {
		return model.Property{}, false, err
	}
	return tx.property(model.IndexNodes, n.id, key)
}

// HasProperty reports whether key is set.
func (n Node) HasProperty(tx *Tx, key string) (bool, error) {
	_, ok, err := n.Property(tx, key)
	return ok, err
}

// SetProperty stores value under key, replacing any previous value.
func (n Node) SetProperty(tx *Tx, key string, value model.Property) error {
	if err := n.check(tx); err != nil {
		return err
	}
	return tx.setProperty(model.IndexNodes, n.id, key, value)
}

// RemoveProperty deletes key. Removing an unset key does nothing.
func (n Node) RemoveProperty(tx *Tx, key string) error {
	if err := n.check(tx); err != nil {
		return err
	}
	return tx.removeProperty(model.IndexNodes, n.id, key)
}

// Properties iterates over the node's properties in key order.
func (n Node) Properties(tx *Tx) (*Iterator[PropertyEntry], error) {
	if err := n.check(tx); err != nil {
		return nil, err
	}
	return tx.properties(model.IndexNodes, n.id)
}

// Edges iterates over the edges incident to the node in the given
// direction, restricted to tag unless it is empty. Edges come in id order
// per direction; Any yields outgoing edges first and lists a self-loop once.
func (n Node) Edges(tx *Tx, dir Direction, tag string) (*Iterator[Edge], error) {
	if err := n.check(tx); err != nil {
		return nil, err
	}
	next, err := tx.adjacency(n.id, dir, tag)
	if err != nil {
		return nil, err
	}
	return newIterator(tx, func() (Edge, bool, error) {
		step, ok := next()
		if !ok {
			return Edge{}, false, nil
		}
		return Edge{g: tx.g, id: step.edge}, true, nil
	}), nil
}

// Neighbors iterates over the node at the far end of every edge Edges would
// yield, one per edge.
func (n Node) Neighbors(tx *Tx, dir Direction, tag string) (*Iterator[Node], error) {
	if err := n.check(tx); err != nil {
		return nil, err
	}
	next, err := tx.adjacency(n.id, dir, tag)
	if err != nil {
		return nil, err
	}
	return newIterator(tx, func() (Node, bool, error) {
		step, ok := next()
		if !ok {
			return Node{}, false, nil
		}
		return Node{g: tx.g, id: step.neighbor}, true, nil
	}), nil
}
