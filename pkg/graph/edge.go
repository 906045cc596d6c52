package graph

import (
	"git.canoozie.net/riddling/propgraph/pkg/model"
)

// Edge is a handle to a directed graph edge.
type Edge struct {
	g  *Graph
	id uint64
}

// ID returns the edge id.
func (e Edge) ID() uint64 { return e.id }

func (e Edge) record(tx *Tx) (*model.Edge, error) {
	if err := tx.active(); err != nil {
		return nil, err
	}
	if e.g != tx.g {
		return nil, &model.ObjectNotFoundError{Object: "edge", ID: e.id}
	}
	rec := tx.edgeRecord(e.id)
	if rec == nil {
		return nil, &model.ObjectNotFoundError{Object: "edge", ID: e.id}
	}
	return rec, nil
}

// Tag returns the tag the edge was created with.
func (e Edge) Tag(tx *Tx) (string, error) {
	rec, err := e.record(tx)
	if err != nil {
		return "", err
	}
	return rec.Tag, nil
}

// Source returns the node the edge starts at.
func (e Edge) Source(tx *Tx) (Node, error) {
	rec, err := e.record(tx)
	if err != nil {
		return Node{}, err
	}
	return Node{g: e.g, id: rec.Source}, nil
}

// Destination returns the node the edge points to.
func (e Edge) Destination(tx *Tx) (Node, error) {
	rec, err := e.record(tx)
	if err != nil {
		return Node{}, err
	}
	return Node{g: e.g, id: rec.Destination}, nil
}

// Property returns the value stored under key. ok is false when the key is
// unset.
func (e Edge) Property(tx *Tx, key string) (value model.Property, ok bool, err error) {
	if _, err := e.record(tx); err != nil {
		return model.Property{}, false, err
	}
	return tx.property(model.IndexEdges, e.id, key)
}

// HasProperty reports whether key is set.
func (e Edge) HasProperty(tx *Tx, key string) (bool, error) {
	_, ok, err := e.Property(tx, key)
	return ok, err
}

// SetProperty stores value under key, replacing any previous value.
func (e Edge) SetProperty(tx *Tx, key string, value model.Property) error {
	if _, err := e.record(tx); err != nil {
		return err
	}
	return tx.setProperty(model.IndexEdges, e.id, key, value)
}

// RemoveProperty deletes key. Removing an unset key does nothing.
func (e Edge) RemoveProperty(tx *Tx, key string) error {
	if _, err := e.record(tx); err != nil {
		return err
	}
	return tx.removeProperty(model.IndexEdges, e.id, key)
}

// Properties iterates over the edge's properties in key order.
func (e Edge) Properties(tx *Tx) (*Iterator[PropertyEntry], error) {
	if _, err := e.record(tx); err != nil {
		return nil, err
	}
	return tx.properties(model.IndexEdges, e.id)
}
