package graph

import (
	"git.canoozie.net/riddling/propgraph/pkg/model"
	"git.canoozie.net/riddling/propgraph/pkg/query"
)

// WalkOptions configures Walk and ShortestPath.
type WalkOptions struct {
	Direction Direction
	// Tag restricts the edges followed. Empty follows every edge.
	Tag string
	// MaxDepth bounds the number of hops. Zero means 10.
	MaxDepth int
	// DepthFirst walks depth first instead of breadth first.
	DepthFirst bool
}

// WalkFunc is called once per node reached, with its distance in hops from
// the start along the path that first reached it. Breadth first that is the
// shortest distance. Returning false stops the walk.
type WalkFunc func(n Node, depth int) (bool, error)

func (tx *Tx) traversal(opts WalkOptions) *query.Traversal {
	t := query.NewTraversal(func(id uint64) ([]uint64, error) {
		return tx.neighborIDs(id, opts.Direction, opts.Tag)
	})
	t.SetMaxDepth(opts.MaxDepth)
	if opts.DepthFirst {
		t.Type = query.TraversalTypeDFS
	}
	return t
}

// Walk visits every node reachable from start within opts.MaxDepth hops,
// each once, starting with start itself at depth 0.
func Walk(tx *Tx, start Node, opts WalkOptions, fn WalkFunc) error {
	if err := start.check(tx); err != nil {
		return err
	}
	if !tx.nodeVisible(start) {
		return &model.ObjectNotFoundError{Object: "node", ID: start.id}
	}
	return tx.traversal(opts).Run(start.id, func(id uint64, depth int) (bool, error) {
		return fn(Node{g: tx.g, id: id}, depth)
	})
}

// ShortestPath returns the nodes of a shortest path from src to dst with at
// most opts.MaxDepth hops, both ends included. It returns nil when there is
// no such path.
func ShortestPath(tx *Tx, src, dst Node, opts WalkOptions) ([]Node, error) {
	for _, n := range []Node{src, dst} {
		if err := n.check(tx); err != nil {
			return nil, err
		}
		if !tx.nodeVisible(n) {
			return nil, &model.ObjectNotFoundError{Object: "node", ID: n.id}
		}
	}
	t := tx.traversal(opts)
	ids, err := t.FindPath(src.id, dst.id, t.MaxDepth)
	if err != nil || ids == nil {
		return nil, err
	}
	path := make([]Node, len(ids))
	for i, id := range ids {
		path[i] = Node{g: tx.g, id: id}
	}
	return path, nil
}
