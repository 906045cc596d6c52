package graph

import (
	"fmt"
	"strconv"

	"git.canoozie.net/riddling/propgraph/pkg/model"
	"git.canoozie.net/riddling/propgraph/pkg/query"
)

// Execute runs a parsed query inside the transaction and returns the ids it
// selected.
func (tx *Tx) Execute(q *query.Query) (*query.Result, error) {
	if err := tx.active(); err != nil {
		return nil, err
	}
	q, err := query.NewOptimizer().Optimize(q)
	if err != nil {
		return nil, err
	}

	switch q.Type {
	case query.QueryTypeFindNodes:
		opts, err := queryOptions(q)
		if err != nil {
			return nil, err
		}
		nodes, err := Collect(tx.Nodes(opts))
		if err != nil {
			return nil, err
		}
		return &query.Result{Nodes: nodeIDs(nodes)}, nil

	case query.QueryTypeFindEdges:
		opts, err := queryOptions(q)
		if err != nil {
			return nil, err
		}
		edges, err := Collect(tx.Edges(opts))
		if err != nil {
			return nil, err
		}
		ids := make([]uint64, len(edges))
		for i, e := range edges {
			ids[i] = e.ID()
		}
		return &query.Result{Edges: ids}, nil

	case query.QueryTypeFindNeighbors:
		n, err := tx.nodeParam(q, query.ParamNodeID)
		if err != nil {
			return nil, err
		}
		dir, err := parseDirection(q.Parameters[query.ParamDirection])
		if err != nil {
			return nil, err
		}
		neighbors, err := Collect(n.Neighbors(tx, dir, q.Parameters[query.ParamTag]))
		if err != nil {
			return nil, err
		}
		return &query.Result{Nodes: nodeIDs(neighbors)}, nil

	case query.QueryTypeFindPath:
		src, err := tx.nodeParam(q, query.ParamSourceID)
		if err != nil {
			return nil, err
		}
		dst, err := tx.nodeParam(q, query.ParamTargetID)
		if err != nil {
			return nil, err
		}
		dir, err := parseDirection(query.GetOrDefault(q.Parameters, query.ParamDirection, query.DirectionOutgoing))
		if err != nil {
			return nil, err
		}
		maxHops, err := strconv.Atoi(q.Parameters[query.ParamMaxHops])
		if err != nil {
			return nil, fmt.Errorf("%w: maxHops %q", query.ErrInvalidQuery, q.Parameters[query.ParamMaxHops])
		}
		path, err := ShortestPath(tx, src, dst, WalkOptions{
			Direction: dir,
			Tag:       q.Parameters[query.ParamTag],
			MaxDepth:  maxHops,
		})
		if err != nil {
			return nil, err
		}
		result := &query.Result{}
		if path != nil {
			result.Paths = [][]uint64{nodeIDs(path)}
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: unsupported query type: %s", query.ErrInvalidQuery, q.Type)
}

func queryOptions(q *query.Query) (QueryOptions, error) {
	pred, err := q.Predicate()
	if err != nil {
		return QueryOptions{}, err
	}
	return QueryOptions{
		Tag:       q.Parameters[query.ParamTag],
		Predicate: pred,
		Reverse:   q.Reverse(),
	}, nil
}

func (tx *Tx) nodeParam(q *query.Query, param string) (Node, error) {
	id, err := query.ParseUint64(q.Parameters[param])
	if err != nil {
		return Node{}, fmt.Errorf("%w: parameter '%s': %v", query.ErrInvalidQuery, param, err)
	}
	return tx.Node(id)
}

func parseDirection(s string) (Direction, error) {
	switch s {
	case query.DirectionOutgoing:
		return Outgoing, nil
	case query.DirectionIncoming:
		return Incoming, nil
	case query.DirectionBoth, "":
		return Any, nil
	}
	return Any, fmt.Errorf("%w: unknown direction %q", model.ErrInvalidArgument, s)
}

func nodeIDs(nodes []Node) []uint64 {
	ids := make([]uint64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	return ids
}
