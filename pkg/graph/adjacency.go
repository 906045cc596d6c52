package graph

import (
	"fmt"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

type adjacencyStep struct {
	edge     uint64
	neighbor uint64
}

type adjacencyRun struct {
	ids      []uint64
	outgoing bool
}

// adjacency returns a generator over the edges incident to nodeID. The
// committed and pending id lists are captured when it is created; both are
// ascending and pending ids follow committed ones.
func (tx *Tx) adjacency(nodeID uint64, dir Direction, tag string) (func() (adjacencyStep, bool), error) {
	if dir > Incoming {
		return nil, fmt.Errorf("%w: unknown direction %d", model.ErrInvalidArgument, dir)
	}

	var out, in [][]uint64
	if n, ok := tx.changes.nodeByID[nodeID]; ok {
		out = [][]uint64{n.Out}
		in = [][]uint64{n.In}
	} else if n := tx.g.st.node(nodeID); n != nil {
		out = [][]uint64{n.Out, tx.changes.out[nodeID]}
		in = [][]uint64{n.In, tx.changes.in[nodeID]}
	} else {
		return nil, &model.ObjectNotFoundError{Object: "node", ID: nodeID}
	}

	var runs []adjacencyRun
	if dir != Incoming {
		for _, ids := range out {
			runs = append(runs, adjacencyRun{ids: ids, outgoing: true})
		}
	}
	if dir != Outgoing {
		for _, ids := range in {
			runs = append(runs, adjacencyRun{ids: ids})
		}
	}

	run, pos := 0, 0
	return func() (adjacencyStep, bool) {
		for run < len(runs) {
			r := runs[run]
			if pos >= len(r.ids) {
				run++
				pos = 0
				continue
			}
			id := r.ids[pos]
			pos++

			e := tx.edgeRecord(id)
			if e == nil || (tag != "" && e.Tag != tag) {
				continue
			}
			if r.outgoing {
				return adjacencyStep{edge: id, neighbor: e.Destination}, true
			}
			// Any already yielded the self-loop as an outgoing edge.
			if dir == Any && e.IsSelfLoop() {
				continue
			}
			return adjacencyStep{edge: id, neighbor: e.Source}, true
		}
		return adjacencyStep{}, false
	}, nil
}

// neighborIDs lists the neighbors of nodeID, one per matching edge.
func (tx *Tx) neighborIDs(nodeID uint64, dir Direction, tag string) ([]uint64, error) {
	next, err := tx.adjacency(nodeID, dir, tag)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for step, ok := next(); ok; step, ok = next() {
		ids = append(ids, step.neighbor)
	}
	return ids, nil
}
