package graph

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"git.canoozie.net/riddling/propgraph/pkg/model"
	"git.canoozie.net/riddling/propgraph/pkg/query"
)

// Nodes iterates over the nodes matching opts in id order, or descending
// id order when opts.Reverse is set.
func (tx *Tx) Nodes(opts QueryOptions) (*Iterator[Node], error) {
	next, err := tx.scan(model.IndexNodes, opts)
	if err != nil {
		return nil, err
	}
	return newIterator(tx, func() (Node, bool, error) {
		id, ok := next()
		return Node{g: tx.g, id: id}, ok, nil
	}), nil
}

// Edges iterates over the edges matching opts in id order, or descending
// id order when opts.Reverse is set.
func (tx *Tx) Edges(opts QueryOptions) (*Iterator[Edge], error) {
	next, err := tx.scan(model.IndexEdges, opts)
	if err != nil {
		return nil, err
	}
	return newIterator(tx, func() (Edge, bool, error) {
		id, ok := next()
		return Edge{g: tx.g, id: id}, ok, nil
	}), nil
}

// scan plans the committed side of a query against the tag and property
// indexes and chains it with the objects created in this transaction.
// Committed objects with pending changes to the predicate key are checked
// against their pending value when visited.
func (tx *Tx) scan(target model.IndexTarget, opts QueryOptions) (func() (uint64, bool), error) {
	if err := tx.active(); err != nil {
		return nil, err
	}
	if opts.Predicate != nil {
		if err := opts.Predicate.Validate(); err != nil {
			return nil, err
		}
	}

	f := query.Filter{Tag: opts.Tag, Predicate: opts.Predicate}
	st := tx.g.st
	plan := query.NewPlanner(*st.table(target)).Plan(f)

	if plan.Candidates != nil && f.Predicate != nil && plan.PredicateExact {
		// The index only knows committed values.
		for id, ov := range tx.changes.props(target) {
			if _, touched := ov[f.Predicate.Key]; !touched {
				continue
			}
			if v, ok := tx.view(target, id); ok && f.Match(v.tag, v.lookup) {
				plan.Candidates.Add(id)
			}
		}
	}

	maxID := st.maxNodeID()
	if target == model.IndexEdges {
		maxID = st.maxEdgeID()
	}
	committed := idSequence(plan.Candidates, maxID, opts.Reverse)
	pending := tx.changes.pendingIDs(target)

	acceptCommitted := func(id uint64) bool {
		v, ok := tx.view(target, id)
		if !ok || v.pending {
			return false
		}
		p := plan
		if f.Predicate != nil {
			if _, touched := v.overlay[f.Predicate.Key]; touched {
				p.PredicateExact = false
			}
		}
		return p.Accept(f, v.tag, v.lookup)
	}
	acceptPending := func(id uint64) bool {
		v, ok := tx.view(target, id)
		return ok && f.Match(v.tag, v.lookup)
	}

	committedDone := false
	pos := 0
	nextPending := func() (uint64, bool) {
		for pos < len(pending) {
			i := pos
			if opts.Reverse {
				i = len(pending) - 1 - pos
			}
			pos++
			if acceptPending(pending[i]) {
				return pending[i], true
			}
		}
		return 0, false
	}
	nextCommitted := func() (uint64, bool) {
		for !committedDone {
			id, ok := committed()
			if !ok {
				committedDone = true
				break
			}
			if acceptCommitted(id) {
				return id, true
			}
		}
		return 0, false
	}

	// Pending ids are above every committed id.
	if opts.Reverse {
		return func() (uint64, bool) {
			if id, ok := nextPending(); ok {
				return id, true
			}
			return nextCommitted()
		}, nil
	}
	return func() (uint64, bool) {
		if id, ok := nextCommitted(); ok {
			return id, true
		}
		return nextPending()
	}, nil
}

// idSequence walks candidates, or every id from 1 to maxID when candidates
// is nil.
func idSequence(candidates *roaring64.Bitmap, maxID uint64, reverse bool) func() (uint64, bool) {
	if candidates != nil {
		var it roaring64.IntIterable64
		if reverse {
			it = candidates.ReverseIterator()
		} else {
			it = candidates.Iterator()
		}
		return func() (uint64, bool) {
			if !it.HasNext() {
				return 0, false
			}
			return it.Next(), true
		}
	}

	if reverse {
		next := maxID
		return func() (uint64, bool) {
			if next == 0 {
				return 0, false
			}
			id := next
			next--
			return id, true
		}
	}
	next := uint64(1)
	return func() (uint64, bool) {
		if next > maxID {
			return 0, false
		}
		id := next
		next++
		return id, true
	}
}
