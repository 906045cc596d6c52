package graph

import (
	"slices"
	"sort"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

type propChange struct {
	value   model.Property
	removed bool
}

// changeSet holds the pending writes of one transaction. New objects are
// complete records; changes to committed objects are kept as per-key
// overlays so the committed records stay untouched until commit.
type changeSet struct {
	nodes    []*model.Node
	edges    []*model.Edge
	nodeByID map[uint64]*model.Node
	edgeByID map[uint64]*model.Edge

	nodeProps map[uint64]map[string]propChange
	edgeProps map[uint64]map[string]propChange

	// out and in hold new edge ids incident to committed nodes, in id
	// order. New nodes keep their edges in their own records.
	out map[uint64][]uint64
	in  map[uint64][]uint64
}

func newChangeSet() *changeSet {
	return &changeSet{
		nodeByID:  make(map[uint64]*model.Node),
		edgeByID:  make(map[uint64]*model.Edge),
		nodeProps: make(map[uint64]map[string]propChange),
		edgeProps: make(map[uint64]map[string]propChange),
		out:       make(map[uint64][]uint64),
		in:        make(map[uint64][]uint64),
	}
}

func (c *changeSet) empty() bool {
	return len(c.nodes) == 0 && len(c.edges) == 0 && len(c.nodeProps) == 0 && len(c.edgeProps) == 0
}

func (c *changeSet) addNode(n *model.Node) {
	c.nodes = append(c.nodes, n)
	c.nodeByID[n.ID] = n
}

func (c *changeSet) addEdge(e *model.Edge) {
	c.edges = append(c.edges, e)
	c.edgeByID[e.ID] = e

	if n, ok := c.nodeByID[e.Source]; ok {
		n.AddOut(e.ID)
	} else {
		c.out[e.Source] = append(c.out[e.Source], e.ID)
	}
	if n, ok := c.nodeByID[e.Destination]; ok {
		n.AddIn(e.ID)
	} else {
		c.in[e.Destination] = append(c.in[e.Destination], e.ID)
	}
}

func (c *changeSet) props(target model.IndexTarget) map[uint64]map[string]propChange {
	if target == model.IndexEdges {
		return c.edgeProps
	}
	return c.nodeProps
}

// overlay returns the pending changes of a committed object, creating the
// overlay when needed.
func (c *changeSet) overlay(target model.IndexTarget, id uint64) map[string]propChange {
	m := c.props(target)
	ov, ok := m[id]
	if !ok {
		ov = make(map[string]propChange)
		m[id] = ov
	}
	return ov
}

func (c *changeSet) dropChange(target model.IndexTarget, id uint64, key string) {
	m := c.props(target)
	ov, ok := m[id]
	if !ok {
		return
	}
	delete(ov, key)
	if len(ov) == 0 {
		delete(m, id)
	}
}

// pendingIDs returns the ids of the objects created so far, ascending.
func (c *changeSet) pendingIDs(target model.IndexTarget) []uint64 {
	var ids []uint64
	if target == model.IndexEdges {
		ids = make([]uint64, len(c.edges))
		for i, e := range c.edges {
			ids[i] = e.ID
		}
	} else {
		ids = make([]uint64, len(c.nodes))
		for i, n := range c.nodes {
			ids[i] = n.ID
		}
	}
	return ids
}

// batch turns the change set into a commit batch. Updates are ordered by
// object id, then key.
func (c *changeSet) batch(seq, nextNodeID, nextEdgeID uint64) *model.Batch {
	return &model.Batch{
		Seq:         seq,
		Nodes:       c.nodes,
		Edges:       c.edges,
		NodeUpdates: updates(c.nodeProps),
		EdgeUpdates: updates(c.edgeProps),
		NextNodeID:  nextNodeID,
		NextEdgeID:  nextEdgeID,
	}
}

func updates(m map[uint64]map[string]propChange) []model.PropertyUpdate {
	if len(m) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var out []model.PropertyUpdate
	for _, id := range ids {
		keys := make([]string, 0, len(m[id]))
		for k := range m[id] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ch := m[id][k]
			out = append(out, model.PropertyUpdate{ID: id, Key: k, Value: ch.value, Removed: ch.removed})
		}
	}
	return out
}
