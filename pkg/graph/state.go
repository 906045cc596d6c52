package graph

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"git.canoozie.net/riddling/propgraph/pkg/model"
	"git.canoozie.net/riddling/propgraph/pkg/query"
	"git.canoozie.net/riddling/propgraph/pkg/storage"
)

// table holds the tag and property indexes of one object kind.
type table struct {
	tags    *storage.LabelIndex
	indexes map[string]*storage.PropertyIndex
}

func newTable() table {
	return table{
		tags:    storage.NewLabelIndex(),
		indexes: make(map[string]*storage.PropertyIndex),
	}
}

// Tagged implements query.Source.
func (t table) Tagged(tag string) *roaring64.Bitmap {
	return t.tags.Bitmap(tag)
}

// ScanRange implements query.RangeScanner.
func (t table) ScanRange(key string, pred model.PropertyPredicate) (*roaring64.Bitmap, bool) {
	idx, ok := t.indexes[key]
	if !ok {
		return nil, false
	}
	return idx.Collect(query.SpanFor(pred)), true
}

func (t table) indexKeys() []string {
	keys := make([]string, 0, len(t.indexes))
	for k := range t.indexes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// state is the committed graph. Records live in id-addressed arenas; a nil
// slot is an id that was allocated but never committed. It is only mutated
// by the holder of the exclusive slot.
type state struct {
	nodes     []*model.Node
	edges     []*model.Edge
	nodeCount uint64
	edgeCount uint64

	nodeTable table
	edgeTable table

	seq uint64

	// nextNodeID and nextEdgeID are the next ids to hand out. They only
	// move forward.
	nextNodeID uint64
	nextEdgeID uint64

	// dirtyNodes and dirtyEdges hold the ids changed since the last
	// checkpoint.
	dirtyNodes *roaring64.Bitmap
	dirtyEdges *roaring64.Bitmap
	indexDirty bool
}

func newState() *state {
	return &state{
		nodeTable:  newTable(),
		edgeTable:  newTable(),
		nextNodeID: 1,
		nextEdgeID: 1,
		dirtyNodes: roaring64.New(),
		dirtyEdges: roaring64.New(),
	}
}

func (s *state) node(id uint64) *model.Node {
	if id == 0 || id > uint64(len(s.nodes)) {
		return nil
	}
	return s.nodes[id-1]
}

func (s *state) edge(id uint64) *model.Edge {
	if id == 0 || id > uint64(len(s.edges)) {
		return nil
	}
	return s.edges[id-1]
}

func (s *state) maxNodeID() uint64 { return uint64(len(s.nodes)) }
func (s *state) maxEdgeID() uint64 { return uint64(len(s.edges)) }

func (s *state) table(target model.IndexTarget) *table {
	if target == model.IndexEdges {
		return &s.edgeTable
	}
	return &s.nodeTable
}

// putNode stores a new node record and indexes it.
func (s *state) putNode(n *model.Node) {
	for uint64(len(s.nodes)) < n.ID {
		s.nodes = append(s.nodes, nil)
	}
	s.nodes[n.ID-1] = n
	s.nodeCount++
	s.nodeTable.tags.Add(n.Tag, n.ID)
	for key, idx := range s.nodeTable.indexes {
		if v, ok := n.Properties[key]; ok {
			idx.Insert(n.ID, v)
		}
	}
	if n.ID >= s.nextNodeID {
		s.nextNodeID = n.ID + 1
	}
}

// putEdge stores a new edge record, indexes it and links it into the
// adjacency lists of its endpoints, which must exist.
func (s *state) putEdge(e *model.Edge) {
	for uint64(len(s.edges)) < e.ID {
		s.edges = append(s.edges, nil)
	}
	s.edges[e.ID-1] = e
	s.edgeCount++
	s.edgeTable.tags.Add(e.Tag, e.ID)
	for key, idx := range s.edgeTable.indexes {
		if v, ok := e.Properties[key]; ok {
			idx.Insert(e.ID, v)
		}
	}
	s.node(e.Source).AddOut(e.ID)
	s.node(e.Destination).AddIn(e.ID)
	if e.ID >= s.nextEdgeID {
		s.nextEdgeID = e.ID + 1
	}
}

// loadNode adds a node read from the checkpoint.
func (s *state) loadNode(n *model.Node) error {
	if n.ID == 0 || s.node(n.ID) != nil {
		return fmt.Errorf("%w: duplicate or zero node id %d in checkpoint", model.ErrCorrupt, n.ID)
	}
	n.Out, n.In = nil, nil
	s.putNode(n)
	return nil
}

// loadEdge adds an edge read from the checkpoint. Nodes are loaded first.
func (s *state) loadEdge(e *model.Edge) error {
	if e.ID == 0 || s.edge(e.ID) != nil {
		return fmt.Errorf("%w: duplicate or zero edge id %d in checkpoint", model.ErrCorrupt, e.ID)
	}
	if s.node(e.Source) == nil || s.node(e.Destination) == nil {
		return fmt.Errorf("%w: edge %d references missing node (%d -> %d)", model.ErrCorrupt, e.ID, e.Source, e.Destination)
	}
	s.putEdge(e)
	return nil
}

// createIndex adds an index on key and fills it from the committed records.
// It reports false when the index already exists.
func (s *state) createIndex(def model.IndexDef) bool {
	t := s.table(def.Target)
	if _, ok := t.indexes[def.Key]; ok {
		return false
	}
	idx := storage.NewPropertyIndex()
	if def.Target == model.IndexEdges {
		for _, e := range s.edges {
			if e == nil {
				continue
			}
			if v, ok := e.Properties[def.Key]; ok {
				idx.Insert(e.ID, v)
			}
		}
	} else {
		for _, n := range s.nodes {
			if n == nil {
				continue
			}
			if v, ok := n.Properties[def.Key]; ok {
				idx.Insert(n.ID, v)
			}
		}
	}
	t.indexes[def.Key] = idx
	s.indexDirty = true
	return true
}

func (s *state) indexDefs() []model.IndexDef {
	var defs []model.IndexDef
	for _, key := range s.nodeTable.indexKeys() {
		defs = append(defs, model.IndexDef{Target: model.IndexNodes, Key: key})
	}
	for _, key := range s.edgeTable.indexKeys() {
		defs = append(defs, model.IndexDef{Target: model.IndexEdges, Key: key})
	}
	return defs
}

// validate checks that b can be applied on top of the committed state
// without leaving it inconsistent.
func (s *state) validate(b *model.Batch) error {
	if b.Seq != s.seq+1 {
		return fmt.Errorf("%w: batch sequence %d does not follow %d", model.ErrCorrupt, b.Seq, s.seq)
	}

	newNodes := make(map[uint64]bool, len(b.Nodes))
	for _, n := range b.Nodes {
		if n == nil || n.ID == 0 || s.node(n.ID) != nil || newNodes[n.ID] {
			return fmt.Errorf("%w: batch %d reuses a node id", model.ErrCorrupt, b.Seq)
		}
		newNodes[n.ID] = true
	}
	nodeExists := func(id uint64) bool { return newNodes[id] || s.node(id) != nil }

	newEdges := make(map[uint64]bool, len(b.Edges))
	for _, e := range b.Edges {
		if e == nil || e.ID == 0 || s.edge(e.ID) != nil || newEdges[e.ID] {
			return fmt.Errorf("%w: batch %d reuses an edge id", model.ErrCorrupt, b.Seq)
		}
		if !nodeExists(e.Source) || !nodeExists(e.Destination) {
			return fmt.Errorf("%w: edge %d references missing node (%d -> %d)", model.ErrCorrupt, e.ID, e.Source, e.Destination)
		}
		newEdges[e.ID] = true
	}

	for _, u := range b.NodeUpdates {
		if !nodeExists(u.ID) || u.Key == "" {
			return fmt.Errorf("%w: batch %d updates unknown node %d", model.ErrCorrupt, b.Seq, u.ID)
		}
	}
	for _, u := range b.EdgeUpdates {
		if !(newEdges[u.ID] || s.edge(u.ID) != nil) || u.Key == "" {
			return fmt.Errorf("%w: batch %d updates unknown edge %d", model.ErrCorrupt, b.Seq, u.ID)
		}
	}
	for _, def := range b.Indexes {
		if def.Key == "" || def.Target > model.IndexEdges {
			return fmt.Errorf("%w: batch %d defines an invalid index", model.ErrCorrupt, b.Seq)
		}
	}
	return nil
}

// apply makes b part of the committed state. b must have passed validate;
// its records are adopted, not copied.
func (s *state) apply(b *model.Batch) {
	for _, n := range b.Nodes {
		n.Version = b.Seq
		n.Out, n.In = nil, nil
		s.putNode(n)
		s.dirtyNodes.Add(n.ID)
	}
	for _, e := range b.Edges {
		e.Version = b.Seq
		s.putEdge(e)
		s.dirtyEdges.Add(e.ID)
	}

	for _, u := range b.NodeUpdates {
		n := s.node(u.ID)
		if n.Properties == nil {
			n.Properties = make(map[string]model.Property)
		}
		applyUpdate(n.Properties, s.nodeTable.indexes[u.Key], u)
		n.Version = b.Seq
		s.dirtyNodes.Add(n.ID)
	}
	for _, u := range b.EdgeUpdates {
		e := s.edge(u.ID)
		if e.Properties == nil {
			e.Properties = make(map[string]model.Property)
		}
		applyUpdate(e.Properties, s.edgeTable.indexes[u.Key], u)
		e.Version = b.Seq
		s.dirtyEdges.Add(e.ID)
	}

	for _, def := range b.Indexes {
		s.createIndex(def)
	}

	s.seq = b.Seq
	if b.NextNodeID > s.nextNodeID {
		s.nextNodeID = b.NextNodeID
	}
	if b.NextEdgeID > s.nextEdgeID {
		s.nextEdgeID = b.NextEdgeID
	}
}

func applyUpdate(props map[string]model.Property, idx *storage.PropertyIndex, u model.PropertyUpdate) {
	old, had := props[u.Key]
	if idx != nil && had {
		idx.Delete(u.ID, old)
	}
	if u.Removed {
		delete(props, u.Key)
		return
	}
	props[u.Key] = u.Value
	if idx != nil {
		idx.Insert(u.ID, u.Value)
	}
}

// dirtyRecords returns the records changed since the last checkpoint.
func (s *state) dirtyRecords() ([]*model.Node, []*model.Edge) {
	nodes := make([]*model.Node, 0, s.dirtyNodes.GetCardinality())
	it := s.dirtyNodes.Iterator()
	for it.HasNext() {
		if n := s.node(it.Next()); n != nil {
			nodes = append(nodes, n)
		}
	}
	edges := make([]*model.Edge, 0, s.dirtyEdges.GetCardinality())
	it = s.dirtyEdges.Iterator()
	for it.HasNext() {
		if e := s.edge(it.Next()); e != nil {
			edges = append(edges, e)
		}
	}
	return nodes, edges
}

func (s *state) clearDirty() {
	s.dirtyNodes.Clear()
	s.dirtyEdges.Clear()
	s.indexDirty = false
}

func (s *state) hasDirty() bool {
	return !s.dirtyNodes.IsEmpty() || !s.dirtyEdges.IsEmpty() || s.indexDirty
}
