package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

type txStatus uint8

const (
	txActive txStatus = iota
	txCommitted
	txAborted
)

func (s txStatus) String() string {
	switch s {
	case txCommitted:
		return "committed"
	case txAborted:
		return "aborted"
	}
	return "active"
}

type slotHold uint8

const (
	holdNone slotHold = iota
	holdShared
	holdExclusive
)

// Tx is a transaction over a graph. It sees the state committed when it
// began plus its own pending changes, which become visible to others only
// when Commit returns. A Tx must not be used from more than one goroutine
// at a time.
type Tx struct {
	g        *Graph
	id       uint64
	readOnly bool
	timeout  time.Duration
	status   txStatus
	held     slotHold
	// base is the commit sequence the transaction began at.
	base    uint64
	changes *changeSet
	logger  logrus.FieldLogger
}

// Begin starts a transaction. It blocks while the requested hold conflicts
// with active transactions, bounded by ctx and opts.Timeout. Giving up the
// wait fails with model.ErrConflict.
func (g *Graph) Begin(ctx context.Context, opts TxOptions) (*Tx, error) {
	if g.closed.Load() {
		return nil, ErrClosed
	}
	if !opts.ReadOnly && !g.mode.writable() {
		return nil, fmt.Errorf("%w: graph opened read-only", model.ErrReadOnly)
	}

	start := time.Now()
	hold, mode := holdShared, "shared"
	var err error
	if opts.Exclusive {
		hold, mode = holdExclusive, "exclusive"
		err = g.slot.AcquireExclusive(ctx, opts.Timeout)
	} else {
		err = g.slot.AcquireShared(ctx, opts.Timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for %s graph slot: %w", model.ErrConflict, mode, err)
	}
	g.metrics.beginWait.Observe(time.Since(start).Seconds())

	tx := &Tx{
		g:        g,
		id:       g.txIDs.Add(1),
		readOnly: opts.ReadOnly,
		timeout:  opts.Timeout,
		held:     hold,
		base:     g.st.seq,
		changes:  newChangeSet(),
	}
	if g.closed.Load() {
		tx.release()
		return nil, ErrClosed
	}
	tx.logger = g.logger.WithFields(logrus.Fields{"tx": tx.id, "seq": tx.base})

	g.metrics.txBegun.WithLabelValues(mode).Inc()
	tx.logger.WithFields(logrus.Fields{"mode": mode, "read_only": opts.ReadOnly}).Debug("began transaction")
	return tx, nil
}

// ReadOnly reports whether the transaction forbids mutations.
func (tx *Tx) ReadOnly() bool { return tx.readOnly }

// Exclusive reports whether the transaction holds the whole graph slot.
func (tx *Tx) Exclusive() bool { return tx.held == holdExclusive }

// active checks that tx can be used.
func (tx *Tx) active() error {
	if tx == nil {
		return fmt.Errorf("%w: nil transaction", model.ErrNoTransaction)
	}
	if tx.status != txActive {
		return fmt.Errorf("%w: transaction %d is %s", model.ErrNoTransaction, tx.id, tx.status)
	}
	return nil
}

func (tx *Tx) writable() error {
	if err := tx.active(); err != nil {
		return err
	}
	if tx.readOnly {
		return fmt.Errorf("%w: transaction %d is read-only", model.ErrReadOnly, tx.id)
	}
	return nil
}

// Commit makes the pending changes durable and visible. See CommitContext.
//
// A writer begun without Exclusive blocks here until every other
// transaction on the graph has finished, bounded only by the Begin timeout.
// With a zero timeout it waits indefinitely, so it must not be called while
// the same goroutine keeps another transaction open.
func (tx *Tx) Commit() error {
	return tx.CommitContext(context.Background())
}

// CommitContext makes the pending changes durable and visible. A shared
// writer first trades its shared hold for the exclusive one, waiting at
// most as long as ctx and the Begin timeout allow, and fails with
// model.ErrConflict when an object it changed was changed by a commit that
// happened after it began. Committing a read-only or unchanged transaction
// only releases its hold. A failed commit leaves the transaction aborted.
func (tx *Tx) CommitContext(ctx context.Context) error {
	if err := tx.active(); err != nil {
		return err
	}
	if tx.readOnly || tx.changes.empty() {
		tx.finish(txCommitted)
		return nil
	}

	g := tx.g
	if tx.held != holdExclusive {
		g.slot.ReleaseShared()
		tx.held = holdNone
		if err := g.slot.AcquireExclusive(ctx, tx.timeout); err != nil {
			tx.fail()
			return fmt.Errorf("%w: waiting for commit slot: %w", model.ErrConflict, err)
		}
		tx.held = holdExclusive
		if err := tx.checkConflicts(); err != nil {
			g.metrics.txConflicts.Inc()
			tx.fail()
			return err
		}
	}
	if g.closed.Load() {
		tx.fail()
		return ErrClosed
	}

	b := tx.changes.batch(g.st.seq+1, g.nodeIDs.Load(), g.edgeIDs.Load())
	if err := g.commitBatch(b); err != nil {
		tx.fail()
		return err
	}

	tx.logger.WithFields(logrus.Fields{
		"action":  "commit",
		"seq":     b.Seq,
		"nodes":   len(b.Nodes),
		"edges":   len(b.Edges),
		"updates": len(b.NodeUpdates) + len(b.EdgeUpdates),
	}).Debug("committed transaction")
	tx.finish(txCommitted)
	return nil
}

// checkConflicts fails when a committed object the transaction changed was
// changed by a commit after the transaction began.
func (tx *Tx) checkConflicts() error {
	st := tx.g.st
	for id := range tx.changes.nodeProps {
		if n := st.node(id); n != nil && n.Version > tx.base {
			return fmt.Errorf("%w: node %d was changed at seq %d after transaction %d began at %d",
				model.ErrConflict, id, n.Version, tx.id, tx.base)
		}
	}
	for id := range tx.changes.edgeProps {
		if e := st.edge(id); e != nil && e.Version > tx.base {
			return fmt.Errorf("%w: edge %d was changed at seq %d after transaction %d began at %d",
				model.ErrConflict, id, e.Version, tx.id, tx.base)
		}
	}
	return nil
}

// Abort drops the pending changes and releases the hold. It never fails and
// does nothing on an ended transaction.
func (tx *Tx) Abort() {
	if tx == nil || tx.status != txActive {
		return
	}
	tx.logger.WithField("action", "abort").Debug("aborted transaction")
	tx.fail()
}

func (tx *Tx) fail() {
	tx.finish(txAborted)
}

func (tx *Tx) finish(status txStatus) {
	tx.status = status
	tx.changes = nil
	tx.release()
	if status == txCommitted {
		tx.g.metrics.txCommitted.Inc()
	} else {
		tx.g.metrics.txAborted.Inc()
	}
}

func (tx *Tx) release() {
	switch tx.held {
	case holdShared:
		tx.g.slot.ReleaseShared()
	case holdExclusive:
		tx.g.slot.ReleaseExclusive()
	}
	tx.held = holdNone
}

// AddNode creates a node with the given tag. An empty tag means none.
func (tx *Tx) AddNode(tag string) (Node, error) {
	if err := tx.writable(); err != nil {
		return Node{}, err
	}
	id := tx.g.nodeIDs.Add(1) - 1
	tx.changes.addNode(model.NewNode(id, tag))
	return Node{g: tx.g, id: id}, nil
}

// AddEdge creates an edge from src to dst. Both must be nodes of this graph
// visible to the transaction.
func (tx *Tx) AddEdge(src, dst Node, tag string) (Edge, error) {
	if err := tx.writable(); err != nil {
		return Edge{}, err
	}
	for _, n := range []Node{src, dst} {
		if !tx.nodeVisible(n) {
			return Edge{}, &model.ObjectNotFoundError{Object: "node", ID: n.id}
		}
	}
	id := tx.g.edgeIDs.Add(1) - 1
	e := model.NewEdge(id, src.id, dst.id, tag)
	tx.changes.addEdge(e)
	return Edge{g: tx.g, id: id}, nil
}

// Node returns the node with the given id.
func (tx *Tx) Node(id uint64) (Node, error) {
	if err := tx.active(); err != nil {
		return Node{}, err
	}
	n := Node{g: tx.g, id: id}
	if !tx.nodeVisible(n) {
		return Node{}, &model.ObjectNotFoundError{Object: "node", ID: id}
	}
	return n, nil
}

// Edge returns the edge with the given id.
func (tx *Tx) Edge(id uint64) (Edge, error) {
	if err := tx.active(); err != nil {
		return Edge{}, err
	}
	if tx.edgeRecord(id) == nil {
		return Edge{}, &model.ObjectNotFoundError{Object: "edge", ID: id}
	}
	return Edge{g: tx.g, id: id}, nil
}

func (tx *Tx) nodeVisible(n Node) bool {
	return n.g == tx.g && tx.nodeRecord(n.id) != nil
}

func (tx *Tx) nodeRecord(id uint64) *model.Node {
	if n, ok := tx.changes.nodeByID[id]; ok {
		return n
	}
	return tx.g.st.node(id)
}

func (tx *Tx) edgeRecord(id uint64) *model.Edge {
	if e, ok := tx.changes.edgeByID[id]; ok {
		return e
	}
	return tx.g.st.edge(id)
}

// view is what a transaction sees of one object: its committed or pending
// record plus the pending property changes of a committed record.
type view struct {
	tag     string
	props   map[string]model.Property
	overlay map[string]propChange
	pending bool
}

func (v view) lookup(key string) (model.Property, bool) {
	if ch, ok := v.overlay[key]; ok {
		return ch.value, !ch.removed
	}
	p, ok := v.props[key]
	return p, ok
}

func notFound(target model.IndexTarget, id uint64) error {
	if target == model.IndexEdges {
		return &model.ObjectNotFoundError{Object: "edge", ID: id}
	}
	return &model.ObjectNotFoundError{Object: "node", ID: id}
}

func (tx *Tx) view(target model.IndexTarget, id uint64) (view, bool) {
	if target == model.IndexEdges {
		if e, ok := tx.changes.edgeByID[id]; ok {
			return view{tag: e.Tag, props: e.Properties, pending: true}, true
		}
		if e := tx.g.st.edge(id); e != nil {
			return view{tag: e.Tag, props: e.Properties, overlay: tx.changes.edgeProps[id]}, true
		}
		return view{}, false
	}
	if n, ok := tx.changes.nodeByID[id]; ok {
		return view{tag: n.Tag, props: n.Properties, pending: true}, true
	}
	if n := tx.g.st.node(id); n != nil {
		return view{tag: n.Tag, props: n.Properties, overlay: tx.changes.nodeProps[id]}, true
	}
	return view{}, false
}

func (tx *Tx) tag(target model.IndexTarget, id uint64) (string, error) {
	if err := tx.active(); err != nil {
		return "", err
	}
	v, ok := tx.view(target, id)
	if !ok {
		return "", notFound(target, id)
	}
	return v.tag, nil
}

func (tx *Tx) property(target model.IndexTarget, id uint64, key string) (model.Property, bool, error) {
	if err := tx.active(); err != nil {
		return model.Property{}, false, err
	}
	if err := model.ValidateKey(key); err != nil {
		return model.Property{}, false, err
	}
	v, ok := tx.view(target, id)
	if !ok {
		return model.Property{}, false, notFound(target, id)
	}
	p, present := v.lookup(key)
	return p, present, nil
}

func (tx *Tx) setProperty(target model.IndexTarget, id uint64, key string, value model.Property) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if err := model.ValidateKey(key); err != nil {
		return err
	}
	v, ok := tx.view(target, id)
	if !ok {
		return notFound(target, id)
	}
	if v.pending {
		v.props[key] = value
		return nil
	}
	tx.changes.overlay(target, id)[key] = propChange{value: value}
	return nil
}

func (tx *Tx) removeProperty(target model.IndexTarget, id uint64, key string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if err := model.ValidateKey(key); err != nil {
		return err
	}
	v, ok := tx.view(target, id)
	if !ok {
		return notFound(target, id)
	}
	if v.pending {
		delete(v.props, key)
		return nil
	}
	if _, committed := v.props[key]; committed {
		tx.changes.overlay(target, id)[key] = propChange{removed: true}
		return nil
	}
	// Only a pending value to drop, if any.
	tx.changes.dropChange(target, id, key)
	return nil
}

// PropertyEntry is one key and value of an object's property map.
type PropertyEntry struct {
	Key   string
	Value model.Property
}

func (tx *Tx) properties(target model.IndexTarget, id uint64) (*Iterator[PropertyEntry], error) {
	if err := tx.active(); err != nil {
		return nil, err
	}
	v, ok := tx.view(target, id)
	if !ok {
		return nil, notFound(target, id)
	}

	entries := make([]PropertyEntry, 0, len(v.props)+len(v.overlay))
	for key, p := range v.props {
		if _, changed := v.overlay[key]; !changed {
			entries = append(entries, PropertyEntry{Key: key, Value: p})
		}
	}
	for key, ch := range v.overlay {
		if !ch.removed {
			entries = append(entries, PropertyEntry{Key: key, Value: ch.value})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return newIterator(tx, sliceSource(entries)), nil
}
