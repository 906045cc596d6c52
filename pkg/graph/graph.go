package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"git.canoozie.net/riddling/propgraph/pkg/common"
	"git.canoozie.net/riddling/propgraph/pkg/model"
	"git.canoozie.net/riddling/propgraph/pkg/storage"
)

// FormatVersion is the checkpoint format written by this package.
const FormatVersion uint16 = 1

// ErrClosed is returned by operations on a closed graph.
var ErrClosed = fmt.Errorf("%w: graph is closed", model.ErrIO)

// Graph is an open property graph. All access goes through transactions;
// the handle itself is safe for concurrent use.
type Graph struct {
	location string
	mode     Mode
	opts     Options
	logger   logrus.FieldLogger
	metrics  *metrics

	slot       *storage.Slot
	wal        *storage.WAL
	checkpoint *storage.Checkpoint

	// st and meta are guarded by slot: read under any hold, written only
	// under the exclusive hold.
	st   *state
	meta model.Meta
	uuid string

	nodeIDs atomic.Uint64
	edgeIDs atomic.Uint64
	txIDs   atomic.Uint64
	closed  atomic.Bool
}

// Open opens the graph stored at location. ReadWrite|Create creates the
// location when it is missing; otherwise a missing location fails with
// model.ErrNotFound. No handle is returned on failure.
func Open(location string, mode Mode, optFns ...func(*Options)) (*Graph, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = model.GetDefaultLogger()
	}

	if location == "" {
		return nil, fmt.Errorf("%w: empty graph location", model.ErrInvalidArgument)
	}
	if mode&Create != 0 && !mode.writable() {
		return nil, fmt.Errorf("%w: create requires read-write mode", model.ErrInvalidArgument)
	}
	if opts.Compression > storage.CodecLZ4 {
		return nil, fmt.Errorf("%w: unknown compression codec %d", model.ErrInvalidArgument, opts.Compression)
	}

	logger := opts.Logger.WithFields(logrus.Fields{
		"component": "graph",
		"location":  location,
	})

	info, err := os.Stat(location)
	switch {
	case os.IsNotExist(err):
		if mode&Create == 0 {
			return nil, fmt.Errorf("%w: graph location %s", model.ErrNotFound, location)
		}
		if err := os.MkdirAll(filepath.Join(location, common.WALDir), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create graph location: %v", model.ErrIO, err)
		}
		logger.Info("created graph location")
	case err != nil:
		return nil, fmt.Errorf("%w: stat graph location: %v", model.ErrIO, err)
	case !info.IsDir():
		return nil, fmt.Errorf("%w: graph location %s is not a directory", model.ErrIO, location)
	}

	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("%w: register metrics: %v", model.ErrInvalidArgument, err)
	}

	g := &Graph{
		location: location,
		mode:     mode,
		opts:     opts,
		logger:   logger,
		metrics:  m,
		slot:     storage.NewSlot(),
	}

	g.checkpoint, err = storage.OpenCheckpoint(storage.CheckpointConfig{
		Path:     filepath.Join(location, common.CheckpointFile),
		ReadOnly: !mode.writable(),
		Timeout:  opts.LockTimeout,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	g.wal, err = storage.NewWAL(storage.WALConfig{
		Path:        filepath.Join(location, common.WALDir, common.WALFile),
		SyncOnWrite: opts.SyncWrites,
		ReadOnly:    !mode.writable(),
		Compression: opts.Compression,
		Logger:      opts.Logger,
	})
	if err != nil {
		g.checkpoint.Close()
		return nil, err
	}

	if err := g.recover(); err != nil {
		g.wal.Close()
		g.checkpoint.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"mode":  mode.String(),
		"nodes": g.st.nodeCount,
		"edges": g.st.edgeCount,
		"seq":   g.st.seq,
		"uuid":  g.uuid,
	}).Info("opened graph")
	return g, nil
}

// recover rebuilds the committed state from the checkpoint and the WAL.
func (g *Graph) recover() error {
	st := newState()

	meta, err := g.checkpoint.Load(st.loadNode, st.loadEdge)
	if err != nil {
		return errors.Wrap(err, "load checkpoint")
	}

	fresh := meta == nil
	if fresh {
		meta = &model.Meta{
			FormatVersion: FormatVersion,
			UUID:          uuid.NewString(),
			CreatedAt:     time.Now().UTC(),
			NextNodeID:    1,
			NextEdgeID:    1,
		}
	} else if meta.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: checkpoint format %d, want %d", model.ErrCorrupt, meta.FormatVersion, FormatVersion)
	}

	st.seq = meta.LastSeq
	st.nextNodeID = max(st.nextNodeID, meta.NextNodeID)
	st.nextEdgeID = max(st.nextEdgeID, meta.NextEdgeID)
	for _, def := range meta.Indexes {
		st.createIndex(def)
	}
	st.indexDirty = false

	stats, err := g.wal.Replay(func(rec storage.WALRecord) error {
		if rec.Seq <= st.seq {
			return nil
		}
		b, err := model.DeserializeBatch(rec.Payload)
		if err != nil {
			return errors.Wrapf(err, "decode WAL record %d", rec.Seq)
		}
		if b.Seq != rec.Seq {
			return fmt.Errorf("%w: WAL record %d carries batch %d", model.ErrCorrupt, rec.Seq, b.Seq)
		}
		if err := st.validate(b); err != nil {
			return err
		}
		st.apply(b)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "replay WAL")
	}
	if stats.TornTail {
		g.logger.WithField("discarded", stats.DiscardedBytes).Warn("recovered past a torn WAL tail")
	}

	for _, key := range g.opts.NodeIndexes {
		if err := model.ValidateKey(key); err != nil {
			return err
		}
		st.createIndex(model.IndexDef{Target: model.IndexNodes, Key: key})
	}
	for _, key := range g.opts.EdgeIndexes {
		if err := model.ValidateKey(key); err != nil {
			return err
		}
		st.createIndex(model.IndexDef{Target: model.IndexEdges, Key: key})
	}

	g.st = st
	g.meta = *meta
	g.uuid = meta.UUID
	g.nodeIDs.Store(st.nextNodeID)
	g.edgeIDs.Store(st.nextEdgeID)

	g.logger.WithFields(logrus.Fields{
		"action":   "recover",
		"replayed": stats.Records,
		"seq":      st.seq,
	}).Debug("recovered graph state")

	if fresh && g.mode.writable() {
		return g.checkpointLocked()
	}
	return nil
}

// Location returns the directory the graph is stored in.
func (g *Graph) Location() string { return g.location }

// UUID returns the identifier assigned when the graph was created.
func (g *Graph) UUID() string { return g.uuid }

// Mode returns the mode the graph was opened with.
func (g *Graph) Mode() Mode { return g.mode }

// Close waits for active transactions to finish, writes a final checkpoint
// when the graph is writable and releases all files. Closing twice is a
// no-op.
func (g *Graph) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Cannot fail: the background context is never done.
	_ = g.slot.AcquireExclusive(context.Background(), 0)
	defer g.slot.ReleaseExclusive()

	var result *multierror.Error
	if g.mode.writable() && g.st.hasDirty() {
		if err := g.checkpointLocked(); err != nil {
			g.logger.WithError(err).Error("final checkpoint failed")
			result = multierror.Append(result, err)
		}
	}
	if g.mode.writable() {
		if err := g.wal.Sync(); err != nil {
			g.logger.WithError(err).Error("syncing WAL failed")
			result = multierror.Append(result, err)
		}
	}
	if err := g.wal.Close(); err != nil {
		g.logger.WithError(err).Error("closing WAL failed")
		result = multierror.Append(result, err)
	}
	if err := g.checkpoint.Close(); err != nil {
		g.logger.WithError(err).Error("closing checkpoint failed")
		result = multierror.Append(result, err)
	}

	g.logger.WithField("seq", g.st.seq).Info("closed graph")
	return result.ErrorOrNil()
}

// Checkpoint writes every change since the previous checkpoint to the
// checkpoint store and empties the WAL. It waits for active transactions.
func (g *Graph) Checkpoint(ctx context.Context) error {
	if !g.mode.writable() {
		return fmt.Errorf("%w: graph opened read-only", model.ErrReadOnly)
	}
	if err := g.acquireExclusive(ctx); err != nil {
		return err
	}
	defer g.slot.ReleaseExclusive()
	return g.checkpointLocked()
}

// checkpointLocked requires the exclusive hold.
func (g *Graph) checkpointLocked() error {
	nodes, edges := g.st.dirtyRecords()

	meta := g.meta
	meta.LastSeq = g.st.seq
	meta.NextNodeID = max(g.st.nextNodeID, g.nodeIDs.Load())
	meta.NextEdgeID = max(g.st.nextEdgeID, g.edgeIDs.Load())
	meta.Indexes = g.st.indexDefs()

	if err := g.checkpoint.Write(&meta, nodes, edges); err != nil {
		g.metrics.checkpointErr.Inc()
		return errors.Wrap(err, "checkpoint")
	}
	g.meta = meta
	g.st.clearDirty()

	// Records at or below meta.LastSeq are skipped on replay, so a failed
	// truncate leaves a valid, if longer, log behind.
	if err := g.wal.Truncate(); err != nil {
		g.metrics.checkpointErr.Inc()
		return errors.Wrap(err, "truncate WAL after checkpoint")
	}

	g.metrics.checkpoints.Inc()
	g.logger.WithFields(logrus.Fields{
		"action": "checkpoint",
		"seq":    meta.LastSeq,
		"nodes":  len(nodes),
		"edges":  len(edges),
	}).Info("checkpoint written")
	return nil
}

// maybeCheckpoint checkpoints once the WAL has outgrown the configured
// threshold. It requires the exclusive hold. A failure is logged: the
// commit that triggered it is already durable in the WAL.
func (g *Graph) maybeCheckpoint() {
	if g.opts.CheckpointBytes <= 0 || g.wal.Size() < g.opts.CheckpointBytes {
		return
	}
	if err := g.checkpointLocked(); err != nil {
		g.logger.WithError(err).Error("automatic checkpoint failed")
	}
}

// CreateIndex adds an ordered index on the property key of the target
// objects and records it durably. Creating an existing index is a no-op.
func (g *Graph) CreateIndex(ctx context.Context, target model.IndexTarget, key string) error {
	if err := model.ValidateKey(key); err != nil {
		return err
	}
	if target > model.IndexEdges {
		return fmt.Errorf("%w: unknown index target %d", model.ErrInvalidArgument, target)
	}
	if !g.mode.writable() {
		return fmt.Errorf("%w: graph opened read-only", model.ErrReadOnly)
	}
	if err := g.acquireExclusive(ctx); err != nil {
		return err
	}
	defer g.slot.ReleaseExclusive()

	if _, ok := g.st.table(target).indexes[key]; ok {
		return nil
	}

	b := &model.Batch{
		Seq:        g.st.seq + 1,
		Indexes:    []model.IndexDef{{Target: target, Key: key}},
		NextNodeID: g.nodeIDs.Load(),
		NextEdgeID: g.edgeIDs.Load(),
	}
	if err := g.commitBatch(b); err != nil {
		return err
	}
	g.logger.WithFields(logrus.Fields{"action": "create-index", "target": target.String(), "key": key}).Info("created property index")
	return nil
}

// commitBatch makes b durable and visible. It requires the exclusive hold.
func (g *Graph) commitBatch(b *model.Batch) error {
	if err := g.st.validate(b); err != nil {
		return err
	}
	payload, err := model.SerializeBatch(b)
	if err != nil {
		return errors.Wrapf(err, "encode batch %d", b.Seq)
	}
	if err := g.wal.Append(storage.WALRecord{
		Type:    storage.RecordCommit,
		Seq:     b.Seq,
		Payload: payload,
	}); err != nil {
		return err
	}
	g.st.apply(b)
	g.metrics.walBytes.Add(float64(len(payload)))
	g.maybeCheckpoint()
	return nil
}

func (g *Graph) acquireExclusive(ctx context.Context) error {
	if g.closed.Load() {
		return ErrClosed
	}
	if err := g.slot.AcquireExclusive(ctx, 0); err != nil {
		return fmt.Errorf("%w: waiting for graph slot: %w", model.ErrConflict, err)
	}
	if g.closed.Load() {
		g.slot.ReleaseExclusive()
		return ErrClosed
	}
	return nil
}

// Stats describes the committed contents of a graph.
type Stats struct {
	UUID        string
	Nodes       uint64
	Edges       uint64
	LastSeq     uint64
	WALBytes    int64
	NodeTags    map[string]uint64
	EdgeTags    map[string]uint64
	NodeIndexes []string
	EdgeIndexes []string
}

// Stats reports counts over the committed state.
func (g *Graph) Stats(ctx context.Context) (Stats, error) {
	if g.closed.Load() {
		return Stats{}, ErrClosed
	}
	if err := g.slot.AcquireShared(ctx, 0); err != nil {
		return Stats{}, fmt.Errorf("%w: waiting for graph slot: %w", model.ErrConflict, err)
	}
	defer g.slot.ReleaseShared()

	s := Stats{
		UUID:        g.uuid,
		Nodes:       g.st.nodeCount,
		Edges:       g.st.edgeCount,
		LastSeq:     g.st.seq,
		WALBytes:    g.wal.Size(),
		NodeTags:    make(map[string]uint64),
		EdgeTags:    make(map[string]uint64),
		NodeIndexes: g.st.nodeTable.indexKeys(),
		EdgeIndexes: g.st.edgeTable.indexKeys(),
	}
	for _, tag := range g.st.nodeTable.tags.Labels() {
		s.NodeTags[tag] = g.st.nodeTable.tags.Count(tag)
	}
	for _, tag := range g.st.edgeTable.tags.Labels() {
		s.EdgeTags[tag] = g.st.edgeTable.tags.Count(tag)
	}
	return s, nil
}
