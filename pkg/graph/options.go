package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"git.canoozie.net/riddling/propgraph/pkg/model"
	"git.canoozie.net/riddling/propgraph/pkg/storage"
)

// Mode selects how a graph location is opened.
type Mode uint8

const (
	// ReadOnly opens an existing graph for reading.
	ReadOnly Mode = 0
	// ReadWrite opens an existing graph for reading and writing.
	ReadWrite Mode = 1 << 0
	// Create creates the location when it is missing. Only meaningful with
	// ReadWrite.
	Create Mode = 1 << 1
)

func (m Mode) writable() bool { return m&ReadWrite != 0 }

func (m Mode) String() string {
	switch {
	case m&ReadWrite != 0 && m&Create != 0:
		return "read-write|create"
	case m&ReadWrite != 0:
		return "read-write"
	}
	return "read-only"
}

// Options configures a graph handle.
type Options struct {
	Logger logrus.FieldLogger

	// SyncWrites fsyncs the WAL on every commit.
	SyncWrites bool
	// Compression is the codec for new WAL records.
	Compression storage.Codec
	// CheckpointBytes triggers a checkpoint after a commit once the WAL has
	// grown past this size. Zero disables automatic checkpoints.
	CheckpointBytes int64

	// NodeIndexes and EdgeIndexes name property keys to keep an ordered
	// index on. They are added to the indexes already recorded in the graph.
	NodeIndexes []string
	EdgeIndexes []string

	// LockTimeout bounds the wait for the checkpoint file lock held by
	// another process.
	LockTimeout time.Duration

	// Registerer receives the graph metrics. Nil disables registration.
	Registerer prometheus.Registerer
}

// DefaultOptions returns the options used when Open is given none.
func DefaultOptions() Options {
	return Options{
		Logger:          model.GetDefaultLogger(),
		SyncWrites:      true,
		Compression:     storage.CodecNone,
		CheckpointBytes: 64 << 20,
		LockTimeout:     time.Second,
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) func(*Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithCompression sets the WAL codec.
func WithCompression(codec storage.Codec) func(*Options) {
	return func(o *Options) { o.Compression = codec }
}

// WithCheckpointBytes sets the automatic checkpoint threshold.
func WithCheckpointBytes(n int64) func(*Options) {
	return func(o *Options) { o.CheckpointBytes = n }
}

// WithNodeIndexes adds indexed node property keys.
func WithNodeIndexes(keys ...string) func(*Options) {
	return func(o *Options) { o.NodeIndexes = append(o.NodeIndexes, keys...) }
}

// WithEdgeIndexes adds indexed edge property keys.
func WithEdgeIndexes(keys ...string) func(*Options) {
	return func(o *Options) { o.EdgeIndexes = append(o.EdgeIndexes, keys...) }
}

// WithRegisterer sets the prometheus registerer.
func WithRegisterer(reg prometheus.Registerer) func(*Options) {
	return func(o *Options) { o.Registerer = reg }
}

// TxOptions configures a transaction.
type TxOptions struct {
	// ReadOnly forbids every mutation.
	ReadOnly bool
	// Exclusive takes the whole graph slot instead of a shared unit.
	Exclusive bool
	// Timeout bounds the wait at Begin. Zero waits as long as the context
	// allows.
	Timeout time.Duration
}

// Direction selects incident edges relative to a node.
type Direction uint8

const (
	// Any selects outgoing and incoming edges.
	Any Direction = iota
	// Outgoing selects edges whose source is the node.
	Outgoing
	// Incoming selects edges whose destination is the node.
	Incoming
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	}
	return "any"
}

// QueryOptions filters a node or edge scan. Tag and Predicate combine with
// AND; an empty Tag and a nil Predicate match everything.
type QueryOptions struct {
	Tag       string
	Predicate *model.PropertyPredicate
	Reverse   bool
}
