package storage

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"git.canoozie.net/riddling/propgraph/pkg/common"
	"git.canoozie.net/riddling/propgraph/pkg/model"
)

// CheckpointConfig holds configuration options for the checkpoint store
type CheckpointConfig struct {
	Path     string
	ReadOnly bool
	// Timeout bounds the wait for the file lock held by another process.
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

// Checkpoint is the durable image of the graph at some WAL sequence. Node
// and edge records live in their own buckets keyed by id; the meta bucket
// holds the header with the sequence the image reflects.
type Checkpoint struct {
	db       *bolt.DB
	path     string
	readOnly bool
	logger   logrus.FieldLogger
}

// OpenCheckpoint opens the checkpoint store. A read-only open of a missing
// file fails with model.ErrNotFound.
func OpenCheckpoint(config CheckpointConfig) (*Checkpoint, error) {
	if config.Logger == nil {
		config.Logger = model.GetDefaultLogger()
	}

	if config.ReadOnly {
		if _, err := os.Stat(config.Path); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: checkpoint %s", model.ErrNotFound, config.Path)
			}
			return nil, fmt.Errorf("%w: stat checkpoint: %v", model.ErrIO, err)
		}
	}

	db, err := bolt.Open(config.Path, 0o600, &bolt.Options{
		Timeout:  config.Timeout,
		ReadOnly: config.ReadOnly,
	})
	if err != nil {
		return nil, errors.Wrapf(classifyBoltError(err), "open %q", config.Path)
	}

	c := &Checkpoint{
		db:       db,
		path:     config.Path,
		readOnly: config.ReadOnly,
		logger:   config.Logger.WithField("component", "checkpoint"),
	}

	if !config.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			for _, name := range [][]byte{common.MetaBucket, common.NodesBucket, common.EdgesBucket} {
				if _, err := tx.CreateBucketIfNotExists(name); err != nil {
					return errors.Wrapf(err, "create bucket %s", name)
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: init checkpoint buckets: %v", model.ErrIO, err)
		}
	}

	return c, nil
}

func classifyBoltError(err error) error {
	switch {
	case errors.Is(err, bolt.ErrInvalid), errors.Is(err, bolt.ErrVersionMismatch), errors.Is(err, bolt.ErrChecksum):
		return fmt.Errorf("%w: %v", model.ErrCorrupt, err)
	case errors.Is(err, bolt.ErrTimeout):
		return fmt.Errorf("%w: checkpoint is locked by another process: %v", model.ErrIO, err)
	}
	return fmt.Errorf("%w: %v", model.ErrIO, err)
}

// Load reads the header and streams every stored record, nodes first, both
// in id order. A nil Meta means the store has never been written.
func (c *Checkpoint) Load(onNode func(*model.Node) error, onEdge func(*model.Edge) error) (*model.Meta, error) {
	var meta *model.Meta

	err := c.db.View(func(tx *bolt.Tx) error {
		mb := tx.Bucket(common.MetaBucket)
		if mb == nil {
			if c.readOnly {
				return nil
			}
			return fmt.Errorf("%w: meta bucket missing", model.ErrCorrupt)
		}
		raw := mb.Get(common.MetaKey)
		if raw == nil {
			return nil
		}
		m, err := model.DeserializeMeta(raw)
		if err != nil {
			return errors.Wrap(err, "decode meta")
		}
		meta = m

		nodes := tx.Bucket(common.NodesBucket)
		edges := tx.Bucket(common.EdgesBucket)
		if nodes == nil || edges == nil {
			return fmt.Errorf("%w: record buckets missing", model.ErrCorrupt)
		}

		err = nodes.ForEach(func(k, v []byte) error {
			id, err := common.ParseID(k)
			if err != nil {
				return fmt.Errorf("%w: node key: %v", model.ErrCorrupt, err)
			}
			n, err := model.DeserializeNode(v)
			if err != nil {
				return errors.Wrapf(err, "decode node %d", id)
			}
			if n.ID != id {
				return fmt.Errorf("%w: node stored under %d has id %d", model.ErrCorrupt, id, n.ID)
			}
			return onNode(n)
		})
		if err != nil {
			return err
		}

		return edges.ForEach(func(k, v []byte) error {
			id, err := common.ParseID(k)
			if err != nil {
				return fmt.Errorf("%w: edge key: %v", model.ErrCorrupt, err)
			}
			e, err := model.DeserializeEdge(v)
			if err != nil {
				return errors.Wrapf(err, "decode edge %d", id)
			}
			if e.ID != id {
				return fmt.Errorf("%w: edge stored under %d has id %d", model.ErrCorrupt, id, e.ID)
			}
			return onEdge(e)
		})
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// Write stores the given records and header in one atomic bolt transaction.
func (c *Checkpoint) Write(meta *model.Meta, nodes []*model.Node, edges []*model.Edge) error {
	if c.readOnly {
		return fmt.Errorf("%w: checkpoint opened read-only", model.ErrReadOnly)
	}

	rawMeta, err := model.SerializeMeta(meta)
	if err != nil {
		return err
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		nb := tx.Bucket(common.NodesBucket)
		for _, n := range nodes {
			data, err := model.SerializeNode(n)
			if err != nil {
				return err
			}
			if err := nb.Put(common.FormatID(n.ID), data); err != nil {
				return errors.Wrapf(err, "put node %d", n.ID)
			}
		}

		eb := tx.Bucket(common.EdgesBucket)
		for _, e := range edges {
			data, err := model.SerializeEdge(e)
			if err != nil {
				return err
			}
			if err := eb.Put(common.FormatID(e.ID), data); err != nil {
				return errors.Wrapf(err, "put edge %d", e.ID)
			}
		}

		return tx.Bucket(common.MetaBucket).Put(common.MetaKey, rawMeta)
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidArgument) {
			return err
		}
		return fmt.Errorf("%w: write checkpoint: %v", model.ErrIO, err)
	}

	c.logger.WithFields(logrus.Fields{
		"path":  c.path,
		"seq":   meta.LastSeq,
		"nodes": len(nodes),
		"edges": len(edges),
	}).Debug("wrote checkpoint")
	return nil
}

// Close closes the checkpoint store
func (c *Checkpoint) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("%w: close checkpoint: %v", model.ErrIO, err)
	}
	return nil
}
