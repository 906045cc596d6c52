package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

func openTestCheckpoint(t *testing.T, path string, readOnly bool) *Checkpoint {
	t.Helper()
	c, err := OpenCheckpoint(CheckpointConfig{
		Path:     path,
		ReadOnly: readOnly,
		Timeout:  time.Second,
		Logger:   model.NewNoOpLogger(),
	})
	if err != nil {
		t.Fatalf("Failed to open checkpoint: %v", err)
	}
	return c
}

func loadAll(t *testing.T, c *Checkpoint) (*model.Meta, []*model.Node, []*model.Edge) {
	t.Helper()
	var nodes []*model.Node
	var edges []*model.Edge
	meta, err := c.Load(
		func(n *model.Node) error { nodes = append(nodes, n); return nil },
		func(e *model.Edge) error { edges = append(edges, e); return nil },
	)
	if err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}
	return meta, nodes, edges
}

func TestCheckpointWriteLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	c := openTestCheckpoint(t, path, false)

	meta, nodes, edges := loadAll(t, c)
	if meta != nil || len(nodes) != 0 || len(edges) != 0 {
		t.Fatalf("Expected a fresh store to be empty, got meta %v, %d nodes, %d edges", meta, len(nodes), len(edges))
	}

	n1 := model.NewNode(1, "myTag1")
	n1.Properties["Name"] = model.NewString("katelin")
	n300 := model.NewNode(300, "")
	e := model.NewEdge(1, 1, 300, "myTag3")
	err := c.Write(&model.Meta{FormatVersion: 1, UUID: "u", LastSeq: 2, NextNodeID: 301, NextEdgeID: 2},
		[]*model.Node{n300, n1}, []*model.Edge{e})
	if err != nil {
		t.Fatalf("Failed to write checkpoint: %v", err)
	}

	// An incremental write only touches what changed.
	n1.Properties["Age"] = model.NewInt(26)
	err = c.Write(&model.Meta{FormatVersion: 1, UUID: "u", LastSeq: 3, NextNodeID: 301, NextEdgeID: 2},
		[]*model.Node{n1}, nil)
	if err != nil {
		t.Fatalf("Failed to write incremental checkpoint: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Failed to close checkpoint: %v", err)
	}

	c = openTestCheckpoint(t, path, true)
	defer c.Close()
	meta, nodes, edges = loadAll(t, c)
	if meta == nil {
		t.Fatal("Expected a header after writing")
	}
	if meta.LastSeq != 3 {
		t.Errorf("Expected last seq 3, got %d", meta.LastSeq)
	}
	if len(nodes) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].ID != 1 || nodes[1].ID != 300 {
		t.Errorf("Expected records in id order, got %d, %d", nodes[0].ID, nodes[1].ID)
	}
	if age, ok := nodes[0].Properties["Age"]; !ok || !age.Equal(model.NewInt(26)) {
		t.Errorf("Expected Age 26 after the incremental write, got %v", age)
	}
	if len(edges) != 1 || edges[0].Destination != 300 {
		t.Errorf("Expected one edge to node 300, got %v", edges)
	}

	if err := c.Write(meta, nil, nil); !errors.Is(err, model.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly from a read-only store, got %v", err)
	}
}

func TestCheckpointReadOnlyMissing(t *testing.T) {
	_, err := OpenCheckpoint(CheckpointConfig{Path: filepath.Join(t.TempDir(), "graph.db"), ReadOnly: true})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCheckpointGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xab}, 16*1024), 0o600); err != nil {
		t.Fatalf("Failed to write garbage file: %v", err)
	}

	_, err := OpenCheckpoint(CheckpointConfig{Path: path, Timeout: time.Second, Logger: model.NewNoOpLogger()})
	if !errors.Is(err, model.ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt, got %v", err)
	}
}
