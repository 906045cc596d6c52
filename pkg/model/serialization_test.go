package model

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func allKinds() map[string]Property {
	return map[string]Property{
		"none":  {},
		"bool":  NewBool(true),
		"int":   NewInt(-26),
		"str":   NewString("katelin"),
		"float": NewFloat(3.25),
		"time":  NewTime(time.Date(2021, 5, 4, 3, 2, 1, 500, time.UTC)),
		"blob":  NewBlob([]byte{0, 1, 2}),
		"empty": NewBlob(nil),
	}
}

func TestSerializeNodeKeepsEveryKind(t *testing.T) {
	node := NewNode(42, "Person")
	node.Properties = allKinds()
	node.Version = 9
	node.AddOut(3)

	data, err := SerializeNode(node)
	if err != nil {
		t.Fatalf("Failed to serialize node: %v", err)
	}

	got, err := DeserializeNode(data)
	if err != nil {
		t.Fatalf("Failed to deserialize node: %v", err)
	}
	if got.ID != node.ID || got.Tag != node.Tag || got.Version != node.Version {
		t.Errorf("Expected node %d %q v%d, got %d %q v%d", node.ID, node.Tag, node.Version, got.ID, got.Tag, got.Version)
	}
	if len(got.Out) != 0 {
		t.Errorf("Expected adjacency to be rebuilt rather than stored, got %v", got.Out)
	}
	if len(got.Properties) != len(node.Properties) {
		t.Fatalf("Expected %d properties, got %d", len(node.Properties), len(got.Properties))
	}
	for k, v := range node.Properties {
		g := got.Properties[k]
		if !v.Equal(g) || v.Kind() != g.Kind() {
			t.Errorf("Key %s: %s != %s", k, v, g)
		}
	}
}

func TestSerializeBatch(t *testing.T) {
	b := &Batch{
		Seq:         3,
		Nodes:       []*Node{NewNode(1, "a")},
		Edges:       []*Edge{NewEdge(1, 1, 1, "loop")},
		NodeUpdates: []PropertyUpdate{{ID: 1, Key: "Age", Removed: true}},
		EdgeUpdates: []PropertyUpdate{{ID: 1, Key: "w", Value: NewFloat(0.5)}},
		Indexes:     []IndexDef{{Target: IndexEdges, Key: "w"}},
		NextNodeID:  2,
		NextEdgeID:  2,
	}
	data, err := SerializeBatch(b)
	if err != nil {
		t.Fatalf("Failed to serialize batch: %v", err)
	}

	got, err := DeserializeBatch(data)
	if err != nil {
		t.Fatalf("Failed to deserialize batch: %v", err)
	}
	if got.Seq != b.Seq {
		t.Errorf("Expected seq %d, got %d", b.Seq, got.Seq)
	}
	if len(got.Nodes) != 1 || len(got.Edges) != 1 {
		t.Fatalf("Expected 1 node and 1 edge, got %d and %d", len(got.Nodes), len(got.Edges))
	}
	if got.Nodes[0].Properties == nil {
		t.Error("Expected decoded node to have a properties map")
	}
	if !got.NodeUpdates[0].Removed {
		t.Error("Expected the removal flag to survive")
	}
	if !got.EdgeUpdates[0].Value.Equal(NewFloat(0.5)) {
		t.Errorf("Expected edge update value 0.5, got %s", got.EdgeUpdates[0].Value)
	}
	if !slices.Equal(got.Indexes, b.Indexes) {
		t.Errorf("Expected indexes %v, got %v", b.Indexes, got.Indexes)
	}
	if got.NextNodeID != 2 || got.NextEdgeID != 2 {
		t.Errorf("Expected id allocators 2/2, got %d/%d", got.NextNodeID, got.NextEdgeID)
	}
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	if _, err := DeserializeNode([]byte{1, 2}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt for short input, got %v", err)
	}

	data, err := SerializeEdge(NewEdge(1, 1, 2, ""))
	if err != nil {
		t.Fatalf("Failed to serialize edge: %v", err)
	}
	if _, err := DeserializeNode(data); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt decoding an edge as a node, got %v", err)
	}

	data[0] ^= 0xff
	if _, err := DeserializeEdge(data); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt for a damaged edge, got %v", err)
	}

	if _, err := SerializeNode(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for a nil node, got %v", err)
	}
}

func TestSerializeMeta(t *testing.T) {
	m := &Meta{FormatVersion: 1, UUID: "abc", LastSeq: 10, NextNodeID: 4, NextEdgeID: 2,
		Indexes: []IndexDef{{Target: IndexNodes, Key: "Name"}}}
	data, err := SerializeMeta(m)
	if err != nil {
		t.Fatalf("Failed to serialize meta: %v", err)
	}
	got, err := DeserializeMeta(data)
	if err != nil {
		t.Fatalf("Failed to deserialize meta: %v", err)
	}
	if got.LastSeq != m.LastSeq || got.UUID != m.UUID {
		t.Errorf("Expected seq %d uuid %s, got %d %s", m.LastSeq, m.UUID, got.LastSeq, got.UUID)
	}
	if !slices.Equal(got.Indexes, m.Indexes) {
		t.Errorf("Expected indexes %v, got %v", m.Indexes, got.Indexes)
	}
}
