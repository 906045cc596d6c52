package model

import "testing"

func TestNewEdge(t *testing.T) {
	edge := NewEdge(7, 1, 2, "KNOWS")

	if edge.ID != 7 {
		t.Errorf("Expected edge ID to be 7, got %d", edge.ID)
	}
	if edge.Source != 1 || edge.Destination != 2 {
		t.Errorf("Expected edge 1 -> 2, got %d -> %d", edge.Source, edge.Destination)
	}
	if edge.Tag != "KNOWS" {
		t.Errorf("Expected edge tag to be KNOWS, got %s", edge.Tag)
	}
	if edge.IsSelfLoop() {
		t.Error("Expected 1 -> 2 not to be a self-loop")
	}
	if edge.Properties == nil {
		t.Error("Expected properties map to be initialized, got nil")
	}
}

func TestEdgeSelfLoop(t *testing.T) {
	if !NewEdge(1, 3, 3, "").IsSelfLoop() {
		t.Error("Expected 3 -> 3 to be a self-loop")
	}
}
