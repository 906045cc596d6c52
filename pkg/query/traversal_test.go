package query

import (
	"errors"
	"slices"
	"testing"
)

// 1 -> 2 -> 4 -> 5
// 1 -> 3 -> 4
func testGraph() NeighborFunc {
	return adjacency(map[uint64][]uint64{
		1: {2, 3},
		2: {4},
		3: {4},
		4: {5},
	})
}

func adjacency(adj map[uint64][]uint64) NeighborFunc {
	return func(id uint64) ([]uint64, error) { return adj[id], nil }
}

type visit struct {
	id    uint64
	depth int
}

func record(tr *Traversal, start uint64) ([]visit, error) {
	var visits []visit
	err := tr.Run(start, func(id uint64, depth int) (bool, error) {
		visits = append(visits, visit{id, depth})
		return true, nil
	})
	return visits, err
}

func TestTraversalBFS(t *testing.T) {
	visits, err := record(NewTraversal(testGraph()), 1)
	if err != nil {
		t.Fatalf("Traversal failed: %v", err)
	}
	want := []visit{{1, 0}, {2, 1}, {3, 1}, {4, 2}, {5, 3}}
	if !slices.Equal(visits, want) {
		t.Errorf("Expected %v, got %v", want, visits)
	}
}

func TestTraversalMaxDepthAndStop(t *testing.T) {
	tr := NewTraversal(testGraph())
	tr.SetMaxDepth(1)

	var ids []uint64
	err := tr.Run(1, func(id uint64, _ int) (bool, error) {
		ids = append(ids, id)
		return true, nil
	})
	if err != nil {
		t.Fatalf("Traversal failed: %v", err)
	}
	if !slices.Equal(ids, []uint64{1, 2, 3}) {
		t.Errorf("Expected [1 2 3] within one hop, got %v", ids)
	}

	ids = nil
	tr.SetMaxDepth(10)
	err = tr.Run(1, func(id uint64, _ int) (bool, error) {
		ids = append(ids, id)
		return id != 2, nil
	})
	if err != nil {
		t.Fatalf("Traversal failed: %v", err)
	}
	if !slices.Equal(ids, []uint64{1, 2}) {
		t.Errorf("Expected the walk to stop at 2, got %v", ids)
	}
}

func TestTraversalDFS(t *testing.T) {
	tr := NewTraversal(testGraph())
	tr.Type = TraversalTypeDFS

	visits, err := record(tr, 1)
	if err != nil {
		t.Fatalf("Traversal failed: %v", err)
	}
	want := []visit{{1, 0}, {2, 1}, {4, 2}, {5, 3}, {3, 1}}
	if !slices.Equal(visits, want) {
		t.Errorf("Expected %v, got %v", want, visits)
	}
}

func TestTraversalDFSReexpandsShallowerArrivals(t *testing.T) {
	// 1 -> 2 -> 3 -> 4 and 1 -> 3. Depth first reaches 3 at the depth
	// limit through 2 before the direct edge brings it within reach of 4.
	graph := adjacency(map[uint64][]uint64{
		1: {2, 3},
		2: {3},
		3: {4},
	})

	for _, typ := range []TraversalType{TraversalTypeBFS, TraversalTypeDFS} {
		tr := NewTraversal(graph)
		tr.Type = typ
		tr.SetMaxDepth(2)

		visits, err := record(tr, 1)
		if err != nil {
			t.Fatalf("%s traversal failed: %v", typ, err)
		}
		seen := make(map[uint64]int)
		for _, v := range visits {
			if _, dup := seen[v.id]; dup {
				t.Errorf("%s visited %d twice", typ, v.id)
			}
			seen[v.id] = v.depth
		}
		for _, id := range []uint64{1, 2, 3, 4} {
			if _, ok := seen[id]; !ok {
				t.Errorf("%s missed node %d within two hops, visited %v", typ, id, visits)
			}
		}
	}
}

func TestTraversalErrors(t *testing.T) {
	boom := errors.New("boom")
	tr := NewTraversal(func(uint64) ([]uint64, error) { return nil, boom })
	if _, err := record(tr, 1); !errors.Is(err, boom) {
		t.Errorf("Expected the neighbor error, got %v", err)
	}

	tr.Type = "A*"
	if _, err := record(tr, 1); err == nil {
		t.Error("Expected an error for an unknown traversal type")
	}
}

func TestFindPath(t *testing.T) {
	tr := NewTraversal(testGraph())

	tests := []struct {
		name    string
		src     uint64
		dst     uint64
		maxHops int
		want    []uint64
	}{
		{"shortest", 1, 5, 5, []uint64{1, 2, 4, 5}},
		{"too far", 1, 5, 2, nil},
		{"edges are directed", 5, 1, 5, nil},
		{"same node", 3, 3, 1, []uint64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := tr.FindPath(tt.src, tt.dst, tt.maxHops)
			if err != nil {
				t.Fatalf("FindPath failed: %v", err)
			}
			if !slices.Equal(path, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, path)
			}
		})
	}
}
