package query

import (
	"fmt"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

// TraversalType represents different graph traversal algorithms
type TraversalType string

const (
	TraversalTypeBFS TraversalType = "BFS" // Breadth-First Search
	TraversalTypeDFS TraversalType = "DFS" // Depth-First Search
)

// TraversalVisitor is called once for each node reached. Returning false
// stops the traversal.
type TraversalVisitor func(nodeID uint64, depth int) (bool, error)

// NeighborFunc lists the neighbors of a node in adjacency order.
type NeighborFunc func(nodeID uint64) ([]uint64, error)

// Traversal walks the graph from a start node
type Traversal struct {
	Neighbors NeighborFunc
	MaxDepth  int
	Type      TraversalType
}

// NewTraversal creates a breadth-first traversal over neighbors
func NewTraversal(neighbors NeighborFunc) *Traversal {
	return &Traversal{
		Neighbors: neighbors,
		MaxDepth:  10,
		Type:      TraversalTypeBFS,
	}
}

// SetMaxDepth sets the maximum traversal depth
func (t *Traversal) SetMaxDepth(depth int) {
	if depth > 0 {
		t.MaxDepth = depth
	}
}

// Run visits every node reachable from sourceID within MaxDepth hops,
// each node once.
func (t *Traversal) Run(sourceID uint64, visitor TraversalVisitor) error {
	switch t.Type {
	case TraversalTypeBFS:
		return t.runBFS(sourceID, visitor)
	case TraversalTypeDFS:
		_, err := t.runDFS(sourceID, visitor, 0, make(map[uint64]int))
		return err
	}
	return fmt.Errorf("%w: unsupported traversal type: %s", model.ErrInvalidArgument, t.Type)
}

type queued struct {
	nodeID uint64
	depth  int
}

func (t *Traversal) runBFS(sourceID uint64, visitor TraversalVisitor) error {
	visited := map[uint64]bool{sourceID: true}

	cont, err := visitor(sourceID, 0)
	if err != nil || !cont {
		return err
	}

	queue := []queued{{nodeID: sourceID}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= t.MaxDepth {
			continue
		}

		neighbors, err := t.Neighbors(current.nodeID)
		if err != nil {
			return err
		}
		for _, id := range neighbors {
			if visited[id] {
				continue
			}
			visited[id] = true

			cont, err := visitor(id, current.depth+1)
			if err != nil || !cont {
				return err
			}
			queue = append(queue, queued{nodeID: id, depth: current.depth + 1})
		}
	}
	return nil
}

// runDFS reports false once the visitor asked to stop. depths holds the
// shallowest depth each node was entered at; a node reached again at a
// smaller depth is expanded again but not visited twice, so nothing within
// MaxDepth is cut off by a longer branch that got there first.
func (t *Traversal) runDFS(nodeID uint64, visitor TraversalVisitor, depth int, depths map[uint64]int) (bool, error) {
	if _, seen := depths[nodeID]; !seen {
		cont, err := visitor(nodeID, depth)
		if err != nil || !cont {
			return false, err
		}
	}
	depths[nodeID] = depth
	if depth >= t.MaxDepth {
		return true, nil
	}

	neighbors, err := t.Neighbors(nodeID)
	if err != nil {
		return false, err
	}
	for _, id := range neighbors {
		if d, seen := depths[id]; seen && d <= depth+1 {
			continue
		}
		cont, err := t.runDFS(id, visitor, depth+1, depths)
		if err != nil || !cont {
			return false, err
		}
	}
	return true, nil
}

// FindPath returns the node ids of a shortest path from sourceID to
// targetID of at most maxHops edges, or nil when there is none.
func (t *Traversal) FindPath(sourceID, targetID uint64, maxHops int) ([]uint64, error) {
	if sourceID == targetID {
		return []uint64{sourceID}, nil
	}

	parents := map[uint64]uint64{sourceID: sourceID}
	frontier := []uint64{sourceID}

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []uint64
		for _, current := range frontier {
			neighbors, err := t.Neighbors(current)
			if err != nil {
				return nil, err
			}
			for _, id := range neighbors {
				if _, seen := parents[id]; seen {
					continue
				}
				parents[id] = current
				if id == targetID {
					return buildPath(parents, sourceID, targetID), nil
				}
				next = append(next, id)
			}
		}
		frontier = next
	}
	return nil, nil
}

func buildPath(parents map[uint64]uint64, sourceID, targetID uint64) []uint64 {
	path := []uint64{targetID}
	for id := targetID; id != sourceID; {
		id = parents[id]
		path = append(path, id)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
