package query

// Result represents a query result as object ids in result order
type Result struct {
	Nodes []uint64   `json:"nodes,omitempty"`
	Edges []uint64   `json:"edges,omitempty"`
	Paths [][]uint64 `json:"paths,omitempty"`
}
