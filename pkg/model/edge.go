package model

// Edge is the stored record of a directed relationship between two nodes.
type Edge struct {
	ID          uint64              `msgpack:"id"`
	Tag         string              `msgpack:"tag,omitempty"`
	Source      uint64              `msgpack:"src"`
	Destination uint64              `msgpack:"dst"`
	Properties  map[string]Property `msgpack:"props,omitempty"`
	// Version is the commit sequence that last changed the edge.
	Version uint64 `msgpack:"ver"`
}

// NewEdge creates a new Edge from source to destination with the given tag
func NewEdge(id, source, destination uint64, tag string) *Edge {
	return &Edge{
		ID:          id,
		Tag:         tag,
		Source:      source,
		Destination: destination,
		Properties:  make(map[string]Property),
	}
}

// IsSelfLoop reports whether the edge starts and ends at the same node.
func (e *Edge) IsSelfLoop() bool { return e.Source == e.Destination }
