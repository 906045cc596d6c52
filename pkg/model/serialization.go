package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// Magic bytes that identify our serialized format
	SerializationMagic uint32 = 0x50475342 // "PGSB"

	// Version of the serialization format
	SerializationVersion uint16 = 1

	// Type constants for serialized entities
	TypeNode  uint8 = 1
	TypeEdge  uint8 = 2
	TypeBatch uint8 = 3
	TypeMeta  uint8 = 4

	headerSize = 4 + 2 + 1
)

// ErrInvalidSerializedData is returned when attempting to deserialize invalid data
var ErrInvalidSerializedData = fmt.Errorf("%w: invalid serialized data", ErrCorrupt)

// ErrUnsupportedVersion is returned when attempting to deserialize data with an unsupported version
var ErrUnsupportedVersion = fmt.Errorf("%w: unsupported serialization version", ErrCorrupt)

// IndexTarget selects whether a property index covers nodes or edges.
type IndexTarget uint8

const (
	IndexNodes IndexTarget = iota
	IndexEdges
)

func (t IndexTarget) String() string {
	if t == IndexEdges {
		return "edges"
	}
	return "nodes"
}

// IndexDef names one property index.
type IndexDef struct {
	Target IndexTarget `msgpack:"target"`
	Key    string      `msgpack:"key"`
}

// PropertyUpdate is one committed property change on a pre-existing object.
type PropertyUpdate struct {
	ID      uint64   `msgpack:"id"`
	Key     string   `msgpack:"key"`
	Value   Property `msgpack:"value"`
	Removed bool     `msgpack:"removed,omitempty"`
}

// Batch is the unit of durability: everything one commit changed.
type Batch struct {
	Seq         uint64           `msgpack:"seq"`
	Nodes       []*Node          `msgpack:"nodes,omitempty"`
	Edges       []*Edge          `msgpack:"edges,omitempty"`
	NodeUpdates []PropertyUpdate `msgpack:"node_updates,omitempty"`
	EdgeUpdates []PropertyUpdate `msgpack:"edge_updates,omitempty"`
	Indexes     []IndexDef       `msgpack:"indexes,omitempty"`
	// NextNodeID and NextEdgeID carry the id allocators forward so ids
	// handed out to aborted transactions stay retired after a reopen.
	NextNodeID uint64 `msgpack:"next_node"`
	NextEdgeID uint64 `msgpack:"next_edge"`
}

// Meta is the checkpoint header.
type Meta struct {
	FormatVersion uint16     `msgpack:"format"`
	UUID          string     `msgpack:"uuid"`
	CreatedAt     time.Time  `msgpack:"created_at"`
	LastSeq       uint64     `msgpack:"last_seq"`
	NextNodeID    uint64     `msgpack:"next_node"`
	NextEdgeID    uint64     `msgpack:"next_edge"`
	Indexes       []IndexDef `msgpack:"indexes,omitempty"`
}

// EncodeMsgpack writes the property as a [kind, value] pair.
func (p Property) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint8(uint8(p.kind)); err != nil {
		return err
	}
	switch p.kind {
	case KindNoValue:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(p.i != 0)
	case KindInt:
		return enc.EncodeInt64(p.i)
	case KindString:
		return enc.EncodeString(p.s)
	case KindFloat:
		return enc.EncodeFloat64(p.f)
	case KindTime:
		return enc.EncodeTime(p.t)
	case KindBlob:
		return enc.EncodeBytes(nonNil(p.b))
	}
	return fmt.Errorf("%w: cannot encode property kind %d", ErrInvalidArgument, p.kind)
}

// DecodeMsgpack reads a property written by EncodeMsgpack.
func (p *Property) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("%w: property array of length %d", ErrInvalidSerializedData, n)
	}
	k, err := dec.DecodeUint8()
	if err != nil {
		return err
	}
	switch Kind(k) {
	case KindNoValue:
		*p = Property{}
		return dec.DecodeNil()
	case KindBool:
		v, err := dec.DecodeBool()
		*p = NewBool(v)
		return err
	case KindInt:
		v, err := dec.DecodeInt64()
		*p = NewInt(v)
		return err
	case KindString:
		v, err := dec.DecodeString()
		*p = NewString(v)
		return err
	case KindFloat:
		v, err := dec.DecodeFloat64()
		*p = NewFloat(v)
		return err
	case KindTime:
		v, err := dec.DecodeTime()
		*p = NewTime(v)
		return err
	case KindBlob:
		v, err := dec.DecodeBytes()
		*p = NewBlob(v)
		return err
	}
	return fmt.Errorf("%w: unknown property kind %d", ErrInvalidSerializedData, k)
}

func encode(typ uint8, v any) ([]byte, error) {
	var buf bytes.Buffer
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], SerializationMagic)
	binary.LittleEndian.PutUint16(hdr[4:6], SerializationVersion)
	hdr[6] = typ
	buf.Write(hdr[:])

	if err := msgpack.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode type %d: %w", typ, err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, typ uint8, v any) error {
	if len(data) < headerSize {
		return ErrInvalidSerializedData
	}
	if binary.LittleEndian.Uint32(data[0:4]) != SerializationMagic {
		return fmt.Errorf("%w: bad magic", ErrInvalidSerializedData)
	}
	if binary.LittleEndian.Uint16(data[4:6]) != SerializationVersion {
		return ErrUnsupportedVersion
	}
	if data[6] != typ {
		return fmt.Errorf("%w: entity type %d, want %d", ErrInvalidSerializedData, data[6], typ)
	}
	if err := msgpack.Unmarshal(data[headerSize:], v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSerializedData, err)
	}
	return nil
}

// SerializeNode serializes a Node into a binary format
func SerializeNode(node *Node) ([]byte, error) {
	if node == nil {
		return nil, fmt.Errorf("%w: cannot serialize nil Node", ErrInvalidArgument)
	}
	return encode(TypeNode, node)
}

// DeserializeNode deserializes a binary representation into a Node
func DeserializeNode(data []byte) (*Node, error) {
	var node Node
	if err := decode(data, TypeNode, &node); err != nil {
		return nil, err
	}
	if node.Properties == nil {
		node.Properties = make(map[string]Property)
	}
	return &node, nil
}

// SerializeEdge serializes an Edge into a binary format
func SerializeEdge(edge *Edge) ([]byte, error) {
	if edge == nil {
		return nil, fmt.Errorf("%w: cannot serialize nil Edge", ErrInvalidArgument)
	}
	return encode(TypeEdge, edge)
}

// DeserializeEdge deserializes a binary representation into an Edge
func DeserializeEdge(data []byte) (*Edge, error) {
	var edge Edge
	if err := decode(data, TypeEdge, &edge); err != nil {
		return nil, err
	}
	if edge.Properties == nil {
		edge.Properties = make(map[string]Property)
	}
	return &edge, nil
}

// SerializeBatch serializes a commit batch.
func SerializeBatch(b *Batch) ([]byte, error) {
	return encode(TypeBatch, b)
}

// DeserializeBatch deserializes a commit batch.
func DeserializeBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := decode(data, TypeBatch, &b); err != nil {
		return nil, err
	}
	for _, n := range b.Nodes {
		if n.Properties == nil {
			n.Properties = make(map[string]Property)
		}
	}
	for _, e := range b.Edges {
		if e.Properties == nil {
			e.Properties = make(map[string]Property)
		}
	}
	return &b, nil
}

// SerializeMeta serializes the checkpoint header.
func SerializeMeta(m *Meta) ([]byte, error) {
	return encode(TypeMeta, m)
}

// DeserializeMeta deserializes the checkpoint header.
func DeserializeMeta(data []byte) (*Meta, error) {
	var m Meta
	if err := decode(data, TypeMeta, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
