package common

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Bucket names of the checkpoint store
var (
	MetaBucket  = []byte("meta")  // Checkpoint header
	NodesBucket = []byte("nodes") // Node records keyed by id
	EdgesBucket = []byte("edges") // Edge records keyed by id
)

// MetaKey is the key of the checkpoint header inside MetaBucket.
var MetaKey = []byte("meta")

// File layout under a graph location
const (
	CheckpointFile = "graph.db"
	WALDir         = "wal"
	WALFile        = "graph.wal"
)

// FormatID encodes an id as an 8-byte big-endian key, so byte order equals id order.
func FormatID(id uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], id)
	return k[:]
}

// ParseID decodes a key written by FormatID.
func ParseID(key []byte) (uint64, error) {
	if len(key) != 8 {
		return 0, fmt.Errorf("invalid id key length %d", len(key))
	}
	return binary.BigEndian.Uint64(key), nil
}

// ParseUint64 parses a string as a uint64
func ParseUint64(value string) (uint64, error) {
	return strconv.ParseUint(value, 10, 64)
}
