package storage

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"testing"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

func TestCompressPayloadRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("node:Person;name:katelin;"), 100)

	for _, codec := range []Codec{CodecNone, CodecZstd, CodecLZ4} {
		out, used, err := compressPayload(codec, data)
		if err != nil {
			t.Fatalf("Failed to compress with %s: %v", codec, err)
		}
		if used != codec {
			t.Errorf("Expected codec %s to be used, got %s", codec, used)
		}

		back, err := decompressPayload(used, out)
		if err != nil {
			t.Fatalf("Failed to decompress with %s: %v", codec, err)
		}
		if !bytes.Equal(back, data) {
			t.Errorf("Round trip through %s changed the payload", codec)
		}
	}
}

func TestCompressPayloadSkipsWhenUseless(t *testing.T) {
	small := []byte("tiny")
	out, used, err := compressPayload(CodecZstd, small)
	if err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}
	if used != CodecNone || !bytes.Equal(out, small) {
		t.Errorf("Expected small payload to be stored as is, got codec %s", used)
	}

	random := make([]byte, 4096)
	if _, err := rand.Read(random); err != nil {
		t.Fatalf("Failed to read random bytes: %v", err)
	}
	_, used, err = compressPayload(CodecLZ4, random)
	if err != nil {
		t.Fatalf("Failed to compress: %v", err)
	}
	if used != CodecNone {
		t.Errorf("Expected incompressible payload to be stored as is, got codec %s", used)
	}
}

func TestParseCodec(t *testing.T) {
	for name, want := range map[string]Codec{"": CodecNone, "none": CodecNone, "ZSTD": CodecZstd, "lz4": CodecLZ4} {
		got, err := ParseCodec(name)
		if err != nil {
			t.Fatalf("Failed to parse codec %q: %v", name, err)
		}
		if got != want {
			t.Errorf("Expected %q to parse as %s, got %s", name, want, got)
		}
	}
	if _, err := ParseCodec("snappy"); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for an unknown codec, got %v", err)
	}
}

func TestDecompressRejectsDamagedInput(t *testing.T) {
	if _, err := decompressPayload(Codec(9), []byte{1}); !errors.Is(err, model.ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt for an unknown codec, got %v", err)
	}

	if _, err := decompressPayload(CodecLZ4, nil); !errors.Is(err, model.ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt for a missing length prefix, got %v", err)
	}

	// A length prefix far beyond any record must fail before allocating.
	huge := binary.AppendUvarint(nil, 1<<62)
	huge = append(huge, 0x10, 'x')
	if _, err := decompressPayload(CodecLZ4, huge); !errors.Is(err, model.ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt for an oversized length prefix, got %v", err)
	}

	data := bytes.Repeat([]byte("edge:KNOWS;"), 200)
	out, used, err := compressPayload(CodecLZ4, data)
	if err != nil || used != CodecLZ4 {
		t.Fatalf("Failed to compress with lz4: codec %s, err %v", used, err)
	}
	// Claim one byte more than the block holds.
	n := binary.PutUvarint(make([]byte, binary.MaxVarintLen64), uint64(len(data)))
	lying := binary.AppendUvarint(nil, uint64(len(data)+1))
	lying = append(lying, out[n:]...)
	if _, err := decompressPayload(CodecLZ4, lying); !errors.Is(err, model.ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt for a size mismatch, got %v", err)
	}
}
