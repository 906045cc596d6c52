package storage

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

// Codec identifies how a WAL payload is compressed.
type Codec uint8

const (
	CodecNone Codec = 0
	CodecZstd Codec = 1
	CodecLZ4  Codec = 2
)

// Payloads smaller than this are never compressed.
const minCompressSize = 256

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

// ParseCodec resolves a codec name. The empty name means no compression.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	}
	return CodecNone, fmt.Errorf("%w: unknown compression %q", model.ErrInvalidArgument, name)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxRecordSize))
}

// compressPayload compresses data with codec. It reports the codec actually
// used, which is CodecNone when compression does not pay off.
func compressPayload(codec Codec, data []byte) ([]byte, Codec, error) {
	if codec == CodecNone || len(data) < minCompressSize {
		return data, CodecNone, nil
	}

	var out []byte
	switch codec {
	case CodecZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, CodecNone, err
		}
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	case CodecLZ4:
		buf := make([]byte, binary.MaxVarintLen64+lz4.CompressBlockBound(len(data)))
		hdr := binary.PutUvarint(buf, uint64(len(data)))
		n, err := lz4.CompressBlock(data, buf[hdr:], nil)
		if err != nil {
			return nil, CodecNone, err
		}
		if n == 0 {
			return data, CodecNone, nil
		}
		out = buf[:hdr+n]
	default:
		return nil, CodecNone, fmt.Errorf("%w: unknown compression codec %d", model.ErrInvalidArgument, codec)
	}

	if float64(len(out)) > float64(len(data))*0.9 {
		return data, CodecNone, nil
	}
	return out, codec, nil
}

// decompressPayload reverses compressPayload.
func decompressPayload(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil
	case CodecZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		return dec.DecodeAll(data, nil)
	case CodecLZ4:
		size, hdr := binary.Uvarint(data)
		if hdr <= 0 {
			return nil, fmt.Errorf("%w: bad lz4 length prefix", model.ErrCorrupt)
		}
		if size > maxRecordSize {
			return nil, fmt.Errorf("%w: lz4 length prefix %d exceeds record limit", model.ErrCorrupt, size)
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(data[hdr:], out)
		if err != nil {
			return nil, err
		}
		if uint64(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", model.ErrCorrupt)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown compression codec %d", model.ErrCorrupt, codec)
}
