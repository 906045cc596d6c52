package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

// WAL errors
var (
	ErrWALCorrupted     = fmt.Errorf("%w: WAL is corrupted", model.ErrCorrupt)
	ErrWALClosed        = fmt.Errorf("%w: WAL is closed", model.ErrIO)
	ErrInvalidWALRecord = fmt.Errorf("%w: invalid WAL record", model.ErrCorrupt)
	errTornRecord       = errors.New("torn WAL record")
)

// WAL record type
type RecordType byte

const (
	// RecordCommit carries one serialized commit batch.
	RecordCommit RecordType = 1
)

// WAL header constants
const (
	WALMagic   uint32 = 0x5047574C // "PGWL"
	WALVersion uint16 = 1

	walHeaderSize = 4 + 2

	// checksum(8) + length(4)
	frameHeaderSize = 8 + 4
	// type(1) + codec(1) + seq(8) + timestamp(8)
	recordFixedSize = 1 + 1 + 8 + 8

	maxRecordSize = 1 << 30
)

// WALRecord represents a single record in the WAL
type WALRecord struct {
	Type      RecordType
	Seq       uint64
	Timestamp int64
	Payload   []byte
}

// ReplayStats describes the outcome of a WAL replay.
type ReplayStats struct {
	Records        int
	ValidBytes     int64
	DiscardedBytes int64
	// TornTail is set when replay stopped at an incomplete or damaged record.
	TornTail bool
}

// WAL implements a Write-Ahead Log for durability
type WAL struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	size        int64
	isOpen      bool
	readOnly    bool
	syncOnWrite bool
	codec       Codec
	logger      logrus.FieldLogger
}

// WALConfig holds configuration options for the WAL
type WALConfig struct {
	Path        string             // Path to the WAL file
	SyncOnWrite bool               // Whether to fsync after each record
	ReadOnly    bool               // Open for replay only
	Compression Codec              // Payload compression for new records
	Logger      logrus.FieldLogger // Logger for WAL operations
}

// NewWAL opens the WAL at config.Path, creating it unless ReadOnly is set.
// A read-only open of a missing file fails with model.ErrNotFound.
func NewWAL(config WALConfig) (*WAL, error) {
	if config.Logger == nil {
		config.Logger = model.GetDefaultLogger()
	}

	wal := &WAL{
		path:        config.Path,
		readOnly:    config.ReadOnly,
		syncOnWrite: config.SyncOnWrite,
		codec:       config.Compression,
		logger:      config.Logger.WithField("component", "wal"),
	}

	flags := os.O_RDWR | os.O_CREATE
	if config.ReadOnly {
		flags = os.O_RDONLY
	} else if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create WAL directory: %v", model.ErrIO, err)
	}

	file, err := os.OpenFile(config.Path, flags, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: WAL %s", model.ErrNotFound, config.Path)
		}
		return nil, fmt.Errorf("%w: open WAL file: %v", model.ErrIO, err)
	}
	wal.file = file

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: stat WAL file: %v", model.ErrIO, err)
	}
	wal.size = info.Size()

	switch {
	case wal.size < walHeaderSize && !config.ReadOnly:
		// Empty, or a crash while the header was being written.
		if err := wal.writeHeader(); err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: write WAL header: %v", model.ErrIO, err)
		}
	case wal.size < walHeaderSize:
		// Nothing was ever committed through this log.
	default:
		if err := wal.verifyHeader(); err != nil {
			file.Close()
			return nil, err
		}
	}

	wal.isOpen = true
	wal.logger.WithFields(logrus.Fields{"path": config.Path, "size": wal.size}).Debug("opened WAL")
	return wal, nil
}

// Close closes the WAL
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isOpen {
		return nil
	}
	w.isOpen = false

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("%w: close WAL file: %v", model.ErrIO, err)
	}

	w.logger.WithField("path", w.path).Debug("closed WAL")
	return nil
}

// Append writes one record. The record is durable when Append returns if
// SyncOnWrite is set. A failed append leaves the file as it was.
func (w *WAL) Append(record WALRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isOpen {
		return ErrWALClosed
	}
	if w.readOnly {
		return fmt.Errorf("%w: WAL opened read-only", model.ErrReadOnly)
	}
	if record.Timestamp == 0 {
		record.Timestamp = time.Now().UnixNano()
	}

	frame, err := w.encodeRecord(record)
	if err != nil {
		return err
	}

	offset := w.size
	if _, err := w.file.WriteAt(frame, offset); err != nil {
		w.rollback(offset)
		return fmt.Errorf("%w: write WAL record %d: %v", model.ErrIO, record.Seq, err)
	}
	if w.syncOnWrite {
		if err := w.file.Sync(); err != nil {
			w.rollback(offset)
			return fmt.Errorf("%w: sync WAL record %d: %v", model.ErrIO, record.Seq, err)
		}
	}
	w.size = offset + int64(len(frame))

	w.logger.WithFields(logrus.Fields{"seq": record.Seq, "bytes": len(frame)}).Debug("appended WAL record")
	return nil
}

func (w *WAL) rollback(offset int64) {
	if err := w.file.Truncate(offset); err != nil {
		w.logger.WithError(err).WithField("offset", offset).Error("failed to roll back partial WAL record")
	}
}

// Sync flushes appended records to disk. It matters only when SyncOnWrite
// is off.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isOpen {
		return ErrWALClosed
	}
	if w.readOnly {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync WAL: %v", model.ErrIO, err)
	}
	return nil
}

// Replay reads every intact record in order and hands it to fn. Replay stops
// at the first incomplete or damaged record: everything from there on was
// never acknowledged as committed, so a writable WAL cuts it off. An error
// returned by fn aborts the replay and is returned as is.
func (w *WAL) Replay(fn func(WALRecord) error) (ReplayStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var stats ReplayStats
	if !w.isOpen {
		return stats, ErrWALClosed
	}
	if w.size <= walHeaderSize {
		stats.ValidBytes = w.size
		return stats, nil
	}

	reader := bufio.NewReader(io.NewSectionReader(w.file, walHeaderSize, w.size-walHeaderSize))
	offset := int64(walHeaderSize)

	for {
		record, n, err := w.readRecord(reader)
		if err == io.EOF {
			break
		}
		if errors.Is(err, errTornRecord) {
			stats.TornTail = true
			break
		}
		if err != nil {
			return stats, err
		}
		if err := fn(record); err != nil {
			return stats, err
		}
		offset += n
		stats.Records++
	}

	stats.ValidBytes = offset
	stats.DiscardedBytes = w.size - offset

	if stats.TornTail {
		log := w.logger.WithFields(logrus.Fields{
			"path":      w.path,
			"offset":    offset,
			"discarded": stats.DiscardedBytes,
		})
		if w.readOnly {
			log.Warn("ignoring torn WAL tail")
		} else {
			log.Warn("discarding torn WAL tail")
			if err := w.file.Truncate(offset); err != nil {
				return stats, fmt.Errorf("%w: truncate torn WAL tail: %v", model.ErrIO, err)
			}
			if err := w.file.Sync(); err != nil {
				return stats, fmt.Errorf("%w: sync WAL: %v", model.ErrIO, err)
			}
			w.size = offset
		}
	}

	w.logger.WithFields(logrus.Fields{"records": stats.Records, "path": w.path}).Debug("replayed WAL")
	return stats, nil
}

// Truncate removes all records, keeping the header.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isOpen {
		return ErrWALClosed
	}
	if w.readOnly {
		return fmt.Errorf("%w: WAL opened read-only", model.ErrReadOnly)
	}

	if err := w.file.Truncate(walHeaderSize); err != nil {
		return fmt.Errorf("%w: truncate WAL: %v", model.ErrIO, err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync WAL: %v", model.ErrIO, err)
	}
	w.size = walHeaderSize

	w.logger.WithField("path", w.path).Debug("truncated WAL")
	return nil
}

// Size returns the current size of the WAL file in bytes.
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// writeHeader writes the WAL header to the file
func (w *WAL) writeHeader() error {
	var hdr [walHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], WALMagic)
	binary.LittleEndian.PutUint16(hdr[4:6], WALVersion)

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	if _, err := w.file.WriteAt(hdr[:], 0); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.size = walHeaderSize
	return nil
}

// verifyHeader verifies the WAL header
func (w *WAL) verifyHeader() error {
	var hdr [walHeaderSize]byte
	if _, err := w.file.ReadAt(hdr[:], 0); err != nil {
		return fmt.Errorf("%w: read WAL header: %v", model.ErrIO, err)
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != WALMagic {
		return fmt.Errorf("%w: bad magic", ErrWALCorrupted)
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != WALVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrWALCorrupted, v)
	}
	return nil
}

// encodeRecord frames a record:
//
//	checksum u64 | length u32 | type u8 | codec u8 | seq u64 | timestamp i64 | payload
//
// length counts the bytes after it and the checksum covers those same bytes.
func (w *WAL) encodeRecord(record WALRecord) ([]byte, error) {
	payload, codec, err := compressPayload(w.codec, record.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: compress WAL payload: %v", model.ErrIO, err)
	}
	bodyLen := recordFixedSize + len(payload)
	if bodyLen > maxRecordSize {
		return nil, fmt.Errorf("%w: WAL record of %d bytes exceeds limit", model.ErrInvalidArgument, bodyLen)
	}

	frame := make([]byte, frameHeaderSize+bodyLen)
	body := frame[frameHeaderSize:]
	body[0] = byte(record.Type)
	body[1] = byte(codec)
	binary.LittleEndian.PutUint64(body[2:10], record.Seq)
	binary.LittleEndian.PutUint64(body[10:18], uint64(record.Timestamp))
	copy(body[recordFixedSize:], payload)

	binary.LittleEndian.PutUint64(frame[0:8], xxhash.Sum64(body))
	binary.LittleEndian.PutUint32(frame[8:12], uint32(bodyLen))
	return frame, nil
}

// readRecord reads a record from the WAL. It returns io.EOF at a clean end
// of log and errTornRecord for a record that was not written completely.
func (w *WAL) readRecord(reader *bufio.Reader) (WALRecord, int64, error) {
	var record WALRecord

	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(reader, hdr[:]); err != nil {
		if err == io.EOF {
			return record, 0, io.EOF
		}
		return record, 0, errTornRecord
	}
	checksum := binary.LittleEndian.Uint64(hdr[0:8])
	bodyLen := binary.LittleEndian.Uint32(hdr[8:12])
	if bodyLen < recordFixedSize || bodyLen > maxRecordSize {
		return record, 0, errTornRecord
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(reader, body); err != nil {
		return record, 0, errTornRecord
	}
	if xxhash.Sum64(body) != checksum {
		return record, 0, errTornRecord
	}

	record.Type = RecordType(body[0])
	if record.Type != RecordCommit {
		return record, 0, fmt.Errorf("%w: unknown type %d", ErrInvalidWALRecord, body[0])
	}
	record.Seq = binary.LittleEndian.Uint64(body[2:10])
	record.Timestamp = int64(binary.LittleEndian.Uint64(body[10:18]))

	payload, err := decompressPayload(Codec(body[1]), body[recordFixedSize:])
	if err != nil {
		return record, 0, fmt.Errorf("%w: record %d: %v", ErrInvalidWALRecord, record.Seq, err)
	}
	record.Payload = payload

	return record, int64(frameHeaderSize) + int64(bodyLen), nil
}
