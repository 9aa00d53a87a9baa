package gallery

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
	"time"
)

// ErrStoreWrite is returned when an enrollment could not be made durable.
// No record id is assigned; the caller may retry.
var ErrStoreWrite = errors.New("gallery store write failed")

// Store is the durable, append-only record of enrollments. It is the source
// of truth the index is rebuilt from: a record id never appears in the index
// before Append has returned for it.
type Store interface {
	// Append validates the embedding dimension, durably appends the record
	// and returns its newly assigned, monotonically increasing id.
	Append(ctx context.Context, rec *Record) (int64, error)

	// LoadAll replays every record in original enrollment order.
	LoadAll(ctx context.Context) ([]Record, error)

	// Dim returns the store's fixed embedding dimension, or 0 before the
	// first enrollment fixes it.
	Dim() int

	Close() error
}

const (
	fileMagic   = "FGAL"
	fileVersion = uint16(1)

	// maxFieldLen bounds label/source-ref fields so a corrupt length prefix
	// cannot cause a huge allocation during replay.
	maxFieldLen  = 4096
	maxVectorDim = 1 << 16
)

// FileStore is a Store backed by a single append-only log file. Each record
// is a length-prefixed, CRC-checked frame; appends never rewrite earlier
// records and load is a full sequential replay. A torn final frame (crash
// mid-write) is discarded on open since its enrollment was never
// acknowledged.
type FileStore struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	dim    int
	nextID int64
}

// OpenFileStore opens or creates the gallery log at path. dim fixes the
// embedding dimension up front; dim == 0 lets the first enrollment fix it.
func OpenFileStore(path string, dim int) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open gallery log: %w", err)
	}

	s := &FileStore{f: f, path: path, dim: dim, nextID: 1}

	valid, err := s.replay(nil)
	if err != nil {
		f.Close()
		return nil, err
	}

	// Drop a torn tail so the next append starts on a frame boundary.
	if err := f.Truncate(valid); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to truncate gallery log: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to seek gallery log: %w", err)
	}

	return s, nil
}

// Append durably writes one record and returns its id.
func (s *FileStore) Append(ctx context.Context, rec *Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		if len(rec.Embedding) == 0 {
			return 0, fmt.Errorf("empty embedding")
		}
		s.dim = len(rec.Embedding)
	}
	if len(rec.Embedding) != s.dim {
		return 0, fmt.Errorf("dimension mismatch: expected %d, got %d", s.dim, len(rec.Embedding))
	}

	id := s.nextID
	frame, err := encodeFrame(id, rec)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	if _, err := s.f.Write(frame); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if err := s.f.Sync(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	s.nextID = id + 1
	return id, nil
}

// LoadAll replays the full log from the start.
func (s *FileStore) LoadAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []Record
	if _, err := s.replay(&records); err != nil {
		return nil, err
	}
	if _, err := s.f.Seek(0, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("failed to seek gallery log: %w", err)
	}
	return records, nil
}

// replay reads the log sequentially from the start, validating every frame.
// It updates dim and nextID, optionally collects records, and returns the
// offset just past the last valid frame. A truncated final frame is treated
// as a torn write, not an error; a CRC mismatch on a complete frame is.
func (s *FileStore) replay(out *[]Record) (int64, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek gallery log: %w", err)
	}

	var offset int64
	for {
		rec, n, err := readFrame(s.f)
		if err == io.EOF {
			return offset, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// Torn final frame: the write never completed and was never
			// acknowledged, so it is not part of the gallery.
			return offset, nil
		}
		if err != nil {
			return offset, fmt.Errorf("gallery log corrupt at offset %d: %w", offset, err)
		}

		if s.dim == 0 {
			s.dim = len(rec.Embedding)
		} else if len(rec.Embedding) != s.dim {
			return offset, fmt.Errorf("gallery log corrupt at offset %d: dimension changed from %d to %d", offset, s.dim, len(rec.Embedding))
		}
		if rec.ID >= s.nextID {
			s.nextID = rec.ID + 1
		}
		if out != nil {
			*out = append(*out, *rec)
		}
		offset += n
	}
}

// Dim returns the fixed embedding dimension (0 before the first enrollment).
func (s *FileStore) Dim() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dim
}

// Close closes the underlying log file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Frame format (little endian):
//
//	[magic:4][version:2][payloadLen:4][crc32:4][payload]
//
// payload:
//
//	[id:8][enrolledAt:8 unix nanos][dim:4][vector:dim*4]
//	[labelLen:2][label][srcLen:2][src]
func encodeFrame(id int64, rec *Record) ([]byte, error) {
	if len(rec.IdentityLabel) > maxFieldLen || len(rec.SourceRef) > maxFieldLen {
		return nil, fmt.Errorf("label or source ref too long")
	}

	var payload bytes.Buffer
	binary.Write(&payload, binary.LittleEndian, id)
	binary.Write(&payload, binary.LittleEndian, rec.EnrolledAt.UnixNano())
	binary.Write(&payload, binary.LittleEndian, uint32(len(rec.Embedding)))
	binary.Write(&payload, binary.LittleEndian, rec.Embedding)
	binary.Write(&payload, binary.LittleEndian, uint16(len(rec.IdentityLabel)))
	payload.WriteString(rec.IdentityLabel)
	binary.Write(&payload, binary.LittleEndian, uint16(len(rec.SourceRef)))
	payload.WriteString(rec.SourceRef)

	var frame bytes.Buffer
	frame.WriteString(fileMagic)
	binary.Write(&frame, binary.LittleEndian, fileVersion)
	binary.Write(&frame, binary.LittleEndian, uint32(payload.Len()))
	binary.Write(&frame, binary.LittleEndian, crc32.ChecksumIEEE(payload.Bytes()))
	frame.Write(payload.Bytes())
	return frame.Bytes(), nil
}

// readFrame decodes one frame from r and returns the record and the frame's
// total encoded size.
func readFrame(r io.Reader) (*Record, int64, error) {
	header := make([]byte, 4+2+4+4)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		return nil, 0, io.ErrUnexpectedEOF
	}

	if string(header[:4]) != fileMagic {
		return nil, 0, fmt.Errorf("bad magic")
	}
	if v := binary.LittleEndian.Uint16(header[4:6]); v != fileVersion {
		return nil, 0, fmt.Errorf("unsupported log version %d", v)
	}
	payloadLen := binary.LittleEndian.Uint32(header[6:10])
	wantCRC := binary.LittleEndian.Uint32(header[10:14])

	if payloadLen > uint32(8+8+4+maxVectorDim*4+2+maxFieldLen+2+maxFieldLen) {
		return nil, 0, fmt.Errorf("implausible frame length %d", payloadLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, 0, io.ErrUnexpectedEOF
	}
	if crc32.ChecksumIEEE(payload) != wantCRC {
		return nil, 0, fmt.Errorf("checksum mismatch")
	}

	buf := bytes.NewReader(payload)
	var rec Record
	var enrolledAt int64
	var dim uint32
	if err := binary.Read(buf, binary.LittleEndian, &rec.ID); err != nil {
		return nil, 0, err
	}
	if err := binary.Read(buf, binary.LittleEndian, &enrolledAt); err != nil {
		return nil, 0, err
	}
	if err := binary.Read(buf, binary.LittleEndian, &dim); err != nil {
		return nil, 0, err
	}
	if dim > maxVectorDim {
		return nil, 0, fmt.Errorf("implausible dimension %d", dim)
	}
	rec.Embedding = make([]float32, dim)
	if err := binary.Read(buf, binary.LittleEndian, rec.Embedding); err != nil {
		return nil, 0, err
	}

	label, err := readLenPrefixed(buf)
	if err != nil {
		return nil, 0, err
	}
	src, err := readLenPrefixed(buf)
	if err != nil {
		return nil, 0, err
	}

	rec.EnrolledAt = time.Unix(0, enrolledAt)
	rec.IdentityLabel = label
	rec.SourceRef = src
	return &rec, int64(len(header)) + int64(payloadLen), nil
}

func readLenPrefixed(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
