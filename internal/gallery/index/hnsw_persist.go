package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/coder/hnsw"
)

// SnapshotMeta validates a graph snapshot against the current store
// contents. A snapshot is only a cache of the graph structure; the store
// remains the source of truth and a stale snapshot is simply ignored.
type SnapshotMeta struct {
	RecordCount int       `json:"record_count"`
	MaxRecordID int64     `json:"max_record_id"`
	BuildTime   time.Time `json:"build_time"`
	Version     int       `json:"version"`
}

const snapshotMetaVersion = 1

// ErrSnapshotStale means the snapshot on disk does not describe the current
// record set and must not be loaded.
var ErrSnapshotStale = errors.New("index snapshot does not match store contents")

// SaveTo persists the graph structure plus a .meta sidecar. An empty index
// removes any existing snapshot instead.
func (h *HNSW) SaveTo(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index snapshot file: %w", err)
	}
	defer f.Close()

	if err := h.graph.Export(f); err != nil {
		return fmt.Errorf("failed to export graph: %w", err)
	}

	meta := SnapshotMeta{
		RecordCount: len(h.vectors),
		BuildTime:   time.Now(),
		Version:     snapshotMetaVersion,
	}
	for id := range h.vectors {
		if id > meta.MaxRecordID {
			meta.MaxRecordID = id
		}
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot metadata: %w", err)
	}
	return nil
}

// LoadFrom restores the graph structure from a snapshot, validating it
// against entries, which must be the full current store contents. Returns
// ErrSnapshotStale when the snapshot describes a different record set; the
// caller then rebuilds from the store instead.
func (h *HNSW) LoadFrom(path string, entries []Entry) error {
	meta, err := loadSnapshotMeta(path)
	if err != nil {
		return err
	}
	if meta.Version != snapshotMetaVersion {
		return ErrSnapshotStale
	}

	var maxID int64
	for _, entry := range entries {
		if err := checkDimension(h.dim, entry.Vector); err != nil {
			return err
		}
		if entry.ID > maxID {
			maxID = entry.ID
		}
	}
	if meta.RecordCount != len(entries) || meta.MaxRecordID != maxID {
		return ErrSnapshotStale
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load index snapshot: %w", err)
	}

	vectors := make(map[int64][]float32, len(entries))
	for _, entry := range entries {
		vectors[entry.ID] = entry.Vector
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = saved.Graph
	h.vectors = vectors
	return nil
}

func loadSnapshotMeta(path string) (SnapshotMeta, error) {
	var meta SnapshotMeta

	data, err := os.ReadFile(path + ".meta")
	if err != nil {
		return meta, fmt.Errorf("failed to read snapshot metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to unmarshal snapshot metadata: %w", err)
	}
	return meta, nil
}
