package index

import (
	"errors"
	"sync"
)

// Flat is an exact linear-scan index. Query cost is linear in the gallery
// size, which keeps it practical up to roughly 50k records; its results are
// the ground truth the approximate backends are validated against.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	entries []Entry
}

// NewFlat creates an empty flat index with a fixed vector dimension.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, errors.New("flat: dimension must be positive")
	}
	return &Flat{dim: dim}, nil
}

// Name identifies the backend variant.
func (f *Flat) Name() string { return BackendFlat }

// Insert adds one vector to the index.
func (f *Flat) Insert(id int64, vector []float32) error {
	if err := checkDimension(f.dim, vector); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, Entry{ID: id, Vector: vector})
	return nil
}

// Search scans every stored vector and returns the top k by similarity.
func (f *Flat) Search(query []float32, k int) ([]SearchResult, error) {
	if err := checkDimension(f.dim, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	results := make([]SearchResult, 0, len(f.entries))
	for _, entry := range f.entries {
		results = append(results, SearchResult{ID: entry.ID, Similarity: dot(query, entry.Vector)})
	}
	return sortResults(results, k), nil
}

// Rebuild replaces the index contents with the given entries.
func (f *Flat) Rebuild(entries []Entry) error {
	for _, entry := range entries {
		if err := checkDimension(f.dim, entry.Vector); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make([]Entry, len(entries))
	copy(f.entries, entries)
	return nil
}

// Len returns the number of indexed vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
