package gallery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/facerec/internal/gallery/index"
)

// Gallery ties the durable store and the search index together and owns
// their lifecycle: replay on open, two-phase enrollment, explicit rebuild,
// explicit close.
//
// Enrollment is write-then-insert: a record becomes durable in the store
// before its id is ever handed to the index, so after a crash the store can
// only be ahead of the index, never behind it. The index is rebuilt from the
// store on the next open.
type Gallery struct {
	store   Store
	idx     index.Index
	matcher Matcher

	// enrollMu serializes enrollments so id assignment stays monotonic and
	// at most one writer mutates the index at a time. Queries do not take
	// it.
	enrollMu sync.Mutex

	// recMu guards the id -> record lookup used to resolve labels.
	recMu   sync.RWMutex
	records map[int64]Record

	// snapshotPath, when set and the backend is the graph index, caches the
	// graph structure on disk so restarts can skip the rebuild.
	snapshotPath string
}

// Option configures a Gallery at open time.
type Option func(*Gallery)

// WithIndexSnapshot enables graph snapshot caching at path. Only the graph
// backend uses it; other backends rebuild from the store as usual.
func WithIndexSnapshot(path string) Option {
	return func(g *Gallery) { g.snapshotPath = path }
}

// Stats summarizes gallery contents.
type Stats struct {
	Records     int            `json:"records"`
	Identities  int            `json:"identities"`
	PerIdentity map[string]int `json:"per_identity"`
	Backend     string         `json:"backend"`
}

// Open replays the store into the index and returns a ready gallery.
func Open(ctx context.Context, store Store, idx index.Index, matcher Matcher, opts ...Option) (*Gallery, error) {
	g := &Gallery{
		store:   store,
		idx:     idx,
		matcher: matcher,
		records: make(map[int64]Record),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.enrollMu.Lock()
	defer g.enrollMu.Unlock()

	entries, byID, err := g.loadEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to replay gallery store: %w", err)
	}

	// A fresh graph snapshot replaces the startup rebuild; anything else
	// (stale, missing, unreadable) falls through to a full reconstruction.
	loaded := false
	if h, ok := idx.(*index.HNSW); ok && g.snapshotPath != "" {
		if err := h.LoadFrom(g.snapshotPath, entries); err == nil {
			loaded = true
		}
	}
	if !loaded {
		if err := idx.Rebuild(entries); err != nil {
			return nil, fmt.Errorf("failed to replay gallery store: %w", err)
		}
	}

	g.records = byID
	return g, nil
}

// loadEntries replays the store into normalized index entries plus the id
// lookup map. Caller must hold enrollMu.
func (g *Gallery) loadEntries(ctx context.Context) ([]index.Entry, map[int64]Record, error) {
	records, err := g.store.LoadAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]index.Entry, len(records))
	byID := make(map[int64]Record, len(records))
	for i, rec := range records {
		rec.Embedding = NormalizeL2(rec.Embedding)
		entries[i] = index.Entry{ID: rec.ID, Vector: rec.Embedding}
		byID[rec.ID] = rec
	}
	return entries, byID, nil
}

// Enroll validates, durably appends and then indexes one reference
// embedding, returning the assigned record id. The embedding is
// L2-normalized and the label canonicalized before storage. On store
// failure no id is assigned and the gallery is unchanged.
func (g *Gallery) Enroll(ctx context.Context, embedding []float32, label, sourceRef string) (int64, error) {
	label = NormalizeLabel(label)
	if label == "" {
		return 0, errors.New("identity label is required")
	}
	if dim := g.store.Dim(); dim != 0 && len(embedding) != dim {
		return 0, &index.ErrDimensionMismatch{Expected: dim, Actual: len(embedding)}
	}

	rec := Record{
		Embedding:     NormalizeL2(embedding),
		IdentityLabel: label,
		EnrolledAt:    time.Now(),
		SourceRef:     sourceRef,
	}

	g.enrollMu.Lock()
	defer g.enrollMu.Unlock()

	// Phase 1: durable append. Only a returned id may ever reach the index.
	id, err := g.store.Append(ctx, &rec)
	if err != nil {
		return 0, err
	}
	rec.ID = id

	// Phase 2: make it searchable.
	if err := g.idx.Insert(id, rec.Embedding); err != nil {
		// The record is durable; the index is now stale and will pick the
		// record up on the next rebuild.
		return id, fmt.Errorf("record %d stored but not indexed: %w", id, err)
	}

	g.recMu.Lock()
	g.records[id] = rec
	g.recMu.Unlock()

	return id, nil
}

// Search returns up to k candidates for the query embedding, labels
// resolved, sorted by similarity descending. The query is L2-normalized
// first. An ErrIndexCorrupt from the backend triggers a mandatory rebuild
// from the store and a single retry.
func (g *Gallery) Search(ctx context.Context, embedding []float32, k int) ([]Candidate, error) {
	query := NormalizeL2(embedding)

	results, err := g.idx.Search(query, k)
	if errors.Is(err, index.ErrIndexCorrupt) {
		if rerr := g.Rebuild(ctx); rerr != nil {
			return nil, fmt.Errorf("rebuild after corrupt index failed: %w", rerr)
		}
		results, err = g.idx.Search(query, k)
	}
	if err != nil {
		return nil, err
	}

	g.recMu.RLock()
	defer g.recMu.RUnlock()

	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		rec, ok := g.records[r.ID]
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			ID:            r.ID,
			IdentityLabel: rec.IdentityLabel,
			Similarity:    r.Similarity,
		})
	}
	return candidates, nil
}

// Match searches the gallery and applies the matcher policy. The candidate
// list is returned alongside the decision for diagnostics.
func (g *Gallery) Match(ctx context.Context, embedding []float32, k int) (MatchResult, []Candidate, error) {
	candidates, err := g.Search(ctx, embedding, k)
	if err != nil {
		return MatchResult{CandidateID: -1}, nil, err
	}
	return g.matcher.Decide(candidates), candidates, nil
}

// Rebuild discards the index structure and reconstructs it from a full
// store replay, never from a snapshot. Used for explicit maintenance,
// backend swaps and corruption recovery.
func (g *Gallery) Rebuild(ctx context.Context) error {
	g.enrollMu.Lock()
	defer g.enrollMu.Unlock()

	entries, byID, err := g.loadEntries(ctx)
	if err != nil {
		return err
	}

	if err := g.idx.Rebuild(entries); err != nil {
		return err
	}

	g.recMu.Lock()
	g.records = byID
	g.recMu.Unlock()
	return nil
}

// SaveIndexSnapshot writes the graph snapshot if snapshot caching is
// enabled and the backend supports it. No-op otherwise.
func (g *Gallery) SaveIndexSnapshot() error {
	h, ok := g.idx.(*index.HNSW)
	if !ok || g.snapshotPath == "" {
		return nil
	}
	return h.SaveTo(g.snapshotPath)
}

// Stats returns record and identity counts.
func (g *Gallery) Stats() Stats {
	g.recMu.RLock()
	defer g.recMu.RUnlock()

	perIdentity := make(map[string]int)
	for _, rec := range g.records {
		perIdentity[rec.IdentityLabel]++
	}
	return Stats{
		Records:     len(g.records),
		Identities:  len(perIdentity),
		PerIdentity: perIdentity,
		Backend:     g.idx.Name(),
	}
}

// Identities returns the enrolled identity labels, sorted.
func (g *Gallery) Identities() []string {
	stats := g.Stats()
	labels := make([]string, 0, len(stats.PerIdentity))
	for label := range stats.PerIdentity {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Len returns the number of enrolled records.
func (g *Gallery) Len() int {
	g.recMu.RLock()
	defer g.recMu.RUnlock()
	return len(g.records)
}

// Dim returns the gallery's fixed embedding dimension (0 while empty and
// unconfigured).
func (g *Gallery) Dim() int {
	return g.store.Dim()
}

// Close flushes and closes the underlying store.
func (g *Gallery) Close() error {
	return g.store.Close()
}
