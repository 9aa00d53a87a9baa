package index

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
)

// DefaultHNSWM is the default number of neighbors per graph node for 512-dim
// face embeddings. Higher values improve recall but increase memory and
// build time.
const DefaultHNSWM = 16

// HNSW is a navigable-small-world graph index. Queries are sub-linear with
// the lowest latency of the three backends, but recall is approximate and
// may degrade relative to Flat; it is validated against Flat results, not
// assumed equivalent.
type HNSW struct {
	mu      sync.RWMutex
	dim     int
	m       int
	graph   *hnsw.Graph[int64]
	vectors map[int64][]float32
}

// NewHNSW creates an empty graph index. m <= 0 selects DefaultHNSWM.
func NewHNSW(dim, m int) (*HNSW, error) {
	if dim <= 0 {
		return nil, errors.New("hnsw: dimension must be positive")
	}
	if m <= 0 {
		m = DefaultHNSWM
	}
	return &HNSW{
		dim:     dim,
		m:       m,
		vectors: make(map[int64][]float32),
	}, nil
}

// Name identifies the backend variant.
func (h *HNSW) Name() string { return BackendGraph }

// newGraph creates the backing graph with this index's parameters.
func (h *HNSW) newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = h.m
	g.Ml = 1.0 / float64(h.m) // standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Insert adds one vector to the graph.
func (h *HNSW) Insert(id int64, vector []float32) error {
	if err := checkDimension(h.dim, vector); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.graph == nil {
		h.graph = h.newGraph()
	}
	h.graph.Add(hnsw.MakeNode(id, vector))
	h.vectors[id] = vector
	return nil
}

// Search walks the graph for the k nearest neighbors. Similarities are
// recomputed exactly from the stored vectors so the values are comparable
// with Flat; only the candidate set is approximate.
func (h *HNSW) Search(query []float32, k int) ([]SearchResult, error) {
	if err := checkDimension(h.dim, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, nil
	}

	neighbors := h.graph.Search(query, k)
	results := make([]SearchResult, 0, len(neighbors))
	for _, n := range neighbors {
		vector, ok := h.vectors[n.Key]
		if !ok {
			// Node present in the graph but not in the vector map: the two
			// are updated together, so this means the structure is damaged.
			return nil, ErrIndexCorrupt
		}
		results = append(results, SearchResult{ID: n.Key, Similarity: dot(query, vector)})
	}
	return sortResults(results, k), nil
}

// Rebuild reconstructs the graph from the full entry set in order. Graph
// construction is deterministic for a fixed M and insertion order.
func (h *HNSW) Rebuild(entries []Entry) error {
	for _, entry := range entries {
		if err := checkDimension(h.dim, entry.Vector); err != nil {
			return err
		}
	}

	graph := h.newGraph()
	vectors := make(map[int64][]float32, len(entries))
	for _, entry := range entries {
		graph.Add(hnsw.MakeNode(entry.ID, entry.Vector))
		vectors[entry.ID] = entry.Vector
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(entries) == 0 {
		h.graph = nil
	} else {
		h.graph = graph
	}
	h.vectors = vectors
	return nil
}

// Len returns the number of indexed vectors.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vectors)
}
