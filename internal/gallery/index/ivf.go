package index

import (
	"errors"
	"sort"
	"sync"
)

// ivfTrainFactor controls when the coarse quantizer is trained: the index
// stays in exhaustive mode until it holds at least nlist*ivfTrainFactor
// vectors, so k-means has enough points per partition.
const ivfTrainFactor = 4

// IVF is an inverted-file index: vectors are bucketed into nlist partitions
// around k-means centroids and a query only scans the nprobe nearest
// partitions. Sub-linear and approximate; raising nprobe trades latency for
// recall, and nprobe == nlist degenerates to an exact scan.
//
// Until enough vectors have arrived to train the quantizer, the index scans
// exhaustively and is exact.
type IVF struct {
	mu     sync.RWMutex
	dim    int
	nlist  int
	nprobe int

	trained   bool
	centroids [][]float32
	lists     [][]Entry

	// pending holds vectors inserted before training; scanned exhaustively.
	pending []Entry
	count   int
}

// NewIVF creates an empty inverted-file index.
func NewIVF(dim, nlist, nprobe int) (*IVF, error) {
	if dim <= 0 {
		return nil, errors.New("ivf: dimension must be positive")
	}
	if nlist <= 0 {
		return nil, errors.New("ivf: nlist must be positive")
	}
	if nprobe <= 0 || nprobe > nlist {
		return nil, errors.New("ivf: nprobe must be in [1, nlist]")
	}
	return &IVF{dim: dim, nlist: nlist, nprobe: nprobe}, nil
}

// Name identifies the backend variant.
func (ivf *IVF) Name() string { return BackendPartitioned }

// Insert adds one vector. Once the quantizer is trained the vector goes into
// the partition of its nearest centroid; before that it is kept in the
// exhaustive pending list. Training happens automatically when enough
// vectors have accumulated.
func (ivf *IVF) Insert(id int64, vector []float32) error {
	if err := checkDimension(ivf.dim, vector); err != nil {
		return err
	}

	ivf.mu.Lock()
	defer ivf.mu.Unlock()

	if ivf.trained {
		c := nearestCentroid(ivf.centroids, vector)
		ivf.lists[c] = append(ivf.lists[c], Entry{ID: id, Vector: vector})
	} else {
		ivf.pending = append(ivf.pending, Entry{ID: id, Vector: vector})
		if len(ivf.pending) >= ivf.nlist*ivfTrainFactor {
			ivf.train(ivf.pending)
		}
	}
	ivf.count++
	return nil
}

// train builds the coarse quantizer from the given entries and distributes
// them into partitions. Caller holds the write lock.
func (ivf *IVF) train(entries []Entry) {
	ivf.centroids = trainKMeans(entries, ivf.dim, ivf.nlist)
	ivf.lists = make([][]Entry, ivf.nlist)
	for _, entry := range entries {
		c := nearestCentroid(ivf.centroids, entry.Vector)
		ivf.lists[c] = append(ivf.lists[c], entry)
	}
	ivf.pending = nil
	ivf.trained = true
}

// Search scans the nprobe partitions nearest to the query (or everything
// while untrained) and returns the top k candidates.
func (ivf *IVF) Search(query []float32, k int) ([]SearchResult, error) {
	if err := checkDimension(ivf.dim, query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	ivf.mu.RLock()
	defer ivf.mu.RUnlock()

	var results []SearchResult
	scan := func(entries []Entry) {
		for _, entry := range entries {
			results = append(results, SearchResult{ID: entry.ID, Similarity: dot(query, entry.Vector)})
		}
	}

	if !ivf.trained {
		scan(ivf.pending)
		return sortResults(results, k), nil
	}

	for _, c := range ivf.probeOrder(query)[:ivf.nprobe] {
		scan(ivf.lists[c])
	}
	return sortResults(results, k), nil
}

// probeOrder ranks partitions by centroid distance to the query, ties broken
// by lower partition index for determinism.
func (ivf *IVF) probeOrder(query []float32) []int {
	type ranked struct {
		idx  int
		dist float64
	}
	order := make([]ranked, len(ivf.centroids))
	for i, centroid := range ivf.centroids {
		var dist float64
		for d := range query {
			diff := float64(query[d]) - float64(centroid[d])
			dist += diff * diff
		}
		order[i] = ranked{idx: i, dist: dist}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].dist != order[j].dist {
			return order[i].dist < order[j].dist
		}
		return order[i].idx < order[j].idx
	})

	probes := make([]int, len(order))
	for i, r := range order {
		probes[i] = r.idx
	}
	return probes
}

// Rebuild reconstructs the index from the full entry set. With a fixed
// parameter set and entry order the resulting partitions are identical run
// to run (deterministic k-means seeding).
func (ivf *IVF) Rebuild(entries []Entry) error {
	for _, entry := range entries {
		if err := checkDimension(ivf.dim, entry.Vector); err != nil {
			return err
		}
	}

	ivf.mu.Lock()
	defer ivf.mu.Unlock()

	ivf.trained = false
	ivf.centroids = nil
	ivf.lists = nil
	ivf.pending = make([]Entry, len(entries))
	copy(ivf.pending, entries)
	ivf.count = len(entries)

	if len(ivf.pending) >= ivf.nlist*ivfTrainFactor {
		ivf.train(ivf.pending)
	}
	return nil
}

// Len returns the number of indexed vectors.
func (ivf *IVF) Len() int {
	ivf.mu.RLock()
	defer ivf.mu.RUnlock()
	return ivf.count
}
