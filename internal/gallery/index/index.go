// Package index provides nearest-neighbor search structures over face
// embeddings. All backends answer top-k queries under inner-product
// similarity (cosine, assuming L2-normalized vectors) through one interface;
// Flat is exact and serves as ground truth for the approximate backends.
package index

import (
	"errors"
	"fmt"
	"sort"
)

// Backend names accepted by New.
const (
	BackendFlat        = "flat"
	BackendPartitioned = "partitioned"
	BackendGraph       = "graph"
)

// ErrIndexCorrupt signals that the search structure is no longer trustworthy
// and must be rebuilt from the gallery store before serving further queries.
var ErrIndexCorrupt = errors.New("index corrupt, rebuild required")

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

// Error returns the error message for dimension mismatch.
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Entry is one indexed vector with its gallery record id.
type Entry struct {
	ID     int64
	Vector []float32
}

// SearchResult is one query candidate.
type SearchResult struct {
	ID         int64
	Similarity float64
}

// Index is a queryable nearest-neighbor structure over enrolled embeddings.
//
// Implementations must be safe for concurrent Search calls; Insert and
// Rebuild may run concurrently with Search but are serialized against each
// other by the caller (the gallery's enrollment path). A vector inserted
// before Insert returns is visible to every Search submitted afterwards.
type Index interface {
	// Name identifies the backend variant.
	Name() string

	// Insert adds one vector under the given record id. Returns
	// *ErrDimensionMismatch when the vector dimension differs from the
	// index's fixed dimension.
	Insert(id int64, vector []float32) error

	// Search returns up to k candidates sorted by similarity descending,
	// ties broken by smaller record id. An empty index yields an empty
	// result, not an error.
	Search(query []float32, k int) ([]SearchResult, error)

	// Rebuild discards the current structure and reconstructs it from the
	// full entry set, in order. Rebuilding twice from the same entries
	// yields identical query results.
	Rebuild(entries []Entry) error

	// Len returns the number of indexed vectors.
	Len() int
}

// Options carries backend construction parameters.
type Options struct {
	Dimension int
	NList     int // partitioned: number of partitions
	NProbe    int // partitioned: partitions scanned per query
	M         int // graph: neighbors per node
}

// New constructs an index backend by name.
func New(backend string, opts Options) (Index, error) {
	switch backend {
	case BackendFlat:
		return NewFlat(opts.Dimension)
	case BackendPartitioned:
		return NewIVF(opts.Dimension, opts.NList, opts.NProbe)
	case BackendGraph:
		return NewHNSW(opts.Dimension, opts.M)
	default:
		return nil, fmt.Errorf("unknown index backend %q", backend)
	}
}

// dot computes the inner product of two equal-length vectors. With
// L2-normalized inputs this is the cosine similarity.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// sortResults orders candidates by similarity descending, ties by smaller id,
// and truncates to k.
func sortResults(results []SearchResult, k int) []SearchResult {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func checkDimension(expected int, vector []float32) error {
	if len(vector) != expected {
		return &ErrDimensionMismatch{Expected: expected, Actual: len(vector)}
	}
	return nil
}
