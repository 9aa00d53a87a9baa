package index

import (
	"math"
	"math/rand"
)

const kmeansMaxIterations = 25

// kmeansSeed is fixed so that training from the same entry set always
// produces the same centroids. Rebuild idempotence for the partitioned
// backend depends on this.
const kmeansSeed = 1

// trainKMeans runs Lloyd's algorithm over the entry vectors and returns k
// centroids. Callers must guarantee len(entries) >= k.
func trainKMeans(entries []Entry, dim, k int) [][]float32 {
	rng := rand.New(rand.NewSource(kmeansSeed))

	// Initialize centroids from distinct data points.
	centroids := make([][]float32, k)
	for i, p := range rng.Perm(len(entries))[:k] {
		centroids[i] = make([]float32, dim)
		copy(centroids[i], entries[p].Vector)
	}

	assignments := make([]int, len(entries))
	counts := make([]int, k)
	sums := make([]float64, k*dim)

	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false

		for i, entry := range entries {
			best := nearestCentroid(centroids, entry.Vector)
			if assignments[i] != best {
				changed = true
				assignments[i] = best
			}
		}
		if iter > 0 && !changed {
			break
		}

		// Update step.
		for i := range counts {
			counts[i] = 0
		}
		for i := range sums {
			sums[i] = 0
		}
		for i, entry := range entries {
			c := assignments[i]
			counts[c]++
			for d, v := range entry.Vector {
				sums[c*dim+d] += float64(v)
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Empty cluster keeps its previous centroid.
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = float32(sums[c*dim+d] / float64(counts[c]))
			}
		}
	}

	return centroids
}

// nearestCentroid returns the centroid index with the smallest squared L2
// distance to the vector, ties broken by lower centroid index.
func nearestCentroid(centroids [][]float32, vector []float32) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, centroid := range centroids {
		var dist float64
		for d := range vector {
			diff := float64(vector[d]) - float64(centroid[d])
			dist += diff * diff
		}
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}
