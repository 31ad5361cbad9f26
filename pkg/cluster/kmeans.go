package cluster

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const maxKMeansIterations = 50

// kmeans partitions the given vectors into exactly k non-empty groups by
// Lloyd iteration. Vectors are indexed positionally; the returned slice maps
// each vector to its cluster index. Seeded, so repeated runs are
// reproducible.
func kmeans(vectors [][]float64, k int, seed int64) []int {
	n := len(vectors)
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewSource(seed))

	// Initial centroids: k distinct random members.
	centroids := make([][]float64, k)
	for i, idx := range rng.Perm(n)[:k] {
		centroids[i] = append([]float64(nil), vectors[idx]...)
	}

	assign := make([]int, n)
	for iter := 0; iter < maxKMeansIterations; iter++ {
		// Assignment step.
		moved := iter == 0
		for i, v := range vectors {
			best, bestDist := 0, floats.Distance(v, centroids[0], 2)
			for c := 1; c < k; c++ {
				if d := floats.Distance(v, centroids[c], 2); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				moved = true
			}
		}

		// An empty cluster steals the member farthest from its centroid,
		// keeping the cluster count exact.
		counts := make([]int, k)
		for _, c := range assign {
			counts[c]++
		}
		for c := 0; c < k; c++ {
			if counts[c] > 0 {
				continue
			}
			far, farDist := -1, -1.0
			for i, v := range vectors {
				if counts[assign[i]] <= 1 {
					continue
				}
				if d := floats.Distance(v, centroids[assign[i]], 2); d > farDist {
					far, farDist = i, d
				}
			}
			if far < 0 {
				continue
			}
			counts[assign[far]]--
			assign[far] = c
			counts[c]++
			moved = true
		}

		if !moved {
			break
		}

		// Update step: centroids become member means.
		for c := range centroids {
			for j := range centroids[c] {
				centroids[c][j] = 0
			}
		}
		for i, v := range vectors {
			floats.Add(centroids[assign[i]], v)
		}
		for c := range centroids {
			if counts[c] > 0 {
				floats.Scale(1/float64(counts[c]), centroids[c])
			}
		}
	}
	return assign
}
