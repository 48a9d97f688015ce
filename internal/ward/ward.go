// Package ward implements Ward-linkage agglomerative merging of a fixed set
// of initial centroids down to a target count, with a deterministic
// tie-break so that identical inputs always produce identical merge
// sequences.
package ward

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

type cluster struct {
	id       int
	size     int
	centroid []float64
}

// Merge agglomerates the K rows of centroids (with per-row sizes) down to
// exactly target clusters using Ward linkage, then remaps labels to a
// contiguous 0..target-1 range in ascending order of representative id.
// If the number of distinct labels already present is <= target, labels is
// returned unchanged. Merge never modifies centroids or labels.
func Merge(centroids *mat.Dense, sizes []int, labels []int, target int) []int {
	k, d := centroids.Dims()

	distinct := distinctCount(labels)
	if distinct <= target {
		return append([]int(nil), labels...)
	}

	clusters := make(map[int]*cluster, k)
	for i := 0; i < k; i++ {
		row := make([]float64, d)
		mat.Row(row, i, centroids)
		clusters[i] = &cluster{id: i, size: sizes[i], centroid: row}
	}

	parent := make(map[int]int, k)
	for i := 0; i < k; i++ {
		parent[i] = i
	}

	n := len(clusters)
	for n > target {
		a, b := closestPair(clusters)
		merged := mergeInto(clusters[a], clusters[b])
		clusters[a] = merged
		delete(clusters, b)
		parent[b] = a
		n--
	}

	repOf := make(map[int]int, k)
	for i := 0; i < k; i++ {
		repOf[i] = resolve(parent, i)
	}

	reps := make([]int, 0, len(clusters))
	for id := range clusters {
		reps = append(reps, id)
	}
	sort.Ints(reps)

	dense := make(map[int]int, len(reps))
	for idx, rep := range reps {
		dense[rep] = idx
	}

	out := make([]int, len(labels))
	for i, l := range labels {
		out[i] = dense[repOf[l]]
	}
	return out
}

func resolve(parent map[int]int, id int) int {
	for parent[id] != id {
		id = parent[id]
	}
	return id
}

// closestPair finds the pair of distinct cluster ids with minimum Ward
// distance. Ties are broken first by the smaller of the two ids, then by
// the larger.
func closestPair(clusters map[int]*cluster) (int, int) {
	ids := make([]int, 0, len(clusters))
	for id := range clusters {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	bestI, bestJ := ids[0], ids[1]
	bestDist := wardDistance(clusters[bestI], clusters[bestJ])

	for x := 0; x < len(ids); x++ {
		for y := x + 1; y < len(ids); y++ {
			i, j := ids[x], ids[y]
			dist := wardDistance(clusters[i], clusters[j])
			if dist < bestDist {
				bestDist = dist
				bestI, bestJ = i, j
			}
		}
	}
	return bestI, bestJ
}

// wardDistance computes sqrt(2*ni*nj/(ni+nj) * ||ci-cj||^2).
func wardDistance(a, b *cluster) float64 {
	var sq float64
	for i := range a.centroid {
		diff := a.centroid[i] - b.centroid[i]
		sq += diff * diff
	}
	ni, nj := float64(a.size), float64(b.size)
	factor := 2 * ni * nj / (ni + nj)
	return math.Sqrt(factor * sq)
}

// mergeInto combines a and b into a cluster stored under min(a.id, b.id),
// with the size-weighted mean centroid and summed size.
func mergeInto(a, b *cluster) *cluster {
	lo, hi := a, b
	if hi.id < lo.id {
		lo, hi = hi, lo
	}
	total := lo.size + hi.size
	centroid := make([]float64, len(lo.centroid))
	for i := range centroid {
		centroid[i] = (lo.centroid[i]*float64(lo.size) + hi.centroid[i]*float64(hi.size)) / float64(total)
	}
	return &cluster{id: lo.id, size: total, centroid: centroid}
}

func distinctCount(labels []int) int {
	seen := make(map[int]struct{})
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}
