// Package density computes per-cluster density and intra-level rank
// percentile over 2-D projected points. The arithmetic here is a handful of
// mean/distance computations with no natural fit in any numerical library
// carried by this module's dependency set, so it is implemented directly
// against the standard library.
package density

import (
	"math"
	"sort"
)

const epsilon = 1e-10

// Point is a single 2-D coordinate.
type Point struct {
	X, Y float64
}

// Info is the density ranking computed for one cluster.
type Info struct {
	Density               float64
	DensityRank           int
	DensityRankPercentile float64
}

// clusterDensity returns 1/(spread+epsilon) where spread is the mean
// Euclidean distance from each point to the cluster's centroid. Empty or
// singleton clusters (spread 0 by definition) receive density 1/epsilon.
func clusterDensity(points []Point) float64 {
	if len(points) <= 1 {
		return 1 / epsilon
	}
	var cx, cy float64
	for _, p := range points {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(points))
	cx /= n
	cy /= n

	var spread float64
	for _, p := range points {
		spread += math.Hypot(p.X-cx, p.Y-cy)
	}
	spread /= n
	return 1 / (spread + epsilon)
}

// RankLevel computes density, rank, and rank percentile for every cluster
// in a single hierarchy level, given each cluster's member points keyed by
// cluster id. Ranks are 1-based, densest first; clusters with equal
// density are ordered by cluster id ascending (sort key: density desc, id asc).
func RankLevel(pointsByCluster map[string][]Point) map[string]Info {
	ids := make([]string, 0, len(pointsByCluster))
	densities := make(map[string]float64, len(pointsByCluster))
	for id, pts := range pointsByCluster {
		ids = append(ids, id)
		densities[id] = clusterDensity(pts)
	}

	sort.Slice(ids, func(i, j int) bool {
		if densities[ids[i]] != densities[ids[j]] {
			return densities[ids[i]] > densities[ids[j]]
		}
		return ids[i] < ids[j]
	})

	n := len(ids)
	out := make(map[string]Info, n)
	for rank, id := range ids {
		out[id] = Info{
			Density:               densities[id],
			DensityRank:           rank + 1,
			DensityRankPercentile: float64(rank+1) / float64(n),
		}
	}
	return out
}
