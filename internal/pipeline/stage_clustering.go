package pipeline

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/takahashim/broadlistening-go/internal/config"
	"github.com/takahashim/broadlistening-go/internal/density"
	"github.com/takahashim/broadlistening-go/internal/domain"
	"github.com/takahashim/broadlistening-go/internal/kmeans"
	"github.com/takahashim/broadlistening-go/internal/projection"
	"github.com/takahashim/broadlistening-go/internal/ward"
)

// clusteringSeed is the fixed KMeans seed the clustering stage always
// uses, so hierarchy shape is reproducible across runs on the same input.
const clusteringSeed = 42

// RunClustering projects argument embeddings to 2-D, runs KMeans at the
// finest requested granularity, coarsens via Ward agglomeration for every
// intermediate target count, and records per-argument coordinates and
// cluster membership chains plus per-level density rankings.
func RunClustering(c *Context, cfg *config.Config) error {
	n := len(c.Arguments)
	if n == 0 {
		c.ClusterResults = domain.ClusterResults{}
		return nil
	}

	d := len(c.Arguments[0].Embedding)
	embeddings := mat.NewDense(n, d, nil)
	for i, a := range c.Arguments {
		embeddings.SetRow(i, a.Embedding)
	}

	projector := projection.NewAdapter()
	coords, err := projector.Project(embeddings)
	if err != nil {
		return fmt.Errorf("pipeline: project embeddings: %w", err)
	}

	adjusted := adjustClusterNums(cfg.ClusterNums, n)
	finest := adjusted[len(adjusted)-1]
	if finest <= 0 || finest > n {
		return fmt.Errorf("pipeline: clustering: invalid K=%d for N=%d", finest, n)
	}

	result, err := kmeans.Run(coords, kmeans.Options{K: finest, Seed: clusteringSeed})
	if err != nil {
		return fmt.Errorf("pipeline: kmeans: %w", err)
	}

	results := domain.ClusterResults{}
	levels := len(adjusted)
	results[levels] = result.Labels

	currentLabels := result.Labels
	currentCentroids := result.Centroids
	sizes := clusterSizes(currentLabels, finest)

	for i := len(adjusted) - 2; i >= 0; i-- {
		target := adjusted[i]
		merged := ward.Merge(currentCentroids, sizes, currentLabels, target)
		results[i+1] = merged
		currentLabels = merged
		currentCentroids, sizes = recomputeCentroids(coords, merged, target)
	}

	c.ClusterResults = results

	for i := range c.Arguments {
		c.Arguments[i].X = coords.At(i, 0)
		c.Arguments[i].Y = coords.At(i, 1)
		c.Arguments[i].ClusterIDs = results.ClusterIDsFor(i)
	}

	c.Density = computeDensity(coords, results)
	return nil
}

// adjustClusterNums implements sorted(unique(min(k, N) for k in nums)).
func adjustClusterNums(nums []int, n int) []int {
	seen := make(map[int]struct{}, len(nums))
	for _, k := range nums {
		if k > n {
			k = n
		}
		seen[k] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func clusterSizes(labels []int, k int) []int {
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}
	return sizes
}

// recomputeCentroids rebuilds centroids and sizes for the merged labeling
// so the next (coarser) Ward pass starts from consistent input.
func recomputeCentroids(coords *mat.Dense, labels []int, k int) (*mat.Dense, []int) {
	_, d := coords.Dims()
	sums := mat.NewDense(k, d, nil)
	sizes := make([]int, k)
	for i, l := range labels {
		sizes[l]++
		for c := 0; c < d; c++ {
			sums.Set(l, c, sums.At(l, c)+coords.At(i, c))
		}
	}
	centroids := mat.NewDense(k, d, nil)
	for l := 0; l < k; l++ {
		if sizes[l] == 0 {
			continue
		}
		for c := 0; c < d; c++ {
			centroids.Set(l, c, sums.At(l, c)/float64(sizes[l]))
		}
	}
	return centroids, sizes
}

// computeDensity builds the per-level density ranking from 2-D
// coordinates grouped by each level's cluster id.
func computeDensity(coords *mat.Dense, results domain.ClusterResults) map[int]map[string]domain.DensityInfo {
	out := make(map[int]map[string]domain.DensityInfo, len(results))
	for level, labels := range results {
		byCluster := make(map[string][]density.Point)
		for i, num := range labels {
			id := domain.ClusterID(level, num)
			byCluster[id] = append(byCluster[id], density.Point{X: coords.At(i, 0), Y: coords.At(i, 1)})
		}
		ranked := density.RankLevel(byCluster)
		infos := make(map[string]domain.DensityInfo, len(ranked))
		for id, info := range ranked {
			infos[id] = domain.DensityInfo{
				Density:               info.Density,
				DensityRank:           info.DensityRank,
				DensityRankPercentile: info.DensityRankPercentile,
			}
		}
		out[level] = infos
	}
	return out
}
