// Package kmeans implements deterministic KMeans++ clustering over dense
// float matrices, seeded by gonum's MT19937 generator so that identical
// input matrices and seeds always produce identical centroids, labels, and
// inertia.
package kmeans

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext/prng"
)

// ErrInvalidInput is returned when K is not a valid cluster count for the
// given matrix (K<=0 or K>N).
var ErrInvalidInput = errors.New("kmeans: invalid input")

const (
	defaultMaxIterations = 100
	defaultTolerance     = 1e-6
)

// Options configures a Run call. A zero Options uses defaults for every
// field except Seed and K, which must be set explicitly.
type Options struct {
	K             int
	Seed          uint64
	MaxIterations int
	Tolerance     float64
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaultMaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = defaultTolerance
	}
	return o
}

// Result is the outcome of a Run: one centroid row per cluster, one label
// per input row, and the total inertia (sum of squared distances from each
// point to its assigned centroid).
type Result struct {
	Centroids *mat.Dense
	Labels    []int
	Inertia   float64
}

// Run clusters the N×D matrix X into opts.K clusters using KMeans++
// initialization followed by Lloyd iterations. X is never modified.
func Run(x *mat.Dense, opts Options) (Result, error) {
	opts = opts.withDefaults()
	n, d := x.Dims()
	if opts.K <= 0 || opts.K > n {
		return Result{}, fmt.Errorf("%w: k=%d n=%d", ErrInvalidInput, opts.K, n)
	}

	rng := prng.NewMT19937()
	rng.Seed(opts.Seed)

	centroids := initPlusPlus(x, opts.K, rng)
	labels := make([]int, n)
	prevAssign := make([]int, n)
	for i := range prevAssign {
		prevAssign[i] = -1
	}

	var inertia float64
	for iter := 0; iter < opts.MaxIterations; iter++ {
		inertia = assign(x, centroids, labels)

		next := mat.NewDense(opts.K, d, nil)
		counts := make([]int, opts.K)
		for i := 0; i < n; i++ {
			k := labels[i]
			counts[k]++
			for j := 0; j < d; j++ {
				next.Set(k, j, next.At(k, j)+x.At(i, j))
			}
		}
		for k := 0; k < opts.K; k++ {
			if counts[k] == 0 {
				reseedEmptyCluster(x, next, k, rng)
				continue
			}
			for j := 0; j < d; j++ {
				next.Set(k, j, next.At(k, j)/float64(counts[k]))
			}
		}

		delta := frobeniusDeltaSq(centroids, next)
		centroids = next
		if delta < opts.Tolerance {
			break
		}
	}

	inertia = assign(x, centroids, labels)
	return Result{Centroids: centroids, Labels: labels, Inertia: inertia}, nil
}

// initPlusPlus picks the first centroid uniformly at random, then each
// subsequent centroid with probability proportional to the square of the
// point's squared distance to the nearest already-chosen centroid. This
// double-squaring (d^2 squared again to form the sampling weight) matches
// the reference implementation's sampler exactly rather than the textbook
// single-square KMeans++ weighting.
func initPlusPlus(x *mat.Dense, k int, rng *prng.MT19937) *mat.Dense {
	n, d := x.Dims()
	centroids := mat.NewDense(k, d, nil)

	first := int(rng.Uint64() % uint64(n))
	copyRow(centroids, 0, x, first)

	minDistSq := make([]float64, n)
	for i := range minDistSq {
		minDistSq[i] = sqDist(x, i, centroids, 0)
	}

	for c := 1; c < k; c++ {
		weights := make([]float64, n)
		var total float64
		for i := 0; i < n; i++ {
			w := minDistSq[i] * minDistSq[i]
			weights[i] = w
			total += w
		}

		idx := weightedSample(weights, total, rng)
		copyRow(centroids, c, x, idx)

		for i := 0; i < n; i++ {
			dd := sqDist(x, i, centroids, c)
			if dd < minDistSq[i] {
				minDistSq[i] = dd
			}
		}
	}
	return centroids
}

// weightedSample draws a single index from weights via cumulative-sum
// inversion against one uniform draw in [0, total). If every weight is zero
// (all points coincide with an already-chosen centroid) it falls back to a
// uniform draw over all indices.
func weightedSample(weights []float64, total float64, rng *prng.MT19937) int {
	if total <= 0 {
		return int(rng.Uint64() % uint64(len(weights)))
	}
	target := uniform01(rng) * total
	var cum float64
	for i, w := range weights {
		cum += w
		if target < cum {
			return i
		}
	}
	return len(weights) - 1
}

// uniform01 draws a float64 in [0, 1) from the generator's 64-bit output.
func uniform01(rng *prng.MT19937) float64 {
	return float64(rng.Uint64()>>11) / (1 << 53)
}

// assign labels every row of x with the index of its nearest centroid row,
// returning the total inertia.
func assign(x, centroids *mat.Dense, labels []int) float64 {
	n, _ := x.Dims()
	k, _ := centroids.Dims()
	var inertia float64
	for i := 0; i < n; i++ {
		best := 0
		bestDist := sqDist(x, i, centroids, 0)
		for c := 1; c < k; c++ {
			dd := sqDist(x, i, centroids, c)
			if dd < bestDist {
				bestDist = dd
				best = c
			}
		}
		labels[i] = best
		inertia += bestDist
	}
	return inertia
}

// reseedEmptyCluster reinitializes the centroid for cluster k to a
// uniformly-sampled data point, as required when Lloyd's update leaves a
// cluster with zero members.
func reseedEmptyCluster(x, centroids *mat.Dense, k int, rng *prng.MT19937) {
	n, _ := x.Dims()
	idx := int(rng.Uint64() % uint64(n))
	copyRow(centroids, k, x, idx)
}

func sqDist(a *mat.Dense, ai int, b *mat.Dense, bi int) float64 {
	_, d := a.Dims()
	var sum float64
	for j := 0; j < d; j++ {
		diff := a.At(ai, j) - b.At(bi, j)
		sum += diff * diff
	}
	return sum
}

func copyRow(dst *mat.Dense, dstRow int, src *mat.Dense, srcRow int) {
	_, d := src.Dims()
	for j := 0; j < d; j++ {
		dst.Set(dstRow, j, src.At(srcRow, j))
	}
}

// frobeniusDeltaSq returns the squared Frobenius norm of (a-b), used
// directly against Tolerance per the ||C_new - C_old||_F^2 convergence
// check.
func frobeniusDeltaSq(a, b *mat.Dense) float64 {
	ra, ca := a.Dims()
	var sum float64
	for i := 0; i < ra; i++ {
		for j := 0; j < ca; j++ {
			diff := a.At(i, j) - b.At(i, j)
			sum += diff * diff
		}
	}
	return sum
}

