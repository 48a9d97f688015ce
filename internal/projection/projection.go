// Package projection reduces high-dimensional embeddings to two dimensions
// for plotting and clustering. Projector is a capability interface so a
// true UMAP implementation could be slotted in later; the only
// implementation shipped here is the PCA-via-SVD fallback, since no UMAP
// package exists anywhere in the dependency set this module draws on and
// only structural (not coordinate-identical) equivalence across UMAP
// implementations is ever required downstream.
package projection

import (
	"gonum.org/v1/gonum/mat"
)

// Projector maps an N×D matrix of embeddings to an N×2 matrix of
// coordinates.
type Projector interface {
	Project(x *mat.Dense) (*mat.Dense, error)
}

// PCAProjector centers its input by column mean and projects onto the top
// two left singular vectors scaled by their singular values.
type PCAProjector struct{}

// Project implements Projector. N=0 returns a 0x2 matrix; N=1 returns a
// single row at the origin, since a single centered point has no variance
// to project along.
func (PCAProjector) Project(x *mat.Dense) (*mat.Dense, error) {
	n, d := x.Dims()
	out := mat.NewDense(n, 2, nil)
	if n == 0 {
		return out, nil
	}
	if n == 1 {
		return out, nil
	}

	centered := mat.NewDense(n, d, nil)
	means := make([]float64, d)
	for j := 0; j < d; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x.At(i, j)
		}
		means[j] = sum / float64(n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			centered.Set(i, j, x.At(i, j)-means[j])
		}
	}

	var svd mat.SVD
	ok := svd.Factorize(centered, mat.SVDThin)
	if !ok {
		return out, nil
	}

	values := svd.Values(nil)
	var u mat.Dense
	svd.UTo(&u)

	ur, uc := u.Dims()
	for i := 0; i < ur && i < n; i++ {
		for c := 0; c < 2 && c < uc && c < len(values); c++ {
			out.Set(i, c, u.At(i, c)*values[c])
		}
	}
	return out, nil
}
