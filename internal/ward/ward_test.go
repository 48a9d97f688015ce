package ward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func fourCentroids() (*mat.Dense, []int) {
	c := mat.NewDense(4, 2, []float64{
		0, 0,
		0.2, 0,
		10, 10,
		10.2, 10,
	})
	return c, []int{3, 3, 3, 3}
}

func TestMergeDownToTwo(t *testing.T) {
	centroids, sizes := fourCentroids()
	labels := []int{0, 1, 2, 3}

	out := Merge(centroids, sizes, labels, 2)
	require.Len(t, out, 4)

	assert.Equal(t, out[0], out[1])
	assert.Equal(t, out[2], out[3])
	assert.NotEqual(t, out[0], out[2])

	seen := map[int]struct{}{}
	for _, v := range out {
		seen[v] = struct{}{}
	}
	assert.Len(t, seen, 2)
	_, hasZero := seen[0]
	_, hasOne := seen[1]
	assert.True(t, hasZero)
	assert.True(t, hasOne)
}

func TestMergePassthroughWhenAlreadyAtOrBelowTarget(t *testing.T) {
	centroids, sizes := fourCentroids()
	labels := []int{0, 1, 2, 3}

	out := Merge(centroids, sizes, labels, 4)
	assert.Equal(t, labels, out)

	out = Merge(centroids, sizes, labels, 10)
	assert.Equal(t, labels, out)
}

func TestMergeEmptyInput(t *testing.T) {
	centroids := mat.NewDense(0, 2, nil)
	out := Merge(centroids, nil, nil, 1)
	assert.Empty(t, out)
}

func TestMergeIsPermutationInvariantOverEquivalentLabeling(t *testing.T) {
	centroids, sizes := fourCentroids()
	labelsA := []int{0, 1, 2, 3}
	labelsB := []int{0, 0, 1, 1, 2, 2, 3, 3}

	outA := Merge(centroids, sizes, labelsA, 2)
	outB := Merge(centroids, sizes, labelsB, 2)

	assert.Equal(t, outA[0], outB[0])
	assert.Equal(t, outA[0], outB[1])
	assert.Equal(t, outA[1], outB[2])
	assert.Equal(t, outA[1], outB[3])
	assert.Equal(t, outA[2], outB[4])
	assert.Equal(t, outA[2], outB[5])
	assert.Equal(t, outA[3], outB[6])
	assert.Equal(t, outA[3], outB[7])
}
