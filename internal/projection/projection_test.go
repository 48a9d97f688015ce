package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestProjectEmptyMatrix(t *testing.T) {
	x := mat.NewDense(0, 5, nil)
	out, err := PCAProjector{}.Project(x)
	require.NoError(t, err)
	r, c := out.Dims()
	assert.Equal(t, 0, r)
	assert.Equal(t, 2, c)
}

func TestProjectSingleRowIsOrigin(t *testing.T) {
	x := mat.NewDense(1, 3, []float64{1, 2, 3})
	out, err := PCAProjector{}.Project(x)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.At(0, 0))
	assert.Equal(t, 0.0, out.At(0, 1))
}

func TestProjectPreservesRowCount(t *testing.T) {
	x := mat.NewDense(5, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
		1, 1, 1, 1,
	})
	out, err := PCAProjector{}.Project(x)
	require.NoError(t, err)
	r, c := out.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 2, c)
}

func TestNewAdapterReturnsPCAProjector(t *testing.T) {
	adapter := NewAdapter()
	_, ok := adapter.(PCAProjector)
	assert.True(t, ok)
}
