package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/randalmurphal/tensorgraph/pkg/tensorgraph"
	"github.com/randalmurphal/tensorgraph/pkg/tensorgraph/attr"
)

// run invokes a registered kind's kernel directly.
func run(t *testing.T, kind string, attrs map[string]any, inputs ...*tg.Tensor) []*tg.Tensor {
	t.Helper()
	res, err := runErr(kind, attrs, inputs...)
	require.NoError(t, err)
	return res
}

func runErr(kind string, attrs map[string]any, inputs ...*tg.Tensor) ([]*tg.Tensor, error) {
	spec := New().MustLookup(kind)
	node := &tg.Node{Name: "test", Kind: kind, Attrs: attr.New(attrs)}
	res, err := spec.Fn(context.Background(), node, inputs, nil)
	if err != nil {
		return nil, err
	}
	return res.Tensors, nil
}

// TestElementwiseUnary tests Neg, Relu, and Sigmoid.
func TestElementwiseUnary(t *testing.T) {
	in := tg.NewTensor([]int{4}, []float32{-2, -0.5, 0, 3})

	assert.Equal(t, []float32{2, 0.5, 0, -3}, run(t, "Neg", nil, in)[0].Data())
	assert.Equal(t, []float32{0, 0, 0, 3}, run(t, "Relu", nil, in)[0].Data())

	sig := run(t, "Sigmoid", nil, tg.Scalar(0))[0]
	assert.InDelta(t, 0.5, sig.Data()[0], 1e-6)
}

// TestElementwiseBinary tests the arithmetic kinds.
func TestElementwiseBinary(t *testing.T) {
	a := tg.NewTensor([]int{3}, []float32{1, 2, 3})
	b := tg.NewTensor([]int{3}, []float32{4, 5, 6})

	assert.Equal(t, []float32{5, 7, 9}, run(t, "Add", nil, a, b)[0].Data())
	assert.Equal(t, []float32{-3, -3, -3}, run(t, "Sub", nil, a, b)[0].Data())
	assert.Equal(t, []float32{4, 10, 18}, run(t, "Mul", nil, a, b)[0].Data())
	assert.Equal(t, []float32{4, 2.5, 2}, run(t, "Div", nil, b, a)[0].Data())
}

// TestBinary_ScalarBroadcast tests size-1 broadcasting on both sides.
func TestBinary_ScalarBroadcast(t *testing.T) {
	v := tg.NewTensor([]int{3}, []float32{1, 2, 3})
	s := tg.Scalar(10)

	left := run(t, "Add", nil, s, v)[0]
	assert.Equal(t, []float32{11, 12, 13}, left.Data())
	assert.Equal(t, []int{3}, left.Shape())

	right := run(t, "Mul", nil, v, s)[0]
	assert.Equal(t, []float32{10, 20, 30}, right.Data())
}

// TestBinary_IncompatibleShapes tests the shape error path.
func TestBinary_IncompatibleShapes(t *testing.T) {
	a := tg.NewTensor([]int{2}, []float32{1, 2})
	b := tg.NewTensor([]int{3}, []float32{1, 2, 3})

	_, err := runErr("Add", nil, a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible shapes")
}

// TestCompare tests Less and Greater producing bool tensors.
func TestCompare(t *testing.T) {
	a := tg.NewTensor([]int{3}, []float32{1, 5, 3})
	b := tg.NewTensor([]int{3}, []float32{2, 2, 3})

	less := run(t, "Less", nil, a, b)[0]
	assert.Equal(t, tg.Bool, less.DType())
	assert.Equal(t, []float32{1, 0, 0}, less.Data())

	greater := run(t, "Greater", nil, a, b)[0]
	assert.Equal(t, []float32{0, 1, 0}, greater.Data())

	// Scalar comparison drives loop conditions.
	assert.True(t, run(t, "Less", nil, tg.Scalar(1), tg.Scalar(2))[0].Bool())
	assert.False(t, run(t, "Less", nil, tg.Scalar(3), tg.Scalar(2))[0].Bool())
}

// TestMatMul tests 2x3 * 3x2 multiplication.
func TestMatMul(t *testing.T) {
	a := tg.NewTensor([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	b := tg.NewTensor([]int{3, 2}, []float32{7, 8, 9, 10, 11, 12})

	out := run(t, "MatMul", nil, a, b)[0]

	assert.Equal(t, []int{2, 2}, out.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, out.Data())
}

// TestMatMul_Errors tests rank and inner-dimension validation.
func TestMatMul_Errors(t *testing.T) {
	mat := tg.NewTensor([]int{2, 2}, []float32{1, 2, 3, 4})

	_, err := runErr("MatMul", nil, mat, tg.NewTensor([]int{4}, []float32{1, 2, 3, 4}))
	assert.ErrorContains(t, err, "rank-2")

	_, err = runErr("MatMul", nil, mat, tg.NewTensor([]int{3, 2}, make([]float32, 6)))
	assert.ErrorContains(t, err, "inner dimensions")
}

// TestSum tests the scalar reduction.
func TestSum(t *testing.T) {
	out := run(t, "Sum", nil, tg.NewTensor([]int{2, 2}, []float32{1, 2, 3, 4}))[0]

	assert.Empty(t, out.Shape())
	assert.Equal(t, float32(10), out.Data()[0])
}
