package tensorgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewTensor_ShapeAndData tests basic tensor construction.
func TestNewTensor_ShapeAndData(t *testing.T) {
	tensor := NewTensor([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6})

	assert.Equal(t, []int{2, 3}, tensor.Shape())
	assert.Equal(t, Float32, tensor.DType())
	assert.Equal(t, 6, tensor.Size())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Data())
	assert.False(t, tensor.Disposed())
}

// TestNewTensor_UniqueIDs tests that every tensor gets a distinct id.
func TestNewTensor_UniqueIDs(t *testing.T) {
	a := Scalar(1)
	b := Scalar(1)

	assert.NotEqual(t, a.ID(), b.ID())
}

// TestScalar tests scalar construction.
func TestScalar(t *testing.T) {
	s := Scalar(42)

	assert.Empty(t, s.Shape())
	assert.Equal(t, 1, s.Size())
	assert.Equal(t, []float32{42}, s.Data())
}

// TestBoolScalar tests boolean scalar construction and Bool().
func TestBoolScalar(t *testing.T) {
	assert.True(t, BoolScalar(true).Bool())
	assert.False(t, BoolScalar(false).Bool())
	assert.Equal(t, Bool, BoolScalar(true).DType())
}

// TestTensor_Clone tests that clones are independent.
func TestTensor_Clone(t *testing.T) {
	orig := NewTensor([]int{2}, []float32{1, 2})
	clone := orig.Clone()

	require.NotEqual(t, orig.ID(), clone.ID())
	assert.Equal(t, orig.Data(), clone.Data())

	clone.Data()[0] = 99
	assert.Equal(t, float32(1), orig.Data()[0])

	orig.Dispose()
	assert.False(t, clone.Disposed())
	assert.Equal(t, []float32{99, 2}, clone.Data())
}

// TestTensor_Dispose tests disposal state transitions.
func TestTensor_Dispose(t *testing.T) {
	tensor := Scalar(1)
	tensor.Dispose()

	assert.True(t, tensor.Disposed())
}

// TestTensor_DoubleDisposePanics tests that disposing twice panics.
func TestTensor_DoubleDisposePanics(t *testing.T) {
	tensor := Scalar(1)
	tensor.Dispose()

	assert.Panics(t, func() { tensor.Dispose() })
}

// TestTensor_DataAfterDisposePanics tests use-after-dispose detection.
func TestTensor_DataAfterDisposePanics(t *testing.T) {
	tensor := Scalar(1)
	tensor.Dispose()

	assert.Panics(t, func() { tensor.Data() })
}

// TestShapeMatches tests shape constraint checking with wildcards.
func TestShapeMatches(t *testing.T) {
	tests := []struct {
		name  string
		want  []int
		got   []int
		match bool
	}{
		{"exact", []int{2, 3}, []int{2, 3}, true},
		{"wildcard dim", []int{-1, 3}, []int{7, 3}, true},
		{"all wildcards", []int{-1, -1}, []int{1, 9}, true},
		{"wrong dim", []int{2, 3}, []int{2, 4}, false},
		{"wrong rank", []int{2, 3}, []int{2, 3, 1}, false},
		{"scalar", nil, nil, true},
		{"scalar vs vector", nil, []int{1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, shapeMatches(tt.want, tt.got))
		})
	}
}

// TestShapeString tests the diagnostic shape rendering.
func TestShapeString(t *testing.T) {
	assert.Equal(t, "[2 3]", shapeString([]int{2, 3}))
	assert.Equal(t, "[]", shapeString(nil))
}
