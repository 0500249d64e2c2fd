package tensorgraph

import (
	"fmt"
	"sync/atomic"
)

// DType identifies the element type of a tensor.
type DType string

// Supported element types.
const (
	Float32 DType = "float32"
	Int32   DType = "int32"
	Bool    DType = "bool"
)

// tensorIDCounter issues process-unique tensor identifiers.
var tensorIDCounter atomic.Int64

// Tensor is a dense n-dimensional value flowing through the graph.
//
// Tensors are created by operations (or supplied by the caller) and
// disposed by the lifecycle tracker once their last consumer has run.
// A disposed tensor must never be read again; Data() panics if it is.
type Tensor struct {
	id       int64
	shape    []int
	dtype    DType
	data     []float32
	disposed bool
}

// NewTensor creates a tensor with the given shape and data.
// Panics if the data length does not match the shape's element count.
func NewTensor(shape []int, data []float32) *Tensor {
	n := numElements(shape)
	if len(data) != n {
		panic(fmt.Sprintf("tensorgraph: shape %v requires %d elements, got %d", shape, n, len(data)))
	}
	return &Tensor{
		id:    tensorIDCounter.Add(1),
		shape: append([]int(nil), shape...),
		dtype: Float32,
		data:  data,
	}
}

// Scalar creates a rank-0 tensor holding a single value.
func Scalar(v float32) *Tensor {
	return NewTensor(nil, []float32{v})
}

// NewBoolTensor creates a boolean tensor (elements are 1 or 0).
func NewBoolTensor(shape []int, data []float32) *Tensor {
	t := NewTensor(shape, data)
	t.dtype = Bool
	return t
}

// BoolScalar creates a rank-0 boolean tensor (1 = true, 0 = false).
func BoolScalar(v bool) *Tensor {
	t := Scalar(0)
	if v {
		t.data[0] = 1
	}
	t.dtype = Bool
	return t
}

// ID returns the unique identifier of this tensor.
func (t *Tensor) ID() int64 { return t.id }

// Shape returns the tensor's shape. The returned slice must not be modified.
func (t *Tensor) Shape() []int { return t.shape }

// DType returns the element type.
func (t *Tensor) DType() DType { return t.dtype }

// Size returns the number of elements.
func (t *Tensor) Size() int { return numElements(t.shape) }

// Data returns the backing slice.
// Panics if the tensor has been disposed.
func (t *Tensor) Data() []float32 {
	if t.disposed {
		panic(fmt.Sprintf("tensorgraph: read of disposed tensor %d", t.id))
	}
	return t.data
}

// Bool interprets a rank-0 tensor as a boolean predicate.
func (t *Tensor) Bool() bool {
	return t.Data()[0] != 0
}

// Clone returns a deep copy with a fresh identity.
func (t *Tensor) Clone() *Tensor {
	c := NewTensor(t.shape, append([]float32(nil), t.Data()...))
	c.dtype = t.dtype
	return c
}

// Disposed reports whether Dispose has been called.
func (t *Tensor) Disposed() bool { return t.disposed }

// Dispose releases the tensor's storage.
//
// Disposing twice is a programming error and panics: the lifecycle
// tracker guarantees by construction that each tensor is retired at
// most once, so a double dispose indicates corrupted accounting.
func (t *Tensor) Dispose() {
	if t.disposed {
		panic(fmt.Sprintf("tensorgraph: double dispose of tensor %d", t.id))
	}
	t.disposed = true
	t.data = nil
}

// numElements returns the element count for a shape.
// A nil shape is a scalar (one element).
func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// shapeMatches reports whether got satisfies the declared shape want.
// A -1 dimension in want is a wildcard matching any size.
func shapeMatches(want, got []int) bool {
	if len(want) != len(got) {
		return false
	}
	for i, d := range want {
		if d != -1 && d != got[i] {
			return false
		}
	}
	return true
}

// shapeString renders a shape for error messages.
func shapeString(shape []int) string {
	return fmt.Sprintf("%v", shape)
}
