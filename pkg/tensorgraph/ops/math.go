package ops

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	tg "github.com/randalmurphal/tensorgraph/pkg/tensorgraph"
)

// unaryOp lifts an element-wise function to a kernel.
func unaryOp(fn func(float32) float32) tg.OpFunc {
	return func(_ context.Context, _ *tg.Node, inputs []*tg.Tensor, _ *tg.ExecContext) (tg.OpResult, error) {
		in := inputs[0]
		out := make([]float32, in.Size())
		for i, v := range in.Data() {
			out[i] = fn(v)
		}
		return tg.Ready(tg.NewTensor(in.Shape(), out)), nil
	}
}

func reluOp(ctx context.Context, node *tg.Node, inputs []*tg.Tensor, ec *tg.ExecContext) (tg.OpResult, error) {
	return unaryOp(func(x float32) float32 {
		if x > 0 {
			return x
		}
		return 0
	})(ctx, node, inputs, ec)
}

func sigmoidOp(ctx context.Context, node *tg.Node, inputs []*tg.Tensor, ec *tg.ExecContext) (tg.OpResult, error) {
	return unaryOp(func(x float32) float32 {
		return float32(1 / (1 + math.Exp(-float64(x))))
	})(ctx, node, inputs, ec)
}

// binaryOp lifts an element-wise function to a kernel with scalar
// broadcasting on either side.
func binaryOp(fn func(a, b float32) float32) tg.OpFunc {
	return func(_ context.Context, node *tg.Node, inputs []*tg.Tensor, _ *tg.ExecContext) (tg.OpResult, error) {
		a, b := inputs[0], inputs[1]
		shape, err := broadcastShape(node, a, b)
		if err != nil {
			return tg.OpResult{}, err
		}
		out := make([]float32, max(a.Size(), b.Size()))
		for i := range out {
			out[i] = fn(at(a, i), at(b, i))
		}
		return tg.Ready(tg.NewTensor(shape, out)), nil
	}
}

// compareOp lifts an element-wise predicate to a kernel producing a
// bool tensor, with scalar broadcasting.
func compareOp(fn func(a, b float32) bool) tg.OpFunc {
	return func(_ context.Context, node *tg.Node, inputs []*tg.Tensor, _ *tg.ExecContext) (tg.OpResult, error) {
		a, b := inputs[0], inputs[1]
		shape, err := broadcastShape(node, a, b)
		if err != nil {
			return tg.OpResult{}, err
		}
		out := make([]float32, max(a.Size(), b.Size()))
		for i := range out {
			if fn(at(a, i), at(b, i)) {
				out[i] = 1
			}
		}
		return tg.Ready(tg.NewBoolTensor(shape, out)), nil
	}
}

// at reads element i with scalar broadcasting.
func at(t *tg.Tensor, i int) float32 {
	if t.Size() == 1 {
		return t.Data()[0]
	}
	return t.Data()[i]
}

// broadcastShape returns the output shape for a binary op, allowing a
// rank-0/size-1 tensor to broadcast against any shape.
func broadcastShape(node *tg.Node, a, b *tg.Tensor) ([]int, error) {
	switch {
	case a.Size() == b.Size() && sameShape(a.Shape(), b.Shape()):
		return a.Shape(), nil
	case a.Size() == 1:
		return b.Shape(), nil
	case b.Size() == 1:
		return a.Shape(), nil
	default:
		return nil, fmt.Errorf("%s: incompatible shapes %v and %v", node.Kind, a.Shape(), b.Shape())
	}
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// matMulOp multiplies two rank-2 tensors via gonum.
func matMulOp(_ context.Context, _ *tg.Node, inputs []*tg.Tensor, _ *tg.ExecContext) (tg.OpResult, error) {
	a, b := inputs[0], inputs[1]
	if len(a.Shape()) != 2 || len(b.Shape()) != 2 {
		return tg.OpResult{}, fmt.Errorf("MatMul: expects rank-2 tensors, got %v and %v", a.Shape(), b.Shape())
	}
	m, k := a.Shape()[0], a.Shape()[1]
	k2, n := b.Shape()[0], b.Shape()[1]
	if k != k2 {
		return tg.OpResult{}, fmt.Errorf("MatMul: inner dimensions disagree: %v x %v", a.Shape(), b.Shape())
	}

	var c mat.Dense
	c.Mul(asDense(m, k, a), asDense(k2, n, b))

	out := make([]float32, m*n)
	raw := c.RawMatrix()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			out[i*n+j] = float32(raw.Data[i*raw.Stride+j])
		}
	}
	return tg.Ready(tg.NewTensor([]int{m, n}, out)), nil
}

// asDense views a rank-2 tensor as a gonum dense matrix.
func asDense(rows, cols int, t *tg.Tensor) *mat.Dense {
	data := make([]float64, t.Size())
	for i, v := range t.Data() {
		data[i] = float64(v)
	}
	return mat.NewDense(rows, cols, data)
}

// sumOp reduces a tensor to the scalar sum of its elements.
func sumOp(_ context.Context, _ *tg.Node, inputs []*tg.Tensor, _ *tg.ExecContext) (tg.OpResult, error) {
	in := inputs[0]
	data := make([]float64, in.Size())
	for i, v := range in.Data() {
		data[i] = float64(v)
	}
	return tg.Ready(tg.Scalar(float32(floats.Sum(data)))), nil
}
