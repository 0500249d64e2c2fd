package ops

import (
	"context"
	"fmt"

	tg "github.com/randalmurphal/tensorgraph/pkg/tensorgraph"
)

// placeholderOp should never execute: placeholder values are supplied
// by the caller and pre-populated before scheduling. Reaching the
// kernel means the input was neither supplied nor caught by analysis.
func placeholderOp(_ context.Context, node *tg.Node, _ []*tg.Tensor, _ *tg.ExecContext) (tg.OpResult, error) {
	return tg.OpResult{}, fmt.Errorf("placeholder %q has no value", node.Name)
}

// constOp materializes an inline constant from node attributes:
// "value" holds the elements, "shape" the optional shape (scalar when
// absent).
func constOp(_ context.Context, node *tg.Node, _ []*tg.Tensor, _ *tg.ExecContext) (tg.OpResult, error) {
	value := node.Attrs.Floats("value", nil)
	if value == nil {
		return tg.OpResult{}, fmt.Errorf("const %q has no value attribute", node.Name)
	}
	shape := node.Attrs.Shape("shape")
	if shape == nil && len(value) > 1 {
		shape = []int{len(value)}
	}
	return tg.Ready(tg.NewTensor(shape, append([]float32(nil), value...))), nil
}

// identityOp forwards its input as a fresh tensor. Cloning keeps the
// lifecycle accounting single-owner: the input and the output retire
// independently.
func identityOp(_ context.Context, _ *tg.Node, inputs []*tg.Tensor, _ *tg.ExecContext) (tg.OpResult, error) {
	return tg.Ready(inputs[0].Clone()), nil
}

// reshapeOp reinterprets the input under the shape attribute.
// A single -1 dimension is inferred from the element count.
func reshapeOp(_ context.Context, node *tg.Node, inputs []*tg.Tensor, _ *tg.ExecContext) (tg.OpResult, error) {
	in := inputs[0]
	shape := node.Attrs.Shape("shape")
	if shape == nil {
		return tg.OpResult{}, fmt.Errorf("reshape %q has no shape attribute", node.Name)
	}

	known := 1
	infer := -1
	for i, d := range shape {
		if d == -1 {
			if infer != -1 {
				return tg.OpResult{}, fmt.Errorf("reshape %q: more than one -1 in shape %v", node.Name, shape)
			}
			infer = i
			continue
		}
		known *= d
	}
	resolved := append([]int(nil), shape...)
	if infer != -1 {
		if known == 0 || in.Size()%known != 0 {
			return tg.OpResult{}, fmt.Errorf("reshape %q: cannot infer -1 in %v for %d elements", node.Name, shape, in.Size())
		}
		resolved[infer] = in.Size() / known
	} else if known != in.Size() {
		return tg.OpResult{}, fmt.Errorf("reshape %q: shape %v does not hold %d elements", node.Name, shape, in.Size())
	}

	return tg.Ready(tg.NewTensor(resolved, append([]float32(nil), in.Data()...))), nil
}

// concatOp concatenates rank-1 inputs.
func concatOp(_ context.Context, node *tg.Node, inputs []*tg.Tensor, _ *tg.ExecContext) (tg.OpResult, error) {
	total := 0
	for _, in := range inputs {
		if len(in.Shape()) > 1 {
			return tg.OpResult{}, fmt.Errorf("concat %q: only rank-1 inputs supported, got %v", node.Name, in.Shape())
		}
		total += in.Size()
	}
	out := make([]float32, 0, total)
	for _, in := range inputs {
		out = append(out, in.Data()...)
	}
	return tg.Ready(tg.NewTensor([]int{total}, out)), nil
}

// nonZeroOp returns the indices of non-zero elements of a rank-1
// input. The output shape depends on the data, which is what makes
// the op dynamic.
func nonZeroOp(_ context.Context, _ *tg.Node, inputs []*tg.Tensor, _ *tg.ExecContext) (tg.OpResult, error) {
	in := inputs[0]
	var out []float32
	for i, v := range in.Data() {
		if v != 0 {
			out = append(out, float32(i))
		}
	}
	return tg.Ready(tg.NewTensor([]int{len(out)}, out)), nil
}
