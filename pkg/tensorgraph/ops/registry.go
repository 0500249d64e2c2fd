package ops

import (
	"sync"

	tg "github.com/randalmurphal/tensorgraph/pkg/tensorgraph"
)

var (
	defaultRegistry     *tg.OpRegistry
	defaultRegistryOnce sync.Once
)

// Default returns the shared registry of built-in operations.
// The registry is built once and may be extended by callers;
// registering a kind that already exists replaces it.
func Default() *tg.OpRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = tg.NewOpRegistry()
		registerBuiltins(defaultRegistry)
	})
	return defaultRegistry
}

// New returns a fresh registry populated with the built-in operations,
// isolated from the shared Default registry.
func New() *tg.OpRegistry {
	reg := tg.NewOpRegistry()
	registerBuiltins(reg)
	return reg
}

func registerBuiltins(reg *tg.OpRegistry) {
	// Sources.
	reg.Register(tg.OpSpec{Kind: "Placeholder", Fn: placeholderOp})
	reg.Register(tg.OpSpec{Kind: "Const", Fn: constOp})

	// Element-wise math.
	reg.Register(tg.OpSpec{Kind: "Identity", Fn: identityOp, MinInputs: 1})
	reg.Register(tg.OpSpec{Kind: "Neg", Fn: unaryOp(func(x float32) float32 { return -x }), MinInputs: 1})
	reg.Register(tg.OpSpec{Kind: "Relu", Fn: reluOp, MinInputs: 1})
	reg.Register(tg.OpSpec{Kind: "Sigmoid", Fn: sigmoidOp, MinInputs: 1})
	reg.Register(tg.OpSpec{Kind: "Add", Fn: binaryOp(func(a, b float32) float32 { return a + b }), MinInputs: 2})
	reg.Register(tg.OpSpec{Kind: "Sub", Fn: binaryOp(func(a, b float32) float32 { return a - b }), MinInputs: 2})
	reg.Register(tg.OpSpec{Kind: "Mul", Fn: binaryOp(func(a, b float32) float32 { return a * b }), MinInputs: 2})
	reg.Register(tg.OpSpec{Kind: "Div", Fn: binaryOp(func(a, b float32) float32 { return a / b }), MinInputs: 2})

	// Comparisons produce bool tensors (1 = true).
	reg.Register(tg.OpSpec{Kind: "Less", Fn: compareOp(func(a, b float32) bool { return a < b }), MinInputs: 2})
	reg.Register(tg.OpSpec{Kind: "Greater", Fn: compareOp(func(a, b float32) bool { return a > b }), MinInputs: 2})

	// Linear algebra and reductions.
	reg.Register(tg.OpSpec{Kind: "MatMul", Fn: matMulOp, MinInputs: 2})
	reg.Register(tg.OpSpec{Kind: "Sum", Fn: sumOp, MinInputs: 1})

	// Array manipulation.
	reg.Register(tg.OpSpec{Kind: "Reshape", Fn: reshapeOp, MinInputs: 1})
	reg.Register(tg.OpSpec{Kind: "Concat", Fn: concatOp, MinInputs: 1})

	// NonZero's output shape depends on the data, so it can only run
	// on the dynamic path.
	reg.Register(tg.OpSpec{Kind: "NonZero", Fn: nonZeroOp, Dynamic: true, MinInputs: 1})

	// Control-flow kinds carry no kernel; the dynamic scheduler
	// interprets them.
	reg.Register(tg.OpSpec{Kind: "Enter", Category: tg.CategoryEnter, MinInputs: 1})
	reg.Register(tg.OpSpec{Kind: "Exit", Category: tg.CategoryExit, MinInputs: 1})
	reg.Register(tg.OpSpec{Kind: "Merge", Category: tg.CategoryMerge, MinInputs: 1})
	reg.Register(tg.OpSpec{Kind: "Switch", Category: tg.CategorySwitch, MinInputs: 2})
	reg.Register(tg.OpSpec{Kind: "NextIteration", Category: tg.CategoryNextIteration, MinInputs: 1})
	reg.Register(tg.OpSpec{Kind: "LoopCond", Category: tg.CategoryLoopCond, MinInputs: 1})
}
