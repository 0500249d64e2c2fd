package tensorgraph

import "context"

// Test op kinds used across internal tests. The real built-in kernels
// live in the ops package, which this package cannot import; the specs
// here are deliberately minimal.

// passthroughOp forwards its first input cloned, or a fresh scalar
// when it has no inputs.
func passthroughOp(_ context.Context, _ *Node, inputs []*Tensor, _ *ExecContext) (OpResult, error) {
	if len(inputs) == 0 {
		return Ready(Scalar(0)), nil
	}
	return Ready(inputs[0].Clone()), nil
}

// testRegistry builds a registry with the op kinds internal tests use.
func testRegistry() *OpRegistry {
	reg := NewOpRegistry()
	reg.Register(OpSpec{Kind: "Placeholder", Fn: passthroughOp})
	reg.Register(OpSpec{Kind: "Op", Fn: passthroughOp})
	reg.Register(OpSpec{Kind: "Binary", Fn: passthroughOp, MinInputs: 2})
	reg.Register(OpSpec{Kind: "Dyn", Fn: passthroughOp, Dynamic: true, MinInputs: 1})
	reg.Register(OpSpec{Kind: "Enter", Category: CategoryEnter, MinInputs: 1})
	reg.Register(OpSpec{Kind: "Exit", Category: CategoryExit, MinInputs: 1})
	reg.Register(OpSpec{Kind: "Merge", Category: CategoryMerge, MinInputs: 1})
	reg.Register(OpSpec{Kind: "Switch", Category: CategorySwitch, MinInputs: 2})
	reg.Register(OpSpec{Kind: "NextIteration", Category: CategoryNextIteration, MinInputs: 1})
	reg.Register(OpSpec{Kind: "LoopCond", Category: CategoryLoopCond, MinInputs: 1})
	return reg
}

// nameSet turns names into the set form analysis helpers take.
func nameSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// orderNames extracts node names from a plan order.
func orderNames(nodes []*Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}

// mustNodes resolves names on a graph, panicking on unknown names.
// Test setup only.
func mustNodes(g *Graph, names ...string) []*Node {
	nodes := make([]*Node, len(names))
	for i, name := range names {
		n, ok := g.Node(name)
		if !ok {
			panic("unknown test node: " + name)
		}
		nodes[i] = n
	}
	return nodes
}
