package tensorgraph

import "github.com/randalmurphal/tensorgraph/pkg/tensorgraph/attr"

// InputRef identifies one input of a node: the producing node's name,
// which of its output slots to read, and whether the edge is a pure
// ordering constraint carrying no tensor.
type InputRef struct {
	Node    string
	Slot    int
	Control bool
}

// FromNode references output slot 0 of the named node.
func FromNode(name string) InputRef {
	return InputRef{Node: name}
}

// FromSlot references a specific output slot of the named node.
func FromSlot(name string, slot int) InputRef {
	return InputRef{Node: name, Slot: slot}
}

// ControlDep references the named node as a control dependency:
// the consumer waits for it but receives no tensor from it.
func ControlDep(name string) InputRef {
	return InputRef{Node: name, Control: true}
}

// Node is a single operation in the graph. Nodes are constructed by
// the Builder and immutable thereafter; the executor never mutates
// them.
type Node struct {
	// Name uniquely identifies the node within its graph.
	Name string
	// Kind is the operation kind, resolved against an OpRegistry.
	Kind string
	// Inputs are the declared inputs in order.
	Inputs []InputRef
	// Attrs carries operation-specific parameters.
	Attrs attr.Attrs
	// Category is the control-flow classification from the op spec.
	Category OpCategory
	// Dynamic is true if the op's output shape is data-dependent.
	Dynamic bool

	children []*Node
	order    int
}

// Children returns the nodes that consume any of this node's outputs,
// in their declaration order. The returned slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// IsControlFlow reports whether the node belongs to a control-flow
// category (Enter, Exit, Merge, Switch, NextIteration, LoopCond).
func (n *Node) IsControlFlow() bool { return n.Category != CategoryNone }

// dataInputs returns the declared inputs excluding control dependencies.
func (n *Node) dataInputs() []InputRef {
	refs := make([]InputRef, 0, len(n.Inputs))
	for _, ref := range n.Inputs {
		if !ref.Control {
			refs = append(refs, ref)
		}
	}
	return refs
}
