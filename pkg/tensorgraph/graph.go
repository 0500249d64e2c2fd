package tensorgraph

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/randalmurphal/tensorgraph/pkg/tensorgraph/attr"
)

// Builder is a mutable builder for creating graphs.
// Use NewBuilder to create one, then chain AddNode and the Set*
// designation calls to define the graph.
//
// Builder is NOT thread-safe during building. Use a single goroutine
// to construct the graph, then call Build() to create an immutable
// Graph that can be safely shared across executors.
//
// Example:
//
//	graph, err := tensorgraph.NewBuilder(ops.Default()).
//	    AddNode("x", "Placeholder", nil).
//	    AddNode("h", "Relu", nil, tensorgraph.FromNode("x")).
//	    AddNode("y", "Add", nil, tensorgraph.FromNode("h"), tensorgraph.FromNode("x")).
//	    SetInputs("x").
//	    SetOutputs("y").
//	    Build()
type Builder struct {
	mu       sync.Mutex
	registry *OpRegistry
	nodes    map[string]*Node
	order    []*Node

	inputs       []string
	outputs      []string
	weights      []string
	initializers []string
	functions    map[string]*Graph
}

// NewBuilder creates a graph builder validating against the given
// operation registry. Panics if registry is nil.
func NewBuilder(registry *OpRegistry) *Builder {
	if registry == nil {
		panic("tensorgraph: op registry cannot be nil")
	}
	return &Builder{
		registry:  registry,
		nodes:     make(map[string]*Node),
		functions: make(map[string]*Graph),
	}
}

// AddNode adds a named node to the graph.
// Returns the builder for method chaining.
//
// Panics if:
//   - name is empty or contains whitespace
//   - name already exists in the graph
//
// Input references and the op kind are validated at Build() time,
// so nodes may be added in any order.
func (b *Builder) AddNode(name, kind string, attrs map[string]any, inputs ...InputRef) *Builder {
	if name == "" {
		panic("tensorgraph: node name cannot be empty")
	}
	if strings.ContainsAny(name, " \t\n\r") {
		panic("tensorgraph: node name cannot contain whitespace")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.nodes[name]; exists {
		panic(fmt.Sprintf("tensorgraph: duplicate node name: %s", name))
	}

	n := &Node{
		Name:   name,
		Kind:   kind,
		Inputs: append([]InputRef(nil), inputs...),
		Attrs:  attr.New(attrs),
		order:  len(b.order),
	}
	b.nodes[name] = n
	b.order = append(b.order, n)
	return b
}

// SetInputs designates the graph's input (placeholder) nodes.
func (b *Builder) SetInputs(names ...string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputs = append([]string(nil), names...)
	return b
}

// SetOutputs designates the graph's default output nodes.
func (b *Builder) SetOutputs(names ...string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outputs = append([]string(nil), names...)
	return b
}

// SetWeights designates nodes whose values are supplied once at
// executor construction and stay live for the executor's lifetime.
func (b *Builder) SetWeights(names ...string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.weights = append([]string(nil), names...)
	return b
}

// SetInitializers designates nodes that run once before normal nodes.
func (b *Builder) SetInitializers(names ...string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initializers = append([]string(nil), names...)
	return b
}

// AddFunction attaches a named sub-graph. Functions share the parent
// executor's weight table and function table by reference; they are
// invoked recursively through their own executors.
func (b *Builder) AddFunction(name string, fn *Graph) *Builder {
	if fn == nil {
		panic("tensorgraph: function graph cannot be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.functions[name] = fn
	return b
}

// Build validates the graph and creates an immutable Graph.
// Returns an error if validation fails. Multiple errors are joined.
//
// Validation checks:
//  1. Every node's op kind is registered
//  2. Every input reference resolves to a node in the graph
//  3. Nodes meet their op's minimum input count
//  4. Every designated input/output/weight/initializer name exists
func (b *Builder) Build() (*Graph, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error

	for _, n := range b.order {
		spec, ok := b.registry.Lookup(n.Kind)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: node %s has kind %q", ErrUnknownOpKind, n.Name, n.Kind))
			continue
		}
		n.Category = spec.Category
		n.Dynamic = spec.Dynamic

		if data := n.dataInputs(); spec.MinInputs > 0 && len(data) < spec.MinInputs {
			errs = append(errs, fmt.Errorf("node %s (%s): needs at least %d inputs, has %d",
				n.Name, n.Kind, spec.MinInputs, len(data)))
		}
		for _, ref := range n.Inputs {
			if _, exists := b.nodes[ref.Node]; !exists {
				errs = append(errs, fmt.Errorf("%w: node %s references %q", ErrUnknownNode, n.Name, ref.Node))
			}
		}
	}

	resolve := func(role string, names []string) []*Node {
		nodes := make([]*Node, 0, len(names))
		for _, name := range names {
			n, exists := b.nodes[name]
			if !exists {
				errs = append(errs, fmt.Errorf("%w: %s %q", ErrUnknownNode, role, name))
				continue
			}
			nodes = append(nodes, n)
		}
		return nodes
	}

	inputs := resolve("input", b.inputs)
	outputs := resolve("output", b.outputs)
	weights := resolve("weight", b.weights)
	initializers := resolve("initializer", b.initializers)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// Wire children adjacency in declaration order.
	for _, n := range b.order {
		seen := make(map[string]bool, len(n.Inputs))
		for _, ref := range n.Inputs {
			if seen[ref.Node] {
				continue
			}
			seen[ref.Node] = true
			parent := b.nodes[ref.Node]
			parent.children = append(parent.children, n)
		}
	}

	hasControlFlow := false
	for _, n := range b.order {
		if n.IsControlFlow() || n.Dynamic {
			hasControlFlow = true
			break
		}
	}

	return &Graph{
		nodes:          b.nodes,
		order:          b.order,
		inputs:         inputs,
		outputs:        outputs,
		weights:        weights,
		initializers:   initializers,
		functions:      b.functions,
		registry:       b.registry,
		hasControlFlow: hasControlFlow,
	}, nil
}

// Graph is an immutable computation graph.
// It is created by calling Build() on a Builder and is safe for
// concurrent use by any number of executors.
type Graph struct {
	nodes        map[string]*Node
	order        []*Node
	inputs       []*Node
	outputs      []*Node
	weights      []*Node
	initializers []*Node
	functions    map[string]*Graph
	registry     *OpRegistry

	hasControlFlow bool
}

// Node returns the node with the given name and whether it exists.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns all nodes in declaration order.
// The returned slice must not be modified.
func (g *Graph) Nodes() []*Node { return g.order }

// Inputs returns the designated input nodes.
func (g *Graph) Inputs() []*Node { return g.inputs }

// Outputs returns the designated default output nodes.
func (g *Graph) Outputs() []*Node { return g.outputs }

// Weights returns the designated weight nodes.
func (g *Graph) Weights() []*Node { return g.weights }

// Initializers returns the designated initializer nodes.
func (g *Graph) Initializers() []*Node { return g.initializers }

// Function returns the named sub-graph and whether it exists.
func (g *Graph) Function(name string) (*Graph, bool) {
	fn, ok := g.functions[name]
	return fn, ok
}

// HasControlFlow reports whether the graph contains any control-flow
// or dynamic node. Such graphs cannot take the static path.
func (g *Graph) HasControlFlow() bool { return g.hasControlFlow }

// Registry returns the op registry the graph was built against.
func (g *Graph) Registry() *OpRegistry { return g.registry }

// weightSet returns the weight node names as a set.
func (g *Graph) weightSet() map[string]bool {
	set := make(map[string]bool, len(g.weights))
	for _, n := range g.weights {
		set[n.Name] = true
	}
	return set
}
