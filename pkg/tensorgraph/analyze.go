package tensorgraph

import "sort"

// subgraphInfo is the result of backward reachability analysis for one
// (inputs, outputs) request.
type subgraphInfo struct {
	// needed is the minimal set of node names that must run to compute
	// the requested outputs from the supplied inputs.
	needed map[string]bool
	// missing lists required input names that were not supplied and
	// are not weights or initializers, sorted for stable diagnostics.
	missing []string
	// dynamicNode is the first dynamic op on the needed set, or nil.
	// Its presence blocks the static path.
	dynamicNode *Node
	// alternativeInputs are the dynamic node's consumers: supplying
	// their values as inputs would let the request bypass the dynamic
	// node. Purely diagnostic.
	alternativeInputs []string
}

// analyzeSubgraph computes the execution subgraph for a request.
//
// It walks backward from the requested outputs over each node's
// declared inputs, stopping at supplied inputs, weights, and
// initializers. Missing inputs are reported, never raised: the static
// path treats them as fatal while the dynamic path proceeds anyway,
// since run-time control flow can resolve values static analysis
// cannot predict.
func analyzeSubgraph(g *Graph, supplied map[string]bool, outputs []*Node) subgraphInfo {
	info := subgraphInfo{needed: make(map[string]bool)}

	weights := g.weightSet()
	initializers := make(map[string]bool, len(g.initializers))
	for _, n := range g.initializers {
		initializers[n.Name] = true
	}
	declaredInputs := make(map[string]bool, len(g.inputs))
	for _, n := range g.inputs {
		declaredInputs[n.Name] = true
	}

	missing := make(map[string]bool)
	stack := make([]*Node, 0, len(outputs))
	for _, n := range outputs {
		stack = append(stack, n)
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if info.needed[n.Name] {
			continue
		}
		info.needed[n.Name] = true

		if supplied[n.Name] || weights[n.Name] {
			continue
		}
		if initializers[n.Name] && len(n.Inputs) == 0 {
			continue
		}
		if declaredInputs[n.Name] {
			// A declared input that was not supplied. Required unless a
			// weight or initializer covers it (handled above).
			missing[n.Name] = true
			continue
		}
		if n.Dynamic && info.dynamicNode == nil {
			info.dynamicNode = n
		}
		for _, ref := range n.Inputs {
			parent, ok := g.Node(ref.Node)
			if !ok {
				continue
			}
			stack = append(stack, parent)
		}
	}

	for name := range missing {
		info.missing = append(info.missing, name)
	}
	sort.Strings(info.missing)

	if info.dynamicNode != nil {
		for _, child := range info.dynamicNode.Children() {
			info.alternativeInputs = append(info.alternativeInputs, child.Name)
		}
		sort.Strings(info.alternativeInputs)
	}

	return info
}

// hasDynamicOrControlFlow reports whether the needed set contains any
// control-flow or dynamic node, which forces the dynamic path.
func (info subgraphInfo) hasDynamicOrControlFlow(g *Graph) bool {
	if info.dynamicNode != nil {
		return true
	}
	for name := range info.needed {
		if n, ok := g.Node(name); ok && n.IsControlFlow() {
			return true
		}
	}
	return false
}
