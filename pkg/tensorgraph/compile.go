package tensorgraph

import (
	"sort"
	"strings"
	"sync"
)

// Plan is a memoized execution plan for one (inputs, outputs) pair:
// a topological order over the needed subgraph plus a liveness map
// driving intermediate tensor disposal.
//
// Plans are immutable once built and are shared across repeated
// invocations with the same input/output selection.
type Plan struct {
	key   string
	order []*Node

	// liveness maps a node name to the producer names whose output
	// tensors become disposable immediately after that node finishes.
	liveness map[string][]string

	// needed is the node-name set the plan covers.
	needed map[string]bool
}

// Key returns the cache key the plan is memoized under.
func (p *Plan) Key() string { return p.key }

// Order returns the nodes in execution order.
// The returned slice must not be modified.
func (p *Plan) Order() []*Node { return p.order }

// DisposableAfter returns the producer names whose outputs may be
// freed once the named node has run.
func (p *Plan) DisposableAfter(name string) []string { return p.liveness[name] }

// planKey builds the memoization key from the sorted input and output
// name sets.
func planKey(inputs, outputs []string) string {
	in := append([]string(nil), inputs...)
	out := append([]string(nil), outputs...)
	sort.Strings(in)
	sort.Strings(out)
	return strings.Join(in, ",") + "|" + strings.Join(out, ",")
}

// planCache memoizes compiled plans per executor. Entries are never
// invalidated (the graph is immutable) and never mutated after
// insertion, so concurrent readers only need the read lock.
type planCache struct {
	mu    sync.RWMutex
	plans map[string]*Plan
}

func newPlanCache() *planCache {
	return &planCache{plans: make(map[string]*Plan)}
}

func (c *planCache) get(key string) (*Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plans[key]
	return p, ok
}

func (c *planCache) put(p *Plan) *Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Keep the first entry if two invocations raced to compile.
	if existing, ok := c.plans[p.key]; ok {
		return existing
	}
	c.plans[p.key] = p
	return p
}

// compilePlan builds the execution plan for the given request.
//
// Preconditions: the subgraph must contain no dynamic or control-flow
// node and no missing inputs; either is a fatal, user-visible error
// (dynamic subgraphs need ExecuteAsync, missing inputs are simply
// unsatisfiable).
func compilePlan(g *Graph, supplied map[string]bool, outputs []*Node, outputNames []string, key string) (*Plan, error) {
	info := analyzeSubgraph(g, supplied, outputs)

	if len(info.missing) > 0 {
		return nil, &MissingInputsError{Missing: info.missing, Outputs: outputNames}
	}
	if info.dynamicNode != nil {
		return nil, &DynamicGraphError{
			NodeID:            info.dynamicNode.Name,
			AlternativeInputs: info.alternativeInputs,
		}
	}
	for name := range info.needed {
		if n, ok := g.Node(name); ok && n.IsControlFlow() {
			return nil, &SyncExecutionError{NodeID: n.Name, Kind: n.Kind, Err: ErrDynamicGraph}
		}
	}

	order := topoSort(g, info.needed, supplied)
	liveness := computeLiveness(g, order, info.needed, supplied, outputNames)

	return &Plan{
		key:      key,
		order:    order,
		liveness: liveness,
		needed:   info.needed,
	}, nil
}

// topoSort orders the needed set so every predecessor of a node
// appears before it. Ties are broken by original declaration order:
// stability matters for reproducible disposal timing, not for numeric
// correctness.
func topoSort(g *Graph, needed, supplied map[string]bool) []*Node {
	weights := g.weightSet()

	// Supplied inputs and weights are sources: traversal stopped at
	// them, so their own declared inputs do not gate execution.
	isSource := func(n *Node) bool {
		return supplied[n.Name] || weights[n.Name]
	}

	indegree := make(map[string]int, len(needed))
	for name := range needed {
		n, _ := g.Node(name)
		if isSource(n) {
			indegree[name] = 0
			continue
		}
		parents := make(map[string]bool)
		for _, ref := range n.Inputs {
			if needed[ref.Node] {
				parents[ref.Node] = true
			}
		}
		indegree[name] = len(parents)
	}

	// ready is kept sorted by declaration order.
	var ready []*Node
	insert := func(n *Node) {
		i := sort.Search(len(ready), func(i int) bool { return ready[i].order > n.order })
		ready = append(ready, nil)
		copy(ready[i+1:], ready[i:])
		ready[i] = n
	}

	for _, n := range g.Nodes() {
		if needed[n.Name] && indegree[n.Name] == 0 {
			insert(n)
		}
	}

	order := make([]*Node, 0, len(needed))
	scheduled := make(map[string]bool, len(needed))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		if scheduled[n.Name] {
			continue
		}
		scheduled[n.Name] = true
		order = append(order, n)

		for _, child := range n.Children() {
			if !needed[child.Name] || scheduled[child.Name] || isSource(child) {
				continue
			}
			indegree[child.Name]--
			if indegree[child.Name] == 0 {
				insert(child)
			}
		}
	}
	return order
}

// computeLiveness scans the order once and assigns each non-frozen
// producer to the position of its last surviving consumer. A producer
// with no consumers in the needed set is disposable immediately after
// it runs.
func computeLiveness(g *Graph, order []*Node, needed, supplied map[string]bool, outputNames []string) map[string][]string {
	weights := g.weightSet()
	requested := make(map[string]bool, len(outputNames))
	for _, name := range outputNames {
		requested[name] = true
	}

	position := make(map[string]int, len(order))
	for i, n := range order {
		position[n.Name] = i
	}

	liveness := make(map[string][]string)
	for _, p := range order {
		if supplied[p.Name] || weights[p.Name] || requested[p.Name] {
			continue
		}
		last := position[p.Name]
		for _, child := range p.Children() {
			if pos, ok := position[child.Name]; ok && needed[child.Name] && pos > last {
				last = pos
			}
		}
		at := order[last].Name
		liveness[at] = append(liveness[at], p.Name)
	}
	return liveness
}
