package tensorgraph

import (
	"context"
	"fmt"

	"github.com/randalmurphal/tensorgraph/pkg/tensorgraph/observability"
)

// workItem is one pending dispatch: a node plus the loop-frame
// identity it should execute under.
type workItem struct {
	node   *Node
	frames FrameStack
}

// completion carries the outcome of a deferred operation back to the
// scheduler loop, together with the frame identity and input tensors
// captured at dispatch time.
type completion struct {
	node     *Node
	frames   FrameStack
	consumed []*Tensor
	outcome  OpOutcome
}

// dynamicScheduler interprets a graph with a readiness-driven work
// stack. Unlike the static path it tolerates control-flow nodes,
// dynamic (data-dependent shape) nodes, and deferred kernel results.
//
// A node is pushed whenever one of its producers completes and runs
// once per (node, frame) identity, the first time all of its inputs
// resolve. Items that are popped before their inputs exist are simply
// dropped: a later producer completion pushes them again.
type dynamicScheduler struct {
	exec *Executor
	ec   *ExecContext
	tr   *tracker

	inputs      map[string]*Tensor
	refs        []outputRef
	outputNodes []*Node
	supplied    map[string]bool
	needed      map[string]bool

	// missing holds input names the analyzer flagged as unsupplied.
	// Never fatal up front: run-time control flow can route around an
	// absent branch. Surfaced as a hint if outputs stay unresolved.
	missing []string

	stack      []workItem
	dispatched map[string]bool
	pending    int
	done       chan completion

	// countCache memoizes per-slot consumer counts by producer name.
	countCache map[string][]int

	nodeCount int
	disposed  int
	lastNode  string
}

func newDynamicScheduler(e *Executor, ec *ExecContext, tr *tracker, inputs map[string]*Tensor, refs []outputRef, outputNodes []*Node) *dynamicScheduler {
	return &dynamicScheduler{
		exec:        e,
		ec:          ec,
		tr:          tr,
		inputs:      inputs,
		refs:        refs,
		outputNodes: outputNodes,
		supplied:    e.suppliedSet(inputs),
		dispatched:  make(map[string]bool),
		done:        make(chan completion, 8),
		countCache:  make(map[string][]int),
	}
}

// run drives the interpreter to completion: it drains the work stack,
// then waits on deferred completions, until both are exhausted or an
// error aborts the invocation. Returns the number of executed nodes.
func (s *dynamicScheduler) run(ctx context.Context) (int, error) {
	g := s.exec.graph

	info := analyzeSubgraph(g, s.supplied, s.outputNodes)
	s.needed = info.needed
	s.missing = info.missing

	s.seed(g)

	for {
		if len(s.stack) == 0 {
			if s.pending == 0 {
				return s.nodeCount, nil
			}
			select {
			case c := <-s.done:
				s.pending--
				if err := s.finishDeferred(c); err != nil {
					s.drain()
					return s.nodeCount, err
				}
			case <-ctx.Done():
				s.drain()
				return s.nodeCount, ctx.Err()
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			s.drain()
			return s.nodeCount, err
		}

		it := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		if err := s.step(ctx, it); err != nil {
			s.drain()
			return s.nodeCount, err
		}
	}
}

// seed populates the initial work stack: children of every supplied
// value, plus needed nodes with no inputs at all (constants and
// initializers), all in the root frame. Unsupplied declared inputs are
// left unscheduled; whatever they gate stays unresolved unless control
// flow routes around them.
func (s *dynamicScheduler) seed(g *Graph) {
	absent := make(map[string]bool, len(s.missing))
	for _, name := range s.missing {
		absent[name] = true
	}

	root := RootFrame()
	for name := range s.supplied {
		if n, ok := g.Node(name); ok && s.needed[name] {
			s.pushChildren(n, root)
		}
	}
	for _, n := range g.Nodes() {
		if s.needed[n.Name] && !s.supplied[n.Name] && !absent[n.Name] && len(n.Inputs) == 0 {
			s.stack = append(s.stack, workItem{node: n, frames: root})
		}
	}
}

// pushChildren schedules every needed consumer of a node at the frame
// the node's outputs were stored under.
func (s *dynamicScheduler) pushChildren(n *Node, frames FrameStack) {
	for _, child := range n.Children() {
		if s.needed[child.Name] {
			s.stack = append(s.stack, workItem{node: child, frames: frames})
		}
	}
}

// step executes one work item if it is ready and not yet dispatched.
// Dedup is by (node, frame) execution identity: a value stored under
// the execution frame short-circuits the kernel only for nodes whose
// output frame equals their execution frame. Enter, Exit, and
// NextIteration store under a shifted frame, so a value found here
// belongs to a different dispatch.
func (s *dynamicScheduler) step(ctx context.Context, it workItem) error {
	node, frames := it.node, it.frames
	id := qualifiedID(node.Name, frames)
	if s.dispatched[id] {
		return nil
	}
	switch node.Category {
	case CategoryEnter, CategoryExit, CategoryNextIteration:
	default:
		if _, ok := s.ec.tensors.get(node.Name, frames); ok {
			// Pre-populated before scheduling. The kernel is skipped
			// but consumers still need the readiness signal.
			s.dispatched[id] = true
			s.pushChildren(node, frames)
			return nil
		}
	}

	ready, inputs, consumed, mergeIndex := s.gather(node, frames)
	if !ready {
		return nil
	}
	s.dispatched[id] = true
	s.lastNode = node.Name

	if node.IsControlFlow() {
		return s.runControlFlow(node, frames, inputs, mergeIndex)
	}

	res, err := s.exec.invokeKernel(ctx, node, inputs, s.ec)
	if err != nil {
		return err
	}
	if res.IsPending() {
		observability.LogNodeDeferred(s.ec.logger, node.Name, frames.Key())
		s.pending++
		go func() {
			s.done <- completion{
				node:     node,
				frames:   frames,
				consumed: consumed,
				outcome:  <-res.Pending,
			}
		}()
		return nil
	}

	s.finishNode(node, frames, res.Tensors, consumed)
	return nil
}

// gather resolves a node's inputs at the given frame.
//
// Merge is the one asymmetric node: it is ready when ANY of its data
// inputs has a value at exactly this frame, and it forwards that value
// together with the winning input index. Every other node needs all of
// its inputs, resolved by walking the frame stack outward so loop
// bodies can read enclosing values.
//
// consumed collects the inputs found at exactly the execution frame;
// only those participate in consumer-count disposal. Values read from
// an enclosing frame may be read again by a later iteration, so their
// counts are never drained and they live until release.
func (s *dynamicScheduler) gather(node *Node, frames FrameStack) (ready bool, inputs, consumed []*Tensor, mergeIndex int) {
	if node.Category == CategoryMerge {
		for i, ref := range node.dataInputs() {
			tensors, ok := s.ec.tensors.get(ref.Node, frames)
			if !ok || ref.Slot >= len(tensors) {
				continue
			}
			if t := tensors[ref.Slot]; t != nil && !t.Disposed() {
				return true, []*Tensor{t}, nil, i
			}
		}
		return false, nil, nil, 0
	}

	for _, ref := range node.Inputs {
		tensors, found, ok := s.ec.tensors.lookup(ref.Node, frames)
		if !ok {
			return false, nil, nil, 0
		}
		if ref.Control {
			continue
		}
		if ref.Slot >= len(tensors) {
			return false, nil, nil, 0
		}
		t := tensors[ref.Slot]
		if t == nil || t.Disposed() {
			return false, nil, nil, 0
		}
		inputs = append(inputs, t)
		if !node.IsControlFlow() && found.Key() == frames.Key() {
			consumed = append(consumed, t)
		}
	}
	return true, inputs, consumed, 0
}

// finishNode records a completed node's outputs and advances the
// frontier.
func (s *dynamicScheduler) finishNode(node *Node, frames FrameStack, tensors []*Tensor, consumed []*Tensor) {
	if isRequested(s.refs, node.Name) {
		s.tr.freeze(tensors...)
	}
	s.ec.tensors.set(node.Name, frames, tensors)
	s.exec.captureIntermediates(s.ec, node, frames, tensors)

	s.tr.noteProduced(tensors, s.slotCounts(node))
	if len(consumed) > 0 {
		before := len(s.tr.counts)
		s.tr.noteConsumed(consumed)
		if released := before - len(s.tr.counts); released > 0 {
			s.disposed += released
			observability.LogDisposal(s.ec.logger, node.Name, released)
		}
	}

	s.nodeCount++
	s.pushChildren(node, frames)
}

// finishDeferred folds a deferred completion back into the schedule.
func (s *dynamicScheduler) finishDeferred(c completion) error {
	if c.outcome.Err != nil {
		err := &OpError{NodeID: c.node.Name, Kind: c.node.Kind, Err: c.outcome.Err}
		observability.LogNodeError(s.ec.logger, c.node.Name, err)
		return err
	}
	observability.LogNodeComplete(s.ec.logger, c.node.Name, 0)
	s.lastNode = c.node.Name
	s.finishNode(c.node, c.frames, c.outcome.Tensors, c.consumed)
	return nil
}

// runControlFlow executes a control-flow node. These never invoke a
// kernel: they forward tensor pointers while manipulating the frame
// identity their outputs are stored under. Forwarded tensors stay out
// of consumer-count accounting and live until release.
func (s *dynamicScheduler) runControlFlow(node *Node, frames FrameStack, inputs []*Tensor, mergeIndex int) error {
	out := frames
	var tensors []*Tensor

	switch node.Category {
	case CategoryEnter:
		out = frames.Push(node.Attrs.String("frame", node.Name))
		tensors = []*Tensor{inputs[0]}
	case CategoryExit:
		if frames.IsRoot() {
			return fmt.Errorf("node %s: Exit outside a loop frame", node.Name)
		}
		out = frames.Pop()
		tensors = []*Tensor{inputs[0]}
	case CategoryNextIteration:
		if frames.IsRoot() {
			return fmt.Errorf("node %s: NextIteration outside a loop frame", node.Name)
		}
		out = frames.Next()
		tensors = []*Tensor{inputs[0]}
	case CategoryMerge:
		tensors = []*Tensor{inputs[0], Scalar(float32(mergeIndex))}
	case CategorySwitch:
		if len(inputs) < 2 {
			return fmt.Errorf("node %s: Switch needs a value and a predicate", node.Name)
		}
		if inputs[1].Bool() {
			tensors = []*Tensor{nil, inputs[0]}
		} else {
			tensors = []*Tensor{inputs[0], nil}
		}
	case CategoryLoopCond:
		tensors = []*Tensor{inputs[0]}
	default:
		return fmt.Errorf("node %s: unhandled control-flow category %s", node.Name, node.Category)
	}

	if isRequested(s.refs, node.Name) {
		s.tr.freeze(tensors...)
	}
	s.ec.tensors.set(node.Name, out, tensors)
	s.nodeCount++
	s.pushChildren(node, out)
	return nil
}

// slotCounts returns, per output slot of a producer, the number of
// consuming input references among the needed set. A slot read by any
// control-flow consumer is untracked: control flow forwards the tensor
// pointer, so consumer-driven disposal would free a live value.
func (s *dynamicScheduler) slotCounts(node *Node) []int {
	if counts, ok := s.countCache[node.Name]; ok {
		return counts
	}

	var counts []int
	grow := func(slot int) {
		for len(counts) <= slot {
			counts = append(counts, 0)
		}
	}
	for _, child := range node.Children() {
		if !s.needed[child.Name] {
			continue
		}
		for _, ref := range child.Inputs {
			if ref.Control || ref.Node != node.Name {
				continue
			}
			grow(ref.Slot)
			if child.IsControlFlow() || counts[ref.Slot] == untracked {
				counts[ref.Slot] = untracked
			} else {
				counts[ref.Slot]++
			}
		}
	}

	s.countCache[node.Name] = counts
	return counts
}

// drain waits out in-flight deferred operations before the invocation
// releases its tensors, so completion goroutines never touch freed
// state. Late results are discarded.
func (s *dynamicScheduler) drain() {
	for s.pending > 0 {
		c := <-s.done
		s.pending--
		for _, t := range c.outcome.Tensors {
			if t != nil && !t.Disposed() {
				t.Dispose()
			}
		}
	}
}
