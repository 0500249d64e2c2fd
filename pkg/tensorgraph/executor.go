package tensorgraph

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/tensorgraph/pkg/tensorgraph/capture"
	"github.com/randalmurphal/tensorgraph/pkg/tensorgraph/observability"
)

// asDuration converts TimedOperation's millisecond reading back to a
// time.Duration for the metrics recorder.
func asDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Executor runs a graph against caller-supplied input tensors.
//
// An Executor owns the weight table it was constructed with and the
// memoized plan cache; both are shared, read-only, across concurrent
// invocations. Per-invocation state (tensor tables, lifecycle
// accounting) is never shared.
type Executor struct {
	graph *Graph
	cfg   execConfig

	weights     map[string][]*Tensor
	ownsWeights bool

	plans     *planCache
	functions *functionTable

	mu            sync.Mutex
	disposed      bool
	intermediates []*Tensor
}

// functionTable caches sub-graph executors, shared by reference
// between a parent executor and every function executor it spawns so
// that nested function calls compose without weight duplication.
type functionTable struct {
	mu sync.Mutex
	m  map[string]*Executor
}

// NewExecutor creates an executor for the graph with the given weight
// table (node name to output tensor list). The weight table is owned
// by the returned executor: Dispose releases it.
func NewExecutor(graph *Graph, weights map[string][]*Tensor, opts ...Option) *Executor {
	cfg := defaultExecConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if weights == nil {
		weights = make(map[string][]*Tensor)
	}
	return &Executor{
		graph:       graph,
		cfg:         cfg,
		weights:     weights,
		ownsWeights: true,
		plans:       newPlanCache(),
		functions:   &functionTable{m: make(map[string]*Executor)},
	}
}

// Graph returns the graph this executor runs.
func (e *Executor) Graph() *Graph { return e.graph }

// outputRef is a parsed requested output: node name plus output slot.
type outputRef struct {
	name string
	slot int
}

// parseOutputName splits an optional ":slot" suffix off a requested
// output name. "logits" reads slot 0; "split:1" reads slot 1.
func parseOutputName(name string) outputRef {
	if i := strings.LastIndexByte(name, ':'); i > 0 {
		if slot, err := strconv.Atoi(name[i+1:]); err == nil && slot >= 0 {
			return outputRef{name: name[:i], slot: slot}
		}
	}
	return outputRef{name: name}
}

// resolveRequest validates the supplied inputs and requested outputs
// against the graph. All validation happens before any node runs.
func (e *Executor) resolveRequest(inputs map[string]*Tensor, outputs []string) ([]outputRef, []*Node, error) {
	for name, t := range inputs {
		node, ok := e.graph.Node(name)
		if !ok {
			return nil, nil, &UnknownNameError{Name: name, Role: "input"}
		}
		if want := node.Attrs.Shape("shape"); want != nil && !shapeMatches(want, t.Shape()) {
			return nil, nil, &ShapeMismatchError{
				Input: name,
				Want:  "shape " + shapeString(want),
				Got:   "shape " + shapeString(t.Shape()),
			}
		}
		if want := node.Attrs.String("dtype", ""); want != "" && want != string(t.DType()) {
			return nil, nil, &ShapeMismatchError{
				Input: name,
				Want:  "dtype " + want,
				Got:   "dtype " + string(t.DType()),
			}
		}
	}

	if len(outputs) == 0 {
		for _, n := range e.graph.Outputs() {
			outputs = append(outputs, n.Name)
		}
	}
	if len(outputs) == 0 {
		return nil, nil, fmt.Errorf("no outputs requested and the graph declares none")
	}

	refs := make([]outputRef, 0, len(outputs))
	nodes := make([]*Node, 0, len(outputs))
	seen := make(map[string]bool, len(outputs))
	for _, name := range outputs {
		ref := parseOutputName(name)
		node, ok := e.graph.Node(ref.name)
		if !ok {
			return nil, nil, &UnknownNameError{Name: name, Role: "output"}
		}
		refs = append(refs, ref)
		if !seen[ref.name] {
			seen[ref.name] = true
			nodes = append(nodes, node)
		}
	}
	return refs, nodes, nil
}

// suppliedSet returns the input names plus weight names as a set: the
// nodes whose values are pre-populated before scheduling.
func (e *Executor) suppliedSet(inputs map[string]*Tensor) map[string]bool {
	supplied := make(map[string]bool, len(inputs)+len(e.weights))
	for name := range inputs {
		supplied[name] = true
	}
	for name := range e.weights {
		supplied[name] = true
	}
	return supplied
}

// Execute runs the graph synchronously and returns one tensor per
// requested output (defaulting to the graph's declared outputs).
//
// The synchronous path requires a statically resolvable subgraph: it
// fails with ErrDynamicGraph if control-flow or dynamic nodes are
// needed, with ErrMissingInputs if inputs are absent, and with
// ErrDeferredResult if an operation unexpectedly returns a deferred
// value. In all those cases ExecuteAsync is the correct entry point.
func (e *Executor) Execute(ctx context.Context, inputs map[string]*Tensor, outputs ...string) (result []*Tensor, runErr error) {
	if err := e.checkLive(); err != nil {
		return nil, err
	}
	// Defensive cleanup of anything retained by a prior invocation.
	e.DisposeIntermediateTensors()

	refs, outputNodes, err := e.resolveRequest(inputs, outputs)
	if err != nil {
		return nil, err
	}

	done := observability.TimedOperation()
	ec := newExecContext(e.weights, e.cfg.logger)
	observability.LogExecStart(ec.logger, ec.runID, "static")

	execCtx := ctx
	if e.cfg.tracingEnabled {
		var runSpan trace.Span
		execCtx, runSpan = e.cfg.spans.StartExecSpan(ctx, ec.runID, "static")
		defer func() {
			e.cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	plan, err := e.plan(execCtx, inputs, refs, outputNodes)
	if err != nil {
		observability.LogExecError(ec.logger, ec.runID, err, done(), "")
		e.cfg.metrics.RecordExecution(execCtx, "static", false, asDuration(done()))
		return nil, err
	}

	tr := e.seedInvocation(ec, inputs, refs)

	nodeCount := 0
	disposed := 0
	root := RootFrame()
	for _, node := range plan.Order() {
		if _, ok := ec.tensors.get(node.Name, root); !ok {
			tensors, err := e.runNode(execCtx, node, ec, root)
			if err != nil {
				observability.LogExecError(ec.logger, ec.runID, err, done(), node.Name)
				e.cfg.metrics.RecordExecution(execCtx, "static", false, asDuration(done()))
				ec.release(tr.frozenSet())
				return nil, err
			}
			nodeCount++

			if isRequested(refs, node.Name) {
				tr.freeze(tensors...)
			}
			ec.tensors.set(node.Name, root, tensors)
			e.captureIntermediates(ec, node, root, tensors)
		}

		// A pre-populated node still marks the liveness position of
		// the producers it was the last consumer of.
		if producers := plan.DisposableAfter(node.Name); len(producers) > 0 {
			released := 0
			for _, name := range producers {
				if outs, ok := ec.tensors.get(name, root); ok {
					released += tr.dispose(outs)
				}
			}
			if released > 0 {
				disposed += released
				observability.LogDisposal(ec.logger, node.Name, released)
				e.cfg.metrics.RecordDisposal(execCtx, int64(released))
			}
		}
	}

	result, err = collectOutputs(ec, refs, nil)
	if err != nil {
		observability.LogExecError(ec.logger, ec.runID, err, done(), "")
		e.cfg.metrics.RecordExecution(execCtx, "static", false, asDuration(done()))
		ec.release(tr.frozenSet())
		return nil, err
	}

	ec.release(tr.frozenSet())
	observability.LogExecComplete(ec.logger, ec.runID, done(), nodeCount, disposed)
	e.cfg.metrics.RecordExecution(execCtx, "static", true, asDuration(done()))
	return result, nil
}

// ExecuteAsync runs the graph on the dynamic path, which tolerates
// control flow and deferred operation results. It is a strict superset
// of the static path's capability at a small scheduling overhead; the
// call blocks until every deferred completion has resolved.
func (e *Executor) ExecuteAsync(ctx context.Context, inputs map[string]*Tensor, outputs ...string) (result []*Tensor, runErr error) {
	if err := e.checkLive(); err != nil {
		return nil, err
	}
	e.DisposeIntermediateTensors()

	refs, outputNodes, err := e.resolveRequest(inputs, outputs)
	if err != nil {
		return nil, err
	}

	done := observability.TimedOperation()
	ec := newExecContext(e.weights, e.cfg.logger)
	observability.LogExecStart(ec.logger, ec.runID, "dynamic")

	execCtx := ctx
	if e.cfg.tracingEnabled {
		var runSpan trace.Span
		execCtx, runSpan = e.cfg.spans.StartExecSpan(ctx, ec.runID, "dynamic")
		defer func() {
			e.cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	tr := e.seedInvocation(ec, inputs, refs)

	sched := newDynamicScheduler(e, ec, tr, inputs, refs, outputNodes)
	nodeCount, err := sched.run(execCtx)
	if err != nil {
		observability.LogExecError(ec.logger, ec.runID, err, done(), sched.lastNode)
		e.cfg.metrics.RecordExecution(execCtx, "dynamic", false, asDuration(done()))
		ec.release(tr.frozenSet())
		return nil, err
	}

	result, err = collectOutputs(ec, refs, sched.missing)
	if err != nil {
		observability.LogExecError(ec.logger, ec.runID, err, done(), "")
		e.cfg.metrics.RecordExecution(execCtx, "dynamic", false, asDuration(done()))
		ec.release(tr.frozenSet())
		return nil, err
	}

	ec.release(tr.frozenSet())
	observability.LogExecComplete(ec.logger, ec.runID, done(), nodeCount, sched.disposed)
	e.cfg.metrics.RecordExecution(execCtx, "dynamic", true, asDuration(done()))
	return result, nil
}

// plan returns the memoized plan for the request, compiling it on a
// cache miss. Plans are keyed by the sorted (input, output) name pair.
func (e *Executor) plan(ctx context.Context, inputs map[string]*Tensor, refs []outputRef, outputNodes []*Node) (*Plan, error) {
	inputNames := make([]string, 0, len(inputs))
	for name := range inputs {
		inputNames = append(inputNames, name)
	}
	outputNames := make([]string, 0, len(refs))
	for _, ref := range refs {
		outputNames = append(outputNames, ref.name)
	}

	key := planKey(inputNames, outputNames)
	if p, ok := e.plans.get(key); ok {
		observability.LogPlanCacheHit(e.cfg.logger, key)
		e.cfg.metrics.RecordPlanLookup(ctx, true)
		return p, nil
	}
	e.cfg.metrics.RecordPlanLookup(ctx, false)

	p, err := compilePlan(e.graph, e.suppliedSet(inputs), outputNodes, outputNames, key)
	if err != nil {
		return nil, err
	}
	observability.LogPlanCompile(e.cfg.logger, key, len(p.Order()))
	return e.plans.put(p), nil
}

// seedInvocation pre-populates the context with weights and inputs and
// freezes them against disposal.
func (e *Executor) seedInvocation(ec *ExecContext, inputs map[string]*Tensor, refs []outputRef) *tracker {
	tr := newTracker()
	root := RootFrame()
	for name, tensors := range e.weights {
		ec.tensors.set(name, root, tensors)
		tr.freeze(tensors...)
	}
	for name, t := range inputs {
		ec.tensors.set(name, root, []*Tensor{t})
		tr.freeze(t)
	}
	return tr
}

// invokeKernel runs a node's kernel on already-resolved inputs with
// logging, tracing, and metrics. For a deferred result the span and
// node metric cover the dispatch only; the scheduler accounts for the
// completion separately.
func (e *Executor) invokeKernel(ctx context.Context, node *Node, inputs []*Tensor, ec *ExecContext) (OpResult, error) {
	observability.LogNodeStart(ec.logger, node.Name, node.Kind)
	nodeCtx := ctx
	var nodeSpan trace.Span
	if e.cfg.tracingEnabled {
		nodeCtx, nodeSpan = e.cfg.spans.StartNodeSpan(ctx, node.Name, node.Kind)
	}
	nodeStart := time.Now()

	spec := e.graph.registry.MustLookup(node.Kind)
	res, err := spec.Fn(nodeCtx, node, inputs, ec)

	nodeDuration := time.Since(nodeStart)
	e.cfg.metrics.RecordNodeExecution(nodeCtx, node.Name, node.Kind, nodeDuration, err)
	if e.cfg.tracingEnabled {
		e.cfg.spans.EndSpanWithError(nodeSpan, err)
	}

	if err != nil {
		observability.LogNodeError(ec.logger, node.Name, err)
		return OpResult{}, &OpError{NodeID: node.Name, Kind: node.Kind, Err: err}
	}
	if !res.IsPending() {
		observability.LogNodeComplete(ec.logger, node.Name, float64(nodeDuration.Milliseconds()))
	}
	return res, nil
}

// runNode resolves a node's inputs at the given frame and executes its
// kernel synchronously. A deferred result is the static path's one
// illegal outcome.
func (e *Executor) runNode(ctx context.Context, node *Node, ec *ExecContext, frames FrameStack) ([]*Tensor, error) {
	inputs, err := resolveInputs(e.graph, node, ec, frames)
	if err != nil {
		return nil, err
	}
	res, err := e.invokeKernel(ctx, node, inputs, ec)
	if err != nil {
		return nil, err
	}
	if res.IsPending() {
		err := &SyncExecutionError{NodeID: node.Name, Kind: node.Kind, Err: ErrDeferredResult}
		observability.LogNodeError(ec.logger, node.Name, err)
		return nil, err
	}
	return res.Tensors, nil
}

// resolveInputs gathers a node's data input tensors, walking the frame
// stack outward so loop bodies see enclosing values.
func resolveInputs(g *Graph, node *Node, ec *ExecContext, frames FrameStack) ([]*Tensor, error) {
	refs := node.dataInputs()
	inputs := make([]*Tensor, len(refs))
	for i, ref := range refs {
		tensors, _, ok := ec.tensors.lookup(ref.Node, frames)
		if !ok || ref.Slot >= len(tensors) || tensors[ref.Slot] == nil {
			return nil, fmt.Errorf("node %s: input %s:%d has no value", node.Name, ref.Node, ref.Slot)
		}
		inputs[i] = tensors[ref.Slot]
	}
	return inputs, nil
}

// collectOutputs gathers the requested output tensors from the root
// frame of the finished invocation. Every unresolved output is named
// in the error, together with the missing-input hint when the analyzer
// identified one.
func collectOutputs(ec *ExecContext, refs []outputRef, missing []string) ([]*Tensor, error) {
	root := RootFrame()
	result := make([]*Tensor, len(refs))
	var unresolved []string
	seen := make(map[string]bool)
	for i, ref := range refs {
		tensors, ok := ec.tensors.get(ref.name, root)
		if !ok || ref.slot >= len(tensors) || tensors[ref.slot] == nil {
			if !seen[ref.name] {
				seen[ref.name] = true
				unresolved = append(unresolved, ref.name)
			}
			continue
		}
		result[i] = tensors[ref.slot]
	}
	if len(unresolved) > 0 {
		return nil, &UnresolvedOutputsError{Outputs: unresolved, MissingInputs: missing}
	}
	return result, nil
}

// isRequested reports whether a node name is in the requested set.
func isRequested(refs []outputRef, name string) bool {
	for _, ref := range refs {
		if ref.name == name {
			return true
		}
	}
	return false
}

// captureIntermediates clones a node's outputs into the retained set
// when intermediate capture is enabled, persisting to the capture
// store when one is configured.
func (e *Executor) captureIntermediates(ec *ExecContext, node *Node, frames FrameStack, tensors []*Tensor) {
	if !e.cfg.keepIntermediates {
		return
	}
	for slot, t := range tensors {
		if t == nil || t.Disposed() {
			continue
		}
		clone := t.Clone()
		e.mu.Lock()
		e.intermediates = append(e.intermediates, clone)
		e.mu.Unlock()

		if e.cfg.captureStore != nil {
			rec := capture.New(ec.runID, node.Name, slot, frames.Key(),
				clone.Shape(), string(clone.DType()), clone.Data())
			if err := e.cfg.captureStore.Save(rec); err != nil {
				ec.logger.Warn("capture failed",
					"node_id", node.Name,
					"error", err.Error(),
				)
			}
		}
	}
}

// GetIntermediateTensors returns the retained clones of intermediate
// tensors from the most recent invocation. Empty unless the executor
// was created with WithKeepIntermediates or WithCaptureStore.
func (e *Executor) GetIntermediateTensors() []*Tensor {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Tensor, len(e.intermediates))
	copy(out, e.intermediates)
	return out
}

// DisposeIntermediateTensors releases all retained intermediates.
func (e *Executor) DisposeIntermediateTensors() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.intermediates {
		if !t.Disposed() {
			t.Dispose()
		}
	}
	e.intermediates = nil
}

// Function returns the executor for a named sub-graph, creating it on
// first use. Function executors share this executor's weight table and
// function table by reference; they never own weights.
func (e *Executor) Function(name string) (*Executor, bool) {
	e.functions.mu.Lock()
	defer e.functions.mu.Unlock()
	if ex, ok := e.functions.m[name]; ok {
		return ex, true
	}
	g, ok := e.graph.Function(name)
	if !ok {
		return nil, false
	}
	child := &Executor{
		graph:       g,
		cfg:         e.cfg,
		weights:     e.weights,
		ownsWeights: false,
		plans:       newPlanCache(),
		functions:   e.functions,
	}
	e.functions.m[name] = child
	return child, true
}

// checkLive rejects use after Dispose.
func (e *Executor) checkLive() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return ErrExecutorDisposed
	}
	return nil
}

// Dispose releases all weight tensors owned by this executor plus any
// retained intermediates. Must be called at most once; function
// executors share their parent's weights and never release them.
func (e *Executor) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		panic("tensorgraph: executor disposed twice")
	}
	e.disposed = true
	e.mu.Unlock()

	e.DisposeIntermediateTensors()
	if !e.ownsWeights {
		return
	}
	for _, tensors := range e.weights {
		for _, t := range tensors {
			if t != nil && !t.Disposed() {
				t.Dispose()
			}
		}
	}
}
