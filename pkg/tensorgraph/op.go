package tensorgraph

import (
	"context"
	"fmt"
	"sync"
)

// OpCategory classifies control-flow operation kinds.
// Operations in any category other than CategoryNone are executed by
// the dynamic scheduler itself rather than through a kernel, because
// their semantics are about scheduling (frames, readiness), not math.
type OpCategory int

// Control-flow categories.
const (
	// CategoryNone marks an ordinary data operation.
	CategoryNone OpCategory = iota
	// CategoryEnter feeds a value into a new loop frame.
	CategoryEnter
	// CategoryExit returns a value from a loop frame to its parent.
	CategoryExit
	// CategoryMerge forwards whichever of its inputs is available first.
	CategoryMerge
	// CategorySwitch routes its input to one of two outputs based on a predicate.
	CategorySwitch
	// CategoryNextIteration forwards a value to the next loop iteration.
	CategoryNextIteration
	// CategoryLoopCond marks the loop termination predicate.
	CategoryLoopCond
)

// String returns the category name for diagnostics.
func (c OpCategory) String() string {
	switch c {
	case CategoryEnter:
		return "Enter"
	case CategoryExit:
		return "Exit"
	case CategoryMerge:
		return "Merge"
	case CategorySwitch:
		return "Switch"
	case CategoryNextIteration:
		return "NextIteration"
	case CategoryLoopCond:
		return "LoopCond"
	default:
		return "None"
	}
}

// OpOutcome is the eventual result of a deferred operation.
type OpOutcome struct {
	Tensors []*Tensor
	Err     error
}

// OpResult is the two-variant result of executing an operation: either
// the output tensors are ready immediately, or they arrive later on a
// channel. Exactly one of Tensors and Pending is set.
type OpResult struct {
	Tensors []*Tensor
	Pending <-chan OpOutcome
}

// Ready wraps immediately available output tensors.
func Ready(tensors ...*Tensor) OpResult {
	return OpResult{Tensors: tensors}
}

// Deferred wraps a channel that will deliver the outputs later.
// The channel must deliver exactly one OpOutcome.
func Deferred(ch <-chan OpOutcome) OpResult {
	return OpResult{Pending: ch}
}

// IsPending reports whether the result is deferred.
func (r OpResult) IsPending() bool { return r.Pending != nil }

// OpFunc executes a single operation. The scheduler resolves the
// node's declared inputs (control dependencies excluded) and passes
// them in declaration order. The ExecContext gives kernels access to
// the per-invocation scratch tables for looping constructs.
type OpFunc func(ctx context.Context, node *Node, inputs []*Tensor, ec *ExecContext) (OpResult, error)

// OpSpec describes one operation kind.
type OpSpec struct {
	// Kind is the string identifier nodes reference.
	Kind string
	// Fn is the kernel. Nil for control-flow categories, which the
	// dynamic scheduler interprets directly.
	Fn OpFunc
	// Category is the control-flow classification.
	Category OpCategory
	// Dynamic marks operations whose output shape or type is only
	// knowable at run time. Dynamic nodes block the static path.
	Dynamic bool
	// MinInputs is the minimum number of data inputs, validated at
	// graph build time. Zero means no constraint.
	MinInputs int
}

// OpRegistry is a thread-safe table of operation kinds.
//
// A graph is validated against a registry at build time: referencing
// an unregistered kind is a construction error, never a runtime one.
type OpRegistry struct {
	mu    sync.RWMutex
	specs map[string]OpSpec
}

// NewOpRegistry creates an empty registry.
func NewOpRegistry() *OpRegistry {
	return &OpRegistry{specs: make(map[string]OpSpec)}
}

// Register adds or replaces an operation kind.
// Panics if the spec's Kind is empty.
func (r *OpRegistry) Register(spec OpSpec) {
	if spec.Kind == "" {
		panic("tensorgraph: op spec kind cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Kind] = spec
}

// Lookup returns the spec for a kind and whether it exists.
func (r *OpRegistry) Lookup(kind string) (OpSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[kind]
	return spec, ok
}

// MustLookup returns the spec for a kind, panicking if not registered.
func (r *OpRegistry) MustLookup(kind string) OpSpec {
	spec, ok := r.Lookup(kind)
	if !ok {
		panic(fmt.Sprintf("tensorgraph: op kind not registered: %s", kind))
	}
	return spec
}

// Has returns true if the kind is registered.
func (r *OpRegistry) Has(kind string) bool {
	_, ok := r.Lookup(kind)
	return ok
}

// Kinds returns all registered kinds. The order is not guaranteed.
func (r *OpRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.specs))
	for k := range r.specs {
		kinds = append(kinds, k)
	}
	return kinds
}
