// Package tensorgraph provides a dataflow graph execution engine for
// tensor computations.
package tensorgraph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for graph building.
var (
	// ErrUnknownOpKind indicates a node references an unregistered operation kind.
	ErrUnknownOpKind = errors.New("unknown op kind")

	// ErrUnknownNode indicates a reference to a node that does not exist.
	ErrUnknownNode = errors.New("node not found")
)

// Sentinel errors for execution.
var (
	// ErrMissingInputs indicates required inputs were not supplied.
	ErrMissingInputs = errors.New("missing required inputs")

	// ErrDeferredResult indicates the synchronous path hit an operation
	// that returned a deferred value. Use ExecuteAsync instead.
	ErrDeferredResult = errors.New("operation returned a deferred result; use ExecuteAsync")

	// ErrDynamicGraph indicates the static path was asked to compile a
	// subgraph containing a dynamic node. Use ExecuteAsync instead.
	ErrDynamicGraph = errors.New("graph requires dynamic execution; use ExecuteAsync")

	// ErrShapeMismatch indicates a supplied tensor does not match a
	// node's declared shape or dtype constraint.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnresolvedOutputs indicates dynamic execution finished without
	// producing every requested output.
	ErrUnresolvedOutputs = errors.New("unresolved outputs")

	// ErrExecutorDisposed indicates use of an executor after Dispose.
	ErrExecutorDisposed = errors.New("executor has been disposed")
)

// MissingInputsError reports the inputs required to compute the
// requested outputs that were not supplied.
type MissingInputsError struct {
	// Missing lists the absent input node names.
	Missing []string
	// Outputs lists the outputs that were requested.
	Outputs []string
}

// Error implements the error interface.
func (e *MissingInputsError) Error() string {
	return fmt.Sprintf("cannot compute outputs [%s]: missing required inputs [%s]",
		strings.Join(e.Outputs, ", "), strings.Join(e.Missing, ", "))
}

// Unwrap returns ErrMissingInputs for errors.Is support.
func (e *MissingInputsError) Unwrap() error { return ErrMissingInputs }

// UnknownNameError reports a supplied or requested name that does not
// correspond to any node in the graph.
type UnknownNameError struct {
	// Name is the offending name.
	Name string
	// Role is what the name was used as ("input" or "output").
	Role string
}

// Error implements the error interface.
func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("%s %q does not match any node in the graph", e.Role, e.Name)
}

// Unwrap returns ErrUnknownNode for errors.Is support.
func (e *UnknownNameError) Unwrap() error { return ErrUnknownNode }

// ShapeMismatchError reports a supplied input violating a node's
// declared shape or dtype constraint.
type ShapeMismatchError struct {
	// Input is the input node name.
	Input string
	// Want is the declared constraint (shape or dtype rendering).
	Want string
	// Got is what the caller supplied.
	Got string
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("input %q: supplied tensor %s does not match declared %s", e.Input, e.Got, e.Want)
}

// Unwrap returns ErrShapeMismatch for errors.Is support.
func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// SyncExecutionError reports the node at which the synchronous path
// encountered a deferred result or a dynamic op.
type SyncExecutionError struct {
	// NodeID is the offending node.
	NodeID string
	// Kind is the node's operation kind.
	Kind string
	// Err is ErrDeferredResult or ErrDynamicGraph.
	Err error
}

// Error implements the error interface.
func (e *SyncExecutionError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.Kind, e.Err)
}

// Unwrap returns the underlying sentinel for errors.Is support.
func (e *SyncExecutionError) Unwrap() error { return e.Err }

// DynamicGraphError reports the dynamic node blocking the static path
// and, when known, the alternative inputs that would bypass it.
type DynamicGraphError struct {
	// NodeID is the dynamic node.
	NodeID string
	// AlternativeInputs are names that, if supplied as inputs, would
	// let the request avoid the dynamic node. Purely diagnostic.
	AlternativeInputs []string
}

// Error implements the error interface.
func (e *DynamicGraphError) Error() string {
	msg := fmt.Sprintf("node %s: %v", e.NodeID, ErrDynamicGraph)
	if len(e.AlternativeInputs) > 0 {
		msg += fmt.Sprintf(" (or supply [%s] as inputs to bypass it)", strings.Join(e.AlternativeInputs, ", "))
	}
	return msg
}

// Unwrap returns ErrDynamicGraph for errors.Is support.
func (e *DynamicGraphError) Unwrap() error { return ErrDynamicGraph }

// UnresolvedOutputsError reports outputs that dynamic execution failed
// to produce, with the missing inputs that would have helped if known.
type UnresolvedOutputsError struct {
	// Outputs lists the requested outputs left without a value.
	Outputs []string
	// MissingInputs lists inputs that would have made the request
	// statically resolvable, when the analyzer identified any.
	MissingInputs []string
}

// Error implements the error interface.
func (e *UnresolvedOutputsError) Error() string {
	msg := fmt.Sprintf("execution finished without resolving outputs [%s]", strings.Join(e.Outputs, ", "))
	if len(e.MissingInputs) > 0 {
		msg += fmt.Sprintf("; supplying inputs [%s] may help", strings.Join(e.MissingInputs, ", "))
	}
	return msg
}

// Unwrap returns ErrUnresolvedOutputs for errors.Is support.
func (e *UnresolvedOutputsError) Unwrap() error { return ErrUnresolvedOutputs }

// OpError wraps an error from an operation kernel with node context.
type OpError struct {
	// NodeID is the node whose kernel failed.
	NodeID string
	// Kind is the node's operation kind.
	Kind string
	// Err is the underlying error from the kernel.
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OpError) Unwrap() error { return e.Err }
