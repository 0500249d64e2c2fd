// Package ops provides the built-in operation kernels and the default
// operation registry for tensorgraph.
//
// The execution engine never interprets operation semantics itself: it
// resolves a node's inputs and dispatches to the kernel registered for
// the node's kind. This package supplies kernels for the common math
// and array operations, registers the control-flow kinds (which carry
// no kernel; the dynamic scheduler interprets them directly), and
// offers the Async wrapper for kernels that complete off the scheduler
// goroutine.
//
// Custom kernels can be added to any registry:
//
//	reg := ops.Default()
//	reg.Register(tensorgraph.OpSpec{
//	    Kind: "Scale",
//	    Fn: func(ctx context.Context, node *tensorgraph.Node, inputs []*tensorgraph.Tensor, ec *tensorgraph.ExecContext) (tensorgraph.OpResult, error) {
//	        factor := float32(node.Attrs.Float("factor", 1))
//	        out := inputs[0].Clone()
//	        for i := range out.Data() {
//	            out.Data()[i] *= factor
//	        }
//	        return tensorgraph.Ready(out), nil
//	    },
//	    MinInputs: 1,
//	})
package ops
