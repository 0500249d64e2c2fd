/*
Package tensorgraph executes dataflow computation graphs over tensors.

# Overview

tensorgraph is a Go library for building and running directed graphs
where nodes are tensor operations and edges carry tensor values. It is
designed for inference-style workloads: build a graph once, then feed
it inputs repeatedly with compiled execution plans, reference-counted
tensor lifecycle, and optional loops and conditionals.

The library provides:
  - Compile-time validation of graph structure
  - Memoized execution plans per (inputs, outputs) request
  - Automatic disposal of intermediate tensors
  - Control flow (Switch, Merge, loop frames) on the dynamic path
  - OpenTelemetry integration for observability

# Basic Usage

Build a graph with nodes and input references, then execute it:

	func main() {
	    graph, err := tensorgraph.NewBuilder(ops.Default()).
	        AddNode("x", "Placeholder", nil).
	        AddNode("h", "Relu", nil, tensorgraph.FromNode("x")).
	        AddNode("y", "Add", nil, tensorgraph.FromNode("h"), tensorgraph.FromNode("x")).
	        SetInputs("x").
	        SetOutputs("y").
	        Build()
	    if err != nil {
	        log.Fatal(err)
	    }

	    exec := tensorgraph.NewExecutor(graph, nil)
	    defer exec.Dispose()

	    out, err := exec.Execute(context.Background(), map[string]*tensorgraph.Tensor{
	        "x": tensorgraph.NewTensor([]int{2}, []float32{-1, 2}),
	    })
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Println(out[0].Data()) // [2 4]
	}

# Execution Paths

Execute compiles the requested subgraph into a topologically ordered
plan with a tensor liveness map, memoizes the plan, and replays it on
subsequent calls with the same input and output names. It rejects
graphs that need run-time decisions.

ExecuteAsync interprets the graph with a readiness-driven scheduler
instead of a fixed order. It handles Switch/Merge conditionals, loop
frames built from Enter, NextIteration, and Exit, operations whose
output shapes depend on data, and kernels that complete on their own
goroutines. It accepts every graph Execute accepts, at a scheduling
cost.

# Tensor Lifecycle

Tensors are explicitly owned. Intermediate values are disposed as soon
as their last consumer has run; inputs, weights, and requested outputs
are never auto-disposed. Callers own the tensors they pass in and the
tensors they get back. Reading a disposed tensor panics.

# Weights and Functions

Weights are bound once at executor construction and shared read-only
across invocations; Dispose releases them. Named sub-graphs attached
with AddFunction run through per-function executors that share the
parent's weight table.
*/
package tensorgraph
