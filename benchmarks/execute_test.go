package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/tensorgraph/pkg/tensorgraph"
	"github.com/randalmurphal/tensorgraph/pkg/tensorgraph/ops"
)

func benchInput() map[string]*tensorgraph.Tensor {
	return map[string]*tensorgraph.Tensor{
		nodeID(0): tensorgraph.NewTensor([]int{4}, []float32{1, 2, 3, 4}),
	}
}

// BenchmarkExecute_Chain_5 runs a 5-node chain with a memoized plan.
func BenchmarkExecute_Chain_5(b *testing.B) {
	benchmarkExecuteChain(b, 5)
}

// BenchmarkExecute_Chain_50 runs a 50-node chain with a memoized plan.
func BenchmarkExecute_Chain_50(b *testing.B) {
	benchmarkExecuteChain(b, 50)
}

// BenchmarkExecute_Chain_100 runs a 100-node chain with a memoized plan.
func BenchmarkExecute_Chain_100(b *testing.B) {
	benchmarkExecuteChain(b, 100)
}

func benchmarkExecuteChain(b *testing.B, n int) {
	b.Helper()
	exec := tensorgraph.NewExecutor(buildChainGraph(b, n), nil)
	defer exec.Dispose()

	ctx := context.Background()
	last := nodeID(n - 1)

	// Warm the plan cache so the loop measures steady-state runs.
	if _, err := exec.Execute(ctx, benchInput(), last); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, err := exec.Execute(ctx, benchInput(), last)
		if err != nil {
			b.Fatal(err)
		}
		out[0].Dispose()
	}
}

// BenchmarkExecute_PlanCompile measures plan compilation by defeating
// the cache with a fresh executor per run.
func BenchmarkExecute_PlanCompile(b *testing.B) {
	graph := buildChainGraph(b, 50)
	ctx := context.Background()
	last := nodeID(49)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		exec := tensorgraph.NewExecutor(graph, nil)
		out, err := exec.Execute(ctx, benchInput(), last)
		if err != nil {
			b.Fatal(err)
		}
		out[0].Dispose()
		exec.Dispose()
	}
}

// BenchmarkExecuteAsync_Chain_50 runs a static chain through the
// dynamic interpreter, for comparison with the planned path.
func BenchmarkExecuteAsync_Chain_50(b *testing.B) {
	exec := tensorgraph.NewExecutor(buildChainGraph(b, 50), nil)
	defer exec.Dispose()

	ctx := context.Background()
	last := nodeID(49)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, err := exec.ExecuteAsync(ctx, benchInput(), last)
		if err != nil {
			b.Fatal(err)
		}
		out[0].Dispose()
	}
}

// BenchmarkExecuteAsync_Loop_3 runs a 3-iteration while loop.
func BenchmarkExecuteAsync_Loop_3(b *testing.B) {
	benchmarkExecuteLoop(b, 3)
}

// BenchmarkExecuteAsync_Loop_10 runs a 10-iteration while loop.
func BenchmarkExecuteAsync_Loop_10(b *testing.B) {
	benchmarkExecuteLoop(b, 10)
}

func benchmarkExecuteLoop(b *testing.B, limit float32) {
	b.Helper()
	exec := tensorgraph.NewExecutor(buildLoopGraph(b, limit), nil)
	defer exec.Dispose()

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, err := exec.ExecuteAsync(ctx,
			map[string]*tensorgraph.Tensor{"x": tensorgraph.Scalar(0)},
			"result")
		if err != nil {
			b.Fatal(err)
		}
		out[0].Dispose()
	}
}

// BenchmarkExecuteAsync_Conditional runs a Switch/Merge graph,
// alternating branches.
func BenchmarkExecuteAsync_Conditional(b *testing.B) {
	graph, err := tensorgraph.NewBuilder(ops.Default()).
		AddNode("x", "Placeholder", nil).
		AddNode("pred", "Placeholder", nil).
		AddNode("sw", "Switch", nil, tensorgraph.FromNode("x"), tensorgraph.FromNode("pred")).
		AddNode("lo", "Neg", nil, tensorgraph.FromSlot("sw", 0)).
		AddNode("hi", "Relu", nil, tensorgraph.FromSlot("sw", 1)).
		AddNode("m", "Merge", nil, tensorgraph.FromNode("lo"), tensorgraph.FromNode("hi")).
		SetInputs("x", "pred").
		SetOutputs("m").
		Build()
	if err != nil {
		b.Fatal(err)
	}

	exec := tensorgraph.NewExecutor(graph, nil)
	defer exec.Dispose()

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, err := exec.ExecuteAsync(ctx,
			map[string]*tensorgraph.Tensor{
				"x":    tensorgraph.Scalar(float32(i)),
				"pred": tensorgraph.BoolScalar(i%2 == 0),
			},
			"m")
		if err != nil {
			b.Fatal(err)
		}
		out[0].Dispose()
	}
}
