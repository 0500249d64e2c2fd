package tensorgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildChain builds x -> a -> b -> c with x as the declared input.
func buildChain(t *testing.T) *Graph {
	t.Helper()
	g, err := NewBuilder(testRegistry()).
		AddNode("x", "Placeholder", nil).
		AddNode("a", "Op", nil, FromNode("x")).
		AddNode("b", "Op", nil, FromNode("a")).
		AddNode("c", "Op", nil, FromNode("b")).
		SetInputs("x").
		SetOutputs("c").
		Build()
	require.NoError(t, err)
	return g
}

// TestAnalyze_NeededSet tests the backward walk from outputs.
func TestAnalyze_NeededSet(t *testing.T) {
	g := buildChain(t)

	info := analyzeSubgraph(g, nameSet("x"), mustNodes(g, "c"))

	assert.Equal(t, nameSet("x", "a", "b", "c"), info.needed)
	assert.Empty(t, info.missing)
	assert.Nil(t, info.dynamicNode)
}

// TestAnalyze_StopsAtSuppliedIntermediate tests that supplying an
// intermediate shrinks the subgraph: its producers are not needed.
func TestAnalyze_StopsAtSuppliedIntermediate(t *testing.T) {
	g := buildChain(t)

	info := analyzeSubgraph(g, nameSet("b"), mustNodes(g, "c"))

	assert.Equal(t, nameSet("b", "c"), info.needed)
	assert.Empty(t, info.missing)
}

// TestAnalyze_MissingInput tests detection of an unsupplied declared
// input.
func TestAnalyze_MissingInput(t *testing.T) {
	g := buildChain(t)

	info := analyzeSubgraph(g, nameSet(), mustNodes(g, "c"))

	assert.Equal(t, []string{"x"}, info.missing)
}

// TestAnalyze_WeightsAreSources tests that weight nodes terminate the
// walk without being reported missing.
func TestAnalyze_WeightsAreSources(t *testing.T) {
	g, err := NewBuilder(testRegistry()).
		AddNode("x", "Placeholder", nil).
		AddNode("w", "Placeholder", nil).
		AddNode("y", "Binary", nil, FromNode("x"), FromNode("w")).
		SetInputs("x").
		SetWeights("w").
		SetOutputs("y").
		Build()
	require.NoError(t, err)

	info := analyzeSubgraph(g, nameSet("x", "w"), mustNodes(g, "y"))

	assert.Empty(t, info.missing)
	assert.Equal(t, nameSet("x", "w", "y"), info.needed)
}

// TestAnalyze_InitializersNotMissing tests that zero-input
// initializers self-resolve.
func TestAnalyze_InitializersNotMissing(t *testing.T) {
	g, err := NewBuilder(testRegistry()).
		AddNode("seed", "Op", nil).
		AddNode("y", "Op", nil, FromNode("seed")).
		SetInitializers("seed").
		SetOutputs("y").
		Build()
	require.NoError(t, err)

	info := analyzeSubgraph(g, nameSet(), mustNodes(g, "y"))

	assert.Empty(t, info.missing)
	assert.Equal(t, nameSet("seed", "y"), info.needed)
}

// TestAnalyze_DynamicNodeDetected tests dynamic detection with the
// consumer names surfaced as alternative inputs.
func TestAnalyze_DynamicNodeDetected(t *testing.T) {
	g, err := NewBuilder(testRegistry()).
		AddNode("x", "Placeholder", nil).
		AddNode("d", "Dyn", nil, FromNode("x")).
		AddNode("u", "Op", nil, FromNode("d")).
		AddNode("v", "Op", nil, FromNode("d")).
		SetInputs("x").
		SetOutputs("u", "v").
		Build()
	require.NoError(t, err)

	info := analyzeSubgraph(g, nameSet("x"), mustNodes(g, "u", "v"))

	require.NotNil(t, info.dynamicNode)
	assert.Equal(t, "d", info.dynamicNode.Name)
	assert.Equal(t, []string{"u", "v"}, info.alternativeInputs)
	assert.True(t, info.hasDynamicOrControlFlow(g))
}

// TestAnalyze_SupplyingBypassesDynamic tests the documented remedy:
// supplying the dynamic node's consumers' values directly.
func TestAnalyze_SupplyingBypassesDynamic(t *testing.T) {
	g, err := NewBuilder(testRegistry()).
		AddNode("x", "Placeholder", nil).
		AddNode("d", "Dyn", nil, FromNode("x")).
		AddNode("u", "Op", nil, FromNode("d")).
		AddNode("out", "Op", nil, FromNode("u")).
		SetInputs("x").
		SetOutputs("out").
		Build()
	require.NoError(t, err)

	info := analyzeSubgraph(g, nameSet("u"), mustNodes(g, "out"))

	assert.Nil(t, info.dynamicNode)
	assert.Equal(t, nameSet("u", "out"), info.needed)
}

// TestAnalyze_MissingSorted tests stable diagnostics ordering.
func TestAnalyze_MissingSorted(t *testing.T) {
	g, err := NewBuilder(testRegistry()).
		AddNode("zeta", "Placeholder", nil).
		AddNode("alpha", "Placeholder", nil).
		AddNode("y", "Binary", nil, FromNode("zeta"), FromNode("alpha")).
		SetInputs("zeta", "alpha").
		SetOutputs("y").
		Build()
	require.NoError(t, err)

	info := analyzeSubgraph(g, nameSet(), mustNodes(g, "y"))

	assert.Equal(t, []string{"alpha", "zeta"}, info.missing)
}
