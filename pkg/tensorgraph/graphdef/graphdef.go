// Package graphdef loads computation graphs from YAML or JSON
// definition files.
//
// A definition lists nodes with op kinds, attributes, and input
// references, plus the graph's input/output/weight designations:
//
//	nodes:
//	  - name: x
//	    kind: Placeholder
//	  - name: w
//	    kind: Placeholder
//	  - name: y
//	    kind: MatMul
//	    inputs: [x, w]
//	inputs: [x]
//	weights: [w]
//	outputs: [y]
//
// Input references use "name" for slot 0, "name:2" for a specific
// output slot, and "^name" for a control dependency.
package graphdef

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	tg "github.com/randalmurphal/tensorgraph/pkg/tensorgraph"
)

// NodeDef is one node in a graph definition file.
type NodeDef struct {
	Name   string         `yaml:"name" json:"name"`
	Kind   string         `yaml:"kind" json:"kind"`
	Inputs []string       `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Attrs  map[string]any `yaml:"attrs,omitempty" json:"attrs,omitempty"`
}

// GraphDef is a complete graph definition file.
type GraphDef struct {
	Nodes        []NodeDef           `yaml:"nodes" json:"nodes"`
	Inputs       []string            `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs      []string            `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Weights      []string            `yaml:"weights,omitempty" json:"weights,omitempty"`
	Initializers []string            `yaml:"initializers,omitempty" json:"initializers,omitempty"`
	Functions    map[string]GraphDef `yaml:"functions,omitempty" json:"functions,omitempty"`
}

// FromFile loads a graph definition, auto-detecting format by
// extension. Supported extensions: .yaml, .yml, .json
func FromFile(path string) (GraphDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GraphDef{}, fmt.Errorf("read graph file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return GraphDef{}, fmt.Errorf("unsupported graph file extension: %s", ext)
	}
}

// FromYAML parses YAML data into a GraphDef.
func FromYAML(data []byte) (GraphDef, error) {
	var def GraphDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return GraphDef{}, fmt.Errorf("parse yaml: %w", err)
	}
	return def, nil
}

// FromJSON parses JSON data into a GraphDef.
func FromJSON(data []byte) (GraphDef, error) {
	var def GraphDef
	if err := json.Unmarshal(data, &def); err != nil {
		return GraphDef{}, fmt.Errorf("parse json: %w", err)
	}
	return def, nil
}

// Build validates the definition against the registry and constructs
// an immutable graph, functions included.
func (d GraphDef) Build(registry *tg.OpRegistry) (*tg.Graph, error) {
	b := tg.NewBuilder(registry)

	for _, nd := range d.Nodes {
		if nd.Name == "" {
			return nil, fmt.Errorf("graphdef: node with empty name")
		}
		refs := make([]tg.InputRef, 0, len(nd.Inputs))
		for _, raw := range nd.Inputs {
			ref, err := ParseInputRef(raw)
			if err != nil {
				return nil, fmt.Errorf("graphdef: node %s: %w", nd.Name, err)
			}
			refs = append(refs, ref)
		}
		b.AddNode(nd.Name, nd.Kind, nd.Attrs, refs...)
	}

	b.SetInputs(d.Inputs...)
	b.SetOutputs(d.Outputs...)
	b.SetWeights(d.Weights...)
	b.SetInitializers(d.Initializers...)

	for name, fd := range d.Functions {
		fn, err := fd.Build(registry)
		if err != nil {
			return nil, fmt.Errorf("graphdef: function %s: %w", name, err)
		}
		b.AddFunction(name, fn)
	}

	return b.Build()
}

// ParseInputRef parses the textual input reference syntax: "name"
// reads output slot 0, "name:2" reads slot 2, "^name" declares a
// control dependency.
func ParseInputRef(raw string) (tg.InputRef, error) {
	if raw == "" {
		return tg.InputRef{}, fmt.Errorf("empty input reference")
	}
	if strings.HasPrefix(raw, "^") {
		name := raw[1:]
		if name == "" {
			return tg.InputRef{}, fmt.Errorf("empty control dependency")
		}
		return tg.ControlDep(name), nil
	}
	if i := strings.LastIndexByte(raw, ':'); i > 0 {
		slot, err := strconv.Atoi(raw[i+1:])
		if err != nil || slot < 0 {
			return tg.InputRef{}, fmt.Errorf("bad output slot in %q", raw)
		}
		return tg.FromSlot(raw[:i], slot), nil
	}
	return tg.FromNode(raw), nil
}
