// Package attr provides typed access to node attribute maps.
//
// Graph definitions carry per-node operation parameters as loosely
// typed maps (often decoded from YAML or JSON). Attrs wraps such a map
// and offers accessors that return a default when a key is missing or
// has the wrong type, so operation kernels never have to type-assert.
package attr

// Attrs wraps a map[string]any for type-safe value extraction.
// All accessor methods return default values if the key is missing
// or the value cannot be converted to the requested type.
type Attrs struct {
	data map[string]any
}

// New creates an Attrs from the given map.
// If data is nil, an empty Attrs is returned.
func New(data map[string]any) Attrs {
	if data == nil {
		data = make(map[string]any)
	}
	return Attrs{data: data}
}

// String returns the string value for key, or defaultVal if missing or not a string.
func (a Attrs) String(key, defaultVal string) string {
	v, ok := a.data[key]
	if !ok {
		return defaultVal
	}
	if s, ok := v.(string); ok {
		return s
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal if missing or not a bool.
func (a Attrs) Bool(key string, defaultVal bool) bool {
	v, ok := a.data[key]
	if !ok {
		return defaultVal
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal if missing or not convertible.
//
// Accepts:
//   - int: used directly
//   - int64: converted to int
//   - float64: converted to int (only if no fractional part)
func (a Attrs) Int(key string, defaultVal int) int {
	v, ok := a.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the float64 value for key, or defaultVal if missing or not convertible.
func (a Attrs) Float(key string, defaultVal float64) float64 {
	v, ok := a.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// Ints returns the integer slice for key, or defaultVal if missing or not convertible.
//
// Accepts:
//   - []int: used directly
//   - []any: each element converted via the same rules as Int
func (a Attrs) Ints(key string, defaultVal []int) []int {
	v, ok := a.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case []int:
		return val
	case []any:
		result := make([]int, 0, len(val))
		for _, item := range val {
			switch n := item.(type) {
			case int:
				result = append(result, n)
			case int64:
				result = append(result, int(n))
			case float64:
				if n != float64(int(n)) {
					return defaultVal
				}
				result = append(result, int(n))
			default:
				return defaultVal
			}
		}
		return result
	}
	return defaultVal
}

// Floats returns the float32 slice for key, or defaultVal if missing or not convertible.
//
// Accepts []float32, []float64, and []any with numeric elements.
// Used for inline constant values in graph definitions.
func (a Attrs) Floats(key string, defaultVal []float32) []float32 {
	v, ok := a.data[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case []float32:
		return val
	case []float64:
		result := make([]float32, len(val))
		for i, f := range val {
			result[i] = float32(f)
		}
		return result
	case []any:
		result := make([]float32, 0, len(val))
		for _, item := range val {
			switch n := item.(type) {
			case float64:
				result = append(result, float32(n))
			case int:
				result = append(result, float32(n))
			default:
				return defaultVal
			}
		}
		return result
	}
	return defaultVal
}

// Shape returns the declared shape for key, or nil if absent.
// A -1 dimension is a wildcard. This is a convenience over Ints for
// the common "shape" attribute on placeholder nodes.
func (a Attrs) Shape(key string) []int {
	return a.Ints(key, nil)
}

// Any returns the raw value for key, or defaultVal if missing.
func (a Attrs) Any(key string, defaultVal any) any {
	v, ok := a.data[key]
	if !ok {
		return defaultVal
	}
	return v
}

// Has returns true if the key exists.
func (a Attrs) Has(key string) bool {
	_, ok := a.data[key]
	return ok
}

// Raw returns the underlying map.
// The returned map should not be modified.
func (a Attrs) Raw() map[string]any {
	return a.data
}
