// Package capture persists snapshots of intermediate tensors for
// post-hoc inspection.
//
// The executor's intermediate-tensor debugging hook clones every
// intermediate it produces; a capture Store gives those clones a
// durable home so a failing graph can be debugged after the process
// has moved on. Two stores are provided: an in-memory store for tests
// and a SQLite store for real debugging sessions.
package capture

import (
	"encoding/json"
	"time"
)

// Record is one captured intermediate tensor.
type Record struct {
	// RunID identifies the invocation the tensor was produced in.
	RunID string `json:"run_id"`
	// NodeID is the producing node.
	NodeID string `json:"node_id"`
	// Slot is the output slot on the producing node.
	Slot int `json:"slot"`
	// Frame is the frame-stack key the tensor was produced under.
	// Empty for the root frame.
	Frame string `json:"frame,omitempty"`
	// Timestamp is when the tensor was captured.
	Timestamp time.Time `json:"timestamp"`

	// Shape and DType describe the tensor.
	Shape []int  `json:"shape"`
	DType string `json:"dtype"`
	// Data is the tensor's element data.
	Data []float32 `json:"data"`
}

// New creates a record for a captured tensor.
func New(runID, nodeID string, slot int, frame string, shape []int, dtype string, data []float32) *Record {
	return &Record{
		RunID:     runID,
		NodeID:    nodeID,
		Slot:      slot,
		Frame:     frame,
		Timestamp: time.Now().UTC(),
		Shape:     shape,
		DType:     dtype,
		Data:      data,
	}
}

// Marshal serializes a record to JSON.
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserializes a record from JSON.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
