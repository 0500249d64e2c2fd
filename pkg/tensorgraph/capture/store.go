package capture

import "errors"

// Sentinel errors for capture stores.
var (
	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("capture store is closed")

	// ErrRunNotFound indicates no captures exist for the run.
	ErrRunNotFound = errors.New("no captures found for run")
)

// Store persists captured intermediate tensors.
//
// Implementations must be safe for concurrent use: multiple
// invocations may capture into the same store.
type Store interface {
	// Save persists one captured tensor.
	Save(rec *Record) error

	// List returns all captures for a run, in capture order.
	// Returns ErrRunNotFound if the run has no captures.
	List(runID string) ([]*Record, error)

	// Runs returns the run IDs that have captures.
	Runs() ([]string, error)

	// Delete removes all captures for a run.
	Delete(runID string) error

	// Close releases store resources.
	Close() error
}
