package capture

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory capture store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]*Record // runID -> captures in order
	closed bool
}

// NewMemoryStore creates a new in-memory capture store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]*Record),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	// Copy to avoid retaining caller-owned slices.
	stored := *rec
	stored.Shape = append([]int(nil), rec.Shape...)
	stored.Data = append([]float32(nil), rec.Data...)

	m.data[rec.RunID] = append(m.data[rec.RunID], &stored)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	recs, ok := m.data[runID]
	if !ok {
		return nil, ErrRunNotFound
	}

	result := make([]*Record, len(recs))
	copy(result, recs)
	return result, nil
}

// Runs implements Store.
func (m *MemoryStore) Runs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	runs := make([]string, 0, len(m.data))
	for runID := range m.data {
		runs = append(runs, runID)
	}
	sort.Strings(runs)
	return runs, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the total number of captures across all runs.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, recs := range m.data {
		count += len(recs)
	}
	return count
}
