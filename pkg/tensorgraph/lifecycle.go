package tensorgraph

// tracker implements reference-counted disposal of intermediate
// tensors. One tracker exists per invocation.
//
// A tensor is frozen (never auto-disposed) if it came from a weight,
// a caller-supplied input, or a node in the requested output set.
// Every other tensor carries a consumer count initialized to the
// number of its producer's children that will actually run; each time
// a consumer finishes the count drops, and at zero the tensor is
// released immediately.
//
// Control-flow nodes are excluded from this accounting entirely:
// their consumers are not statically known, so their tensors live
// until the ExecContext is released.
type tracker struct {
	frozen map[int64]bool
	counts map[int64]int
}

func newTracker() *tracker {
	return &tracker{
		frozen: make(map[int64]bool),
		counts: make(map[int64]int),
	}
}

// freeze exempts tensors from automatic disposal.
func (tr *tracker) freeze(tensors ...*Tensor) {
	for _, t := range tensors {
		if t != nil {
			tr.frozen[t.ID()] = true
		}
	}
}

// isFrozen reports whether a tensor id is exempt from disposal.
func (tr *tracker) isFrozen(id int64) bool { return tr.frozen[id] }

// frozenSet returns the frozen ids for handing to ExecContext.release.
func (tr *tracker) frozenSet() map[int64]bool { return tr.frozen }

// untracked marks an output slot as exempt from consumer counting.
// Its tensor lives until the ExecContext is released.
const untracked = -1

// noteProduced registers a node's freshly produced outputs with a
// per-slot consumer count. A non-frozen tensor with zero consumers is
// released on the spot: disposal is driven by consumers, so a
// childless intermediate would otherwise never be retired. Slots
// marked untracked are left alone.
func (tr *tracker) noteProduced(tensors []*Tensor, counts []int) {
	for i, t := range tensors {
		if t == nil || tr.frozen[t.ID()] {
			continue
		}
		n := untracked
		if i < len(counts) {
			n = counts[i]
		}
		switch {
		case n == untracked:
		case n == 0:
			t.Dispose()
		default:
			tr.counts[t.ID()] = n
		}
	}
}

// noteConsumed records that one consumer of each given tensor has
// finished. Tensors whose count reaches zero are released immediately.
func (tr *tracker) noteConsumed(tensors []*Tensor) {
	for _, t := range tensors {
		if t == nil || tr.frozen[t.ID()] {
			continue
		}
		c, tracked := tr.counts[t.ID()]
		if !tracked {
			continue
		}
		c--
		if c > 0 {
			tr.counts[t.ID()] = c
			continue
		}
		delete(tr.counts, t.ID())
		t.Dispose()
	}
}

// dispose releases tensors directly, skipping frozen and nil entries.
// Used by the static path, where the compiled plan's liveness map
// already pins each producer to exactly one disposal point.
func (tr *tracker) dispose(tensors []*Tensor) int {
	released := 0
	for _, t := range tensors {
		if t == nil || tr.frozen[t.ID()] || t.Disposed() {
			continue
		}
		t.Dispose()
		released++
	}
	return released
}
