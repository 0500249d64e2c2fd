package tensorgraph

import (
	"log/slog"
	"strconv"

	"github.com/google/uuid"
)

// Frame identifies one loop iteration: the loop construct's frame name
// and the zero-based iteration number.
type Frame struct {
	Name      string
	Iteration int
}

// FrameStack is the loop-iteration identity of a scheduled work item.
// The root of execution has an empty stack; entering a loop body pushes
// a frame, each NextIteration advances the top frame's iteration.
//
// FrameStack is an immutable value: Push, Next, and Pop return new
// stacks and never modify the receiver, so a stack captured when an
// operation is dispatched stays valid when a deferred result resolves.
type FrameStack struct {
	frames []Frame
}

// RootFrame returns the empty frame stack of top-level execution.
func RootFrame() FrameStack { return FrameStack{} }

// Push returns a new stack with a fresh frame (iteration 0) on top.
func (fs FrameStack) Push(name string) FrameStack {
	frames := make([]Frame, len(fs.frames)+1)
	copy(frames, fs.frames)
	frames[len(fs.frames)] = Frame{Name: name}
	return FrameStack{frames: frames}
}

// Next returns a new stack whose top frame's iteration is advanced.
// Panics on the root stack.
func (fs FrameStack) Next() FrameStack {
	if len(fs.frames) == 0 {
		panic("tensorgraph: NextIteration outside a loop frame")
	}
	frames := make([]Frame, len(fs.frames))
	copy(frames, fs.frames)
	frames[len(frames)-1].Iteration++
	return FrameStack{frames: frames}
}

// Pop returns a new stack without the top frame.
// Panics on the root stack.
func (fs FrameStack) Pop() FrameStack {
	if len(fs.frames) == 0 {
		panic("tensorgraph: Exit outside a loop frame")
	}
	frames := make([]Frame, len(fs.frames)-1)
	copy(frames, fs.frames[:len(fs.frames)-1])
	return FrameStack{frames: frames}
}

// Depth returns the number of frames on the stack.
func (fs FrameStack) Depth() int { return len(fs.frames) }

// IsRoot reports whether this is the root (empty) stack.
func (fs FrameStack) IsRoot() bool { return len(fs.frames) == 0 }

// Key returns a canonical string identity for the stack.
// The root stack's key is the empty string.
func (fs FrameStack) Key() string {
	key := ""
	for _, f := range fs.frames {
		key += "/" + f.Name + ":" + strconv.Itoa(f.Iteration)
	}
	return key
}

// ancestors returns the stack itself followed by each enclosing stack
// out to the root, innermost first. Used for tensor lookup: a node
// inside a loop body reads values produced in enclosing frames.
func (fs FrameStack) ancestors() []FrameStack {
	stacks := make([]FrameStack, 0, len(fs.frames)+1)
	cur := fs
	for {
		stacks = append(stacks, cur)
		if cur.IsRoot() {
			return stacks
		}
		cur = cur.Pop()
	}
}

// qualifiedID is the identity a tensor list is stored under: the node
// name plus the frame stack it was produced in.
func qualifiedID(name string, fs FrameStack) string {
	return name + "@" + fs.Key()
}

// tensorMap is the per-invocation working table mapping qualified
// identities to output tensor lists. It is rebuilt for every
// invocation and never shared.
type tensorMap struct {
	values map[string][]*Tensor
}

func newTensorMap() *tensorMap {
	return &tensorMap{values: make(map[string][]*Tensor)}
}

// set stores the outputs of a node under the given frame identity.
func (m *tensorMap) set(name string, fs FrameStack, tensors []*Tensor) {
	m.values[qualifiedID(name, fs)] = tensors
}

// get returns the outputs stored under the exact frame identity.
func (m *tensorMap) get(name string, fs FrameStack) ([]*Tensor, bool) {
	t, ok := m.values[qualifiedID(name, fs)]
	return t, ok
}

// lookup walks the frame stack innermost to root and returns the
// first stored outputs for the node, along with the frame they were
// found under.
func (m *tensorMap) lookup(name string, fs FrameStack) ([]*Tensor, FrameStack, bool) {
	for _, stack := range fs.ancestors() {
		if t, ok := m.values[qualifiedID(name, stack)]; ok {
			return t, stack, true
		}
	}
	return nil, FrameStack{}, false
}

// all iterates every stored tensor list.
func (m *tensorMap) all(fn func(id string, tensors []*Tensor)) {
	for id, tensors := range m.values {
		fn(id, tensors)
	}
}

// ExecContext carries the per-invocation execution state: the shared
// read-only weight table, the working tensor table, scratch tables for
// looping constructs, and invocation identity for logging.
//
// One ExecContext exists per top-level Execute/ExecuteAsync call and
// is released at the end of that call.
type ExecContext struct {
	weights map[string][]*Tensor
	tensors *tensorMap

	// Scratch tables for looping constructs, keyed by handle id.
	// Only populated when the graph contains control flow.
	tensorArrays map[int64][]*Tensor
	tensorLists  map[int64][]*Tensor

	runID  string
	logger *slog.Logger
}

func newExecContext(weights map[string][]*Tensor, logger *slog.Logger) *ExecContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecContext{
		weights:      weights,
		tensors:      newTensorMap(),
		tensorArrays: make(map[int64][]*Tensor),
		tensorLists:  make(map[int64][]*Tensor),
		runID:        uuid.New().String(),
		logger:       logger,
	}
}

// RunID returns the unique identifier of this invocation.
func (ec *ExecContext) RunID() string { return ec.runID }

// Logger returns the invocation logger. Never nil.
func (ec *ExecContext) Logger() *slog.Logger { return ec.logger }

// Weight returns the weight tensors for a node name, or nil.
// The weight table is shared and read-only; callers must not dispose
// or mutate the returned tensors.
func (ec *ExecContext) Weight(name string) []*Tensor { return ec.weights[name] }

// TensorArray returns the scratch tensor array for a handle id.
func (ec *ExecContext) TensorArray(id int64) []*Tensor { return ec.tensorArrays[id] }

// SetTensorArray stores a scratch tensor array under a handle id.
func (ec *ExecContext) SetTensorArray(id int64, tensors []*Tensor) {
	ec.tensorArrays[id] = tensors
}

// TensorList returns the scratch tensor list for a handle id.
func (ec *ExecContext) TensorList(id int64) []*Tensor { return ec.tensorLists[id] }

// SetTensorList stores a scratch tensor list under a handle id.
func (ec *ExecContext) SetTensorList(id int64, tensors []*Tensor) {
	ec.tensorLists[id] = tensors
}

// release disposes every tensor owned by this invocation that is not
// frozen and not already disposed, then drops all tables. Weights are
// never owned by the context and are left untouched.
func (ec *ExecContext) release(frozen map[int64]bool) {
	ec.tensors.all(func(_ string, tensors []*Tensor) {
		for _, t := range tensors {
			if t == nil || t.Disposed() || frozen[t.ID()] {
				continue
			}
			t.Dispose()
		}
	})
	for _, tensors := range ec.tensorArrays {
		for _, t := range tensors {
			if t != nil && !t.Disposed() && !frozen[t.ID()] {
				t.Dispose()
			}
		}
	}
	for _, tensors := range ec.tensorLists {
		for _, t := range tensors {
			if t != nil && !t.Disposed() && !frozen[t.ID()] {
				t.Dispose()
			}
		}
	}
	ec.tensors = newTensorMap()
	ec.tensorArrays = make(map[int64][]*Tensor)
	ec.tensorLists = make(map[int64][]*Tensor)
}
