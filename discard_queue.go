package canopy

// Releaser is implemented by objects that free resources when the
// DiscardQueue lets go of them.
type Releaser interface {
	Release()
}

// DiscardQueue holds objects retired from the live scene graph until the
// render goroutine can no longer be reading a buffer slot that referenced
// them.
//
// An object added while the update index is I stays alive through the frame
// that renders slot I and is released by the next Clear(I), which runs at
// the start of the frame after that. Both slots have then been rewritten
// without it.
type DiscardQueue struct {
	slots     [2][]any
	onRelease func(obj any)
}

// NewDiscardQueue creates an empty queue.
func NewDiscardQueue() *DiscardQueue {
	return &DiscardQueue{}
}

// SetReleaseHook installs a callback run for every released object, after
// its Release method.
func (q *DiscardQueue) SetReleaseHook(fn func(obj any)) {
	q.onRelease = fn
}

// Add takes ownership of obj. Panics on nil.
func (q *DiscardQueue) Add(bufferIndex BufferIndex, obj any) {
	if obj == nil {
		panic("canopy: cannot discard nil object")
	}
	q.slots[bufferIndex] = append(q.slots[bufferIndex], obj)
}

// Clear releases every object added at bufferIndex. Call once at the start
// of the frame whose update index equals bufferIndex.
func (q *DiscardQueue) Clear(bufferIndex BufferIndex) {
	slot := q.slots[bufferIndex]
	for i, obj := range slot {
		if r, ok := obj.(Releaser); ok {
			r.Release()
		}
		if q.onRelease != nil {
			q.onRelease(obj)
		}
		slot[i] = nil
	}
	q.slots[bufferIndex] = slot[:0]
}

// Len returns the number of objects waiting to be released.
func (q *DiscardQueue) Len() int {
	return len(q.slots[0]) + len(q.slots[1])
}
