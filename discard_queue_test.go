package canopy

import "testing"

type countingReleaser struct {
	released int
}

func (c *countingReleaser) Release() { c.released++ }

func TestDiscardReleasedOnSecondClearOfSlot(t *testing.T) {
	var buffers SceneGraphBuffers
	q := NewDiscardQueue()
	obj := &countingReleaser{}

	// Frame N adds at its update index.
	q.Add(buffers.GetUpdateBufferIndex(), obj)
	buffers.Swap()

	// Frame N+1 clears the other slot.
	q.Clear(buffers.GetUpdateBufferIndex())
	if obj.released != 0 {
		t.Fatal("released during frame N+1")
	}
	buffers.Swap()

	// Frame N+2 clears the slot it was added to.
	q.Clear(buffers.GetUpdateBufferIndex())
	if obj.released != 1 {
		t.Errorf("released = %d, want 1 at frame N+2", obj.released)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}

	q.Clear(buffers.GetUpdateBufferIndex())
	if obj.released != 1 {
		t.Error("object released twice")
	}
}

func TestDiscardReleaseHook(t *testing.T) {
	q := NewDiscardQueue()
	var seen []any
	q.SetReleaseHook(func(obj any) { seen = append(seen, obj) })
	q.Add(1, "plain")
	q.Add(1, &countingReleaser{})
	q.Clear(1)
	if len(seen) != 2 {
		t.Errorf("hook calls = %d, want 2", len(seen))
	}
}

func TestDiscardNilPanics(t *testing.T) {
	expectPanic(t, "nil", func() { NewDiscardQueue().Add(0, nil) })
}

func TestBuffersAlwaysDiffer(t *testing.T) {
	var b SceneGraphBuffers
	for range 4 {
		if b.GetUpdateBufferIndex() == b.GetRenderBufferIndex() {
			t.Fatal("update and render indices must differ")
		}
		b.Swap()
	}
}
