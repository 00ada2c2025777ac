package canopy

import "sync/atomic"

// BufferIndex selects one of the two slots of every double-buffered value.
type BufferIndex uint8

// SceneGraphBuffers tracks which slot the update goroutine writes and which
// slot the render goroutine reads. The two are always different.
//
// GetUpdateBufferIndex is stable for the whole of one UpdateManager.Update
// call; Swap is called exactly once at the end of it.
type SceneGraphBuffers struct {
	update atomic.Uint32
}

// GetUpdateBufferIndex returns the slot that per-frame writes must target.
func (b *SceneGraphBuffers) GetUpdateBufferIndex() BufferIndex {
	return BufferIndex(b.update.Load())
}

// GetRenderBufferIndex returns the slot completed by the most recent update.
func (b *SceneGraphBuffers) GetRenderBufferIndex() BufferIndex {
	return BufferIndex(b.update.Load() ^ 1)
}

// Swap flips the update and render slots in a single atomic step.
func (b *SceneGraphBuffers) Swap() {
	for {
		old := b.update.Load()
		if b.update.CompareAndSwap(old, old^1) {
			return
		}
	}
}
