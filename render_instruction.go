package canopy

import "github.com/go-gl/mathgl/mgl32"

// RenderItem is one draw of one renderer. Everything the render goroutine
// needs from the node is copied in; the renderer's own state is read through
// Renderer.State at the render buffer index.
type RenderItem struct {
	NodeID     uint32
	Renderer   *Renderer
	Model      mgl32.Mat4
	ModelView  mgl32.Mat4
	Size       mgl32.Vec3
	Color      Color
	DepthIndex int
	Blend      BlendMode

	treeOrder int
}

// RenderList is the sorted items of one layer for one render task.
type RenderList struct {
	LayerID uint32
	Items   []RenderItem
}

// RenderInstruction is everything needed to draw one render task.
type RenderInstruction struct {
	TaskID       uint32
	View         mgl32.Mat4
	Projection   mgl32.Mat4
	Viewport     Rect
	ClearEnabled bool
	ClearColor   Color
	FrameBuffer  ResourceID
	SyncTracker  *RenderSyncTracker

	lists []RenderList
}

// Lists returns the per-layer render lists in draw order.
func (ri *RenderInstruction) Lists() []RenderList {
	return ri.lists
}

// ItemCount returns the total number of items across all lists.
func (ri *RenderInstruction) ItemCount() int {
	n := 0
	for i := range ri.lists {
		n += len(ri.lists[i].Items)
	}
	return n
}

// nextList appends an empty list, reusing capacity from earlier frames.
func (ri *RenderInstruction) nextList(layerID uint32) *RenderList {
	n := len(ri.lists)
	if n < cap(ri.lists) {
		ri.lists = ri.lists[:n+1]
	} else {
		ri.lists = append(ri.lists, RenderList{})
	}
	l := &ri.lists[n]
	l.LayerID = layerID
	clear(l.Items)
	l.Items = l.Items[:0]
	return l
}

// dropLastList removes the most recently added list.
func (ri *RenderInstruction) dropLastList() {
	ri.lists = ri.lists[:len(ri.lists)-1]
}

func (ri *RenderInstruction) reset() {
	lists := ri.lists[:0]
	*ri = RenderInstruction{lists: lists}
}

// RenderInstructionContainer holds one instruction list per buffer slot. The
// update goroutine rebuilds the update slot; the render goroutine reads the
// render slot.
type RenderInstructionContainer struct {
	instructions [2][]RenderInstruction
}

// ResetAndReserve empties the slot and makes room for capacity instructions.
func (c *RenderInstructionContainer) ResetAndReserve(bufferIndex BufferIndex, capacity int) {
	s := c.instructions[bufferIndex][:0]
	if cap(s) < capacity {
		grown := make([]RenderInstruction, 0, capacity)
		// Keep the per-list allocations of existing entries.
		grown = append(grown, c.instructions[bufferIndex][:cap(c.instructions[bufferIndex])]...)
		s = grown[:0]
	}
	c.instructions[bufferIndex] = s
}

// GetNextInstruction appends a blank instruction and returns it.
func (c *RenderInstructionContainer) GetNextInstruction(bufferIndex BufferIndex) *RenderInstruction {
	s := c.instructions[bufferIndex]
	n := len(s)
	if n < cap(s) {
		s = s[:n+1]
	} else {
		s = append(s, RenderInstruction{})
	}
	c.instructions[bufferIndex] = s
	ri := &s[n]
	ri.reset()
	return ri
}

// DiscardCurrentInstruction removes the most recently added instruction.
func (c *RenderInstructionContainer) DiscardCurrentInstruction(bufferIndex BufferIndex) {
	s := c.instructions[bufferIndex]
	c.instructions[bufferIndex] = s[:len(s)-1]
}

// Count returns the number of instructions in the slot.
func (c *RenderInstructionContainer) Count(bufferIndex BufferIndex) int {
	return len(c.instructions[bufferIndex])
}

// At returns instruction i of the slot.
func (c *RenderInstructionContainer) At(bufferIndex BufferIndex, i int) *RenderInstruction {
	return &c.instructions[bufferIndex][i]
}
