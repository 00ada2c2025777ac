package canopy

// ResourceKind identifies the render-side object a RenderCommand targets.
type ResourceKind uint8

const (
	ResourceTexture ResourceKind = iota
	ResourceGeometry
	ResourcePropertyBuffer
	ResourceFrameBuffer
	ResourceSampler
	ResourceShaderProgram
	ResourceRenderer
	ResourceBackgroundColor
	ResourceSurfaceRect
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceTexture:
		return "texture"
	case ResourceGeometry:
		return "geometry"
	case ResourcePropertyBuffer:
		return "property-buffer"
	case ResourceFrameBuffer:
		return "frame-buffer"
	case ResourceSampler:
		return "sampler"
	case ResourceShaderProgram:
		return "shader-program"
	case ResourceRenderer:
		return "renderer"
	case ResourceBackgroundColor:
		return "background-color"
	case ResourceSurfaceRect:
		return "surface-rect"
	}
	return "unknown"
}

// ResourceOp is the lifecycle step a RenderCommand performs.
type ResourceOp uint8

const (
	OpCreate ResourceOp = iota
	OpUpload
	OpDestroy
	OpSet
)

// RenderCommand is one update→render request. The update side never
// interprets Payload; it is handed to the Backend as is.
type RenderCommand struct {
	Kind    ResourceKind
	Op      ResourceOp
	ID      ResourceID
	Payload any
}

// ShaderProgramPayload asks the render side to build a program for a shader.
// Shader is an opaque key for ShaderSaver.SaveBinary and MUST NOT be read on
// the render goroutine.
type ShaderProgramPayload struct {
	Shader *Shader
	Source []byte
	Binary []byte
}

// RenderQueue carries RenderCommands from the update goroutine to the render
// goroutine, one list per buffer slot. The update side appends to the update
// slot; the render side drains the render slot after the swap.
type RenderQueue struct {
	slots [2][]RenderCommand
}

// Push appends cmd to the slot for bufferIndex. Update goroutine only.
func (q *RenderQueue) Push(bufferIndex BufferIndex, cmd RenderCommand) {
	q.slots[bufferIndex] = append(q.slots[bufferIndex], cmd)
}

// Len returns the number of commands waiting in the slot.
func (q *RenderQueue) Len(bufferIndex BufferIndex) int {
	return len(q.slots[bufferIndex])
}

// Drain calls fn for every command in the slot, in push order, then empties
// it. Render goroutine only, with the render buffer index.
func (q *RenderQueue) Drain(bufferIndex BufferIndex, fn func(RenderCommand)) {
	slot := q.slots[bufferIndex]
	for _, cmd := range slot {
		fn(cmd)
	}
	clear(slot)
	q.slots[bufferIndex] = slot[:0]
}
