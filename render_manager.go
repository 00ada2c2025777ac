package canopy

// Backend draws render instructions. All methods run on the render goroutine.
type Backend interface {
	// Resource applies one forwarded resource command.
	Resource(cmd RenderCommand)
	// BeginFrame starts a frame on the default surface.
	BeginFrame(background Color, surface Rect)
	// DrawInstruction draws one instruction. The instruction and its items
	// are valid only until the call returns.
	DrawInstruction(ri *RenderInstruction, bufferIndex BufferIndex)
	// EndFrame presents the frame.
	EndFrame() error
}

// ProgramCompiler is implemented by backends that build shader programs.
// A non-nil binary is handed back to the update goroutine for caching.
type ProgramCompiler interface {
	CompileProgram(id ResourceID, payload ShaderProgramPayload) (binary []byte)
}

// RenderManager is the render-goroutine side of an UpdateManager. It applies
// the forwarded resource commands and draws the instructions of one buffer
// slot per frame.
type RenderManager struct {
	queue        *RenderQueue
	instructions *RenderInstructionContainer
	saver        *ShaderSaver
	backend      Backend
	compiler     ProgramCompiler

	background Color
	surface    Rect
	frames     uint64
}

// NewRenderManager creates the render side for um.
func NewRenderManager(um *UpdateManager, backend Backend) *RenderManager {
	rm := &RenderManager{
		queue:        um.renderQueue,
		instructions: &um.instructions,
		saver:        &um.shaderSaver,
		backend:      backend,
		background:   Color{0, 0, 0, 1},
		surface:      um.surface,
	}
	rm.compiler, _ = backend.(ProgramCompiler)
	return rm
}

// Render draws the slot completed by the update that wrote bufferIndex.
func (rm *RenderManager) Render(bufferIndex BufferIndex) error {
	rm.ApplyResources(bufferIndex)

	rm.backend.BeginFrame(rm.background, rm.surface)
	for i := range rm.instructions.Count(bufferIndex) {
		ri := rm.instructions.At(bufferIndex, i)
		rm.backend.DrawInstruction(ri, bufferIndex)
		if ri.SyncTracker != nil {
			ri.SyncTracker.SetSynced()
		}
	}
	rm.frames++
	return rm.backend.EndFrame()
}

// ApplyResources forwards the slot's queued resource commands without
// drawing. A host that skips drawing a completed slot must call it before
// the next update reuses the slot, or the commands would replay out of order.
func (rm *RenderManager) ApplyResources(bufferIndex BufferIndex) {
	rm.queue.Drain(bufferIndex, rm.apply)
}

// Frames returns how many frames were rendered.
func (rm *RenderManager) Frames() uint64 { return rm.frames }

// Surface returns the current default surface.
func (rm *RenderManager) Surface() Rect { return rm.surface }

// Background returns the current clear color of the default surface.
func (rm *RenderManager) Background() Color { return rm.background }

func (rm *RenderManager) apply(cmd RenderCommand) {
	switch cmd.Kind {
	case ResourceBackgroundColor:
		if c, ok := cmd.Payload.(Color); ok {
			rm.background = c
		}
	case ResourceSurfaceRect:
		if r, ok := cmd.Payload.(Rect); ok {
			rm.surface = r
		}
	case ResourceShaderProgram:
		if p, ok := cmd.Payload.(ShaderProgramPayload); ok && rm.compiler != nil && p.Binary == nil {
			if binary := rm.compiler.CompileProgram(cmd.ID, p); binary != nil {
				rm.saver.SaveBinary(p.Shader, binary)
			}
		}
	}
	rm.backend.Resource(cmd)
}
