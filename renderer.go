package canopy

import "sync"

// Renderer attaches drawable state (geometry, textures, shader, blending) to
// a node. Its animatable state is double-buffered; everything else is copied
// into a per-slot snapshot by PrepareRender so the render goroutine only ever
// reads the render buffer index.
type Renderer struct {
	PropertyOwner

	Opacity  *Property[float32]
	MixColor *Property[Color]

	geometry   ResourceID
	textures   *TextureSet
	shader     *Shader
	depthIndex int
	blend      BlendMode

	snapshot [2]RendererState
}

// RendererState is what the render goroutine reads for one buffer slot.
type RendererState struct {
	Geometry ResourceID
	Textures []ResourceID
	Program  ResourceID
	Blend    BlendMode
	Opacity  float32
	MixColor Color
}

// NewRenderer creates a renderer drawing geometry with the given shader.
func NewRenderer(geometry ResourceID, shader *Shader) *Renderer {
	r := &Renderer{geometry: geometry, shader: shader}
	r.PropertyOwner.ID = nextObjectID()
	r.Opacity = AddProperty(&r.PropertyOwner, float32(1))
	r.MixColor = AddProperty(&r.PropertyOwner, ColorWhite)
	return r
}

// SetTextures replaces the texture set (nil for untextured geometry).
func (r *Renderer) SetTextures(ts *TextureSet) { r.textures = ts }

// Textures returns the texture set, or nil.
func (r *Renderer) Textures() *TextureSet { return r.textures }

// SetShader replaces the shader.
func (r *Renderer) SetShader(s *Shader) { r.shader = s }

// Shader returns the shader, or nil.
func (r *Renderer) Shader() *Shader { return r.shader }

// SetGeometry replaces the geometry handle.
func (r *Renderer) SetGeometry(id ResourceID) { r.geometry = id }

// SetDepthIndex sets the renderer's depth relative to its node's depth.
func (r *Renderer) SetDepthIndex(depth int) { r.depthIndex = depth }

// DepthIndex returns the renderer's depth index.
func (r *Renderer) DepthIndex() int { return r.depthIndex }

// SetBlendMode sets the compositing mode.
func (r *Renderer) SetBlendMode(mode BlendMode) { r.blend = mode }

// BlendMode returns the compositing mode.
func (r *Renderer) BlendMode() BlendMode { return r.blend }

// IsReady reports whether every resource the renderer draws with is uploaded.
// Renderers that are not ready are left out of the layer lists.
func (r *Renderer) IsReady() bool {
	return r.textures == nil || r.textures.Ready()
}

// PrepareRender snapshots the renderer for the render goroutine.
func (r *Renderer) PrepareRender(bufferIndex BufferIndex) {
	s := &r.snapshot[bufferIndex]
	s.Geometry = r.geometry
	s.Textures = s.Textures[:0]
	if r.textures != nil {
		s.Textures = append(s.Textures, r.textures.textures...)
	}
	s.Program = 0
	if r.shader != nil {
		s.Program = r.shader.Program()
	}
	s.Blend = r.blend
	s.Opacity = r.Opacity.Get(bufferIndex)
	s.MixColor = r.MixColor.Get(bufferIndex)
}

// State returns the snapshot for bufferIndex. Render-side callers pass the
// render buffer index.
func (r *Renderer) State(bufferIndex BufferIndex) *RendererState {
	return &r.snapshot[bufferIndex]
}

// TextureSet groups the textures a renderer samples. Upload completion is
// reported by the render side through a TextureSetReady message.
type TextureSet struct {
	ID       uint32
	textures []ResourceID
	ready    bool
}

// NewTextureSet creates a texture set over the given texture handles.
func NewTextureSet(textures ...ResourceID) *TextureSet {
	return &TextureSet{ID: nextObjectID(), textures: textures, ready: len(textures) == 0}
}

// Textures returns the texture handles. The slice MUST NOT be mutated.
func (ts *TextureSet) Textures() []ResourceID { return ts.textures }

// Ready reports whether all textures are uploaded.
func (ts *TextureSet) Ready() bool { return ts.ready }

// SetReady records upload completion.
func (ts *TextureSet) SetReady(ready bool) { ts.ready = ready }

// ShaderHints are backend hints for a shader program.
type ShaderHints uint8

const (
	ShaderHintNone                ShaderHints = 0
	ShaderHintOutputIsTransparent ShaderHints = 1 << 0
	ShaderHintModifiesGeometry    ShaderHints = 1 << 1
)

// Shader is a program handle plus uniforms animatable as properties.
// Compiled binaries produced by the render goroutine are handed back through
// the ShaderSaver queue.
type Shader struct {
	PropertyOwner

	Hints ShaderHints

	program ResourceID
	binary  []byte
}

// NewShader creates a shader with no program.
func NewShader(hints ShaderHints) *Shader {
	s := &Shader{Hints: hints}
	s.PropertyOwner.ID = nextObjectID()
	return s
}

// SetProgram installs the program handle.
func (s *Shader) SetProgram(program ResourceID) { s.program = program }

// Program returns the program handle.
func (s *Shader) Program() ResourceID { return s.program }

// Binary returns the last compiled binary, or nil.
func (s *Shader) Binary() []byte { return s.binary }

// ShaderSaver collects compiled shader binaries from the render goroutine.
// The update goroutine swaps the pending list out under the lock and
// processes it without holding it.
type ShaderSaver struct {
	mu      sync.Mutex
	pending []*Shader
	binary  map[*Shader][]byte
	scratch []*Shader
}

// SaveBinary records a compiled binary. Safe to call from the render goroutine.
func (q *ShaderSaver) SaveBinary(s *Shader, binary []byte) {
	q.mu.Lock()
	if q.binary == nil {
		q.binary = make(map[*Shader][]byte)
	}
	if _, ok := q.binary[s]; !ok {
		q.pending = append(q.pending, s)
	}
	q.binary[s] = binary
	q.mu.Unlock()
}

// drain swaps out the pending list and stores each binary on its shader.
// Returns the shaders whose binaries arrived.
func (q *ShaderSaver) drain() []*Shader {
	q.mu.Lock()
	q.pending, q.scratch = q.scratch[:0], q.pending
	binaries := q.binary
	q.binary = nil
	q.mu.Unlock()

	for _, s := range q.scratch {
		s.binary = binaries[s]
	}
	return q.scratch
}
