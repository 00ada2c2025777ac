package canopy

import (
	"errors"
	"sync"
	"testing"
)

// fakeBackend records what the render side asked it to do.
type fakeBackend struct {
	mu         sync.Mutex
	frames     int
	resources  []RenderCommand
	items      []int // item count per drawn instruction
	background Color
	surface    Rect
	endErr     error
}

func (b *fakeBackend) Resource(cmd RenderCommand) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resources = append(b.resources, cmd)
}

func (b *fakeBackend) BeginFrame(background Color, surface Rect) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.background = background
	b.surface = surface
}

func (b *fakeBackend) DrawInstruction(ri *RenderInstruction, _ BufferIndex) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, ri.ItemCount())
}

func (b *fakeBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames++
	return b.endErr
}

func (b *fakeBackend) frameCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// compilingBackend also builds shader programs.
type compilingBackend struct {
	fakeBackend
	compiled []ResourceID
}

func (b *compilingBackend) CompileProgram(id ResourceID, p ShaderProgramPayload) []byte {
	b.compiled = append(b.compiled, id)
	return append([]byte("bin:"), p.Source...)
}

func (s *testScene) render(t *testing.T, rm *RenderManager) {
	t.Helper()
	if err := rm.Render(s.um.Buffers().GetRenderBufferIndex()); err != nil {
		t.Fatalf("Render: %v", err)
	}
}

func TestRenderManagerDrawsInstructions(t *testing.T) {
	s := newTestScene(t)
	backend := &fakeBackend{}
	rm := NewRenderManager(s.um, backend)
	s.addSprite("a", &s.root.Node)
	s.addSprite("b", &s.root.Node)
	s.update()
	s.render(t, rm)

	if len(backend.items) != 1 || backend.items[0] != 2 {
		t.Errorf("items per instruction = %v, want [2]", backend.items)
	}
	if backend.surface != (Rect{Width: 800, Height: 600}) {
		t.Errorf("surface = %v, want 800x600", backend.surface)
	}
	if backend.background != (Color{0, 0, 0, 1}) {
		t.Errorf("background = %v, want opaque black", backend.background)
	}
	if rm.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", rm.Frames())
	}
}

func TestRenderManagerAppliesStageCommands(t *testing.T) {
	s := newTestScene(t)
	backend := &fakeBackend{}
	rm := NewRenderManager(s.um, backend)
	red := Color{1, 0, 0, 1}
	s.post(
		SetBackgroundColorMessage{Color: red},
		SetSurfaceRectMessage{Rect: Rect{Width: 320, Height: 240}},
	)
	s.update()
	s.render(t, rm)

	if rm.Background() != red || backend.background != red {
		t.Errorf("background = %v, want red", rm.Background())
	}
	if rm.Surface() != (Rect{Width: 320, Height: 240}) {
		t.Errorf("surface = %v, want 320x240", rm.Surface())
	}
	if len(backend.resources) != 2 {
		t.Errorf("resources = %d, want both commands passed to the backend", len(backend.resources))
	}
}

func TestRenderManagerSkippedSlotKeepsCommandOrder(t *testing.T) {
	s := newTestScene(t)
	backend := &fakeBackend{}
	rm := NewRenderManager(s.um, backend)
	red, green := Color{1, 0, 0, 1}, Color{0, 1, 0, 1}

	skipped := s.um.Buffers().GetUpdateBufferIndex()
	s.post(SetBackgroundColorMessage{Color: red})
	s.update()
	// The host never draws this slot, only forwards its commands.
	rm.ApplyResources(skipped)

	s.post(SetBackgroundColorMessage{Color: green})
	s.update()
	s.render(t, rm)
	if rm.Background() != green {
		t.Fatalf("background = %v, want green", rm.Background())
	}

	s.post(KeepRenderingMessage{Seconds: 1})
	s.update()
	s.render(t, rm)
	if rm.Background() != green {
		t.Errorf("background = %v, want green to stay after the next frame", rm.Background())
	}
}

func TestRenderManagerCompilesPrograms(t *testing.T) {
	s := newTestScene(t)
	backend := &compilingBackend{}
	rm := NewRenderManager(s.um, backend)
	sh := NewShader(0)
	s.post(
		AddShaderMessage{Shader: sh},
		SetShaderProgramMessage{Shader: sh, Program: 7, Source: []byte("src")},
	)
	s.update()
	s.render(t, rm)
	drainNotifications(s.um)

	if len(backend.compiled) != 1 || backend.compiled[0] != 7 {
		t.Fatalf("compiled = %v, want [7]", backend.compiled)
	}

	s.update()
	notes := drainNotifications(s.um)
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if sc, ok := notes[0].(ShaderCompiledNotification); !ok || string(sc.Binary) != "bin:src" {
		t.Errorf("notification = %#v, want the compiled binary", notes[0])
	}
}

func TestRenderManagerSkipsCachedBinary(t *testing.T) {
	s := newTestScene(t)
	backend := &compilingBackend{}
	rm := NewRenderManager(s.um, backend)
	sh := NewShader(0)
	s.post(
		AddShaderMessage{Shader: sh},
		SetShaderProgramMessage{Shader: sh, Program: 7, Binary: []byte("cached")},
	)
	s.update()
	s.render(t, rm)

	if len(backend.compiled) != 0 {
		t.Errorf("compiled = %v, want none for a cached binary", backend.compiled)
	}
}

func TestRenderManagerSignalsSyncTracker(t *testing.T) {
	s := newTestScene(t)
	rm := NewRenderManager(s.um, &fakeBackend{})
	s.post(
		RenderTaskFunc{Task: s.task, Fn: func(t *RenderTask) { t.SetFrameBuffer(3) }},
		SetRefreshRateMessage{Task: s.task, Rate: RefreshOnce},
	)
	s.update()

	bi := s.um.Buffers().GetRenderBufferIndex()
	ri := s.um.Instructions().At(bi, 0)
	if ri.SyncTracker == nil {
		t.Fatal("instruction should carry the task's sync tracker")
	}
	if ri.SyncTracker.IsSynced() {
		t.Fatal("tracker synced before rendering")
	}
	s.render(t, rm)
	if !ri.SyncTracker.IsSynced() {
		t.Error("Render should signal the tracker")
	}
}

func TestRenderManagerReturnsBackendError(t *testing.T) {
	s := newTestScene(t)
	boom := errors.New("device lost")
	rm := NewRenderManager(s.um, &fakeBackend{endErr: boom})
	if err := rm.Render(s.um.Buffers().GetRenderBufferIndex()); !errors.Is(err, boom) {
		t.Errorf("Render err = %v, want %v", err, boom)
	}
}
