package termrender

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/phanxgames/canopy"
)

// termScene is an 80x40 surface drawn onto a 40x20 simulation screen, so
// every cell covers 2x2 surface pixels. The camera is orthographic with one
// world unit per pixel.
type termScene struct {
	um      *canopy.UpdateManager
	root    *canopy.Layer
	screen  tcell.SimulationScreen
	backend *Backend
	render  *canopy.RenderManager
}

func newTermScene(t *testing.T) *termScene {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(screen.Fini)
	screen.SetSize(40, 20)

	s := &termScene{
		um:     canopy.NewUpdateManager(canopy.WithSurface(canopy.Rect{Width: 80, Height: 40})),
		root:   canopy.NewLayer("root"),
		screen: screen,
	}
	s.backend = NewBackend(screen, nil)
	s.render = canopy.NewRenderManager(s.um, s.backend)

	camNode := canopy.NewNode("camera")
	cam := canopy.NewCamera()
	cam.Mode = canopy.OrthographicProjection
	cam.SetNode(camNode)
	task := canopy.NewRenderTask(&s.root.Node, cam)
	s.post(
		canopy.InstallRootMessage{Layer: s.root},
		canopy.AddNodeMessage{Node: camNode},
		canopy.ConnectNodeMessage{Parent: &s.root.Node, Child: camNode},
		canopy.BakeMessage[mgl32.Vec3]{Property: camNode.Position, Value: mgl32.Vec3{0, 0, 800}},
		canopy.AddCameraMessage{Camera: cam},
		canopy.AddRenderTaskMessage{Task: task},
	)
	s.frame(t)
	return s
}

func (s *termScene) post(msgs ...canopy.Message) {
	q := s.um.MessageQueue()
	q.EventProcessingStarted()
	for _, m := range msgs {
		q.Post(m)
	}
	q.FlushQueue()
}

// frame updates once and renders the slot that update wrote.
func (s *termScene) frame(t *testing.T) {
	t.Helper()
	s.um.Update(0.016, 0, 0)
	if err := s.render.Render(s.um.Buffers().GetRenderBufferIndex()); err != nil {
		t.Fatalf("Render: %v", err)
	}
}

// addBox adds a w×h node centered on the origin with one renderer.
func (s *termScene) addBox(w, h float32) (*canopy.Node, *canopy.Renderer) {
	n := canopy.NewNode("box")
	r := canopy.NewRenderer(1, nil)
	s.post(
		canopy.AddNodeMessage{Node: n},
		canopy.ConnectNodeMessage{Parent: &s.root.Node, Child: n},
		canopy.BakeMessage[mgl32.Vec3]{Property: n.Size, Value: mgl32.Vec3{w, h, 0}},
		canopy.AddRendererMessage{Renderer: r},
		canopy.AttachRendererMessage{Node: n, Renderer: r},
	)
	return n, r
}

func (s *termScene) cell(t *testing.T, x, y int) (rune, tcell.Color) {
	t.Helper()
	r, _, style, _ := s.screen.GetContent(x, y)
	fg, _, _ := style.Decompose()
	return r, fg
}

// --- Drawing ---

func TestBoxCoversProjectedCells(t *testing.T) {
	s := newTermScene(t)
	// 20x10 pixels centered on a 80x40 surface: pixels [30,50)x[15,25),
	// cells [15,25)x[7,12).
	s.addBox(20, 10)
	s.frame(t)

	if got := s.backend.DrawnLastFrame(); got != 1 {
		t.Fatalf("DrawnLastFrame = %d, want 1", got)
	}

	inside := [][2]int{{20, 10}, {16, 8}, {23, 10}}
	for _, c := range inside {
		r, fg := s.cell(t, c[0], c[1])
		if r != '█' {
			t.Errorf("cell %v = %q, want full block", c, r)
		}
		if fg != tcell.NewRGBColor(255, 255, 255) {
			t.Errorf("cell %v fg = %v, want white", c, fg)
		}
	}
	outside := [][2]int{{0, 0}, {13, 10}, {27, 10}, {20, 4}, {20, 14}}
	for _, c := range outside {
		if r, _ := s.cell(t, c[0], c[1]); r != ' ' {
			t.Errorf("cell %v = %q, want blank", c, r)
		}
	}
}

func TestOpacityShadesCells(t *testing.T) {
	s := newTermScene(t)
	_, r := s.addBox(20, 10)
	s.post(canopy.BakeMessage[float32]{Property: r.Opacity, Value: 0.3})
	s.frame(t)

	if got, _ := s.cell(t, 20, 10); got != '▒' {
		t.Errorf("cell = %q, want medium shade", got)
	}
}

func TestInvisibleItemSkipped(t *testing.T) {
	s := newTermScene(t)
	_, r := s.addBox(20, 10)
	s.post(canopy.BakeMessage[float32]{Property: r.Opacity, Value: 0})
	s.frame(t)

	if got := s.backend.DrawnLastFrame(); got != 0 {
		t.Errorf("DrawnLastFrame = %d, want 0", got)
	}
	if got, _ := s.cell(t, 20, 10); got != ' ' {
		t.Errorf("cell = %q, want blank", got)
	}
}

func TestBackgroundColor(t *testing.T) {
	s := newTermScene(t)
	s.post(canopy.SetBackgroundColorMessage{Color: canopy.Color{0, 0, 1, 1}})
	s.frame(t)

	_, _, style, _ := s.screen.GetContent(0, 0)
	_, bg, _ := style.Decompose()
	if bg != tcell.NewRGBColor(0, 0, 255) {
		t.Errorf("background = %v, want blue", bg)
	}
}

// --- Helpers ---

func TestShade(t *testing.T) {
	tests := []struct {
		alpha float32
		want  rune
	}{
		{1, '█'},
		{0.75, '█'},
		{0.6, '▓'},
		{0.25, '▒'},
		{0.1, '░'},
	}
	for _, tt := range tests {
		if got := shade(tt.alpha); got != tt.want {
			t.Errorf("shade(%v) = %q, want %q", tt.alpha, got, tt.want)
		}
	}
}

func TestProjectBoundsBehindCamera(t *testing.T) {
	m := mgl32.Ident4()
	m[15] = -1
	if _, _, _, _, ok := projectBounds(m, mgl32.Vec3{1, 1, 0}, canopy.Rect{Width: 10, Height: 10}); ok {
		t.Error("quad behind the camera should not project")
	}
}

func TestProjectBoundsIdentity(t *testing.T) {
	minX, minY, maxX, maxY, ok := projectBounds(mgl32.Ident4(), mgl32.Vec3{1, 1, 0}, canopy.Rect{Width: 100, Height: 100})
	if !ok {
		t.Fatal("projectBounds failed")
	}
	if minX != 25 || maxX != 75 || minY != 25 || maxY != 75 {
		t.Errorf("bounds = (%v,%v)-(%v,%v), want (25,25)-(75,75)", minX, minY, maxX, maxY)
	}
}
