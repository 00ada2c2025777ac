// Package termrender draws canopy render instructions to a terminal through
// tcell. Every render item becomes a block of shaded cells covering its
// projected bounds, which is enough to watch a scene animate over ssh or in
// a headless CI log.
package termrender

import (
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/phanxgames/canopy"
)

// Backend implements canopy.Backend on a tcell.Screen. The surface is
// scaled to the screen's cell grid; items later in draw order overwrite
// earlier ones.
type Backend struct {
	screen tcell.Screen
	log    *zap.Logger

	surface    canopy.Rect
	cols, rows int
	background tcell.Color
	drawn      int
}

// NewBackend wraps an initialized screen. A nil logger discards everything.
func NewBackend(screen tcell.Screen, log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{screen: screen, log: log}
}

// DrawnLastFrame returns how many items the last frame drew.
func (b *Backend) DrawnLastFrame() int { return b.drawn }

// Resource ignores resource commands; cells have no textures or programs.
func (b *Backend) Resource(cmd canopy.RenderCommand) {
	b.log.Debug("resource", zap.Stringer("kind", cmd.Kind), zap.Uint32("id", uint32(cmd.ID)))
}

// BeginFrame clears the screen to background.
func (b *Backend) BeginFrame(background canopy.Color, surface canopy.Rect) {
	b.surface = surface
	b.cols, b.rows = b.screen.Size()
	b.background = toColor(background)
	b.drawn = 0
	b.screen.Fill(' ', tcell.StyleDefault.Background(b.background))
}

// DrawInstruction draws ri's items. Frame buffer targets have no terminal
// equivalent and are skipped.
func (b *Backend) DrawInstruction(ri *canopy.RenderInstruction, bufferIndex canopy.BufferIndex) {
	if ri.FrameBuffer != 0 || b.surface.Empty() || b.cols == 0 || b.rows == 0 {
		return
	}
	vp := ri.Viewport
	if vp.Empty() {
		vp = b.surface
	}
	if ri.ClearEnabled {
		b.fill(float32(vp.X), float32(vp.Y), float32(vp.X+vp.Width), float32(vp.Y+vp.Height), ' ',
			tcell.StyleDefault.Background(toColor(ri.ClearColor)))
	}

	for _, list := range ri.Lists() {
		for i := range list.Items {
			item := &list.Items[i]
			state := item.Renderer.State(bufferIndex)
			alpha := item.Color[3] * state.MixColor[3] * state.Opacity
			if alpha <= 0 {
				continue
			}
			minX, minY, maxX, maxY, ok := projectBounds(ri.Projection.Mul4(item.ModelView), item.Size, vp)
			if !ok {
				continue
			}
			c := canopy.Color{
				item.Color[0] * state.MixColor[0],
				item.Color[1] * state.MixColor[1],
				item.Color[2] * state.MixColor[2],
				1,
			}
			style := tcell.StyleDefault.Foreground(toColor(c)).Background(b.background)
			b.fill(minX, minY, maxX, maxY, shade(alpha), style)
			b.drawn++
		}
	}
}

// EndFrame shows the frame.
func (b *Backend) EndFrame() error {
	b.screen.Show()
	return nil
}

// fill sets every cell whose center lies inside the surface-pixel rectangle.
func (b *Backend) fill(minX, minY, maxX, maxY float32, r rune, style tcell.Style) {
	cw := float32(b.surface.Width) / float32(b.cols)
	ch := float32(b.surface.Height) / float32(b.rows)

	x0 := max(0, int(math.Ceil(float64((minX-float32(b.surface.X))/cw-0.5))))
	x1 := min(b.cols, int(math.Ceil(float64((maxX-float32(b.surface.X))/cw-0.5))))
	y0 := max(0, int(math.Ceil(float64((minY-float32(b.surface.Y))/ch-0.5))))
	y1 := min(b.rows, int(math.Ceil(float64((maxY-float32(b.surface.Y))/ch-0.5))))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			b.screen.SetContent(x, y, r, nil, style)
		}
	}
}

// projectBounds returns the surface-pixel bounding box of an item's quad.
func projectBounds(mvp mgl32.Mat4, size mgl32.Vec3, vp canopy.Rect) (minX, minY, maxX, maxY float32, ok bool) {
	hw, hh := size[0]/2, size[1]/2
	corners := [4]mgl32.Vec3{{-hw, -hh, 0}, {hw, -hh, 0}, {-hw, hh, 0}, {hw, hh, 0}}
	minX, minY = math.MaxFloat32, math.MaxFloat32
	maxX, maxY = -math.MaxFloat32, -math.MaxFloat32
	for _, c := range corners {
		clip := mvp.Mul4x1(c.Vec4(1))
		if clip[3] <= 0 {
			return 0, 0, 0, 0, false
		}
		x := float32(vp.X) + (clip[0]/clip[3]+1)*0.5*float32(vp.Width)
		y := float32(vp.Y) + (1-clip[1]/clip[3])*0.5*float32(vp.Height)
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return minX, minY, maxX, maxY, true
}

// shade picks a block character for an opacity.
func shade(alpha float32) rune {
	switch {
	case alpha >= 0.75:
		return '█'
	case alpha >= 0.5:
		return '▓'
	case alpha >= 0.25:
		return '▒'
	}
	return '░'
}

func toColor(c canopy.Color) tcell.Color {
	return tcell.NewRGBColor(channel(c[0]), channel(c[1]), channel(c[2]))
}

func channel(v float32) int32 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return int32(v*255 + 0.5)
}
