package ebitenrender

import (
	"image"
	"image/color"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"github.com/phanxgames/canopy"
)

// Backend draws canopy render instructions onto ebiten images. Every method
// runs on ebiten's draw goroutine.
//
// Texture resources are created from an image.Image or *ebiten.Image payload.
// Frame buffers are created from an image.Point payload giving their size.
// Untextured renderers draw a white quad tinted by the item color.
type Backend struct {
	log *zap.Logger

	screen       *ebiten.Image
	textures     map[canopy.ResourceID]*ebiten.Image
	frameBuffers map[canopy.ResourceID]*ebiten.Image
	white        *ebiten.Image

	op    ebiten.DrawImageOptions
	drawn int
}

// NewBackend creates an empty backend. A nil logger discards everything.
func NewBackend(log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{
		log:          log,
		textures:     make(map[canopy.ResourceID]*ebiten.Image),
		frameBuffers: make(map[canopy.ResourceID]*ebiten.Image),
	}
}

// SetScreen sets the image the default surface draws to. Call it from
// ebiten's Draw before rendering a frame.
func (b *Backend) SetScreen(screen *ebiten.Image) { b.screen = screen }

// Texture returns an uploaded texture, or nil.
func (b *Backend) Texture(id canopy.ResourceID) *ebiten.Image { return b.textures[id] }

// FrameBuffer returns a created frame buffer, or nil.
func (b *Backend) FrameBuffer(id canopy.ResourceID) *ebiten.Image { return b.frameBuffers[id] }

// DrawnLastFrame returns how many items the last frame drew.
func (b *Backend) DrawnLastFrame() int { return b.drawn }

// Resource applies one forwarded resource command.
func (b *Backend) Resource(cmd canopy.RenderCommand) {
	switch cmd.Kind {
	case canopy.ResourceTexture:
		b.textureCommand(cmd)
	case canopy.ResourceFrameBuffer:
		b.frameBufferCommand(cmd)
	}
}

func (b *Backend) textureCommand(cmd canopy.RenderCommand) {
	switch cmd.Op {
	case canopy.OpCreate, canopy.OpUpload:
		var img *ebiten.Image
		switch p := cmd.Payload.(type) {
		case *ebiten.Image:
			img = p
		case image.Image:
			img = ebiten.NewImageFromImage(p)
		default:
			b.log.Warn("texture payload ignored", zap.Uint32("id", uint32(cmd.ID)))
			return
		}
		if old, ok := b.textures[cmd.ID]; ok && old != img {
			old.Deallocate()
		}
		b.textures[cmd.ID] = img
	case canopy.OpDestroy:
		if img, ok := b.textures[cmd.ID]; ok {
			img.Deallocate()
			delete(b.textures, cmd.ID)
		}
	}
}

func (b *Backend) frameBufferCommand(cmd canopy.RenderCommand) {
	switch cmd.Op {
	case canopy.OpCreate:
		size, ok := cmd.Payload.(image.Point)
		if !ok || size.X <= 0 || size.Y <= 0 {
			b.log.Warn("frame buffer size missing", zap.Uint32("id", uint32(cmd.ID)))
			return
		}
		if old, ok := b.frameBuffers[cmd.ID]; ok {
			old.Deallocate()
		}
		b.frameBuffers[cmd.ID] = ebiten.NewImage(size.X, size.Y)
	case canopy.OpDestroy:
		if img, ok := b.frameBuffers[cmd.ID]; ok {
			img.Deallocate()
			delete(b.frameBuffers, cmd.ID)
		}
	}
}

// BeginFrame clears the screen to background.
func (b *Backend) BeginFrame(background canopy.Color, _ canopy.Rect) {
	b.drawn = 0
	if b.screen != nil {
		b.screen.Fill(toRGBA(background))
	}
}

// DrawInstruction draws every item of ri into its frame buffer or the screen.
func (b *Backend) DrawInstruction(ri *canopy.RenderInstruction, bufferIndex canopy.BufferIndex) {
	target := b.screen
	if ri.FrameBuffer != 0 {
		target = b.frameBuffers[ri.FrameBuffer]
	}
	if target == nil {
		return
	}

	vp := ri.Viewport
	if vp.Empty() {
		bounds := target.Bounds()
		vp = canopy.Rect{X: bounds.Min.X, Y: bounds.Min.Y, Width: bounds.Dx(), Height: bounds.Dy()}
	}
	dst := target.SubImage(image.Rect(vp.X, vp.Y, vp.X+vp.Width, vp.Y+vp.Height)).(*ebiten.Image)
	if ri.ClearEnabled {
		dst.Fill(toRGBA(ri.ClearColor))
	}

	for _, list := range ri.Lists() {
		for i := range list.Items {
			if b.drawItem(dst, ri, &list.Items[i], vp, bufferIndex) {
				b.drawn++
			}
		}
	}
}

func (b *Backend) drawItem(dst *ebiten.Image, ri *canopy.RenderInstruction, item *canopy.RenderItem, vp canopy.Rect, bufferIndex canopy.BufferIndex) bool {
	state := item.Renderer.State(bufferIndex)

	src := b.whitePixel()
	if len(state.Textures) > 0 {
		if tex := b.textures[state.Textures[0]]; tex != nil {
			src = tex
		}
	}

	tl, tr, bl, ok := projectQuad(ri.Projection.Mul4(item.ModelView), item.Size, vp)
	if !ok {
		return false
	}
	bounds := src.Bounds()

	b.op.GeoM = quadGeoM(tl, tr, bl, float64(bounds.Dx()), float64(bounds.Dy()))

	// Premultiplied color scale.
	c := itemColor(item.Color, state)
	b.op.ColorScale.Reset()
	b.op.ColorScale.Scale(c[0]*c[3], c[1]*c[3], c[2]*c[3], c[3])

	b.op.Blend = Blend(item.Blend)

	dst.DrawImage(src, &b.op)
	return true
}

// EndFrame is a no-op; ebiten presents the screen after Draw returns.
func (b *Backend) EndFrame() error { return nil }

func (b *Backend) whitePixel() *ebiten.Image {
	if b.white == nil {
		b.white = ebiten.NewImage(1, 1)
		b.white.Fill(color.White)
	}
	return b.white
}

// projectQuad projects the top-left, top-right and bottom-left corners of
// an item's quad into viewport pixels. It fails when a corner is behind the
// camera.
func projectQuad(mvp mgl32.Mat4, size mgl32.Vec3, vp canopy.Rect) (tl, tr, bl mgl32.Vec2, ok bool) {
	hw, hh := size[0]/2, size[1]/2
	if tl, ok = projectPoint(mvp, mgl32.Vec3{-hw, -hh, 0}, vp); !ok {
		return
	}
	if tr, ok = projectPoint(mvp, mgl32.Vec3{hw, -hh, 0}, vp); !ok {
		return
	}
	bl, ok = projectPoint(mvp, mgl32.Vec3{-hw, hh, 0}, vp)
	return
}

// projectPoint maps a local point through mvp to viewport pixels, with
// normalized device Y up and pixel Y down.
func projectPoint(mvp mgl32.Mat4, p mgl32.Vec3, vp canopy.Rect) (mgl32.Vec2, bool) {
	clip := mvp.Mul4x1(p.Vec4(1))
	if clip[3] <= 0 {
		return mgl32.Vec2{}, false
	}
	x := clip[0] / clip[3]
	y := clip[1] / clip[3]
	return mgl32.Vec2{
		float32(vp.X) + (x+1)*0.5*float32(vp.Width),
		float32(vp.Y) + (1-y)*0.5*float32(vp.Height),
	}, true
}

// quadGeoM builds the affine transform that maps a w×h source image onto
// the parallelogram spanned by tl, tr and bl.
func quadGeoM(tl, tr, bl mgl32.Vec2, w, h float64) ebiten.GeoM {
	var m ebiten.GeoM
	if w == 0 || h == 0 {
		return m
	}
	m.SetElement(0, 0, float64(tr[0]-tl[0])/w)
	m.SetElement(1, 0, float64(tr[1]-tl[1])/w)
	m.SetElement(0, 1, float64(bl[0]-tl[0])/h)
	m.SetElement(1, 1, float64(bl[1]-tl[1])/h)
	m.SetElement(0, 2, float64(tl[0]))
	m.SetElement(1, 2, float64(tl[1]))
	return m
}

// itemColor combines the node's world color with the renderer's mix color
// and opacity.
func itemColor(world canopy.Color, state *canopy.RendererState) canopy.Color {
	c := canopy.Color{
		world[0] * state.MixColor[0],
		world[1] * state.MixColor[1],
		world[2] * state.MixColor[2],
		world[3] * state.MixColor[3] * state.Opacity,
	}
	return c
}

func toRGBA(c canopy.Color) color.RGBA {
	return color.RGBA{
		R: channel(c[0] * c[3]),
		G: channel(c[1] * c[3]),
		B: channel(c[2] * c[3]),
		A: channel(c[3]),
	}
}

func channel(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
