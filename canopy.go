package canopy

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
type Color = mgl32.Vec4

// ColorWhite is the default node color (no tint).
var ColorWhite = Color{1, 1, 1, 1}

// ColorTransparent is fully transparent black.
var ColorTransparent = Color{0, 0, 0, 0}

// Vector3 constants for the common anchor and origin points.
var (
	OriginCenter  = mgl32.Vec3{0.5, 0.5, 0.5}
	OriginTopLeft = mgl32.Vec3{0, 0, 0.5}
)

// Rect is an axis-aligned integer rectangle used for surfaces and viewports.
// The coordinate system has its origin at the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height int
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// BlendMode selects a compositing operation for a renderer.
type BlendMode uint8

const (
	BlendNormal   BlendMode = iota // source-over (standard alpha blending)
	BlendAdd                       // additive / lighter
	BlendMultiply                  // multiply (source * destination; only darkens)
	BlendScreen                    // screen (1 - (1-src)*(1-dst); only brightens)
	BlendNone                      // opaque copy (skip blending)
)

// KeepUpdating is a bitmask returned by UpdateManager.Update describing why
// the frame pump must schedule another update. Zero means the scene is idle.
type KeepUpdating uint32

const (
	KeepUpdatingNotRequested       KeepUpdating = 0
	KeepUpdatingStageKeepRendering KeepUpdating = 1 << 1 // KeepRendering duration has not elapsed
	KeepUpdatingAnimationsRunning  KeepUpdating = 1 << 2 // at least one animation is playing, or one finished this frame
	KeepUpdatingRenderTaskSync     KeepUpdating = 1 << 4 // a render-once task is waiting to render
)

// Has reports whether all bits in flag are set.
func (k KeepUpdating) Has(flag KeepUpdating) bool {
	return k&flag == flag
}

// ResourceID is an opaque handle for render-side resources (textures,
// geometry, frame buffers, samplers). The update side never dereferences it.
type ResourceID uint32

// --- ID counters ---

// Objects are created on the event goroutine and consumed on the update
// goroutine, so the counters are atomic.
var (
	nodeIDCounter      atomic.Uint32
	objectIDCounter    atomic.Uint32
	animationIDCounter atomic.Uint32
)

func nextNodeID() uint32      { return nodeIDCounter.Add(1) }
func nextObjectID() uint32    { return objectIDCounter.Add(1) }
func nextAnimationID() uint32 { return animationIDCounter.Add(1) }
