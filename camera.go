package canopy

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ProjectionMode selects the camera projection.
type ProjectionMode uint8

const (
	PerspectiveProjection ProjectionMode = iota
	OrthographicProjection
)

// Camera is the scene-graph camera a render task views through. The camera
// is positioned by the node it is attached to; its view and projection
// matrices are double-buffered so the render side reads them at the render
// buffer index.
type Camera struct {
	PropertyOwner

	Mode        ProjectionMode
	FieldOfView float32 // radians, perspective only
	AspectRatio float32 // 0 derives it from the viewport
	NearClip    float32
	FarClip     float32
	InvertY     bool

	// OrthoSize is the half height of the visible area in orthographic mode.
	// Zero uses half the viewport height, giving a pixel-aligned view.
	OrthoSize float32

	node   *Node
	target *Node // look-at target, optional

	view       [2]mgl32.Mat4
	projection [2]mgl32.Mat4
	frustum    [2][6]mgl32.Vec4
}

// NewCamera creates a perspective camera with a 45 degree field of view.
func NewCamera() *Camera {
	c := &Camera{
		Mode:        PerspectiveProjection,
		FieldOfView: math.Pi / 4,
		NearClip:    1,
		FarClip:     5000,
		InvertY:     true,
	}
	c.PropertyOwner.ID = nextObjectID()
	c.view = [2]mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()}
	c.projection = [2]mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()}
	return c
}

// SetNode attaches the camera to the node providing its world position.
func (c *Camera) SetNode(n *Node) {
	c.node = n
}

// Node returns the camera's node, or nil.
func (c *Camera) Node() *Node {
	return c.node
}

// LookAt makes the camera orient toward target each frame (nil stops).
func (c *Camera) LookAt(target *Node) {
	c.target = target
}

// ViewMatrix returns the view matrix computed for bufferIndex.
func (c *Camera) ViewMatrix(bufferIndex BufferIndex) mgl32.Mat4 {
	return c.view[bufferIndex]
}

// ProjectionMatrix returns the projection matrix computed for bufferIndex.
func (c *Camera) ProjectionMatrix(bufferIndex BufferIndex) mgl32.Mat4 {
	return c.projection[bufferIndex]
}

// Update recomputes the view, projection and frustum for bufferIndex.
// Called once per processed render task on the update goroutine, after the
// TransformManager update.
func (c *Camera) Update(bufferIndex BufferIndex, viewport Rect) {
	view := mgl32.Ident4()
	if c.node != nil {
		world := c.node.WorldMatrix()
		if c.target != nil && c.target.ConnectedToScene() {
			eye := world.Col(3).Vec3()
			center := c.target.WorldPosition()
			up := mgl32.Vec3{0, 1, 0}
			if c.InvertY {
				up = mgl32.Vec3{0, -1, 0}
			}
			view = mgl32.LookAtV(eye, center, up)
		} else {
			view = world.Inv()
		}
	}

	aspect := c.AspectRatio
	if aspect <= 0 {
		if viewport.Height > 0 {
			aspect = float32(viewport.Width) / float32(viewport.Height)
		} else {
			aspect = 1
		}
	}

	var proj mgl32.Mat4
	switch c.Mode {
	case OrthographicProjection:
		half := c.OrthoSize
		if half <= 0 {
			half = float32(viewport.Height) / 2
			if half <= 0 {
				half = 1
			}
		}
		proj = mgl32.Ortho(-half*aspect, half*aspect, -half, half, c.NearClip, c.FarClip)
	default:
		proj = mgl32.Perspective(c.FieldOfView, aspect, c.NearClip, c.FarClip)
	}
	if c.InvertY {
		proj = proj.Mul4(mgl32.Scale3D(1, -1, 1))
	}

	c.view[bufferIndex] = view
	c.projection[bufferIndex] = proj
	c.frustum[bufferIndex] = frustumPlanes(proj.Mul4(view))
}

// frustumPlanes extracts the six normalized clip planes of a view-projection
// matrix (Gribb/Hartmann).
func frustumPlanes(m mgl32.Mat4) [6]mgl32.Vec4 {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)
	planes := [6]mgl32.Vec4{
		r3.Add(r0), r3.Sub(r0),
		r3.Add(r1), r3.Sub(r1),
		r3.Add(r2), r3.Sub(r2),
	}
	for i, p := range planes {
		l := p.Vec3().Len()
		if l > 0 {
			planes[i] = p.Mul(1 / l)
		}
	}
	return planes
}

// SphereInFrustum reports whether a world-space bounding sphere is at least
// partially inside the frustum computed for bufferIndex.
func (c *Camera) SphereInFrustum(bufferIndex BufferIndex, center mgl32.Vec3, radius float32) bool {
	for _, p := range c.frustum[bufferIndex] {
		if p.Vec3().Dot(center)+p[3] < -radius {
			return false
		}
	}
	return true
}
