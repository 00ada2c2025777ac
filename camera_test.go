package canopy

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// placedNode returns a node with a computed world transform at pos.
func placedNode(tm *TransformManager, pos mgl32.Vec3) *Node {
	n := NewNode("")
	n.CreateTransform(tm)
	n.Position.Bake(0, pos)
	n.pushLocalTransform(0)
	tm.Update()
	return n
}

func TestCameraDefaults(t *testing.T) {
	c := NewCamera()
	if c.Mode != PerspectiveProjection {
		t.Errorf("Mode = %d, want perspective", c.Mode)
	}
	if math.Abs(float64(c.FieldOfView)-math.Pi/4) > 1e-6 {
		t.Errorf("FieldOfView = %v, want pi/4", c.FieldOfView)
	}
	if !c.InvertY {
		t.Error("InvertY = false, want true")
	}
	if c.ViewMatrix(0) != mgl32.Ident4() || c.ProjectionMatrix(1) != mgl32.Ident4() {
		t.Error("matrices should start as identity")
	}
}

func TestCameraPerspectiveDerivesAspect(t *testing.T) {
	c := NewCamera()
	c.Update(0, Rect{Width: 800, Height: 600})
	want := mgl32.Perspective(math.Pi/4, 800.0/600.0, 1, 5000).Mul4(mgl32.Scale3D(1, -1, 1))
	if !c.ProjectionMatrix(0).ApproxEqualThreshold(want, 1e-5) {
		t.Errorf("ProjectionMatrix = %v, want %v", c.ProjectionMatrix(0), want)
	}
	if c.ViewMatrix(0) != mgl32.Ident4() {
		t.Error("a camera without a node has an identity view")
	}
}

func TestCameraOrthographicPixelAligned(t *testing.T) {
	c := NewCamera()
	c.Mode = OrthographicProjection
	c.InvertY = false
	c.Update(1, Rect{Width: 800, Height: 600})
	want := mgl32.Ortho(-400, 400, -300, 300, 1, 5000)
	if !c.ProjectionMatrix(1).ApproxEqualThreshold(want, 1e-5) {
		t.Errorf("ProjectionMatrix = %v, want %v", c.ProjectionMatrix(1), want)
	}
}

func TestCameraBuffersAreIndependent(t *testing.T) {
	c := NewCamera()
	c.Update(0, Rect{Width: 800, Height: 600})
	c.Update(1, Rect{Width: 600, Height: 600})
	if c.ProjectionMatrix(0).ApproxEqual(c.ProjectionMatrix(1)) {
		t.Error("each buffer keeps the projection computed for it")
	}
}

func TestCameraViewFollowsNode(t *testing.T) {
	tm := NewTransformManager()
	c := NewCamera()
	c.SetNode(placedNode(tm, mgl32.Vec3{0, 0, 800}))
	c.Update(0, Rect{Width: 800, Height: 600})
	want := mgl32.Translate3D(0, 0, -800)
	if !c.ViewMatrix(0).ApproxEqualThreshold(want, 1e-4) {
		t.Errorf("ViewMatrix = %v, want %v", c.ViewMatrix(0), want)
	}
}

func TestCameraLookAt(t *testing.T) {
	tm := NewTransformManager()
	c := NewCamera()
	c.SetNode(placedNode(tm, mgl32.Vec3{0, 0, 800}))
	target := placedNode(tm, mgl32.Vec3{100, 0, 0})
	target.isRoot = true
	c.LookAt(target)
	c.Update(0, Rect{Width: 800, Height: 600})
	want := mgl32.LookAtV(mgl32.Vec3{0, 0, 800}, mgl32.Vec3{100, 0, 0}, mgl32.Vec3{0, -1, 0})
	if !c.ViewMatrix(0).ApproxEqualThreshold(want, 1e-4) {
		t.Errorf("ViewMatrix = %v, want %v", c.ViewMatrix(0), want)
	}
}

// --- Frustum culling ---

func TestCameraSphereInFrustum(t *testing.T) {
	tm := NewTransformManager()
	c := NewCamera()
	c.SetNode(placedNode(tm, mgl32.Vec3{0, 0, 800}))
	c.Update(0, Rect{Width: 800, Height: 600})

	tests := []struct {
		name   string
		center mgl32.Vec3
		radius float32
		want   bool
	}{
		{"origin", mgl32.Vec3{0, 0, 0}, 10, true},
		{"behind camera", mgl32.Vec3{0, 0, 1000}, 10, false},
		{"far right", mgl32.Vec3{5000, 0, 0}, 10, false},
		{"straddling edge", mgl32.Vec3{450, 0, 0}, 100, true},
		{"beyond far clip", mgl32.Vec3{0, 0, -6000}, 10, false},
	}
	for _, tt := range tests {
		if got := c.SphereInFrustum(0, tt.center, tt.radius); got != tt.want {
			t.Errorf("%s: SphereInFrustum = %v, want %v", tt.name, got, tt.want)
		}
	}
}
