package canopy

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// --- Refresh state machine ---

func TestRefreshRateSkipsFrames(t *testing.T) {
	task := NewRenderTask(NewNode("src"), NewCamera())
	task.SetRefreshRate(3)
	task.SetResourcesFinished(true)

	var got []bool
	for range 6 {
		got = append(got, task.IsRenderRequired())
		task.UpdateState()
	}
	assertBools(t, "render required", got, []bool{true, false, false, true, false, false})
}

func TestRefreshRateWaitsForResources(t *testing.T) {
	task := NewRenderTask(NewNode("src"), NewCamera())
	task.SetRefreshRate(2)
	task.UpdateState()
	task.UpdateState()
	if !task.IsRenderRequired() {
		t.Error("frame skipping starts only once resources are loaded")
	}
}

func TestRenderOnceCycle(t *testing.T) {
	task := NewRenderTask(NewNode("src"), NewCamera())
	task.SetRefreshRate(RefreshOnce)
	if !task.IsRenderRequired() || !task.IsWaitingToRender() {
		t.Fatal("a render-once task renders until its resources are ready")
	}

	task.UpdateState()
	if task.HasRendered() {
		t.Fatal("no completion before resources are ready")
	}

	task.SetResourcesFinished(true)
	task.UpdateState()
	if task.IsRenderRequired() {
		t.Error("no further renders once resources were ready")
	}
	if task.HasRendered() {
		t.Error("completion is reported on the following frame")
	}

	task.UpdateState()
	if task.IsWaitingToRender() {
		t.Error("task should no longer be waiting")
	}
	if !task.HasRendered() {
		t.Fatal("HasRendered should report completion")
	}
	if task.HasRendered() {
		t.Error("HasRendered reports once per cycle")
	}
	if task.RenderedOnceCount() != 1 {
		t.Errorf("RenderedOnceCount = %d, want 1", task.RenderedOnceCount())
	}
}

func TestRenderOnceFrameBufferWaitsForTracker(t *testing.T) {
	task := NewRenderTask(NewNode("src"), NewCamera())
	task.SetFrameBuffer(5)
	task.SetRefreshRate(RefreshOnce)
	tracker := task.syncTrackerForInstruction()
	if tracker == nil {
		t.Fatal("a frame-buffer render-once task needs a sync tracker")
	}

	task.SetResourcesFinished(true)
	task.UpdateState()
	task.UpdateState()
	if task.HasRendered() || !task.IsWaitingToRender() {
		t.Fatal("completion waits for the render side")
	}

	tracker.SetSynced()
	task.UpdateState()
	if !task.HasRendered() {
		t.Error("completion should follow the sync")
	}
}

func TestContinuousTaskHasNoTracker(t *testing.T) {
	task := NewRenderTask(NewNode("src"), NewCamera())
	task.SetFrameBuffer(5)
	if task.syncTrackerForInstruction() != nil {
		t.Error("continuous tasks do not sync")
	}
}

// --- Readiness and viewport ---

func TestReadyToRenderNeedsConnectedNodes(t *testing.T) {
	root := NewLayer("root")
	root.isRoot = true
	camNode := NewNode("cam")
	cam := NewCamera()
	cam.SetNode(camNode)
	src := NewNode("src")
	task := NewRenderTask(src, cam)

	if task.ReadyToRender(0) {
		t.Error("detached source is not ready")
	}
	root.ConnectChild(src)
	if task.ReadyToRender(0) {
		t.Error("detached camera node is not ready")
	}
	root.ConnectChild(camNode)
	if !task.ReadyToRender(0) {
		t.Error("connected source and camera should be ready")
	}
	task.SetCamera(nil)
	if task.ReadyToRender(0) {
		t.Error("a task without a camera is not ready")
	}
}

func TestViewportFallsBackToSurface(t *testing.T) {
	task := NewRenderTask(NewNode("src"), NewCamera())
	surface := Rect{Width: 800, Height: 600}
	if got := task.Viewport(0, surface); got != surface {
		t.Errorf("Viewport = %v, want surface %v", got, surface)
	}
	task.ViewportPosition.Bake(0, mgl32.Vec2{10, 20})
	task.ViewportSize.Bake(0, mgl32.Vec2{100, 50})
	want := Rect{X: 10, Y: 20, Width: 100, Height: 50}
	if got := task.Viewport(0, surface); got != want {
		t.Errorf("Viewport = %v, want %v", got, want)
	}
}

// --- Exclusivity ---

func TestExclusiveMovesWithSource(t *testing.T) {
	a := NewNode("a")
	b := NewNode("b")
	task := NewRenderTask(a, NewCamera())
	task.SetExclusive(true)
	if a.ExclusiveRenderTask() != task {
		t.Fatal("source should be exclusive to the task")
	}
	task.SetSourceNode(b)
	if a.ExclusiveRenderTask() != nil || b.ExclusiveRenderTask() != task {
		t.Error("exclusivity should move to the new source")
	}
	task.SetExclusive(false)
	if b.ExclusiveRenderTask() != nil || task.IsExclusive() {
		t.Error("clearing exclusivity should release the source")
	}
}

// --- Task list ---

func TestRenderTaskList(t *testing.T) {
	var l RenderTaskList
	a := NewRenderTask(nil, nil)
	b := NewRenderTask(nil, nil)
	l.AddTask(a)
	l.AddTask(b)
	if l.Count() != 2 || l.Tasks()[0] != a {
		t.Fatal("tasks should keep insertion order")
	}
	if !l.RemoveTask(a) || l.RemoveTask(a) {
		t.Error("RemoveTask should report presence once")
	}
	if l.Count() != 1 || l.Tasks()[0] != b {
		t.Errorf("tasks = %v, want [b]", l.Tasks())
	}
	expectPanic(t, "nil render task", func() { l.AddTask(nil) })
}
