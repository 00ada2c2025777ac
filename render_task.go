package canopy

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// Refresh rates for RenderTask.SetRefreshRate. Any other value N renders
// every Nth frame.
const (
	RefreshOnce   uint32 = 0
	RefreshAlways uint32 = 1
)

type renderTaskState uint8

const (
	renderContinuously renderTaskState = iota
	renderOnceWaitingForResources
	renderedOnce
	renderedOnceAndNotified
)

// RenderSyncTracker lets the render goroutine report that a frame-buffer
// target has been drawn.
type RenderSyncTracker struct {
	synced atomic.Bool
}

// SetSynced marks the frame buffer as drawn. Render goroutine.
func (t *RenderSyncTracker) SetSynced() { t.synced.Store(true) }

// IsSynced reports whether the frame buffer has been drawn.
func (t *RenderSyncTracker) IsSynced() bool { return t.synced.Load() }

// RenderTask renders the subtree under a source node through a camera into
// a viewport of a surface or frame buffer.
type RenderTask struct {
	PropertyOwner

	ViewportPosition *Property[mgl32.Vec2]
	ViewportSize     *Property[mgl32.Vec2]
	ClearColor       *Property[Color]

	source      *Node
	camera      *Camera
	exclusive   bool
	frameBuffer ResourceID

	clearEnabled bool
	cullMode     bool

	refreshRate       uint32
	frameCounter      uint32
	renderedOnceCount uint32
	state             renderTaskState
	waitingToRender   bool
	notifyTrigger     bool
	resourcesFinished bool
	syncTracker       *RenderSyncTracker
}

// NewRenderTask creates a continuously rendering task with culling enabled.
func NewRenderTask(source *Node, camera *Camera) *RenderTask {
	t := &RenderTask{
		source:       source,
		camera:       camera,
		cullMode:     true,
		clearEnabled: false,
		refreshRate:  RefreshAlways,
	}
	t.PropertyOwner.ID = nextObjectID()
	t.ViewportPosition = AddProperty(&t.PropertyOwner, mgl32.Vec2{})
	t.ViewportSize = AddProperty(&t.PropertyOwner, mgl32.Vec2{})
	t.ClearColor = AddProperty(&t.PropertyOwner, Color{0, 0, 0, 1})
	return t
}

// SetSourceNode changes the rendered subtree. Exclusivity moves with it.
func (t *RenderTask) SetSourceNode(n *Node) {
	if t.exclusive && t.source != nil && t.source.exclusive == t {
		t.source.SetExclusiveRenderTask(nil)
	}
	t.source = n
	if t.exclusive && n != nil {
		n.SetExclusiveRenderTask(t)
	}
}

// SourceNode returns the rendered subtree root, or nil.
func (t *RenderTask) SourceNode() *Node { return t.source }

// SetCamera changes the camera.
func (t *RenderTask) SetCamera(c *Camera) { t.camera = c }

// Camera returns the camera, or nil.
func (t *RenderTask) Camera() *Camera { return t.camera }

// SetExclusive makes the source subtree render only through this task.
func (t *RenderTask) SetExclusive(exclusive bool) {
	t.exclusive = exclusive
	if t.source == nil {
		return
	}
	if exclusive {
		t.source.SetExclusiveRenderTask(t)
	} else if t.source.exclusive == t {
		t.source.SetExclusiveRenderTask(nil)
	}
}

// IsExclusive reports whether the source subtree is exclusive to this task.
func (t *RenderTask) IsExclusive() bool { return t.exclusive }

// SetFrameBuffer targets an offscreen frame buffer (0 is the default surface).
func (t *RenderTask) SetFrameBuffer(id ResourceID) { t.frameBuffer = id }

// FrameBuffer returns the target frame buffer handle.
func (t *RenderTask) FrameBuffer() ResourceID { return t.frameBuffer }

// SetClearEnabled enables clearing the viewport before drawing.
func (t *RenderTask) SetClearEnabled(enabled bool) { t.clearEnabled = enabled }

// SetCullMode enables frustum culling.
func (t *RenderTask) SetCullMode(cull bool) { t.cullMode = cull }

// CullMode reports whether frustum culling is enabled.
func (t *RenderTask) CullMode() bool { return t.cullMode }

// Viewport returns the viewport for bufferIndex. A zero size falls back to
// surface.
func (t *RenderTask) Viewport(bufferIndex BufferIndex, surface Rect) Rect {
	size := t.ViewportSize.Get(bufferIndex)
	if size[0] <= 0 || size[1] <= 0 {
		return surface
	}
	pos := t.ViewportPosition.Get(bufferIndex)
	return Rect{X: int(pos[0]), Y: int(pos[1]), Width: int(size[0]), Height: int(size[1])}
}

// SetRefreshRate sets how often the task renders. RefreshOnce renders a
// single frame and then fires one completion notification.
func (t *RenderTask) SetRefreshRate(rate uint32) {
	t.refreshRate = rate
	if rate == RefreshOnce {
		t.state = renderOnceWaitingForResources
		t.waitingToRender = true
		t.notifyTrigger = false
	} else {
		t.state = renderContinuously
	}
	t.frameCounter = 0
	t.syncTracker = nil
}

// RefreshRate returns the refresh rate.
func (t *RenderTask) RefreshRate() uint32 { return t.refreshRate }

// ReadyToRender reports whether the source and camera nodes are in the scene.
func (t *RenderTask) ReadyToRender(BufferIndex) bool {
	if t.source == nil || !t.source.ConnectedToScene() {
		return false
	}
	if t.camera == nil || t.camera.Node() == nil || !t.camera.Node().ConnectedToScene() {
		return false
	}
	return true
}

// IsRenderRequired reports whether instructions must be built this frame.
func (t *RenderTask) IsRenderRequired() bool {
	switch t.state {
	case renderContinuously:
		return t.frameCounter == 0
	case renderOnceWaitingForResources:
		return true
	}
	return false
}

// SetResourcesFinished records whether every renderer the task drew this
// frame had its resources ready.
func (t *RenderTask) SetResourcesFinished(finished bool) { t.resourcesFinished = finished }

// requiresSync reports whether completion must wait for the render goroutine.
func (t *RenderTask) requiresSync() bool {
	return t.refreshRate == RefreshOnce && t.frameBuffer != 0
}

// syncTrackerForInstruction returns the tracker the render goroutine signals,
// creating it on first use.
func (t *RenderTask) syncTrackerForInstruction() *RenderSyncTracker {
	if !t.requiresSync() {
		return nil
	}
	if t.syncTracker == nil {
		t.syncTracker = &RenderSyncTracker{}
	}
	return t.syncTracker
}

// UpdateState advances the refresh state machine once per frame.
func (t *RenderTask) UpdateState() {
	switch t.state {
	case renderContinuously:
		if t.refreshRate != RefreshAlways {
			if t.frameCounter == 0 {
				// Frame skipping starts once resources are loaded.
				if t.resourcesFinished {
					t.frameCounter++
				}
			} else {
				t.frameCounter++
				if t.frameCounter >= t.refreshRate {
					t.frameCounter = 0
				}
			}
		}
	case renderOnceWaitingForResources:
		if t.resourcesFinished {
			t.state = renderedOnce
		}
	case renderedOnce:
		t.waitingToRender = true
		t.notifyTrigger = false
		if t.frameBuffer != 0 {
			if t.syncTracker == nil || t.syncTracker.IsSynced() {
				t.waitingToRender = false
				t.notifyTrigger = true
			}
		} else {
			t.waitingToRender = false
			t.notifyTrigger = true
		}
	}
}

// IsWaitingToRender reports whether the task still has a pending render.
func (t *RenderTask) IsWaitingToRender() bool { return t.waitingToRender }

// HasRendered reports, exactly once per render-once cycle, that the task
// completed.
func (t *RenderTask) HasRendered() bool {
	if !t.notifyTrigger {
		return false
	}
	t.renderedOnceCount++
	t.state = renderedOnceAndNotified
	t.notifyTrigger = false
	return true
}

// RenderedOnceCount returns how many render-once cycles completed.
func (t *RenderTask) RenderedOnceCount() uint32 { return t.renderedOnceCount }

// RenderTaskList is an ordered list of render tasks. Tasks are processed in
// list order and their instructions drawn in that order.
type RenderTaskList struct {
	tasks []*RenderTask
}

// AddTask appends t. Panics on nil.
func (l *RenderTaskList) AddTask(t *RenderTask) {
	if t == nil {
		panic("canopy: cannot add nil render task")
	}
	l.tasks = append(l.tasks, t)
}

// RemoveTask removes t and reports whether it was present.
func (l *RenderTaskList) RemoveTask(t *RenderTask) bool {
	for i, existing := range l.tasks {
		if existing == t {
			copy(l.tasks[i:], l.tasks[i+1:])
			l.tasks[len(l.tasks)-1] = nil
			l.tasks = l.tasks[:len(l.tasks)-1]
			return true
		}
	}
	return false
}

// Tasks returns the tasks in order. The slice MUST NOT be mutated.
func (l *RenderTaskList) Tasks() []*RenderTask { return l.tasks }

// Count returns the number of tasks.
func (l *RenderTaskList) Count() int { return len(l.tasks) }
