package canopy

import (
	"time"

	"go.uber.org/zap"
)

// Stats counts the work done by an UpdateManager. Counters are cumulative;
// the Last* fields describe the most recent Update call.
type Stats struct {
	Frames          uint64
	UpdatedFrames   uint64
	SkippedFrames   uint64
	ResetPasses     uint64
	AnimatePasses   uint64
	TreeWalks       uint64
	Messages        uint64
	AnimationsDone  uint64
	RenderTasksDone uint64

	LastInstructions int
	LastRenderItems  int
	LastCulled       int
	LastDuration     time.Duration
}

// Option configures an UpdateManager.
type Option func(*UpdateManager)

// WithLogger sets the logger. A nil logger keeps the default, which
// discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(um *UpdateManager) {
		if logger != nil {
			um.logger = logger
		}
	}
}

// WithDebug enables per-frame stats logging and periodic tree dumps.
func WithDebug(enabled bool) Option {
	return func(um *UpdateManager) { um.debug = enabled }
}

// WithMetrics reports frame metrics to m.
func WithMetrics(m *FrameMetrics) Option {
	return func(um *UpdateManager) { um.metrics = m }
}

// WithRenderController wires the controller woken by the message queue.
func WithRenderController(c RenderController) Option {
	return func(um *UpdateManager) { um.messages.SetRenderController(c) }
}

// WithNotificationTrigger sets the callback run when notifications are ready
// for the event goroutine.
func WithNotificationTrigger(trigger func()) Option {
	return func(um *UpdateManager) { um.notifications.trigger = trigger }
}

// WithSurface sets the initial default surface rectangle.
func WithSurface(r Rect) Option {
	return func(um *UpdateManager) { um.surface = r }
}

// WithKeepRendering keeps updates going for at least seconds after start.
func WithKeepRendering(seconds float32) Option {
	return func(um *UpdateManager) { um.KeepRendering(seconds) }
}

// UpdateManager owns the scene graph on the update goroutine and advances it
// one frame per Update call. The event goroutine talks to it only through
// the MessageQueue; the render goroutine reads only render-index slots,
// RenderInstructions and the RenderQueue.
type UpdateManager struct {
	buffers       SceneGraphBuffers
	messages      *MessageQueue
	discard       *DiscardQueue
	notifications *NotificationManager
	transforms    *TransformManager
	renderQueue   *RenderQueue
	instructions  RenderInstructionContainer
	processor     RenderTaskProcessor
	shaderSaver   ShaderSaver

	root       *Layer
	systemRoot *Layer

	nodes              []*Node // sorted by ID
	layers             []*Layer
	sortedLayers       []*Layer
	systemSortedLayers []*Layer
	layerOrder         []*Layer
	systemLayerOrder   []*Layer
	walkedLayers       []*Layer

	cameras               []*Camera
	customObjects         []*PropertyOwner
	animations            []*Animation
	renderers             []*Renderer
	shaders               []*Shader
	propertyNotifications []*PropertyNotification
	panGestures           []*PanGesture
	taskList              RenderTaskList
	systemTaskList        RenderTaskList

	nodeDirtyFlags                NodeDirtyFlags
	previousUpdateScene           bool
	animationFinishedDuringUpdate bool
	renderTaskWaiting             bool
	keepRenderingSeconds          float32
	surface                       Rect
	treeOrder                     int
	walkStamp                     uint64
	walkIndex                     int

	finishedIDs []uint32
	loopedIDs   []uint32

	logger  *zap.Logger
	debug   bool
	metrics *FrameMetrics
	stats   Stats
}

// NewUpdateManager creates an UpdateManager with no root installed.
func NewUpdateManager(opts ...Option) *UpdateManager {
	um := &UpdateManager{
		messages:      NewMessageQueue(nil),
		discard:       NewDiscardQueue(),
		notifications: NewNotificationManager(nil),
		transforms:    NewTransformManager(),
		renderQueue:   &RenderQueue{},
		logger:        zap.NewNop(),
		// The first frame must run the scene passes.
		nodeDirtyFlags: TransformFlag,
	}
	for _, opt := range opts {
		opt(um)
	}
	if um.metrics != nil {
		um.metrics.bind(um)
	}
	return um
}

// --- Accessors ---

// Buffers returns the double-buffer index shared with the render goroutine.
func (um *UpdateManager) Buffers() *SceneGraphBuffers { return &um.buffers }

// MessageQueue returns the event→update queue.
func (um *UpdateManager) MessageQueue() *MessageQueue { return um.messages }

// DiscardQueue returns the deferred-destruction queue.
func (um *UpdateManager) DiscardQueue() *DiscardQueue { return um.discard }

// Notifications returns the update→event notification channel.
func (um *UpdateManager) Notifications() *NotificationManager { return um.notifications }

// TransformManager returns the world-transform manager.
func (um *UpdateManager) TransformManager() *TransformManager { return um.transforms }

// RenderQueue returns the update→render command queue.
func (um *UpdateManager) RenderQueue() *RenderQueue { return um.renderQueue }

// Instructions returns the double-buffered render instruction container.
func (um *UpdateManager) Instructions() *RenderInstructionContainer { return &um.instructions }

// ShaderSaver returns the queue the render goroutine reports compiled binaries to.
func (um *UpdateManager) ShaderSaver() *ShaderSaver { return &um.shaderSaver }

// Root returns the installed root layer, or nil.
func (um *UpdateManager) Root() *Layer { return um.root }

// SystemRoot returns the installed system-level root layer, or nil.
func (um *UpdateManager) SystemRoot() *Layer { return um.systemRoot }

// Nodes returns the owned nodes sorted by ID. The slice MUST NOT be mutated.
func (um *UpdateManager) Nodes() []*Node { return um.nodes }

// Animations returns the animation container. The slice MUST NOT be mutated.
func (um *UpdateManager) Animations() []*Animation { return um.animations }

// Stats returns a copy of the work counters.
func (um *UpdateManager) Stats() Stats { return um.stats }

// NodeDirtyFlags returns the OR of every node's dirty flags from the last tree walk.
func (um *UpdateManager) NodeDirtyFlags() NodeDirtyFlags { return um.nodeDirtyFlags }

// GetRenderTaskList returns the normal or system-level task list.
func (um *UpdateManager) GetRenderTaskList(systemLevel bool) *RenderTaskList {
	if systemLevel {
		return &um.systemTaskList
	}
	return &um.taskList
}

// EventProcessingStarted forwards to the message queue. Event goroutine.
func (um *UpdateManager) EventProcessingStarted() { um.messages.EventProcessingStarted() }

// FlushQueue forwards to the message queue. Event goroutine.
func (um *UpdateManager) FlushQueue() bool { return um.messages.FlushQueue() }

// --- Scene structure (update goroutine, via messages) ---

// InstallRoot installs layer as the root or system-level root.
// Panics if a root of that level is already installed or layer has a parent.
func (um *UpdateManager) InstallRoot(layer *Layer, systemLevel bool) {
	if layer == nil {
		panic("canopy: cannot install nil root")
	}
	if layer.parent != nil {
		panic("canopy: root layer already has a parent")
	}
	if systemLevel {
		if um.systemRoot != nil {
			panic("canopy: system-level root already installed")
		}
		um.systemRoot = layer
		um.systemSortedLayers = append(um.systemSortedLayers[:0], layer)
	} else {
		if um.root != nil {
			panic("canopy: root already installed")
		}
		um.root = layer
		um.sortedLayers = append(um.sortedLayers[:0], layer)
	}
	layer.isRoot = true
	layer.CreateTransform(um.transforms)
	um.layers = append(um.layers, layer)
	um.logger.Debug("root installed", zap.Uint32("layer", layer.ID), zap.Bool("system", systemLevel))
}

// AddNode takes ownership of n, keeping the node array sorted by ID.
// Panics if n is nil or already has a parent.
func (um *UpdateManager) AddNode(n *Node) {
	if n == nil {
		panic("canopy: cannot add nil node")
	}
	if n.parent != nil {
		panic("canopy: node added with a parent")
	}
	i := searchNodes(um.nodes, n.ID)
	if i < len(um.nodes) && um.nodes[i] == n {
		return
	}
	um.nodes = append(um.nodes, nil)
	copy(um.nodes[i+1:], um.nodes[i:])
	um.nodes[i] = n
	n.CreateTransform(um.transforms)
	if n.layer != nil {
		um.layers = append(um.layers, n.layer)
	}
}

// AddLayer takes ownership of l.
func (um *UpdateManager) AddLayer(l *Layer) {
	um.AddNode(&l.Node)
}

// ConnectNode makes child a child of parent.
// Panics if either is nil or child already has a parent.
func (um *UpdateManager) ConnectNode(parent, child *Node) {
	if parent == nil || child == nil {
		panic("canopy: cannot connect nil node")
	}
	if child.parent != nil {
		panic("canopy: node already has a parent")
	}
	parent.ConnectChild(child)
	if um.debug {
		um.debugCheckTreeDepth(child)
		um.debugCheckChildCount(parent)
	}
}

// DisconnectNode detaches n from its parent and marks the parent so the
// renderable lists are rebuilt. Panics if n has no parent.
func (um *UpdateManager) DisconnectNode(n *Node, bufferIndex BufferIndex) {
	parent := n.parent
	if parent == nil {
		panic("canopy: disconnecting a node without a parent")
	}
	parent.SetDirtyFlag(ChildDeletedFlag)
	parent.DisconnectChild(bufferIndex, n)
}

// DestroyNode removes n from the node array and hands it to the discard
// queue. Panics if n still has a parent.
func (um *UpdateManager) DestroyNode(n *Node, bufferIndex BufferIndex) {
	if n == nil {
		panic("canopy: cannot destroy nil node")
	}
	if n.parent != nil {
		panic("canopy: destroying a node that still has a parent")
	}
	i := searchNodes(um.nodes, n.ID)
	if i < len(um.nodes) && um.nodes[i] == n {
		copy(um.nodes[i:], um.nodes[i+1:])
		um.nodes[len(um.nodes)-1] = nil
		um.nodes = um.nodes[:len(um.nodes)-1]
	}
	if n.layer != nil {
		um.layers = removeLayer(um.layers, n.layer)
		um.sortedLayers = removeLayer(um.sortedLayers, n.layer)
		um.systemSortedLayers = removeLayer(um.systemSortedLayers, n.layer)
	}
	um.discard.Add(bufferIndex, n)
	n.onDestroy()
}

// SetLayerDepths replaces the layer draw order.
func (um *UpdateManager) SetLayerDepths(layers []*Layer, systemLevel bool) {
	if systemLevel {
		um.systemSortedLayers = append(um.systemSortedLayers[:0], layers...)
		return
	}
	um.sortedLayers = append(um.sortedLayers[:0], layers...)
}

// SetDepthIndices assigns depth indices sorted on the event side.
// Panics if the slices differ in length.
func (um *UpdateManager) SetDepthIndices(nodes []*Node, depths []int) {
	if len(nodes) != len(depths) {
		panic("canopy: depth index count mismatch")
	}
	for i, n := range nodes {
		n.SetDepthIndex(depths[i])
	}
}

// --- Other owners ---

// AddCamera registers c.
func (um *UpdateManager) AddCamera(c *Camera) {
	if c == nil {
		panic("canopy: cannot add nil camera")
	}
	um.cameras = append(um.cameras, c)
}

// RemoveCamera unregisters c and discards it.
func (um *UpdateManager) RemoveCamera(c *Camera, bufferIndex BufferIndex) {
	if eraseOwner(&um.cameras, c) {
		c.destroy()
		um.discard.Add(bufferIndex, c)
	}
}

// AddCustomObject registers a custom property owner.
func (um *UpdateManager) AddCustomObject(o *PropertyOwner) {
	if o == nil {
		panic("canopy: cannot add nil object")
	}
	um.customObjects = append(um.customObjects, o)
}

// RemoveCustomObject unregisters o and discards it.
func (um *UpdateManager) RemoveCustomObject(o *PropertyOwner, bufferIndex BufferIndex) {
	if eraseOwner(&um.customObjects, o) {
		o.destroy()
		um.discard.Add(bufferIndex, o)
	}
}

// AddAnimation appends a to the animation container.
func (um *UpdateManager) AddAnimation(a *Animation) {
	if a == nil {
		panic("canopy: cannot add nil animation")
	}
	um.animations = append(um.animations, a)
}

// StopAnimation stops a and records whether that finished it.
func (um *UpdateManager) StopAnimation(a *Animation, bufferIndex BufferIndex) {
	if a.Stop(bufferIndex) {
		um.animationFinishedDuringUpdate = true
		um.finishedIDs = append(um.finishedIDs, a.ID)
	}
}

// RemoveAnimation destroys a. The next Animate pass drops it from the container.
func (um *UpdateManager) RemoveAnimation(a *Animation, bufferIndex BufferIndex) {
	a.OnDestroy(bufferIndex)
}

// IsAnimationRunning reports whether any animation is playing.
func (um *UpdateManager) IsAnimationRunning() bool {
	for _, a := range um.animations {
		if a.state == AnimationPlaying {
			return true
		}
	}
	return false
}

// AddRenderer registers r and queues its render-side counterpart.
func (um *UpdateManager) AddRenderer(r *Renderer, bufferIndex BufferIndex) {
	if r == nil {
		panic("canopy: cannot add nil renderer")
	}
	um.renderers = append(um.renderers, r)
	um.renderQueue.Push(bufferIndex, RenderCommand{Kind: ResourceRenderer, Op: OpCreate, ID: ResourceID(r.ID)})
}

// RemoveRenderer unregisters r and discards it.
func (um *UpdateManager) RemoveRenderer(r *Renderer, bufferIndex BufferIndex) {
	if eraseOwner(&um.renderers, r) {
		r.destroy()
		um.renderQueue.Push(bufferIndex, RenderCommand{Kind: ResourceRenderer, Op: OpDestroy, ID: ResourceID(r.ID)})
		um.discard.Add(bufferIndex, r)
	}
}

// AddShader registers s.
func (um *UpdateManager) AddShader(s *Shader) {
	if s == nil {
		panic("canopy: cannot add nil shader")
	}
	um.shaders = append(um.shaders, s)
}

// RemoveShader unregisters s and discards it.
func (um *UpdateManager) RemoveShader(s *Shader, bufferIndex BufferIndex) {
	if eraseOwner(&um.shaders, s) {
		s.destroy()
		um.discard.Add(bufferIndex, s)
	}
}

// SetShaderProgram installs a program and asks the render side to build it.
func (um *UpdateManager) SetShaderProgram(s *Shader, program ResourceID, source, binary []byte, bufferIndex BufferIndex) {
	s.SetProgram(program)
	um.renderQueue.Push(bufferIndex, RenderCommand{
		Kind:    ResourceShaderProgram,
		Op:      OpCreate,
		ID:      program,
		Payload: ShaderProgramPayload{Shader: s, Source: source, Binary: binary},
	})
}

// AddPropertyNotification starts checking pn every updated frame.
func (um *UpdateManager) AddPropertyNotification(pn *PropertyNotification) {
	if pn == nil {
		panic("canopy: cannot add nil property notification")
	}
	um.propertyNotifications = append(um.propertyNotifications, pn)
}

// RemovePropertyNotification stops checking pn.
func (um *UpdateManager) RemovePropertyNotification(pn *PropertyNotification) {
	for i, existing := range um.propertyNotifications {
		if existing == pn {
			copy(um.propertyNotifications[i:], um.propertyNotifications[i+1:])
			um.propertyNotifications[len(um.propertyNotifications)-1] = nil
			um.propertyNotifications = um.propertyNotifications[:len(um.propertyNotifications)-1]
			return
		}
	}
}

// AddPanGesture registers g.
func (um *UpdateManager) AddPanGesture(g *PanGesture) {
	if g == nil {
		panic("canopy: cannot add nil pan gesture")
	}
	um.panGestures = append(um.panGestures, g)
}

// RemovePanGesture unregisters g and discards it.
func (um *UpdateManager) RemovePanGesture(g *PanGesture, bufferIndex BufferIndex) {
	if eraseOwner(&um.panGestures, g) {
		g.destroy()
		um.discard.Add(bufferIndex, g)
	}
}

// AddRenderTask appends t to the normal or system-level list.
func (um *UpdateManager) AddRenderTask(t *RenderTask, systemLevel bool) {
	um.GetRenderTaskList(systemLevel).AddTask(t)
	if t.exclusive && t.source != nil {
		t.source.SetExclusiveRenderTask(t)
	}
}

// RemoveRenderTask removes t and discards it.
func (um *UpdateManager) RemoveRenderTask(t *RenderTask, systemLevel bool, bufferIndex BufferIndex) {
	if !um.GetRenderTaskList(systemLevel).RemoveTask(t) {
		return
	}
	if t.source != nil && t.source.exclusive == t {
		t.source.SetExclusiveRenderTask(nil)
	}
	t.destroy()
	um.discard.Add(bufferIndex, t)
}

// ForwardResource passes a resource command to the render goroutine.
func (um *UpdateManager) ForwardResource(bufferIndex BufferIndex, cmd RenderCommand) {
	um.renderQueue.Push(bufferIndex, cmd)
}

// KeepRendering keeps updates going for at least seconds.
func (um *UpdateManager) KeepRendering(seconds float32) {
	um.keepRenderingSeconds = max(um.keepRenderingSeconds, seconds)
}

// SetBackgroundColor forwards the surface clear color to the render goroutine.
func (um *UpdateManager) SetBackgroundColor(c Color, bufferIndex BufferIndex) {
	um.renderQueue.Push(bufferIndex, RenderCommand{Kind: ResourceBackgroundColor, Op: OpSet, Payload: c})
}

// SetSurfaceRect records the default surface and forwards it to the render goroutine.
func (um *UpdateManager) SetSurfaceRect(r Rect, bufferIndex BufferIndex) {
	um.surface = r
	um.renderQueue.Push(bufferIndex, RenderCommand{Kind: ResourceSurfaceRect, Op: OpSet, Payload: r})
}

// --- helpers ---

func searchNodes(nodes []*Node, id uint32) int {
	lo, hi := 0, len(nodes)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if nodes[mid].ID < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func removeLayer(layers []*Layer, l *Layer) []*Layer {
	for i, existing := range layers {
		if existing == l {
			copy(layers[i:], layers[i+1:])
			layers[len(layers)-1] = nil
			return layers[:len(layers)-1]
		}
	}
	return layers
}

// eraseOwner removes obj from the container and reports whether it was found.
func eraseOwner[T comparable](container *[]T, obj T) bool {
	s := *container
	for i, existing := range s {
		if existing == obj {
			copy(s[i:], s[i+1:])
			var zero T
			s[len(s)-1] = zero
			*container = s[:len(s)-1]
			return true
		}
	}
	return false
}
