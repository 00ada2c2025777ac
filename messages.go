package canopy

// Messages the event goroutine sends to the UpdateManager. Each one is a
// plain value; Apply runs on the update goroutine.

// --- Scene structure ---

// InstallRootMessage installs a layer as the scene root (or the system-level root).
type InstallRootMessage struct {
	Layer       *Layer
	SystemLevel bool
}

func (m InstallRootMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.InstallRoot(m.Layer, m.SystemLevel)
}

// AddNodeMessage hands ownership of a detached node to the UpdateManager.
type AddNodeMessage struct {
	Node *Node
}

func (m AddNodeMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.AddNode(m.Node)
}

// AddLayerMessage hands ownership of a detached layer to the UpdateManager.
type AddLayerMessage struct {
	Layer *Layer
}

func (m AddLayerMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.AddLayer(m.Layer)
}

// ConnectNodeMessage makes Child a child of Parent.
type ConnectNodeMessage struct {
	Parent *Node
	Child  *Node
}

func (m ConnectNodeMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.ConnectNode(m.Parent, m.Child)
}

// DisconnectNodeMessage detaches Node from its parent.
type DisconnectNodeMessage struct {
	Node *Node
}

func (m DisconnectNodeMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.DisconnectNode(m.Node, bi)
}

// DestroyNodeMessage retires a parentless node.
type DestroyNodeMessage struct {
	Node *Node
}

func (m DestroyNodeMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.DestroyNode(m.Node, bi)
}

// SetLayerDepthsMessage sets the draw order of layers.
type SetLayerDepthsMessage struct {
	Layers      []*Layer
	SystemLevel bool
}

func (m SetLayerDepthsMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.SetLayerDepths(m.Layers, m.SystemLevel)
}

// SetDepthIndicesMessage assigns sorted depth indices computed on the event side.
type SetDepthIndicesMessage struct {
	Nodes  []*Node
	Depths []int
}

func (m SetDepthIndicesMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.SetDepthIndices(m.Nodes, m.Depths)
}

// NodeFunc runs an arbitrary mutation of a node's non-animatable state
// (draw mode, anchor point, inheritance) on the update goroutine.
type NodeFunc struct {
	Node *Node
	Fn   func(n *Node)
}

func (m NodeFunc) Apply(_ *UpdateManager, _ BufferIndex) {
	m.Fn(m.Node)
}

// --- Properties ---

// BakeMessage sets a property's value and base value.
type BakeMessage[T comparable] struct {
	Property *Property[T]
	Value    T
}

func (m BakeMessage[T]) Apply(_ *UpdateManager, bi BufferIndex) {
	m.Property.Bake(bi, m.Value)
}

// AddCustomObjectMessage registers a custom property owner for reset and constraints.
type AddCustomObjectMessage struct {
	Object *PropertyOwner
}

func (m AddCustomObjectMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.AddCustomObject(m.Object)
}

// RemoveCustomObjectMessage unregisters and discards a custom owner.
type RemoveCustomObjectMessage struct {
	Object *PropertyOwner
}

func (m RemoveCustomObjectMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.RemoveCustomObject(m.Object, bi)
}

// ApplyConstraintMessage attaches a constraint to an owner.
type ApplyConstraintMessage struct {
	Owner      *PropertyOwner
	Constraint Constraint
}

func (m ApplyConstraintMessage) Apply(_ *UpdateManager, _ BufferIndex) {
	m.Owner.AddConstraint(m.Constraint)
}

// RemoveConstraintMessage detaches a constraint, applying its remove action.
type RemoveConstraintMessage struct {
	Owner      *PropertyOwner
	Constraint Constraint
}

func (m RemoveConstraintMessage) Apply(_ *UpdateManager, bi BufferIndex) {
	m.Owner.RemoveConstraint(m.Constraint, bi)
}

// AddPropertyNotificationMessage starts checking a property notification.
type AddPropertyNotificationMessage struct {
	Notification *PropertyNotification
}

func (m AddPropertyNotificationMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.AddPropertyNotification(m.Notification)
}

// RemovePropertyNotificationMessage stops checking a property notification.
type RemovePropertyNotificationMessage struct {
	Notification *PropertyNotification
}

func (m RemovePropertyNotificationMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.RemovePropertyNotification(m.Notification)
}

// SetNotifyModeMessage changes when a property notification fires.
type SetNotifyModeMessage struct {
	Notification *PropertyNotification
	Mode         NotifyMode
}

func (m SetNotifyModeMessage) Apply(_ *UpdateManager, _ BufferIndex) {
	m.Notification.SetNotifyMode(m.Mode)
}

// --- Cameras ---

// AddCameraMessage registers a camera.
type AddCameraMessage struct {
	Camera *Camera
}

func (m AddCameraMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.AddCamera(m.Camera)
}

// RemoveCameraMessage unregisters and discards a camera.
type RemoveCameraMessage struct {
	Camera *Camera
}

func (m RemoveCameraMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.RemoveCamera(m.Camera, bi)
}

// --- Animations ---

// AddAnimationMessage adds an animation to the animation container.
type AddAnimationMessage struct {
	Animation *Animation
}

func (m AddAnimationMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.AddAnimation(m.Animation)
}

// PlayAnimationMessage starts or resumes an animation.
type PlayAnimationMessage struct {
	Animation *Animation
}

func (m PlayAnimationMessage) Apply(_ *UpdateManager, _ BufferIndex) {
	m.Animation.Play()
}

// PlayAnimationFromMessage starts an animation at a normalized progress.
type PlayAnimationFromMessage struct {
	Animation *Animation
	Progress  float32
}

func (m PlayAnimationFromMessage) Apply(_ *UpdateManager, _ BufferIndex) {
	m.Animation.PlayFrom(m.Progress)
}

// PauseAnimationMessage pauses an animation.
type PauseAnimationMessage struct {
	Animation *Animation
}

func (m PauseAnimationMessage) Apply(_ *UpdateManager, _ BufferIndex) {
	m.Animation.Pause()
}

// StopAnimationMessage stops an animation.
type StopAnimationMessage struct {
	Animation *Animation
}

func (m StopAnimationMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.StopAnimation(m.Animation, bi)
}

// RemoveAnimationMessage destroys an animation; the next Animate pass drops it.
type RemoveAnimationMessage struct {
	Animation *Animation
}

func (m RemoveAnimationMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.RemoveAnimation(m.Animation, bi)
}

// AnimationFunc runs a configuration change (speed, loop count, play range)
// on the update goroutine.
type AnimationFunc struct {
	Animation *Animation
	Fn        func(a *Animation)
}

func (m AnimationFunc) Apply(_ *UpdateManager, _ BufferIndex) {
	m.Fn(m.Animation)
}

// --- Renderers, shaders, textures ---

// AddRendererMessage registers a renderer with the UpdateManager.
type AddRendererMessage struct {
	Renderer *Renderer
}

func (m AddRendererMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.AddRenderer(m.Renderer, bi)
}

// RemoveRendererMessage unregisters and discards a renderer.
type RemoveRendererMessage struct {
	Renderer *Renderer
}

func (m RemoveRendererMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.RemoveRenderer(m.Renderer, bi)
}

// AttachRendererMessage attaches a registered renderer to a node.
type AttachRendererMessage struct {
	Node     *Node
	Renderer *Renderer
}

func (m AttachRendererMessage) Apply(_ *UpdateManager, _ BufferIndex) {
	m.Node.AddRenderer(m.Renderer)
}

// DetachRendererMessage detaches a renderer from a node.
type DetachRendererMessage struct {
	Node     *Node
	Renderer *Renderer
}

func (m DetachRendererMessage) Apply(_ *UpdateManager, _ BufferIndex) {
	m.Node.RemoveRenderer(m.Renderer)
}

// RendererFunc changes a renderer's non-animatable state (depth index,
// blend mode, textures) on the update goroutine.
type RendererFunc struct {
	Renderer *Renderer
	Fn       func(r *Renderer)
}

func (m RendererFunc) Apply(_ *UpdateManager, _ BufferIndex) {
	m.Fn(m.Renderer)
}

// TextureSetReadyMessage reports that all textures of a set are uploaded.
type TextureSetReadyMessage struct {
	TextureSet *TextureSet
}

func (m TextureSetReadyMessage) Apply(_ *UpdateManager, _ BufferIndex) {
	m.TextureSet.SetReady(true)
}

// AddShaderMessage registers a shader.
type AddShaderMessage struct {
	Shader *Shader
}

func (m AddShaderMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.AddShader(m.Shader)
}

// RemoveShaderMessage unregisters and discards a shader.
type RemoveShaderMessage struct {
	Shader *Shader
}

func (m RemoveShaderMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.RemoveShader(m.Shader, bi)
}

// SetShaderProgramMessage installs a program and forwards its source (or a
// cached binary) to the render goroutine.
type SetShaderProgramMessage struct {
	Shader  *Shader
	Program ResourceID
	Source  []byte
	Binary  []byte
}

func (m SetShaderProgramMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.SetShaderProgram(m.Shader, m.Program, m.Source, m.Binary, bi)
}

// ResourceMessage forwards a resource lifecycle request to the render goroutine
// without interpreting it.
type ResourceMessage struct {
	Kind    ResourceKind
	Op      ResourceOp
	ID      ResourceID
	Payload any
}

func (m ResourceMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.ForwardResource(bi, RenderCommand{Kind: m.Kind, Op: m.Op, ID: m.ID, Payload: m.Payload})
}

// --- Render tasks ---

// AddRenderTaskMessage appends a task to the normal or system-level list.
type AddRenderTaskMessage struct {
	Task        *RenderTask
	SystemLevel bool
}

func (m AddRenderTaskMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.AddRenderTask(m.Task, m.SystemLevel)
}

// RemoveRenderTaskMessage removes and discards a task.
type RemoveRenderTaskMessage struct {
	Task        *RenderTask
	SystemLevel bool
}

func (m RemoveRenderTaskMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.RemoveRenderTask(m.Task, m.SystemLevel, bi)
}

// SetRefreshRateMessage changes a task's refresh rate.
type SetRefreshRateMessage struct {
	Task *RenderTask
	Rate uint32
}

func (m SetRefreshRateMessage) Apply(_ *UpdateManager, _ BufferIndex) {
	m.Task.SetRefreshRate(m.Rate)
}

// RenderTaskFunc changes a task's non-animatable state on the update goroutine.
type RenderTaskFunc struct {
	Task *RenderTask
	Fn   func(t *RenderTask)
}

func (m RenderTaskFunc) Apply(_ *UpdateManager, _ BufferIndex) {
	m.Fn(m.Task)
}

// --- Gestures and stage ---

// AddPanGestureMessage registers a pan gesture whose properties are updated
// every frame.
type AddPanGestureMessage struct {
	Gesture *PanGesture
}

func (m AddPanGestureMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.AddPanGesture(m.Gesture)
}

// RemovePanGestureMessage unregisters and discards a pan gesture.
type RemovePanGestureMessage struct {
	Gesture *PanGesture
}

func (m RemovePanGestureMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.RemovePanGesture(m.Gesture, bi)
}

// KeepRenderingMessage keeps the update loop running for at least Seconds.
type KeepRenderingMessage struct {
	Seconds float32
}

func (m KeepRenderingMessage) Apply(um *UpdateManager, _ BufferIndex) {
	um.KeepRendering(m.Seconds)
}

// SetBackgroundColorMessage changes the surface clear color.
type SetBackgroundColorMessage struct {
	Color Color
}

func (m SetBackgroundColorMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.SetBackgroundColor(m.Color, bi)
}

// SetSurfaceRectMessage changes the default surface size.
type SetSurfaceRectMessage struct {
	Rect Rect
}

func (m SetSurfaceRectMessage) Apply(um *UpdateManager, bi BufferIndex) {
	um.SetSurfaceRect(m.Rect, bi)
}
