package canopy

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// NodeDirtyFlags records which aspects of a node changed this frame.
type NodeDirtyFlags uint8

const (
	NothingFlag      NodeDirtyFlags = 0
	TransformFlag    NodeDirtyFlags = 1 << (iota - 1) // local transform or inheritance changed
	VisibleFlag                                       // visibility changed
	ColorFlag                                         // color changed
	SizeFlag                                          // size changed
	OverlayFlag                                       // draw mode changed
	SortModifierFlag                                  // depth index changed
	ChildDeletedFlag                                  // a child was disconnected

	AllDirtyFlags = TransformFlag | VisibleFlag | ColorFlag | SizeFlag | OverlayFlag | SortModifierFlag | ChildDeletedFlag

	// RenderableUpdateFlags are the flags that invalidate per-layer renderable
	// lists; if any node carried one last frame, the next frame must update.
	RenderableUpdateFlags = TransformFlag | SortModifierFlag | ChildDeletedFlag

	// Size is not inherited by children.
	inheritedDirtyFlags = TransformFlag | VisibleFlag | ColorFlag | OverlayFlag
)

// DrawMode selects which renderable list a node's renderers are added to.
type DrawMode uint8

const (
	DrawModeNormal  DrawMode = iota // drawn in tree/depth order
	DrawModeOverlay                 // drawn after all normal renderables of the layer
)

// Node is one element of the scene hierarchy. Its local transform, size,
// color and visibility are double-buffered properties; the world transform
// is computed in bulk by the TransformManager.
//
// A node has at most one parent. The parent owns its children; Parent is a
// non-owning back link. The UpdateManager owns every node it was given via
// AddNode and hands it to the DiscardQueue on DestroyNode.
type Node struct {
	PropertyOwner

	Name string

	// Animatable properties. Write them only on the update goroutine (via
	// messages) and only at the update buffer index.
	Position    *Property[mgl32.Vec3]
	Orientation *Property[mgl32.Quat]
	Scale       *Property[mgl32.Vec3]
	Size        *Property[mgl32.Vec3]
	Color       *Property[Color]
	Visible     *Property[bool]

	parentOrigin       mgl32.Vec3
	anchorPoint        mgl32.Vec3
	inheritPosition    bool
	inheritOrientation bool
	inheritScale       bool

	worldColor   inheritedValue[Color]
	worldVisible inheritedValue[bool]

	parent   *Node
	children []*Node
	layer    *Layer // non-nil when this node is a layer
	isRoot   bool

	renderers  []*Renderer
	depthIndex int
	drawMode   DrawMode
	exclusive  *RenderTask

	dirtyFlags  NodeDirtyFlags
	transforms  *TransformManager
	transformID TransformID
	released    bool

	span treeSpan // pre-order position from the last tree walk that reached n
}

// treeSpan is a node's pre-order interval in one tree walk: the walk visits
// n at enter and its last descendant just before exit.
type treeSpan struct {
	stamp       uint64
	enter, exit int
}

// walkedUnder reports whether the last tree walk reached n inside ancestor's
// subtree. It answers IsDescendantOf in constant time for nodes walked this
// frame and is false for nodes the walk did not reach.
func (n *Node) walkedUnder(ancestor *Node) bool {
	s, a := n.span, ancestor.span
	return s.stamp != 0 && s.stamp == a.stamp && a.enter <= s.enter && s.enter < a.exit
}

// nodeDefaults sets the common default field values shared by all constructors.
func nodeDefaults(n *Node, name string) {
	n.PropertyOwner.ID = nextNodeID()
	n.Name = name
	n.Position = AddProperty(&n.PropertyOwner, mgl32.Vec3{})
	n.Orientation = AddProperty(&n.PropertyOwner, mgl32.QuatIdent())
	n.Scale = AddProperty(&n.PropertyOwner, mgl32.Vec3{1, 1, 1})
	n.Size = AddProperty(&n.PropertyOwner, mgl32.Vec3{})
	n.Color = AddProperty(&n.PropertyOwner, ColorWhite)
	n.Visible = AddProperty(&n.PropertyOwner, true)
	n.parentOrigin = OriginCenter
	n.anchorPoint = OriginCenter
	n.inheritPosition = true
	n.inheritOrientation = true
	n.inheritScale = true
	n.worldColor.value = [2]Color{ColorWhite, ColorWhite}
	n.worldVisible.value = [2]bool{true, true}
	n.dirtyFlags = AllDirtyFlags
	n.transformID = InvalidTransformID
}

// NewNode creates a detached node. Hand it to the update goroutine with an
// AddNodeMessage before connecting it.
func NewNode(name string) *Node {
	n := &Node{}
	nodeDefaults(n, name)
	return n
}

// String returns the node's name and ID for logs.
func (n *Node) String() string {
	if n.Name == "" {
		return fmt.Sprintf("#%d", n.ID)
	}
	return fmt.Sprintf("%s#%d", n.Name, n.ID)
}

// --- Hierarchy ---

// Parent returns the parent node, or nil.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// IsRoot reports whether the node was installed as a scene root.
func (n *Node) IsRoot() bool {
	return n.isRoot
}

// IsLayer reports whether the node is a layer.
func (n *Node) IsLayer() bool {
	return n.layer != nil
}

// Layer returns the layer this node is, or nil for plain nodes.
func (n *Node) Layer() *Layer {
	return n.layer
}

// ConnectedToScene reports whether an ancestor chain reaches a root.
func (n *Node) ConnectedToScene() bool {
	for p := n; p != nil; p = p.parent {
		if p.isRoot {
			return true
		}
	}
	return false
}

// IsDescendantOf reports whether ancestor is n or one of n's ancestors.
func (n *Node) IsDescendantOf(ancestor *Node) bool {
	for p := n; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// ConnectChild appends child to n's children.
// Panics if child is nil or already has a parent.
func (n *Node) ConnectChild(child *Node) {
	if child == nil {
		panic("canopy: cannot connect nil child")
	}
	if child.parent != nil {
		panic("canopy: child already has a parent")
	}
	if child.isRoot {
		panic("canopy: cannot connect a root node as a child")
	}
	child.parent = n
	n.children = append(n.children, child)
	if child.transforms != nil {
		child.transforms.SetParent(child.transformID, n.transformID)
	}
	// Everything must be re-inherited after reconnection.
	child.dirtyFlags = AllDirtyFlags
}

// DisconnectChild detaches child from n. The child's whole subtree is
// disconnected: parent links and child lists are cleared and constraints are
// dropped, so reconnection must be re-sent node by node.
// Panics if child is not one of n's children.
func (n *Node) DisconnectChild(bufferIndex BufferIndex, child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			child.recursiveDisconnectFromSceneGraph(bufferIndex)
			return
		}
	}
	panic("canopy: child's parent is not this node")
}

func (n *Node) recursiveDisconnectFromSceneGraph(bufferIndex BufferIndex) {
	for _, c := range n.children {
		c.recursiveDisconnectFromSceneGraph(bufferIndex)
	}
	n.constraints = nil
	n.parent = nil
	n.children = nil
	if n.transforms != nil {
		n.transforms.SetParent(n.transformID, InvalidTransformID)
	}
}

// --- Renderers ---

// AddRenderer attaches r to the node. Adding the same renderer twice is a no-op.
func (n *Node) AddRenderer(r *Renderer) {
	for _, existing := range n.renderers {
		if existing == r {
			return
		}
	}
	n.renderers = append(n.renderers, r)
}

// RemoveRenderer detaches r from the node.
func (n *Node) RemoveRenderer(r *Renderer) {
	for i, existing := range n.renderers {
		if existing == r {
			copy(n.renderers[i:], n.renderers[i+1:])
			n.renderers[len(n.renderers)-1] = nil
			n.renderers = n.renderers[:len(n.renderers)-1]
			return
		}
	}
}

// Renderers returns the attached renderers. The slice MUST NOT be mutated.
func (n *Node) Renderers() []*Renderer {
	return n.renderers
}

// --- Non-animatable state (set on the update goroutine) ---

// SetDepthIndex sets the node's sorted depth, provided by the event side.
func (n *Node) SetDepthIndex(depth int) {
	if n.depthIndex == depth {
		return
	}
	n.depthIndex = depth
	n.SetDirtyFlag(SortModifierFlag)
}

// DepthIndex returns the node's sorted depth.
func (n *Node) DepthIndex() int {
	return n.depthIndex
}

// SetDrawMode changes whether the node draws as overlay.
func (n *Node) SetDrawMode(mode DrawMode) {
	if n.drawMode == mode {
		return
	}
	n.drawMode = mode
	n.SetDirtyFlag(OverlayFlag)
}

// DrawMode returns the node's draw mode.
func (n *Node) DrawMode() DrawMode {
	return n.drawMode
}

// SetExclusiveRenderTask restricts the node's subtree to task (nil clears).
func (n *Node) SetExclusiveRenderTask(task *RenderTask) {
	n.exclusive = task
}

// ExclusiveRenderTask returns the task the node is exclusive to, or nil.
func (n *Node) ExclusiveRenderTask() *RenderTask {
	return n.exclusive
}

// SetParentOrigin sets the point of the parent's size the node is positioned from.
func (n *Node) SetParentOrigin(origin mgl32.Vec3) {
	n.parentOrigin = origin
	n.SetDirtyFlag(TransformFlag)
}

// SetAnchorPoint sets the point of the node's own size placed at its position.
func (n *Node) SetAnchorPoint(anchor mgl32.Vec3) {
	n.anchorPoint = anchor
	n.SetDirtyFlag(TransformFlag)
}

// SetInheritance selects which parent transform components the node inherits.
func (n *Node) SetInheritance(position, orientation, scale bool) {
	n.inheritPosition = position
	n.inheritOrientation = orientation
	n.inheritScale = scale
	n.SetDirtyFlag(TransformFlag)
}

// --- Dirty flags ---

// SetDirtyFlag ORs flag into the node's explicit dirty flags.
func (n *Node) SetDirtyFlag(flag NodeDirtyFlags) {
	n.dirtyFlags |= flag
}

// SetAllDirtyFlags marks everything dirty.
func (n *Node) SetAllDirtyFlags() {
	n.dirtyFlags = AllDirtyFlags
}

// GetDirtyFlags returns explicit flags plus those derived from properties
// that changed within the last two frames.
func (n *Node) GetDirtyFlags() NodeDirtyFlags {
	flags := n.dirtyFlags
	if !n.Position.IsClean() || !n.Orientation.IsClean() || !n.Scale.IsClean() {
		flags |= TransformFlag
	}
	if !n.Size.IsClean() {
		// Size moves the anchor offset, so the transform is affected too.
		flags |= SizeFlag | TransformFlag
	}
	if !n.Visible.IsClean() {
		flags |= VisibleFlag
	}
	if !n.Color.IsClean() {
		flags |= ColorFlag
	}
	return flags
}

// inheritedFlags returns the parent flags that propagate to children.
func inheritedFlags(parentFlags NodeDirtyFlags) NodeDirtyFlags {
	return parentFlags & inheritedDirtyFlags
}

// SetClean clears explicit dirty flags at the end of a tree walk.
func (n *Node) SetClean() {
	n.dirtyFlags = NothingFlag
}

// --- World values ---

// CreateTransform registers the node with tm. Called by AddNode/InstallRoot.
func (n *Node) CreateTransform(tm *TransformManager) {
	n.transforms = tm
	n.transformID = tm.CreateTransform()
	if n.parent != nil {
		tm.SetParent(n.transformID, n.parent.transformID)
	}
}

// TransformID returns the node's TransformManager handle.
func (n *Node) TransformID() TransformID {
	return n.transformID
}

// WorldMatrix returns the world matrix computed by the last TransformManager update.
func (n *Node) WorldMatrix() mgl32.Mat4 {
	if n.transforms == nil {
		return mgl32.Ident4()
	}
	return n.transforms.WorldMatrix(n.transformID)
}

// WorldPosition returns the translation component of the world matrix.
func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.WorldMatrix().Col(3).Vec3()
}

// WorldScale returns the world scale computed by the last TransformManager update.
func (n *Node) WorldScale() mgl32.Vec3 {
	if n.transforms == nil {
		return n.Scale.BaseValue()
	}
	return n.transforms.WorldScale(n.transformID)
}

// WorldPositionInput exposes the world position as a constraint source. The
// value is the one computed by the previous TransformManager update.
func (n *Node) WorldPositionInput() PropertyInput[mgl32.Vec3] {
	return InputFunc[mgl32.Vec3](func(BufferIndex) mgl32.Vec3 { return n.WorldPosition() })
}

// WorldColor returns the inherited color for the given slot.
func (n *Node) WorldColor(bufferIndex BufferIndex) Color {
	return n.worldColor.Get(bufferIndex)
}

// Opacity returns the node's own opacity, the alpha channel of Color.
func (n *Node) Opacity(bufferIndex BufferIndex) float32 {
	return n.Color.Get(bufferIndex)[3]
}

// WorldOpacity returns the inherited opacity for the given slot.
func (n *Node) WorldOpacity(bufferIndex BufferIndex) float32 {
	return n.worldColor.Get(bufferIndex)[3]
}

// OpacityInput exposes the node's opacity as a constraint or notification
// source.
func (n *Node) OpacityInput() PropertyInput[float32] {
	return InputFunc[float32](func(bi BufferIndex) float32 { return n.Color.Get(bi)[3] })
}

// WorldColorInput exposes the world color as a constraint source.
func (n *Node) WorldColorInput() PropertyInput[Color] {
	return &n.worldColor
}

// IsWorldVisible reports whether the node and all its ancestors are visible.
func (n *Node) IsWorldVisible(bufferIndex BufferIndex) bool {
	return n.worldVisible.Get(bufferIndex)
}

// updateWorldValues recomputes the inherited color and visibility when the
// relevant flags are dirty and otherwise carries the previous slot forward.
func (n *Node) updateWorldValues(flags NodeDirtyFlags, bufferIndex BufferIndex) {
	if flags&ColorFlag != 0 {
		c := n.Color.Get(bufferIndex)
		if n.parent != nil {
			pc := n.parent.worldColor.Get(bufferIndex)
			c = Color{c[0] * pc[0], c[1] * pc[1], c[2] * pc[2], c[3] * pc[3]}
		}
		n.worldColor.set(bufferIndex, c)
	} else {
		n.worldColor.copyPrevious(bufferIndex)
	}

	if flags&VisibleFlag != 0 {
		v := n.Visible.Get(bufferIndex)
		if n.parent != nil {
			v = v && n.parent.worldVisible.Get(bufferIndex)
		}
		n.worldVisible.set(bufferIndex, v)
	} else {
		n.worldVisible.copyPrevious(bufferIndex)
	}
}

// pushLocalTransform copies this frame's local transform into the
// TransformManager.
func (n *Node) pushLocalTransform(bufferIndex BufferIndex) {
	if n.transforms == nil {
		return
	}
	n.transforms.SetLocal(n.transformID, LocalTransform{
		Position:           n.Position.Get(bufferIndex),
		Orientation:        n.Orientation.Get(bufferIndex),
		Scale:              n.Scale.Get(bufferIndex),
		Size:               n.Size.Get(bufferIndex),
		ParentOrigin:       n.parentOrigin,
		AnchorPoint:        n.anchorPoint,
		InheritPosition:    n.inheritPosition,
		InheritOrientation: n.inheritOrientation,
		InheritScale:       n.inheritScale,
	})
}

// --- Lifetime ---

// onDestroy retires the node from the live graph. The object stays valid
// until the DiscardQueue releases it.
func (n *Node) onDestroy() {
	n.PropertyOwner.destroy()
}

// Release frees the node's TransformManager slot and drops its references.
// Called by the DiscardQueue once no render-side consumer can reach it.
func (n *Node) Release() {
	if n.released {
		panic("canopy: node released twice")
	}
	n.released = true
	if n.transforms != nil && n.transformID != InvalidTransformID {
		n.transforms.RemoveTransform(n.transformID)
	}
	n.transforms = nil
	n.transformID = InvalidTransformID
	n.parent = nil
	n.children = nil
	n.renderers = nil
	n.exclusive = nil
	n.layer = nil
}

// IsReleased reports whether the DiscardQueue has freed the node.
func (n *Node) IsReleased() bool {
	return n.released
}

// --- Layer ---

// LayerBehavior selects how renderables inside a layer are sorted.
type LayerBehavior uint8

const (
	Layer2D LayerBehavior = iota // depth index, then tree order
	Layer3D                      // depth index, then distance from the camera (far to near)
)

// Renderable pairs a node with one of its renderers.
type Renderable struct {
	Node     *Node
	Renderer *Renderer

	exclusive *RenderTask // nearest exclusive task on the path from the root
	treeOrder int
}

// Layer is a node that starts a new draw group. The node-tree walk appends
// the ready renderers of every node beneath it (up to the next layer) into
// the layer's per-frame lists.
type Layer struct {
	Node

	Behavior LayerBehavior

	colorRenderables   []Renderable
	overlayRenderables []Renderable
	pendingResources   int    // renderers skipped this frame because they were not ready
	walkStamp          uint64 // tree walk that last reached the layer
	placeStamp         uint64 // tree walk that last placed the layer in the draw order
}

// NewLayer creates a detached layer.
func NewLayer(name string) *Layer {
	l := &Layer{}
	nodeDefaults(&l.Node, name)
	l.Node.layer = l
	return l
}

// ClearRenderables empties both renderable lists, keeping capacity.
func (l *Layer) ClearRenderables() {
	clear(l.colorRenderables)
	clear(l.overlayRenderables)
	l.colorRenderables = l.colorRenderables[:0]
	l.overlayRenderables = l.overlayRenderables[:0]
	l.pendingResources = 0
}

// ColorRenderables returns this frame's normal renderables.
func (l *Layer) ColorRenderables() []Renderable {
	return l.colorRenderables
}

// OverlayRenderables returns this frame's overlay renderables.
func (l *Layer) OverlayRenderables() []Renderable {
	return l.overlayRenderables
}

func (l *Layer) addRenderable(r Renderable, overlay bool) {
	if overlay {
		l.overlayRenderables = append(l.overlayRenderables, r)
		return
	}
	l.colorRenderables = append(l.colorRenderables, r)
}
