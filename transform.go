package canopy

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// TransformID is a stable handle into the TransformManager.
type TransformID int32

// InvalidTransformID marks a node without a transform or a parentless transform.
const InvalidTransformID TransformID = -1

// LocalTransform is the per-frame input the node tree walk pushes for a node.
type LocalTransform struct {
	Position           mgl32.Vec3
	Orientation        mgl32.Quat
	Scale              mgl32.Vec3
	Size               mgl32.Vec3
	ParentOrigin       mgl32.Vec3
	AnchorPoint        mgl32.Vec3
	InheritPosition    bool
	InheritOrientation bool
	InheritScale       bool
}

func (l LocalTransform) inheritsAll() bool {
	return l.InheritPosition && l.InheritOrientation && l.InheritScale
}

// TransformManager computes world matrices for every node in one pass over
// struct-of-arrays storage. Components are processed in hierarchy-level order
// so a parent's world matrix is always final before its children read it.
//
// Only components whose local transform was pushed this frame, or whose
// parent was recomputed, are recomputed.
type TransformManager struct {
	index       []int32 // TransformID -> component index, -1 when free
	freeIDs     []TransformID
	componentID []TransformID // component index -> TransformID
	parent      []TransformID
	local       []LocalTransform
	world       []mgl32.Mat4
	worldOrient []mgl32.Quat
	worldScale  []mgl32.Vec3
	dirty       []bool // local changed since last Update
	changed     []bool // world recomputed by the last Update

	order   []int32 // component indices, parents before children
	level   []int32 // scratch for reorder
	reorder bool
}

// NewTransformManager creates an empty manager.
func NewTransformManager() *TransformManager {
	return &TransformManager{}
}

// Count returns the number of live components.
func (tm *TransformManager) Count() int {
	return len(tm.componentID)
}

// CreateTransform allocates a component with an identity transform and no parent.
func (tm *TransformManager) CreateTransform() TransformID {
	var id TransformID
	if n := len(tm.freeIDs); n > 0 {
		id = tm.freeIDs[n-1]
		tm.freeIDs = tm.freeIDs[:n-1]
	} else {
		id = TransformID(len(tm.index))
		tm.index = append(tm.index, -1)
	}
	tm.index[id] = int32(len(tm.componentID))
	tm.componentID = append(tm.componentID, id)
	tm.parent = append(tm.parent, InvalidTransformID)
	tm.local = append(tm.local, LocalTransform{
		Orientation:        mgl32.QuatIdent(),
		Scale:              mgl32.Vec3{1, 1, 1},
		ParentOrigin:       OriginCenter,
		AnchorPoint:        OriginCenter,
		InheritPosition:    true,
		InheritOrientation: true,
		InheritScale:       true,
	})
	tm.world = append(tm.world, mgl32.Ident4())
	tm.worldOrient = append(tm.worldOrient, mgl32.QuatIdent())
	tm.worldScale = append(tm.worldScale, mgl32.Vec3{1, 1, 1})
	tm.dirty = append(tm.dirty, true)
	tm.changed = append(tm.changed, false)
	tm.reorder = true
	return id
}

// RemoveTransform frees id. The last component is moved into the hole.
// Panics if id is not live.
func (tm *TransformManager) RemoveTransform(id TransformID) {
	idx := tm.mustIndex(id)
	last := int32(len(tm.componentID) - 1)
	if idx != last {
		moved := tm.componentID[last]
		tm.componentID[idx] = moved
		tm.parent[idx] = tm.parent[last]
		tm.local[idx] = tm.local[last]
		tm.world[idx] = tm.world[last]
		tm.worldOrient[idx] = tm.worldOrient[last]
		tm.worldScale[idx] = tm.worldScale[last]
		tm.dirty[idx] = tm.dirty[last]
		tm.changed[idx] = tm.changed[last]
		tm.index[moved] = idx
	}
	tm.componentID = tm.componentID[:last]
	tm.parent = tm.parent[:last]
	tm.local = tm.local[:last]
	tm.world = tm.world[:last]
	tm.worldOrient = tm.worldOrient[:last]
	tm.worldScale = tm.worldScale[:last]
	tm.dirty = tm.dirty[:last]
	tm.changed = tm.changed[:last]
	tm.index[id] = -1
	tm.freeIDs = append(tm.freeIDs, id)
	tm.reorder = true
}

// SetParent links id under parent (InvalidTransformID detaches).
func (tm *TransformManager) SetParent(id, parent TransformID) {
	idx := tm.mustIndex(id)
	tm.parent[idx] = parent
	tm.dirty[idx] = true
	tm.reorder = true
}

// SetLocal replaces the local transform of id and marks it for recomputation.
func (tm *TransformManager) SetLocal(id TransformID, l LocalTransform) {
	idx := tm.mustIndex(id)
	tm.local[idx] = l
	tm.dirty[idx] = true
}

// WorldMatrix returns the world matrix of id from the last Update.
func (tm *TransformManager) WorldMatrix(id TransformID) mgl32.Mat4 {
	return tm.world[tm.mustIndex(id)]
}

// WorldScale returns the accumulated scale of id from the last Update.
func (tm *TransformManager) WorldScale(id TransformID) mgl32.Vec3 {
	return tm.worldScale[tm.mustIndex(id)]
}

// WorldOrientation returns the accumulated orientation of id from the last Update.
func (tm *TransformManager) WorldOrientation(id TransformID) mgl32.Quat {
	return tm.worldOrient[tm.mustIndex(id)]
}

// Changed reports whether id's world matrix was recomputed by the last Update.
func (tm *TransformManager) Changed(id TransformID) bool {
	return tm.changed[tm.mustIndex(id)]
}

func (tm *TransformManager) mustIndex(id TransformID) int32 {
	if id < 0 || int(id) >= len(tm.index) || tm.index[id] < 0 {
		panic("canopy: invalid transform id")
	}
	return tm.index[id]
}

// parentIndex returns the component index of idx's parent, or -1.
func (tm *TransformManager) parentIndex(idx int32) int32 {
	p := tm.parent[idx]
	if p == InvalidTransformID || int(p) >= len(tm.index) {
		return -1
	}
	return tm.index[p]
}

// rebuildOrder sorts components by hierarchy level.
func (tm *TransformManager) rebuildOrder() {
	n := len(tm.componentID)
	tm.level = tm.level[:0]
	for range n {
		tm.level = append(tm.level, -1)
	}
	var levelOf func(idx int32) int32
	levelOf = func(idx int32) int32 {
		if tm.level[idx] >= 0 {
			return tm.level[idx]
		}
		p := tm.parentIndex(idx)
		if p < 0 {
			tm.level[idx] = 0
		} else {
			tm.level[idx] = levelOf(p) + 1
		}
		return tm.level[idx]
	}
	tm.order = tm.order[:0]
	for i := range n {
		levelOf(int32(i))
		tm.order = append(tm.order, int32(i))
	}
	sort.SliceStable(tm.order, func(a, b int) bool {
		return tm.level[tm.order[a]] < tm.level[tm.order[b]]
	})
	tm.reorder = false
}

// Update recomputes world matrices. A component is recomputed when its local
// transform was pushed since the last Update or its parent was recomputed.
func (tm *TransformManager) Update() {
	if tm.reorder {
		tm.rebuildOrder()
	}
	for _, idx := range tm.order {
		p := tm.parentIndex(idx)
		recompute := tm.dirty[idx] || (p >= 0 && tm.changed[p])
		tm.changed[idx] = recompute
		if !recompute {
			continue
		}
		tm.dirty[idx] = false
		tm.computeWorld(idx, p)
	}
}

// computeWorld composes the local transform with the parent's world values.
func (tm *TransformManager) computeWorld(idx, p int32) {
	l := &tm.local[idx]

	localPos := l.Position
	if p >= 0 {
		parentSize := tm.local[p].Size
		localPos = localPos.Add(mulVec3(l.ParentOrigin.Sub(OriginCenter), parentSize))
	}
	anchorOffset := mulVec3(OriginCenter.Sub(l.AnchorPoint), mulVec3(l.Size, l.Scale))
	localPos = localPos.Add(l.Orientation.Rotate(anchorOffset))

	if p < 0 {
		tm.worldOrient[idx] = l.Orientation
		tm.worldScale[idx] = l.Scale
		tm.world[idx] = composeMatrix(localPos, l.Orientation, l.Scale)
		return
	}

	if l.inheritsAll() {
		tm.worldOrient[idx] = tm.worldOrient[p].Mul(l.Orientation).Normalize()
		tm.worldScale[idx] = mulVec3(tm.worldScale[p], l.Scale)
		tm.world[idx] = tm.world[p].Mul4(composeMatrix(localPos, l.Orientation, l.Scale))
		return
	}

	pos := localPos
	if l.InheritPosition {
		pos = tm.world[p].Mul4x1(localPos.Vec4(1)).Vec3()
	}
	orient := l.Orientation
	if l.InheritOrientation {
		orient = tm.worldOrient[p].Mul(l.Orientation).Normalize()
	}
	scale := l.Scale
	if l.InheritScale {
		scale = mulVec3(tm.worldScale[p], l.Scale)
	}
	tm.worldOrient[idx] = orient
	tm.worldScale[idx] = scale
	tm.world[idx] = composeMatrix(pos, orient, scale)
}

// composeMatrix returns T * R * S.
func composeMatrix(pos mgl32.Vec3, orient mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(pos[0], pos[1], pos[2]).
		Mul4(orient.Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

func mulVec3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
