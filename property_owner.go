package canopy

// PropertyOwner is embedded by every scene-graph object that holds animatable
// properties: nodes, renderers, shaders, render tasks, pan gestures and custom
// objects. It owns the type-erased property list used for per-frame resets
// and the constraints that target those properties.
type PropertyOwner struct {
	ID uint32

	properties  []resettable
	constraints []Constraint
	destroyed   bool
}

// NewPropertyOwner creates a standalone owner for custom objects.
func NewPropertyOwner() *PropertyOwner {
	return &PropertyOwner{ID: nextObjectID()}
}

// RegisterProperty adds p to the owner's reset list and returns it.
// Properties must be registered on the event goroutine before the owner is
// handed to the update goroutine.
func RegisterProperty[T comparable](o *PropertyOwner, p *Property[T]) *Property[T] {
	o.properties = append(o.properties, p)
	return p
}

// AddProperty creates, registers and returns a property with the initial value.
func AddProperty[T comparable](o *PropertyOwner, initial T) *Property[T] {
	return RegisterProperty(o, NewProperty(initial))
}

// ResetToBaseValues restores every property changed in the last two frames.
func (o *PropertyOwner) ResetToBaseValues(bufferIndex BufferIndex) {
	for _, p := range o.properties {
		p.ResetToBaseValue(bufferIndex)
	}
}

// IsAnyPropertyDirty reports whether any owned property is not clean.
func (o *PropertyOwner) IsAnyPropertyDirty() bool {
	for _, p := range o.properties {
		if !p.IsClean() {
			return true
		}
	}
	return false
}

// AddConstraint appends c. Constraints run in the order they were added.
func (o *PropertyOwner) AddConstraint(c Constraint) {
	if c == nil {
		panic("canopy: cannot add nil constraint")
	}
	o.constraints = append(o.constraints, c)
}

// RemoveConstraint detaches c, applying its remove action first.
// No-op if c is not attached to this owner.
func (o *PropertyOwner) RemoveConstraint(c Constraint, bufferIndex BufferIndex) {
	for i, existing := range o.constraints {
		if existing == c {
			c.removed(bufferIndex)
			copy(o.constraints[i:], o.constraints[i+1:])
			o.constraints[len(o.constraints)-1] = nil
			o.constraints = o.constraints[:len(o.constraints)-1]
			return
		}
	}
}

// RemoveAllConstraints detaches every constraint, applying remove actions.
func (o *PropertyOwner) RemoveAllConstraints(bufferIndex BufferIndex) {
	for _, c := range o.constraints {
		c.removed(bufferIndex)
	}
	o.constraints = nil
}

// Constraints returns the attached constraints. The slice MUST NOT be mutated.
func (o *PropertyOwner) Constraints() []Constraint {
	return o.constraints
}

// ApplyConstraints runs every attached constraint against bufferIndex.
func (o *PropertyOwner) ApplyConstraints(bufferIndex BufferIndex) {
	for _, c := range o.constraints {
		c.Apply(bufferIndex)
	}
}

// IsDestroyed reports whether the owner has been retired from the scene graph.
// Animators targeting a destroyed owner are dropped on the next update.
func (o *PropertyOwner) IsDestroyed() bool {
	return o.destroyed
}

// destroy marks the owner retired and drops its constraints without baking.
func (o *PropertyOwner) destroy() {
	o.destroyed = true
	o.constraints = nil
}

// propertyOwner lets containers of different concrete types share the reset
// and constraint passes.
type propertyOwner interface {
	owner() *PropertyOwner
}

func (o *PropertyOwner) owner() *PropertyOwner { return o }

func resetOwners[T propertyOwner](container []T, bufferIndex BufferIndex) {
	for _, obj := range container {
		obj.owner().ResetToBaseValues(bufferIndex)
	}
}

func constrainOwners[T propertyOwner](container []T, bufferIndex BufferIndex) {
	for _, obj := range container {
		obj.owner().ApplyConstraints(bufferIndex)
	}
}
