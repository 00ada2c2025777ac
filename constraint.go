package canopy

// RemoveAction decides what happens to a constrained value when the
// constraint is removed.
type RemoveAction uint8

const (
	// RemoveBake keeps the last constrained value as the property's base value.
	RemoveBake RemoveAction = iota
	// RemoveDiscard lets the property fall back to its base value.
	RemoveDiscard
)

// Constraint re-derives one property value from other properties once per
// frame. Constraints are pure: they read the already-animated value of the
// update buffer and write their result into the same buffer.
//
// Sources must outlive the constraint. Cycles between constraints are not
// detected; evaluation order is the order constraints were added.
type Constraint interface {
	Apply(bufferIndex BufferIndex)
	removed(bufferIndex BufferIndex)
}

// constraintBase holds the target and remove action shared by every shape.
type constraintBase[T comparable] struct {
	target       *Property[T]
	removeAction RemoveAction
}

func (c *constraintBase[T]) write(bufferIndex BufferIndex, value T) {
	c.target.Set(bufferIndex, value)
}

func (c *constraintBase[T]) removed(bufferIndex BufferIndex) {
	if c.removeAction == RemoveBake {
		c.target.Bake(bufferIndex, c.target.Get(bufferIndex))
	}
}

// SetRemoveAction changes the remove action (default RemoveBake).
func (c *constraintBase[T]) SetRemoveAction(action RemoveAction) {
	c.removeAction = action
}

// Constraint0 derives a value from the current value alone.
type Constraint0[T comparable] struct {
	constraintBase[T]
	fn func(current T) T
}

// NewConstraint0 creates a constraint with no sources.
func NewConstraint0[T comparable](target *Property[T], fn func(current T) T) *Constraint0[T] {
	return &Constraint0[T]{constraintBase: constraintBase[T]{target: target}, fn: fn}
}

// Apply runs the constraint for bufferIndex.
func (c *Constraint0[T]) Apply(bufferIndex BufferIndex) {
	c.write(bufferIndex, c.fn(c.target.Get(bufferIndex)))
}

// Constraint1 derives a value from one source.
type Constraint1[T comparable, A any] struct {
	constraintBase[T]
	a  PropertyInput[A]
	fn func(current T, a A) T
}

// NewConstraint1 creates a one-source constraint.
func NewConstraint1[T comparable, A any](target *Property[T], a PropertyInput[A], fn func(current T, a A) T) *Constraint1[T, A] {
	return &Constraint1[T, A]{constraintBase: constraintBase[T]{target: target}, a: a, fn: fn}
}

// Apply runs the constraint for bufferIndex.
func (c *Constraint1[T, A]) Apply(bufferIndex BufferIndex) {
	c.write(bufferIndex, c.fn(c.target.Get(bufferIndex), c.a.Get(bufferIndex)))
}

// Constraint2 derives a value from two sources of possibly different types.
type Constraint2[T comparable, A, B any] struct {
	constraintBase[T]
	a  PropertyInput[A]
	b  PropertyInput[B]
	fn func(current T, a A, b B) T
}

// NewConstraint2 creates a two-source constraint.
func NewConstraint2[T comparable, A, B any](target *Property[T], a PropertyInput[A], b PropertyInput[B], fn func(current T, a A, b B) T) *Constraint2[T, A, B] {
	return &Constraint2[T, A, B]{constraintBase: constraintBase[T]{target: target}, a: a, b: b, fn: fn}
}

// Apply runs the constraint for bufferIndex.
func (c *Constraint2[T, A, B]) Apply(bufferIndex BufferIndex) {
	c.write(bufferIndex, c.fn(c.target.Get(bufferIndex), c.a.Get(bufferIndex), c.b.Get(bufferIndex)))
}

// ConstraintN derives a value from any number of sources of the same type.
type ConstraintN[T comparable, S any] struct {
	constraintBase[T]
	sources []PropertyInput[S]
	inputs  []S // reused buffer
	fn      func(current T, inputs []S) T
}

// NewConstraintN creates an N-source constraint. The inputs slice passed to
// fn is reused between frames and MUST NOT be retained.
func NewConstraintN[T comparable, S any](target *Property[T], sources []PropertyInput[S], fn func(current T, inputs []S) T) *ConstraintN[T, S] {
	return &ConstraintN[T, S]{
		constraintBase: constraintBase[T]{target: target},
		sources:        sources,
		inputs:         make([]S, len(sources)),
		fn:             fn,
	}
}

// Apply runs the constraint for bufferIndex.
func (c *ConstraintN[T, S]) Apply(bufferIndex BufferIndex) {
	for i, src := range c.sources {
		c.inputs[i] = src.Get(bufferIndex)
	}
	c.write(bufferIndex, c.fn(c.target.Get(bufferIndex), c.inputs))
}

// EqualTo is a convenience one-source constraint copying the source value.
func EqualTo[T comparable](target *Property[T], source PropertyInput[T]) *Constraint1[T, T] {
	return NewConstraint1(target, source, func(_ T, a T) T { return a })
}
