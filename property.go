package canopy

// Dirty-state values for animatable properties. A reset shifts the state
// right by one, so a Set value is restored to base for two consecutive
// frames (one per buffer slot) before the property is considered clean.
const (
	propertyClean          uint8 = 0x00
	propertyBakedLastFrame uint8 = 0x01
	propertyBaked          uint8 = 0x02
	propertySet            uint8 = 0x04
)

// PropertyInput is a readable double-buffered value. Constraint sources,
// property notifications and gesture outputs all implement it.
type PropertyInput[T any] interface {
	Get(bufferIndex BufferIndex) T
}

// resettable is the type-erased view PropertyOwner keeps of its properties.
type resettable interface {
	ResetToBaseValue(bufferIndex BufferIndex)
	IsClean() bool
}

// Property is an animatable value stored in two slots plus a base value.
//
// Writes always target the update buffer index. Set changes only the current
// frame's value, which is restored from base on the following resets; Bake
// changes the base value as well, so the change persists.
type Property[T comparable] struct {
	value [2]T
	base  T
	dirty uint8
}

// NewProperty returns a property whose slots and base hold initial.
func NewProperty[T comparable](initial T) *Property[T] {
	return &Property[T]{value: [2]T{initial, initial}, base: initial}
}

// Get returns the value stored in the given slot.
func (p *Property[T]) Get(bufferIndex BufferIndex) T {
	return p.value[bufferIndex]
}

// BaseValue returns the value properties are reset to each frame.
func (p *Property[T]) BaseValue() T {
	return p.base
}

// Set writes value for this frame only.
func (p *Property[T]) Set(bufferIndex BufferIndex, value T) {
	p.value[bufferIndex] = value
	p.dirty = propertySet
}

// Bake writes value and makes it the new base value.
func (p *Property[T]) Bake(bufferIndex BufferIndex, value T) {
	p.value[bufferIndex] = value
	p.base = value
	p.dirty = propertyBaked
}

// ResetToBaseValue restores the slot from the base value if the property
// changed within the last two frames.
func (p *Property[T]) ResetToBaseValue(bufferIndex BufferIndex) {
	if p.dirty == propertyClean {
		return
	}
	p.value[bufferIndex] = p.base
	p.dirty >>= 1
}

// IsClean reports whether the property has not changed for two frames.
func (p *Property[T]) IsClean() bool {
	return p.dirty == propertyClean
}

// inheritedValue is a computed double-buffered value (world color, world
// visibility). It has no base value; when its inputs are unchanged the
// previous slot is copied forward.
type inheritedValue[T any] struct {
	value [2]T
}

func (v *inheritedValue[T]) Get(bufferIndex BufferIndex) T {
	return v.value[bufferIndex]
}

func (v *inheritedValue[T]) set(bufferIndex BufferIndex, value T) {
	v.value[bufferIndex] = value
}

func (v *inheritedValue[T]) copyPrevious(bufferIndex BufferIndex) {
	v.value[bufferIndex] = v.value[bufferIndex^1]
}

// InputFunc adapts a plain function into a PropertyInput.
type InputFunc[T any] func(bufferIndex BufferIndex) T

// Get calls f.
func (f InputFunc[T]) Get(bufferIndex BufferIndex) T {
	return f(bufferIndex)
}
