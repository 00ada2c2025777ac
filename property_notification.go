package canopy

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// NotifyCondition selects the test a PropertyNotification runs each frame.
type NotifyCondition uint8

const (
	ConditionGreaterThan  NotifyCondition = iota // value > arg0
	ConditionLessThan                            // value < arg0
	ConditionInside                              // arg0 < value < arg1
	ConditionOutside                             // value < arg0 or value > arg1
	ConditionStep                                // value crossed a multiple of arg0 offset by arg1
	ConditionVariableStep                        // value crossed one of the sorted args
)

// NotifyMode selects which condition transitions produce a notification.
type NotifyMode uint8

const (
	NotifyDisabled NotifyMode = iota
	NotifyOnTrue
	NotifyOnFalse
	NotifyOnChanged
)

// PropertyNotification watches a float source and queues a
// PropertyChangedNotification when its condition result changes.
type PropertyNotification struct {
	ID uint32

	source    PropertyInput[float32]
	condition NotifyCondition
	args      []float32
	mode      NotifyMode

	valid     bool
	lastValue float32
	stepIndex int
	stepped   bool
}

// NewPropertyNotification creates a notification in NotifyOnTrue mode.
// Panics if args do not match the condition.
func NewPropertyNotification(source PropertyInput[float32], condition NotifyCondition, args ...float32) *PropertyNotification {
	if source == nil {
		panic("canopy: property notification needs a source")
	}
	switch condition {
	case ConditionGreaterThan, ConditionLessThan:
		if len(args) != 1 {
			panic("canopy: condition needs one argument")
		}
	case ConditionInside, ConditionOutside:
		if len(args) != 2 {
			panic("canopy: condition needs two arguments")
		}
	case ConditionStep:
		if len(args) != 2 || args[0] == 0 {
			panic("canopy: step condition needs a non-zero step and an offset")
		}
	case ConditionVariableStep:
		if len(args) == 0 {
			panic("canopy: variable step condition needs at least one step")
		}
		args = append([]float32(nil), args...)
		sort.Slice(args, func(i, j int) bool { return args[i] < args[j] })
	}
	return &PropertyNotification{
		ID:        nextObjectID(),
		source:    source,
		condition: condition,
		args:      args,
		mode:      NotifyOnTrue,
	}
}

// Vec3Length adapts a vector source into its length, for distance conditions.
func Vec3Length(src PropertyInput[mgl32.Vec3]) PropertyInput[float32] {
	return InputFunc[float32](func(bi BufferIndex) float32 { return src.Get(bi).Len() })
}

// Vec3Component adapts one component of a vector source.
func Vec3Component(src PropertyInput[mgl32.Vec3], component int) PropertyInput[float32] {
	return InputFunc[float32](func(bi BufferIndex) float32 { return src.Get(bi)[component] })
}

// SetNotifyMode changes the notify mode.
func (p *PropertyNotification) SetNotifyMode(mode NotifyMode) { p.mode = mode }

// NotifyMode returns the notify mode.
func (p *PropertyNotification) NotifyMode() NotifyMode { return p.mode }

// Valid returns the condition result of the last check.
func (p *PropertyNotification) Valid() bool { return p.valid }

// LastValue returns the source value read by the last check.
func (p *PropertyNotification) LastValue() float32 { return p.lastValue }

// Check evaluates the condition for bufferIndex and reports whether a
// notification is due.
func (p *PropertyNotification) Check(bufferIndex BufferIndex) bool {
	value := p.source.Get(bufferIndex)
	p.lastValue = value
	current := p.evaluate(value)

	// Step conditions are true only on the frame a step is crossed, so every
	// true result counts as a transition.
	stepping := p.condition == ConditionStep || p.condition == ConditionVariableStep
	if p.valid == current && !(stepping && current) {
		return false
	}
	p.valid = current
	switch p.mode {
	case NotifyOnTrue:
		return p.valid
	case NotifyOnFalse:
		return !p.valid
	case NotifyOnChanged:
		return true
	}
	return false
}

func (p *PropertyNotification) evaluate(v float32) bool {
	switch p.condition {
	case ConditionGreaterThan:
		return v > p.args[0]
	case ConditionLessThan:
		return v < p.args[0]
	case ConditionInside:
		return v > p.args[0] && v < p.args[1]
	case ConditionOutside:
		return v < p.args[0] || v > p.args[1]
	case ConditionStep:
		idx := int(math.Floor(float64((v - p.args[1]) / p.args[0])))
		return p.crossed(idx)
	case ConditionVariableStep:
		idx := sort.Search(len(p.args), func(i int) bool { return p.args[i] > v })
		return p.crossed(idx)
	}
	return false
}

// crossed records the step index and reports whether it changed. The first
// evaluation only records the starting step.
func (p *PropertyNotification) crossed(idx int) bool {
	if !p.stepped {
		p.stepped = true
		p.stepIndex = idx
		return false
	}
	if idx == p.stepIndex {
		return false
	}
	p.stepIndex = idx
	return true
}
