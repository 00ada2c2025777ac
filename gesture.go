package canopy

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// PanState is the phase of a pan gesture sample.
type PanState uint8

const (
	PanStarted PanState = iota
	PanContinuing
	PanFinished
	PanCancelled
)

// PanSample is one pan gesture event as seen by the event goroutine.
type PanSample struct {
	State        PanState
	TimeMs       uint32
	Position     mgl32.Vec2
	Displacement mgl32.Vec2
	Velocity     mgl32.Vec2
}

const panRingSize = 64

// PanGesture turns pan samples pushed by the event goroutine into baked
// properties the update goroutine (and constraints) can read. Samples cross
// the goroutine boundary through a single-producer single-consumer ring.
// When the ring is full new samples are dropped and counted; the producer
// never touches an unread slot or the read index.
type PanGesture struct {
	PropertyOwner

	ScreenPosition     *Property[mgl32.Vec2]
	ScreenDisplacement *Property[mgl32.Vec2]
	ScreenVelocity     *Property[mgl32.Vec2]
	Panning            *Property[bool]

	ring    [panRingSize]PanSample
	head    atomic.Uint64 // read index, written by the consumer only
	tail    atomic.Uint64 // write index, written by the producer only
	dropped atomic.Uint64

	inGesture bool
}

// NewPanGesture creates a pan gesture with zeroed properties.
func NewPanGesture() *PanGesture {
	g := &PanGesture{}
	g.PropertyOwner.ID = nextObjectID()
	g.ScreenPosition = AddProperty(&g.PropertyOwner, mgl32.Vec2{})
	g.ScreenDisplacement = AddProperty(&g.PropertyOwner, mgl32.Vec2{})
	g.ScreenVelocity = AddProperty(&g.PropertyOwner, mgl32.Vec2{})
	g.Panning = AddProperty(&g.PropertyOwner, false)
	return g
}

// AddSample queues a pan sample and reports whether it fit. A full ring
// drops s. Event goroutine only.
func (g *PanGesture) AddSample(s PanSample) bool {
	tail := g.tail.Load()
	if tail-g.head.Load() >= panRingSize {
		g.dropped.Add(1)
		return false
	}
	g.ring[tail%panRingSize] = s
	g.tail.Store(tail + 1) // publishes the slot
	return true
}

// Dropped returns how many samples were discarded because the ring was full.
func (g *PanGesture) Dropped() uint64 {
	return g.dropped.Load()
}

// Pending returns the number of unread samples.
func (g *PanGesture) Pending() int {
	head, tail := g.head.Load(), g.tail.Load()
	if tail <= head {
		return 0
	}
	return int(tail - head)
}

// UpdateProperties consumes samples stamped at or before nextVSyncMs and
// bakes their combined values: the latest position, the summed displacement
// and the averaged velocity. A zero nextVSyncMs consumes every sample.
// Reports whether any property changed.
// Update goroutine only.
func (g *PanGesture) UpdateProperties(bufferIndex BufferIndex, nextVSyncMs uint32) bool {
	var (
		count        int
		last         PanSample
		displacement mgl32.Vec2
		velocity     mgl32.Vec2
	)

	head, tail := g.head.Load(), g.tail.Load()
	for ; head < tail; head++ {
		s := g.ring[head%panRingSize]
		if nextVSyncMs != 0 && s.TimeMs > nextVSyncMs {
			break // belongs to a later frame
		}
		count++
		last = s
		displacement = displacement.Add(s.Displacement)
		velocity = velocity.Add(s.Velocity)
	}
	g.head.Store(head) // releases the consumed slots

	if count == 0 {
		return false
	}

	g.ScreenPosition.Bake(bufferIndex, last.Position)
	g.ScreenDisplacement.Bake(bufferIndex, displacement)
	g.ScreenVelocity.Bake(bufferIndex, velocity.Mul(1/float32(count)))

	panning := last.State == PanStarted || last.State == PanContinuing
	g.Panning.Bake(bufferIndex, panning)
	g.inGesture = panning
	return true
}

// InGesture reports whether the last consumed sample left a pan in progress.
func (g *PanGesture) InGesture() bool {
	return g.inGesture
}
