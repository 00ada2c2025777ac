package ebitenrender

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/canopy"
)

const defaultPanDeadZone = 4.0 // pixels

// pointerEvent is one injected pointer state in screen coordinates.
type pointerEvent struct {
	pos     mgl32.Vec2
	pressed bool
}

// PanInput turns the primary pointer (the mouse, or the first touch) into
// samples for a canopy.PanGesture. A press followed by movement beyond the
// dead zone starts a pan; releasing finishes it. Velocity is in pixels per
// millisecond.
//
// Injected events take priority over real input and are consumed one per
// tick, so scripted drags are reproducible.
type PanInput struct {
	gesture  *canopy.PanGesture
	deadZone float32
	queue    []pointerEvent
	touchIDs []ebiten.TouchID

	down    bool
	panning bool
	start   mgl32.Vec2
	last    mgl32.Vec2
	lastMs  uint32
}

// NewPanInput feeds g.
func NewPanInput(g *canopy.PanGesture) *PanInput {
	return &PanInput{gesture: g, deadZone: defaultPanDeadZone}
}

// Gesture returns the gesture samples are pushed to.
func (p *PanInput) Gesture() *canopy.PanGesture { return p.gesture }

// SetDeadZone sets the minimum movement in pixels before a pan starts.
func (p *PanInput) SetDeadZone(pixels float32) { p.deadZone = pixels }

// Panning reports whether a pan is in progress on the event side.
func (p *PanInput) Panning() bool { return p.panning }

// InjectPress queues a press at screen coordinates.
func (p *PanInput) InjectPress(x, y float32) {
	p.queue = append(p.queue, pointerEvent{pos: mgl32.Vec2{x, y}, pressed: true})
}

// InjectMove queues a move with the pointer held down.
func (p *PanInput) InjectMove(x, y float32) {
	p.queue = append(p.queue, pointerEvent{pos: mgl32.Vec2{x, y}, pressed: true})
}

// InjectRelease queues a release at screen coordinates.
func (p *PanInput) InjectRelease(x, y float32) {
	p.queue = append(p.queue, pointerEvent{pos: mgl32.Vec2{x, y}})
}

// InjectDrag queues a press at from, frames-2 evenly spaced moves and a
// release at to. The sequence consumes frames ticks, at least 2.
func (p *PanInput) InjectDrag(from, to mgl32.Vec2, frames int) {
	if frames < 2 {
		frames = 2
	}
	p.InjectPress(from[0], from[1])
	steps := frames - 2
	for i := 1; i <= steps; i++ {
		t := float32(i) / float32(steps+1)
		pos := from.Add(to.Sub(from).Mul(t))
		p.InjectMove(pos[0], pos[1])
	}
	p.InjectRelease(to[0], to[1])
}

// Injected returns how many injected events are waiting.
func (p *PanInput) Injected() int { return len(p.queue) }

// Poll consumes one injected event, or reads ebiten's pointer state, and
// pushes any resulting sample stamped timeMs. Event side only.
func (p *PanInput) Poll(timeMs uint32) {
	if len(p.queue) > 0 {
		ev := p.queue[0]
		copy(p.queue, p.queue[1:])
		p.queue = p.queue[:len(p.queue)-1]
		p.pointer(ev.pos, ev.pressed, timeMs)
		return
	}

	p.touchIDs = ebiten.AppendTouchIDs(p.touchIDs[:0])
	if len(p.touchIDs) > 0 {
		x, y := ebiten.TouchPosition(p.touchIDs[0])
		p.pointer(mgl32.Vec2{float32(x), float32(y)}, true, timeMs)
		return
	}
	x, y := ebiten.CursorPosition()
	p.pointer(mgl32.Vec2{float32(x), float32(y)}, ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft), timeMs)
}

// pointer runs the pan state machine for one pointer state.
func (p *PanInput) pointer(pos mgl32.Vec2, pressed bool, timeMs uint32) {
	switch {
	case pressed && !p.down:
		p.down = true
		p.panning = false
		p.start, p.last, p.lastMs = pos, pos, timeMs

	case pressed && p.down:
		if pos == p.last {
			return
		}
		if !p.panning {
			if pos.Sub(p.start).Len() <= p.deadZone {
				return
			}
			p.panning = true
			p.emit(canopy.PanStarted, pos, pos.Sub(p.start), timeMs)
		} else {
			p.emit(canopy.PanContinuing, pos, pos.Sub(p.last), timeMs)
		}
		p.last, p.lastMs = pos, timeMs

	case !pressed && p.down:
		if p.panning {
			p.emit(canopy.PanFinished, pos, pos.Sub(p.last), timeMs)
		}
		p.down = false
		p.panning = false
	}
}

func (p *PanInput) emit(state canopy.PanState, pos, displacement mgl32.Vec2, timeMs uint32) {
	var velocity mgl32.Vec2
	if dt := timeMs - p.lastMs; timeMs > p.lastMs {
		velocity = displacement.Mul(1 / float32(dt))
	}
	p.gesture.AddSample(canopy.PanSample{
		State:        state,
		TimeMs:       timeMs,
		Position:     pos,
		Displacement: displacement,
		Velocity:     velocity,
	})
}
