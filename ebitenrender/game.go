package ebitenrender

import (
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"

	"github.com/phanxgames/canopy"
)

// Game runs an UpdateManager inside ebiten's game loop. Ebiten calls Update
// and Draw on one goroutine, so the event, update and render sides take
// turns: Update runs the event hook, flushes the message queue and updates
// one frame; Draw renders the slot that update wrote.
//
// Game implements canopy.RenderController. Once the scene reports nothing
// to do, updates are skipped until a message is flushed, and Draw keeps
// presenting the last frame.
type Game struct {
	um      *canopy.UpdateManager
	render  *canopy.RenderManager
	backend *Backend
	log     *zap.Logger

	// Events runs once per tick inside an event-processing pass. Messages it
	// posts are flushed before the update.
	Events func(q *canopy.MessageQueue)

	// ScreenshotDir is where Screenshot writes PNGs.
	ScreenshotDir string

	pan         *PanInput
	runner      *Runner
	screenshots []string

	wake      atomic.Bool
	idleFlush atomic.Bool

	idle     bool
	rendered canopy.BufferIndex
	hasFrame bool
	undrawn  bool
	vsyncMs  uint32
	surface  canopy.Rect
	err      error
	skipped  uint64
}

// NewGame creates a game for um drawing through a new Backend.
func NewGame(um *canopy.UpdateManager, log *zap.Logger) *Game {
	if log == nil {
		log = zap.NewNop()
	}
	backend := NewBackend(log)
	g := &Game{
		um:      um,
		render:  canopy.NewRenderManager(um, backend),
		backend: backend,
		log:     log,
	}
	um.MessageQueue().SetRenderController(g)
	return g
}

// Backend returns the backend the game draws with.
func (g *Game) Backend() *Backend { return g.backend }

// RenderManager returns the render side of the manager.
func (g *Game) RenderManager() *canopy.RenderManager { return g.render }

// SetPanInput polls p every tick. Pass nil to stop.
func (g *Game) SetPanInput(p *PanInput) { g.pan = p }

// SetRunner plays r from the next tick.
func (g *Game) SetRunner(r *Runner) { g.runner = r }

// SkippedUpdates returns how many ticks were skipped while idle.
func (g *Game) SkippedUpdates() uint64 { return g.skipped }

// RequestUpdate ends an idle period.
func (g *Game) RequestUpdate() { g.wake.Store(true) }

// RequestProcessEventsOnIdle makes the next tick flush the message queue.
func (g *Game) RequestProcessEventsOnIdle() { g.idleFlush.Store(true) }

// Update implements ebiten.Game.
func (g *Game) Update() error {
	if g.err != nil {
		return g.err
	}

	if g.runner != nil {
		g.runner.step(g)
	}
	if g.pan != nil {
		g.pan.Poll(g.vsyncMs)
	}

	q := g.um.MessageQueue()
	if g.Events != nil {
		g.um.EventProcessingStarted()
		g.Events(q)
		g.um.FlushQueue()
	} else if g.idleFlush.Swap(false) {
		g.um.FlushQueue()
	}

	panPending := g.pan != nil && g.pan.Gesture().Pending() > 0
	if g.idle && !g.wake.Swap(false) && !q.HasPending() && !panPending {
		g.skipped++
		return nil
	}

	tps := ebiten.TPS()
	if tps <= 0 {
		tps = 60
	}
	elapsed := float32(1) / float32(tps)
	last := g.vsyncMs
	g.vsyncMs += uint32(1000 / tps)

	g.wake.Store(false)
	if g.undrawn {
		// Ebiten ran another tick without a Draw. Forward the skipped slot's
		// commands now so they stay ahead of the ones this update queues.
		g.render.ApplyResources(g.rendered)
	}
	bufferIndex := g.um.Buffers().GetUpdateBufferIndex()
	keep := g.um.Update(elapsed, last, g.vsyncMs)
	g.rendered = bufferIndex
	g.hasFrame = true
	g.undrawn = true
	g.idle = keep == canopy.KeepUpdatingNotRequested && !q.HasPending()
	if g.idle {
		g.log.Debug("game idle", zap.Uint64("frame", g.um.Stats().Frames))
	}
	return nil
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	if !g.hasFrame {
		return
	}
	g.undrawn = false
	g.backend.SetScreen(screen)
	if err := g.render.Render(g.rendered); err != nil {
		g.log.Error("render frame", zap.Error(err))
		g.err = err
	}
	g.flushScreenshots(screen)
}

// Layout implements ebiten.Game. A change of outside size is forwarded as
// the new default surface.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	surface := canopy.Rect{Width: outsideWidth, Height: outsideHeight}
	if surface != g.surface {
		g.surface = surface
		g.um.MessageQueue().Post(canopy.SetSurfaceRectMessage{Rect: surface})
	}
	return outsideWidth, outsideHeight
}
