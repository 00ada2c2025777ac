package canopy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Driver pumps frames: it runs UpdateManager.Update on an update goroutine
// and RenderManager.Render on a render goroutine. The update goroutine may
// run at most two frames ahead of the render goroutine, so it never writes
// the slot being drawn. When Update reports nothing to do the driver idles
// until the message queue asks for an update.
//
// Driver implements RenderController and installs itself on the manager's
// message queue.
type Driver struct {
	um     *UpdateManager
	render *RenderManager
	logger *zap.Logger

	interval time.Duration
	idlePoll time.Duration

	wake      chan struct{}
	idleFlush chan struct{}
	frames    chan BufferIndex
	tokens    chan struct{}

	start time.Time
}

// framesInFlight is how many updated frames may wait for the render goroutine.
const framesInFlight = 2

// NewDriver creates a driver for um and rm.
func NewDriver(um *UpdateManager, rm *RenderManager, cfg DriverConfig, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	rate := cfg.FrameRate
	if rate <= 0 {
		rate = 60
	}
	d := &Driver{
		um:        um,
		render:    rm,
		logger:    logger,
		interval:  time.Second / time.Duration(rate),
		idlePoll:  cfg.IdlePoll,
		wake:      make(chan struct{}, 1),
		idleFlush: make(chan struct{}, 1),
		frames:    make(chan BufferIndex, framesInFlight),
		tokens:    make(chan struct{}, framesInFlight),
	}
	for range framesInFlight {
		d.tokens <- struct{}{}
	}
	um.messages.SetRenderController(d)
	return d
}

// RequestUpdate wakes an idle update goroutine. Safe from any goroutine.
func (d *Driver) RequestUpdate() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// RequestProcessEventsOnIdle signals the event side through IdleFlushRequests.
func (d *Driver) RequestProcessEventsOnIdle() {
	select {
	case d.idleFlush <- struct{}{}:
	default:
	}
}

// IdleFlushRequests delivers a value when messages were enqueued outside an
// event-processing pass and the event side should call FlushQueue.
func (d *Driver) IdleFlushRequests() <-chan struct{} {
	return d.idleFlush
}

// Run pumps frames until ctx is cancelled or the backend fails.
// Cancellation is not an error.
func (d *Driver) Run(ctx context.Context) error {
	d.start = time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.updateLoop(ctx) })
	g.Go(func() error { return d.renderLoop(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (d *Driver) updateLoop(ctx context.Context) error {
	defer close(d.frames)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	last := time.Now()
	var lastVSyncMs uint32
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.tokens:
		}

		now := time.Now()
		elapsed := float32(now.Sub(last).Seconds())
		last = now
		vsyncMs := uint32(now.Sub(d.start).Milliseconds())

		bufferIndex := d.um.buffers.GetUpdateBufferIndex()
		keep := d.um.Update(elapsed, lastVSyncMs, vsyncMs)
		lastVSyncMs = vsyncMs

		select {
		case d.frames <- bufferIndex:
		case <-ctx.Done():
			return ctx.Err()
		}

		if keep == KeepUpdatingNotRequested && !d.um.messages.HasPending() {
			d.logger.Debug("update idle", zap.Uint64("frame", d.um.stats.Frames))
			if err := d.idle(ctx); err != nil {
				return err
			}
			// Time spent idle is not animation time.
			last = time.Now()
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Driver) idle(ctx context.Context) error {
	var poll <-chan time.Time
	if d.idlePoll > 0 {
		t := time.NewTimer(d.idlePoll)
		defer t.Stop()
		poll = t.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.wake:
	case <-poll:
	}
	return nil
}

func (d *Driver) renderLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case bufferIndex, ok := <-d.frames:
			if !ok {
				return nil
			}
			if err := d.render.Render(bufferIndex); err != nil {
				return fmt.Errorf("render frame: %w", err)
			}
			d.tokens <- struct{}{}
		}
	}
}
