package ebitenrender

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/phanxgames/canopy"
)

func TestGameIdlesUntilMessage(t *testing.T) {
	um := canopy.NewUpdateManager()
	g := NewGame(um, nil)

	if err := g.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := um.Stats().Frames; got != 1 {
		t.Fatalf("Frames = %d, want 1", got)
	}

	// Nothing to do: the next ticks are skipped.
	for range 3 {
		if err := g.Update(); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if got := g.SkippedUpdates(); got != 3 {
		t.Errorf("SkippedUpdates = %d, want 3", got)
	}
	if got := um.Stats().Frames; got != 1 {
		t.Errorf("Frames while idle = %d, want 1", got)
	}

	// A resize posts a message outside event processing, which wakes the game.
	g.Layout(320, 240)
	if err := g.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := um.Stats().Frames; got != 2 {
		t.Errorf("Frames after resize = %d, want 2", got)
	}

	g.Draw(nil)
	want := canopy.Rect{Width: 320, Height: 240}
	if got := g.RenderManager().Surface(); got != want {
		t.Errorf("Surface = %v, want %v", got, want)
	}
	if got := g.RenderManager().Frames(); got != 1 {
		t.Errorf("rendered Frames = %d, want 1", got)
	}
}

func TestGameEventsHook(t *testing.T) {
	um := canopy.NewUpdateManager()
	g := NewGame(um, nil)
	calls := 0
	g.Events = func(q *canopy.MessageQueue) {
		calls++
		if calls == 1 {
			q.Post(canopy.SetBackgroundColorMessage{Color: canopy.Color{1, 0, 0, 1}})
		}
	}

	if err := g.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	g.Draw(nil)
	if got := g.RenderManager().Background(); got != (canopy.Color{1, 0, 0, 1}) {
		t.Errorf("Background = %v, want red", got)
	}
	if calls != 1 {
		t.Errorf("Events calls = %d, want 1", calls)
	}
}

func TestGameSeveralUpdatesPerDraw(t *testing.T) {
	um := canopy.NewUpdateManager()
	g := NewGame(um, nil)
	red, green := canopy.Color{1, 0, 0, 1}, canopy.Color{0, 1, 0, 1}
	calls := 0
	g.Events = func(q *canopy.MessageQueue) {
		calls++
		switch calls {
		case 1:
			q.Post(canopy.SetBackgroundColorMessage{Color: red})
		case 2:
			q.Post(canopy.SetBackgroundColorMessage{Color: green})
		case 3:
			q.Post(canopy.KeepRenderingMessage{Seconds: 1})
		}
	}

	// Two ticks before the first Draw.
	for range 2 {
		if err := g.Update(); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if got := g.RenderManager().Background(); got != red {
		t.Errorf("Background after the undrawn tick = %v, want red forwarded", got)
	}
	g.Draw(nil)
	if got := g.RenderManager().Background(); got != green {
		t.Fatalf("Background = %v, want green", got)
	}

	if err := g.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	g.Draw(nil)
	if got := g.RenderManager().Background(); got != green {
		t.Errorf("Background = %v, want green, the last color posted", got)
	}
	if got := g.RenderManager().Frames(); got != 2 {
		t.Errorf("rendered Frames = %d, want 2", got)
	}
}

func TestGameDrawBeforeUpdate(t *testing.T) {
	g := NewGame(canopy.NewUpdateManager(), nil)
	g.Draw(nil)
	if got := g.RenderManager().Frames(); got != 0 {
		t.Errorf("Frames = %d, want 0", got)
	}
}

func TestGamePanWakesIdleGame(t *testing.T) {
	um := canopy.NewUpdateManager()
	g := NewGame(um, nil)
	gesture := canopy.NewPanGesture()
	pan := NewPanInput(gesture)
	g.SetPanInput(pan)

	q := um.MessageQueue()
	q.EventProcessingStarted()
	q.Post(canopy.AddPanGestureMessage{Gesture: gesture})
	q.FlushQueue()

	tick := func() {
		t.Helper()
		if err := g.Update(); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	tick()
	pan.InjectDrag(mgl32.Vec2{}, mgl32.Vec2{40, 0}, 5)

	// The press alone produces no sample.
	tick()
	if got := g.SkippedUpdates(); got != 1 {
		t.Fatalf("SkippedUpdates = %d, want 1", got)
	}

	// The first move starts the pan and wakes the game.
	tick()
	if got := um.Stats().Frames; got != 2 {
		t.Errorf("Frames = %d, want 2", got)
	}
	if gesture.Pending() != 0 {
		t.Errorf("Pending = %d, want the sample consumed", gesture.Pending())
	}
	if !gesture.InGesture() {
		t.Error("gesture should be in progress")
	}
}
