package ecs

import (
	"testing"

	"github.com/phanxgames/canopy"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

func publish(notes ...canopy.Notification) *canopy.NotificationManager {
	nm := canopy.NewNotificationManager(nil)
	for _, n := range notes {
		nm.QueueNotification(n)
	}
	nm.UpdateCompleted()
	return nm
}

func TestNewBridge(t *testing.T) {
	if NewBridge(donburi.NewWorld()) == nil {
		t.Fatal("NewBridge returned nil")
	}
}

func TestBridge_DrainPublishesTypedEvents(t *testing.T) {
	world := donburi.NewWorld()
	bridge := NewBridge(world)

	var finished []canopy.AnimationFinishedNotification
	var changed []canopy.PropertyChangedNotification
	AnimationFinishedEventType.Subscribe(world, func(w donburi.World, e canopy.AnimationFinishedNotification) {
		finished = append(finished, e)
	})
	PropertyChangedEventType.Subscribe(world, func(w donburi.World, e canopy.PropertyChangedNotification) {
		changed = append(changed, e)
	})

	nm := publish(
		canopy.AnimationFinishedNotification{Finished: []uint32{7}},
		canopy.PropertyChangedNotification{ID: 3, Valid: true, Value: 12},
	)
	if n := bridge.Drain(nm); n != 2 {
		t.Fatalf("Drain = %d, want 2", n)
	}

	// Events are queued until processed.
	if len(finished) != 0 {
		t.Fatal("events should not be delivered before ProcessEvents")
	}
	ProcessEvents(world)

	if len(finished) != 1 || len(finished[0].Finished) != 1 || finished[0].Finished[0] != 7 {
		t.Errorf("finished = %+v", finished)
	}
	if len(changed) != 1 || changed[0].ID != 3 || !changed[0].Valid || changed[0].Value != 12 {
		t.Errorf("changed = %+v", changed)
	}
	if bridge.Published() != 2 {
		t.Errorf("Published = %d, want 2", bridge.Published())
	}
}

func TestBridge_RenderAndShaderEvents(t *testing.T) {
	world := donburi.NewWorld()
	bridge := NewBridge(world)

	var tasks, shaders int
	RenderTaskCompleteEventType.Subscribe(world, func(w donburi.World, e canopy.RenderTaskCompleteNotification) {
		tasks++
	})
	ShaderCompiledEventType.Subscribe(world, func(w donburi.World, e canopy.ShaderCompiledNotification) {
		shaders++
	})

	bridge.Drain(publish(
		canopy.RenderTaskCompleteNotification{TaskID: 1},
		canopy.ShaderCompiledNotification{ShaderID: 2, Binary: []byte{1}},
	))
	events.ProcessAllEvents(world)

	if tasks != 1 || shaders != 1 {
		t.Errorf("tasks = %d shaders = %d, want 1 and 1", tasks, shaders)
	}
}

func TestBridge_EmptyDrain(t *testing.T) {
	bridge := NewBridge(donburi.NewWorld())
	if n := bridge.Drain(canopy.NewNotificationManager(nil)); n != 0 {
		t.Errorf("Drain = %d, want 0", n)
	}
}

func TestBridge_MultipleSubscribers(t *testing.T) {
	world := donburi.NewWorld()
	bridge := NewBridge(world)

	var count1, count2 int
	PropertyChangedEventType.Subscribe(world, func(w donburi.World, e canopy.PropertyChangedNotification) {
		count1++
	})
	PropertyChangedEventType.Subscribe(world, func(w donburi.World, e canopy.PropertyChangedNotification) {
		count2++
	})

	bridge.Drain(publish(canopy.PropertyChangedNotification{ID: 1}))
	ProcessEvents(world)

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both subscribers called once, got %d and %d", count1, count2)
	}
}
