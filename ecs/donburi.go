package ecs

import (
	"github.com/phanxgames/canopy"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// Donburi event types for canopy notifications. Subscribe to these in your
// ECS systems.
var (
	AnimationFinishedEventType  = events.NewEventType[canopy.AnimationFinishedNotification]()
	PropertyChangedEventType    = events.NewEventType[canopy.PropertyChangedNotification]()
	ShaderCompiledEventType     = events.NewEventType[canopy.ShaderCompiledNotification]()
	RenderTaskCompleteEventType = events.NewEventType[canopy.RenderTaskCompleteNotification]()
)

// Bridge publishes canopy notifications into a Donburi world.
type Bridge struct {
	world     donburi.World
	published int
}

// NewBridge creates a bridge publishing into world.
func NewBridge(world donburi.World) *Bridge {
	return &Bridge{world: world}
}

// Publish queues n as the matching Donburi event. Unknown notification
// types are ignored.
func (b *Bridge) Publish(n canopy.Notification) {
	switch n := n.(type) {
	case canopy.AnimationFinishedNotification:
		AnimationFinishedEventType.Publish(b.world, n)
	case canopy.PropertyChangedNotification:
		PropertyChangedEventType.Publish(b.world, n)
	case canopy.ShaderCompiledNotification:
		ShaderCompiledEventType.Publish(b.world, n)
	case canopy.RenderTaskCompleteNotification:
		RenderTaskCompleteEventType.Publish(b.world, n)
	default:
		return
	}
	b.published++
}

// Drain publishes every notification waiting in nm and returns how many
// were dispatched. Event goroutine only.
func (b *Bridge) Drain(nm *canopy.NotificationManager) int {
	return nm.ProcessMessages(b.Publish)
}

// Published returns how many notifications the bridge turned into events.
func (b *Bridge) Published() int {
	return b.published
}

// ProcessEvents delivers every queued canopy event to its subscribers.
func ProcessEvents(world donburi.World) {
	AnimationFinishedEventType.ProcessEvents(world)
	PropertyChangedEventType.ProcessEvents(world)
	ShaderCompiledEventType.ProcessEvents(world)
	RenderTaskCompleteEventType.ProcessEvents(world)
}
