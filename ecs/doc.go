// Package ecs bridges canopy notifications into a Donburi world.
//
// The update goroutine publishes notifications (finished animations,
// property notifications, compiled shaders, completed render-once tasks)
// through a [canopy.NotificationManager]. [Bridge.Drain], called on the
// event goroutine, turns each one into a typed Donburi event so ECS systems
// can react to them alongside their own events.
//
// Usage:
//
//	bridge := ecs.NewBridge(world)
//	ecs.AnimationFinishedEventType.Subscribe(world, onFinished)
//	bridge.Drain(um.Notifications())
//	ecs.ProcessEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
