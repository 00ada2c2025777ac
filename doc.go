// Package canopy is the update side of a retained-mode scene graph: it owns
// the node tree, animates and constrains its properties, and turns each frame
// into render instructions for a pluggable backend.
//
// Two goroutines share a scene. The event goroutine builds and edits the
// graph by posting messages; the update goroutine applies them, runs
// animations and constraints, resolves world transforms and produces one
// [RenderInstruction] per active [RenderTask]. Every animatable value is a
// double-buffered [Property], so the renderer can read the slot the last
// update wrote while the next one is being computed.
//
// # Frame pump
//
// A host drives the manager with [UpdateManager.Update] and hands the result
// to a [RenderManager]:
//
//	um := canopy.NewUpdateManager(canopy.WithLogger(logger))
//	rm := canopy.NewRenderManager(um, backend)
//
//	keep := um.Update(elapsed, lastVSyncMs, nextVSyncMs)
//	err := rm.Render(um.Buffers().GetRenderBufferIndex())
//
// The returned [KeepUpdating] mask is zero once the scene is idle; the pump
// can then sleep until the [MessageQueue] asks for another update. [Driver]
// implements this loop on its own goroutine for headless and terminal hosts,
// and the ebitenrender package adapts it to an [ebiten.Game].
//
// # Building a scene
//
// Nodes are created on the event goroutine and handed over with messages:
//
//	root := canopy.NewLayer("root")
//	box := canopy.NewNode("box")
//
//	q := um.MessageQueue()
//	q.EventProcessingStarted()
//	q.Post(canopy.InstallRootMessage{Layer: root})
//	q.Post(canopy.AddNodeMessage{Node: box})
//	q.Post(canopy.ConnectNodeMessage{Parent: &root.Node, Child: box})
//	q.Post(canopy.BakeMessage[mgl32.Vec3]{Property: box.Size, Value: mgl32.Vec3{80, 40, 1}})
//	q.FlushQueue()
//
// Messages posted in one event pass are applied together at the start of the
// next update, in order.
//
// # Backends
//
// A [Backend] receives resource commands and render instructions. The
// ebitenrender package draws quads through Ebitengine; the termrender package
// rasterizes them into terminal cells through tcell. The ecs package bridges
// notifications into a Donburi world and the script package binds Lua
// functions as constraints.
//
// [ebiten.Game]: https://pkg.go.dev/github.com/hajimehoshi/ebiten/v2#Game
package canopy
