package canopy

import (
	"time"

	"go.uber.org/zap"
)

// Update advances the scene graph by one frame and returns why another
// update must be scheduled. Update goroutine only.
//
// The frame runs in a fixed order: release discarded objects, consume
// gestures, reset double-buffered values, apply queued messages, and, when
// anything changed this frame or the last, animate, walk the node tree,
// update transforms and build the render instructions. It always finishes
// by advancing render-task state, publishing notifications and swapping the
// buffer index.
func (um *UpdateManager) Update(elapsedSeconds float32, lastVSyncMs, nextVSyncMs uint32) KeepUpdating {
	start := time.Now()
	bufferIndex := um.buffers.GetUpdateBufferIndex()

	um.discard.Clear(bufferIndex)

	gestureUpdated := um.processGestures(bufferIndex, lastVSyncMs, nextVSyncMs)

	updateScene := um.nodeDirtyFlags&RenderableUpdateFlags != 0 ||
		um.IsAnimationRunning() ||
		um.messages.IsSceneUpdateRequired() ||
		gestureUpdated

	// Values changed last frame still have to be synchronized into this
	// slot even when nothing changed this frame.
	if updateScene || um.previousUpdateScene {
		um.resetProperties(bufferIndex)
	}

	// Messages flushed after the check above still count.
	updateScene = um.messages.ProcessMessages(um, bufferIndex) || updateScene
	um.stats.Messages += uint64(um.messages.LastProcessedCount())

	um.forwardCompiledShaders()

	updating := updateScene || um.previousUpdateScene
	if updating {
		um.animate(bufferIndex, elapsedSeconds)
		constrainOwners(um.customObjects, bufferIndex)

		for _, l := range um.layers {
			l.ClearRenderables()
		}

		um.updateNodes(bufferIndex)

		constrainOwners(um.systemTaskList.tasks, bufferIndex)
		constrainOwners(um.taskList.tasks, bufferIndex)
		constrainOwners(um.cameras, bufferIndex)
		constrainOwners(um.shaders, bufferIndex)

		um.updateRenderers(bufferIndex)
		um.transforms.Update()
		um.processPropertyNotifications(bufferIndex)

		um.instructions.ResetAndReserve(bufferIndex, um.taskList.Count()+um.systemTaskList.Count())
		var st processStats
		if um.root != nil {
			st = um.processor.Process(bufferIndex, &um.taskList, um.layerOrder, um.surface, &um.instructions)
			if um.systemRoot != nil {
				sys := um.processor.Process(bufferIndex, &um.systemTaskList, um.systemLayerOrder, um.surface, &um.instructions)
				st.instructions += sys.instructions
				st.items += sys.items
				st.culled += sys.culled
			}
		}
		um.stats.LastInstructions = st.instructions
		um.stats.LastRenderItems = st.items
		um.stats.LastCulled = st.culled
		um.stats.UpdatedFrames++
	} else {
		um.stats.SkippedFrames++
	}

	um.updateRenderTaskStates(bufferIndex)
	um.queueAnimationNotifications()

	um.previousUpdateScene = updateScene
	keep := um.keepUpdatingCheck(elapsedSeconds)

	um.notifications.UpdateCompleted()
	um.buffers.Swap()

	um.stats.Frames++
	um.stats.LastDuration = time.Since(start)
	if um.metrics != nil {
		um.metrics.observe(&um.stats, updating, keep)
	}
	if um.debug {
		um.debugFrame(updating, keep)
	}
	return keep
}

// resetProperties restores every double-buffered value of the update slot
// from its base value.
func (um *UpdateManager) resetProperties(bufferIndex BufferIndex) {
	um.animationFinishedDuringUpdate = false
	um.stats.ResetPasses++

	if um.root != nil {
		um.root.ResetToBaseValues(bufferIndex)
	}
	if um.systemRoot != nil {
		um.systemRoot.ResetToBaseValues(bufferIndex)
	}
	resetOwners(um.nodes, bufferIndex)
	resetOwners(um.systemTaskList.tasks, bufferIndex)
	resetOwners(um.taskList.tasks, bufferIndex)
	resetOwners(um.cameras, bufferIndex)
	resetOwners(um.customObjects, bufferIndex)
	resetOwners(um.renderers, bufferIndex)
	resetOwners(um.shaders, bufferIndex)
	resetOwners(um.panGestures, bufferIndex)
}

// processGestures consumes pan samples due by the next vsync.
func (um *UpdateManager) processGestures(bufferIndex BufferIndex, _, nextVSyncMs uint32) bool {
	updated := false
	for _, g := range um.panGestures {
		if g.UpdateProperties(bufferIndex, nextVSyncMs) {
			updated = true
		}
	}
	return updated
}

// forwardCompiledShaders hands binaries reported by the render goroutine to
// the event goroutine.
func (um *UpdateManager) forwardCompiledShaders() {
	for _, s := range um.shaderSaver.drain() {
		um.notifications.QueueNotification(ShaderCompiledNotification{ShaderID: s.ID, Binary: s.binary})
	}
}

// animate advances every animation and drops the destroyed ones.
func (um *UpdateManager) animate(bufferIndex BufferIndex, elapsedSeconds float32) {
	um.stats.AnimatePasses++
	kept := um.animations[:0]
	for _, a := range um.animations {
		looped, finished := a.Update(bufferIndex, elapsedSeconds)
		if finished {
			um.animationFinishedDuringUpdate = true
			um.finishedIDs = append(um.finishedIDs, a.ID)
			um.stats.AnimationsDone++
		}
		if looped {
			um.loopedIDs = append(um.loopedIDs, a.ID)
		}
		if a.state == AnimationDestroyed {
			continue
		}
		kept = append(kept, a)
	}
	clear(um.animations[len(kept):])
	um.animations = kept
}

func (um *UpdateManager) queueAnimationNotifications() {
	if len(um.finishedIDs) == 0 && len(um.loopedIDs) == 0 {
		return
	}
	n := AnimationFinishedNotification{}
	if len(um.finishedIDs) > 0 {
		n.Finished = append([]uint32(nil), um.finishedIDs...)
	}
	if len(um.loopedIDs) > 0 {
		n.Looped = append([]uint32(nil), um.loopedIDs...)
	}
	um.notifications.QueueNotification(n)
	um.finishedIDs = um.finishedIDs[:0]
	um.loopedIDs = um.loopedIDs[:0]
}

func (um *UpdateManager) updateRenderers(bufferIndex BufferIndex) {
	for _, r := range um.renderers {
		r.ApplyConstraints(bufferIndex)
		r.PrepareRender(bufferIndex)
	}
}

func (um *UpdateManager) processPropertyNotifications(bufferIndex BufferIndex) {
	for _, pn := range um.propertyNotifications {
		if pn.Check(bufferIndex) {
			um.notifications.QueueNotification(PropertyChangedNotification{
				ID:    pn.ID,
				Valid: pn.Valid(),
				Value: pn.LastValue(),
			})
		}
	}
}

// updateRenderTaskStates advances the refresh state machine of every normal
// task and queues completion notifications for render-once tasks.
func (um *UpdateManager) updateRenderTaskStates(bufferIndex BufferIndex) {
	um.renderTaskWaiting = false
	for _, task := range um.taskList.tasks {
		task.UpdateState()
		if task.IsWaitingToRender() && task.ReadyToRender(bufferIndex) {
			um.renderTaskWaiting = true
		}
		if task.HasRendered() {
			um.notifications.QueueNotification(RenderTaskCompleteNotification{TaskID: task.ID})
			um.stats.RenderTasksDone++
		}
	}
}

func (um *UpdateManager) keepUpdatingCheck(elapsedSeconds float32) KeepUpdating {
	if um.keepRenderingSeconds > 0 {
		um.keepRenderingSeconds -= elapsedSeconds
	}
	keep := KeepUpdatingNotRequested
	if um.keepRenderingSeconds > 0 {
		keep |= KeepUpdatingStageKeepRendering
	}
	if um.IsAnimationRunning() || um.animationFinishedDuringUpdate {
		keep |= KeepUpdatingAnimationsRunning
	}
	if um.renderTaskWaiting {
		keep |= KeepUpdatingRenderTaskSync
	}
	return keep
}

// --- Node tree ---

// updateNodes walks both trees, refreshing world values and filling each
// layer's renderable lists, then derives the layer draw order.
func (um *UpdateManager) updateNodes(bufferIndex BufferIndex) {
	um.nodeDirtyFlags = NothingFlag
	um.treeOrder = 0
	um.stats.TreeWalks++

	um.layerOrder = um.layerOrder[:0]
	if um.root != nil {
		um.nodeDirtyFlags |= um.walkTree(um.root, bufferIndex)
		um.layerOrder = um.orderLayers(um.layerOrder, um.sortedLayers)
	}
	um.systemLayerOrder = um.systemLayerOrder[:0]
	if um.systemRoot != nil {
		um.nodeDirtyFlags |= um.walkTree(um.systemRoot, bufferIndex)
		um.systemLayerOrder = um.orderLayers(um.systemLayerOrder, um.systemSortedLayers)
	}
}

func (um *UpdateManager) walkTree(root *Layer, bufferIndex BufferIndex) NodeDirtyFlags {
	um.walkStamp++
	um.walkIndex = 0
	clear(um.walkedLayers)
	um.walkedLayers = um.walkedLayers[:0]
	return um.updateNode(&root.Node, root, nil, NothingFlag, bufferIndex)
}

// updateNode refreshes n and its subtree and returns the OR of their flags.
func (um *UpdateManager) updateNode(n *Node, layer *Layer, exclusive *RenderTask, parentFlags NodeDirtyFlags, bufferIndex BufferIndex) NodeDirtyFlags {
	n.span = treeSpan{stamp: um.walkStamp, enter: um.walkIndex}
	um.walkIndex++
	n.ApplyConstraints(bufferIndex)

	own := n.GetDirtyFlags()
	flags := own | inheritedFlags(parentFlags)
	if own&TransformFlag != 0 {
		n.pushLocalTransform(bufferIndex)
	}
	n.updateWorldValues(flags, bufferIndex)

	if n.layer != nil {
		layer = n.layer
		if layer.walkStamp != um.walkStamp {
			layer.walkStamp = um.walkStamp
			um.walkedLayers = append(um.walkedLayers, layer)
		}
	}
	if n.exclusive != nil {
		exclusive = n.exclusive
	}

	if len(n.renderers) > 0 && n.IsWorldVisible(bufferIndex) {
		overlay := n.drawMode == DrawModeOverlay
		for _, r := range n.renderers {
			if !r.IsReady() {
				layer.pendingResources++
				continue
			}
			layer.addRenderable(Renderable{Node: n, Renderer: r, exclusive: exclusive, treeOrder: um.treeOrder}, overlay)
			um.treeOrder++
		}
	}

	cumulative := flags
	for _, c := range n.children {
		cumulative |= um.updateNode(c, layer, exclusive, flags, bufferIndex)
	}
	n.span.exit = um.walkIndex
	n.SetClean()
	return cumulative
}

// orderLayers appends the layers reached by the last walk to dst: first in
// the order set by SetLayerDepths, then any others in tree order.
func (um *UpdateManager) orderLayers(dst, sorted []*Layer) []*Layer {
	for _, l := range sorted {
		if l.walkStamp == um.walkStamp && l.placeStamp != um.walkStamp {
			l.placeStamp = um.walkStamp
			dst = append(dst, l)
		}
	}
	for _, l := range um.walkedLayers {
		if l.placeStamp != um.walkStamp {
			l.placeStamp = um.walkStamp
			dst = append(dst, l)
		}
	}
	return dst
}

// LayerOrder returns the draw order of the layers under the root (or the
// system root) as of the last tree walk. The slice MUST NOT be mutated.
func (um *UpdateManager) LayerOrder(systemLevel bool) []*Layer {
	if systemLevel {
		return um.systemLayerOrder
	}
	return um.layerOrder
}

// logFields returns the standard fields for frame log lines.
func (um *UpdateManager) logFields(updating bool, keep KeepUpdating) []zap.Field {
	return []zap.Field{
		zap.Uint64("frame", um.stats.Frames),
		zap.Bool("updated", updating),
		zap.Uint32("keep_updating", uint32(keep)),
		zap.Int("messages", um.messages.LastProcessedCount()),
		zap.Int("instructions", um.stats.LastInstructions),
		zap.Int("items", um.stats.LastRenderItems),
		zap.Int("culled", um.stats.LastCulled),
		zap.Duration("duration", um.stats.LastDuration),
	}
}
