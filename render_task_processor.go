package canopy

// RenderTaskProcessor turns the per-layer renderable lists gathered by the
// node-tree walk into one RenderInstruction per render task.
type RenderTaskProcessor struct {
	sortBuf []RenderItem
}

// processStats counts what one Process call produced.
type processStats struct {
	instructions int
	items        int
	culled       int
}

// Process appends an instruction for every task in list that is ready and
// due, honoring layer order and per-item depth.
func (p *RenderTaskProcessor) Process(bufferIndex BufferIndex, list *RenderTaskList, layers []*Layer, surface Rect, instructions *RenderInstructionContainer) processStats {
	var st processStats
	for _, task := range list.tasks {
		if !task.ReadyToRender(bufferIndex) || !task.IsRenderRequired() {
			continue
		}
		source := task.source
		if !source.IsWorldVisible(bufferIndex) {
			continue
		}

		viewport := task.Viewport(bufferIndex, surface)
		cam := task.camera
		cam.Update(bufferIndex, viewport)

		ri := instructions.GetNextInstruction(bufferIndex)
		ri.TaskID = task.ID
		ri.View = cam.ViewMatrix(bufferIndex)
		ri.Projection = cam.ProjectionMatrix(bufferIndex)
		ri.Viewport = viewport
		ri.ClearEnabled = task.clearEnabled
		ri.ClearColor = task.ClearColor.Get(bufferIndex)
		ri.FrameBuffer = task.frameBuffer
		ri.SyncTracker = task.syncTrackerForInstruction()

		resourcesFinished := true
		for _, layer := range layers {
			if !layer.walkedUnder(source) && !source.walkedUnder(&layer.Node) {
				continue
			}
			if layer.pendingResources > 0 {
				resourcesFinished = false
			}
			rl := ri.nextList(layer.ID)
			culled := p.addRenderables(bufferIndex, task, layer.colorRenderables, ri, rl)
			p.sortItems(rl.Items, layer.Behavior)
			start := len(rl.Items)
			culled += p.addRenderables(bufferIndex, task, layer.overlayRenderables, ri, rl)
			p.sortItems(rl.Items[start:], layer.Behavior)
			st.culled += culled
			if len(rl.Items) == 0 {
				ri.dropLastList()
				continue
			}
			st.items += len(rl.Items)
		}

		task.SetResourcesFinished(resourcesFinished)
		st.instructions++
	}
	return st
}

// addRenderables filters renderables to the task's source subtree, culls
// them against the camera frustum and appends them to rl. Returns how many
// were culled.
func (p *RenderTaskProcessor) addRenderables(bufferIndex BufferIndex, task *RenderTask, renderables []Renderable, ri *RenderInstruction, rl *RenderList) int {
	culled := 0
	for _, r := range renderables {
		n := r.Node
		if r.exclusive != nil && r.exclusive != task {
			continue
		}
		if !n.walkedUnder(task.source) {
			continue
		}
		if !n.IsWorldVisible(bufferIndex) {
			continue
		}

		world := n.WorldMatrix()
		size := n.Size.Get(bufferIndex)
		if task.cullMode && (r.Renderer.shader == nil || r.Renderer.shader.Hints&ShaderHintModifiesGeometry == 0) {
			radius := mulVec3(size, n.WorldScale()).Len() * 0.5
			if radius <= 0 || !task.camera.SphereInFrustum(bufferIndex, world.Col(3).Vec3(), radius) {
				culled++
				continue
			}
		}

		rl.Items = append(rl.Items, RenderItem{
			NodeID:     n.ID,
			Renderer:   r.Renderer,
			Model:      world,
			ModelView:  ri.View.Mul4(world),
			Size:       size,
			Color:      n.WorldColor(bufferIndex),
			DepthIndex: n.depthIndex*treeDepthMultiplier + r.Renderer.depthIndex,
			Blend:      r.Renderer.blend,
			treeOrder:  r.treeOrder,
		})
	}
	return culled
}

// treeDepthMultiplier spaces node depth indices so renderer depth indices
// order draws within one node.
const treeDepthMultiplier = 10000

// itemLessOrEqual reports whether a sorts before or at the same position
// as b. Using <= for treeOrder keeps the sort stable.
func itemLessOrEqual(a, b *RenderItem, behavior LayerBehavior) bool {
	if a.DepthIndex != b.DepthIndex {
		return a.DepthIndex < b.DepthIndex
	}
	if behavior == Layer3D {
		za, zb := a.ModelView[14], b.ModelView[14]
		if za != zb {
			// Farther items (more negative view z) draw first.
			return za < zb
		}
	}
	return a.treeOrder <= b.treeOrder
}

// sortItems sorts items in place using p.sortBuf as scratch space.
// Bottom-up merge sort: zero allocations after the sort buffer reaches high-water mark.
func (p *RenderTaskProcessor) sortItems(items []RenderItem, behavior LayerBehavior) {
	n := len(items)
	if n <= 1 {
		return
	}
	if cap(p.sortBuf) < n {
		p.sortBuf = make([]RenderItem, n)
	}
	p.sortBuf = p.sortBuf[:n]

	a := items
	b := p.sortBuf
	swapped := false

	for width := 1; width < n; width *= 2 {
		for i := 0; i < n; i += 2 * width {
			lo := i
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			mergeItems(a, b, lo, mid, hi, behavior)
		}
		a, b = b, a
		swapped = !swapped
	}

	if swapped {
		copy(items, p.sortBuf)
	}
	clear(p.sortBuf)
}

// mergeItems merges two sorted runs [lo, mid) and [mid, hi) from src into dst.
func mergeItems(src, dst []RenderItem, lo, mid, hi int, behavior LayerBehavior) {
	i, j, k := lo, mid, lo
	for i < mid && j < hi {
		if itemLessOrEqual(&src[i], &src[j], behavior) {
			dst[k] = src[i]
			i++
		} else {
			dst[k] = src[j]
			j++
		}
		k++
	}
	for i < mid {
		dst[k] = src[i]
		i++
		k++
	}
	for j < hi {
		dst[k] = src[j]
		j++
		k++
	}
}
