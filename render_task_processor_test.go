package canopy

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func itemAt(depth, order int, viewZ float32) RenderItem {
	it := RenderItem{DepthIndex: depth, treeOrder: order, ModelView: mgl32.Ident4()}
	it.ModelView[14] = viewZ
	return it
}

func treeOrders(items []RenderItem) []int {
	out := make([]int, len(items))
	for i := range items {
		out[i] = items[i].treeOrder
	}
	return out
}

func assertInts(t *testing.T, name string, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("%s = %v, want %v", name, got, want)
			return
		}
	}
}

// --- Sorting ---

func TestSortItems2DDepthThenTreeOrder(t *testing.T) {
	var p RenderTaskProcessor
	items := []RenderItem{
		itemAt(2, 0, 0),
		itemAt(1, 1, 0),
		itemAt(2, 2, 0),
		itemAt(0, 3, 0),
		itemAt(1, 4, 0),
	}
	p.sortItems(items, Layer2D)
	assertInts(t, "order", treeOrders(items), []int{3, 1, 4, 0, 2})
}

func TestSortItemsStableForEqualDepth(t *testing.T) {
	var p RenderTaskProcessor
	items := make([]RenderItem, 9)
	for i := range items {
		items[i] = itemAt(0, i, 0)
	}
	p.sortItems(items, Layer2D)
	assertInts(t, "order", treeOrders(items), []int{0, 1, 2, 3, 4, 5, 6, 7, 8})
}

func TestSortItems3DFarToNear(t *testing.T) {
	var p RenderTaskProcessor
	items := []RenderItem{
		itemAt(0, 0, -10),
		itemAt(0, 1, -300),
		itemAt(0, 2, -50),
	}
	p.sortItems(items, Layer3D)
	assertInts(t, "order", treeOrders(items), []int{1, 2, 0})

	// Layer2D ignores view depth.
	p.sortItems(items, Layer2D)
	assertInts(t, "2D order", treeOrders(items), []int{0, 1, 2})
}

func TestSortItemsReusesBuffer(t *testing.T) {
	var p RenderTaskProcessor
	items := []RenderItem{itemAt(1, 0, 0), itemAt(0, 1, 0), itemAt(0, 2, 0)}
	p.sortItems(items, Layer2D)
	buf := cap(p.sortBuf)
	p.sortItems(items, Layer2D)
	if cap(p.sortBuf) != buf {
		t.Errorf("sort buffer regrown from %d to %d", buf, cap(p.sortBuf))
	}
	for _, it := range p.sortBuf {
		if it.Renderer != nil {
			t.Error("sort buffer should be cleared after use")
		}
	}
}

// --- Source subtree ---

func TestTaskDrawsOnlyItsSourceSubtree(t *testing.T) {
	s := newTestScene(t)
	group := NewNode("group")
	s.post(
		AddNodeMessage{Node: group},
		ConnectNodeMessage{Parent: &s.root.Node, Child: group},
	)
	inside, _ := s.addSprite("inside", group)
	s.addSprite("outside", &s.root.Node)
	sub := NewRenderTask(group, s.cam)
	s.post(AddRenderTaskMessage{Task: sub})
	s.update()

	bi := s.um.Buffers().GetRenderBufferIndex()
	counts := map[uint32]int{}
	var subItems []RenderItem
	for i := range s.um.Instructions().Count(bi) {
		ri := s.um.Instructions().At(bi, i)
		counts[ri.TaskID] = ri.ItemCount()
		if ri.TaskID == sub.ID {
			for _, rl := range ri.Lists() {
				subItems = append(subItems, rl.Items...)
			}
		}
	}
	if got := counts[s.task.ID]; got != 2 {
		t.Errorf("root task items = %d, want 2", got)
	}
	if len(subItems) != 1 || subItems[0].NodeID != inside.ID {
		t.Errorf("group task items = %v, want only %q", subItems, inside)
	}
}

func TestWalkedUnderMatchesHierarchy(t *testing.T) {
	s := newTestScene(t)
	a, _ := s.addSprite("a", &s.root.Node)
	b, _ := s.addSprite("b", a)
	c, _ := s.addSprite("c", &s.root.Node)
	s.update()

	tests := []struct {
		n, ancestor *Node
		want        bool
	}{
		{b, a, true},
		{b, &s.root.Node, true},
		{a, a, true},
		{a, b, false},
		{c, a, false},
	}
	for _, tt := range tests {
		if got := tt.n.walkedUnder(tt.ancestor); got != tt.want {
			t.Errorf("%v walkedUnder %v = %v, want %v", tt.n, tt.ancestor, got, tt.want)
		}
	}

	detached := NewNode("detached")
	if detached.walkedUnder(&s.root.Node) {
		t.Error("a node the walk never reached is under nothing")
	}
}

// --- Culling ---

func TestOffscreenNodeCulled(t *testing.T) {
	s := newTestScene(t)
	far, _ := s.addSprite("far", &s.root.Node)
	s.addSprite("near", &s.root.Node)
	s.post(BakeMessage[mgl32.Vec3]{Property: far.Position, Value: mgl32.Vec3{5000, 0, 0}})
	s.update()

	if got := len(s.lastItems()); got != 1 {
		t.Errorf("items = %d, want 1", got)
	}
	if got := s.um.Stats().LastCulled; got != 1 {
		t.Errorf("LastCulled = %d, want 1", got)
	}
}

func TestCullingDisabledKeepsOffscreenNode(t *testing.T) {
	s := newTestScene(t)
	far, _ := s.addSprite("far", &s.root.Node)
	s.post(
		BakeMessage[mgl32.Vec3]{Property: far.Position, Value: mgl32.Vec3{5000, 0, 0}},
		RenderTaskFunc{Task: s.task, Fn: func(t *RenderTask) { t.SetCullMode(false) }},
	)
	s.update()

	if got := len(s.lastItems()); got != 1 {
		t.Errorf("items = %d, want 1 with culling disabled", got)
	}
}

func TestGeometryModifyingShaderNotCulled(t *testing.T) {
	s := newTestScene(t)
	far, r := s.addSprite("far", &s.root.Node)
	sh := NewShader(ShaderHintModifiesGeometry)
	s.post(
		AddShaderMessage{Shader: sh},
		BakeMessage[mgl32.Vec3]{Property: far.Position, Value: mgl32.Vec3{5000, 0, 0}},
		RendererFunc{Renderer: r, Fn: func(r *Renderer) { r.SetShader(sh) }},
	)
	s.update()

	if got := len(s.lastItems()); got != 1 {
		t.Errorf("items = %d, want 1 for a geometry-modifying shader", got)
	}
}

func TestZeroSizeNodeCulled(t *testing.T) {
	s := newTestScene(t)
	n, _ := s.addSprite("flat", &s.root.Node)
	s.post(BakeMessage[mgl32.Vec3]{Property: n.Size, Value: mgl32.Vec3{}})
	s.update()

	if got := len(s.lastItems()); got != 0 {
		t.Errorf("items = %d, want 0 for a zero-size node", got)
	}
}

func TestRenderItemCarriesViewAndModel(t *testing.T) {
	s := newTestScene(t)
	n, _ := s.addSprite("moved", &s.root.Node)
	s.post(BakeMessage[mgl32.Vec3]{Property: n.Position, Value: mgl32.Vec3{30, 40, 0}})
	s.update()

	items := s.lastItems()
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	assertVec3(t, "model translation", items[0].Model.Col(3).Vec3(), mgl32.Vec3{30, 40, 0})
	assertVec3(t, "view translation", items[0].ModelView.Col(3).Vec3(), mgl32.Vec3{30, 40, -800})
	if items[0].Size != (mgl32.Vec3{100, 100, 0}) {
		t.Errorf("Size = %v, want (100,100,0)", items[0].Size)
	}
}
