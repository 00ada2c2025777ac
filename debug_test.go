package canopy

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// --- Tree dump ---

func TestDumpTreeIndentsChildren(t *testing.T) {
	root := NewNode("root")
	child := NewNode("child")
	root.ConnectChild(child)
	child.worldVisible.value = [2]bool{false, false}

	got := dumpTree(root, 0)
	want := fmt.Sprintf("root#%d pos=(0.0,0.0,0.0)\n  child#%d pos=(0.0,0.0,0.0) hidden\n", root.ID, child.ID)
	if got != want {
		t.Errorf("dumpTree =\n%q\nwant\n%q", got, want)
	}
}

func TestDumpTreeUnnamedNode(t *testing.T) {
	n := NewNode("")
	want := fmt.Sprintf("#%d pos=(0.0,0.0,0.0)\n", n.ID)
	if got := dumpTree(n, 1); got != want {
		t.Errorf("dumpTree = %q, want %q", got, want)
	}
}

// --- Frame logging ---

func TestDebugModeLogsEachFrame(t *testing.T) {
	logger, logs := observedLogger()
	s := newTestScene(t, WithLogger(logger), WithDebug(true))
	s.update()
	s.update()

	if n := logs.FilterMessage("frame").Len(); n != 3 {
		t.Errorf("frame entries = %d, want 3", n)
	}
	if n := logs.FilterMessage("scene tree").Len(); n != 0 {
		t.Errorf("scene tree entries = %d before dump interval, want 0", n)
	}
}

func TestDebugModeDumpsTreePeriodically(t *testing.T) {
	logger, logs := observedLogger()
	s := newTestScene(t, WithLogger(logger), WithDebug(true))
	for i := 1; i < debugDumpInterval; i++ {
		s.update()
	}

	dumps := logs.FilterMessage("scene tree").All()
	if len(dumps) != 1 {
		t.Fatalf("scene tree entries = %d, want 1", len(dumps))
	}
	tree, _ := dumps[0].ContextMap()["tree"].(string)
	if tree == "" {
		t.Error("scene tree dump is empty")
	}
}

func TestDebugModeOffIsQuiet(t *testing.T) {
	logger, logs := observedLogger()
	s := newTestScene(t, WithLogger(logger))
	s.update()
	if n := logs.FilterMessage("frame").Len(); n != 0 {
		t.Errorf("frame entries without debug = %d, want 0", n)
	}
}

// --- Threshold warnings ---

func TestDebugTreeDepthWarning(t *testing.T) {
	logger, logs := observedLogger()
	um := NewUpdateManager(WithLogger(logger), WithDebug(true))

	parent := NewNode("n0")
	for i := 1; i <= debugMaxTreeDepth; i++ {
		child := NewNode(fmt.Sprintf("n%d", i))
		um.ConnectNode(parent, child)
		parent = child
	}
	if n := logs.FilterMessage("tree depth exceeds threshold").Len(); n != 1 {
		t.Errorf("depth warnings = %d, want 1", n)
	}
}

func TestDebugChildCountWarning(t *testing.T) {
	logger, logs := observedLogger()
	um := NewUpdateManager(WithLogger(logger), WithDebug(true))

	parent := NewNode("parent")
	for i := 0; i <= debugMaxChildCount; i++ {
		um.ConnectNode(parent, NewNode(""))
	}
	if n := logs.FilterMessage("child count exceeds threshold").Len(); n != 1 {
		t.Errorf("child count warnings = %d, want 1", n)
	}
}
