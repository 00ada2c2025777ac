package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phanxgames/canopy"
)

func newEngine(t *testing.T, source string) *Engine {
	t.Helper()
	e := NewEngine(nil)
	t.Cleanup(e.Close)
	if err := e.LoadString(source); err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	return e
}

func TestConstraintAveragesSources(t *testing.T) {
	e := newEngine(t, `
function average(current, a, b)
  return (a + b) / 2
end
`)
	target := canopy.NewProperty(float32(0))
	a := canopy.NewProperty(float32(10))
	b := canopy.NewProperty(float32(20))

	c, err := e.Constraint(target, "average", a, b)
	if err != nil {
		t.Fatalf("Constraint: %v", err)
	}
	c.Apply(0)
	if got := target.Get(0); got != 15 {
		t.Errorf("target = %v, want 15", got)
	}
	if target.BaseValue() != 0 {
		t.Error("a constraint must not change the base value")
	}
}

func TestConstraintReceivesCurrentValue(t *testing.T) {
	e := newEngine(t, `
function grow(current)
  return current + 1
end
`)
	target := canopy.NewProperty(float32(4))
	c, err := e.Constraint(target, "grow")
	if err != nil {
		t.Fatalf("Constraint: %v", err)
	}
	c.Apply(1)
	if got := target.Get(1); got != 5 {
		t.Errorf("target = %v, want 5", got)
	}
}

func TestConstraintUnknownFunction(t *testing.T) {
	e := newEngine(t, `x = 1`)
	_, err := e.Constraint(canopy.NewProperty(float32(0)), "missing")
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("err = %v, want a not-found error", err)
	}
	if _, err := e.Constraint(canopy.NewProperty(float32(0)), "x"); err == nil {
		t.Error("a non-function global should be rejected")
	}
}

func TestConstraintFailureKeepsValue(t *testing.T) {
	e := newEngine(t, `
function broken(current) error("boom") end
function text(current) return "nope" end
`)
	for _, name := range []string{"broken", "text"} {
		target := canopy.NewProperty(float32(7))
		c, err := e.Constraint(target, name)
		if err != nil {
			t.Fatalf("Constraint(%s): %v", name, err)
		}
		c.Apply(0)
		if got := target.Get(0); got != 7 {
			t.Errorf("%s: target = %v, want 7", name, got)
		}
	}
	if e.Failures() != 2 {
		t.Errorf("Failures = %d, want 2", e.Failures())
	}
}

func TestLoadStringSyntaxError(t *testing.T) {
	e := NewEngine(nil)
	defer e.Close()
	if err := e.LoadString("function ("); err == nil {
		t.Error("expected a syntax error")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.lua":    "function first(c) return 1 end",
		"b.lua":    "function second(c) return first(c) + 1 end",
		"skip.txt": "not lua",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	e := NewEngine(nil)
	defer e.Close()
	if err := e.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	target := canopy.NewProperty(float32(0))
	c, err := e.Constraint(target, "second")
	if err != nil {
		t.Fatalf("Constraint: %v", err)
	}
	c.Apply(0)
	if got := target.Get(0); got != 2 {
		t.Errorf("target = %v, want 2", got)
	}

	if err := e.LoadDir(filepath.Join(dir, "missing")); err != nil {
		t.Errorf("LoadDir(missing) = %v, want nil", err)
	}
}

func TestConstraintThroughUpdateManager(t *testing.T) {
	e := newEngine(t, `
function double(current, x)
  return x * 2
end
`)
	um := canopy.NewUpdateManager()
	obj := canopy.NewPropertyOwner()
	src := canopy.AddProperty(obj, float32(3))
	dst := canopy.AddProperty(obj, float32(0))
	c, err := e.Constraint(dst, "double", src)
	if err != nil {
		t.Fatalf("Constraint: %v", err)
	}

	q := um.MessageQueue()
	q.EventProcessingStarted()
	q.Post(canopy.AddCustomObjectMessage{Object: obj})
	q.Post(canopy.ApplyConstraintMessage{Owner: obj, Constraint: c})
	q.FlushQueue()

	um.Update(0.016, 0, 0)
	bi := um.Buffers().GetRenderBufferIndex()
	if got := dst.Get(bi); got != 6 {
		t.Errorf("constrained value = %v, want 6", got)
	}
}
