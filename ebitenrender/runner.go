package ebitenrender

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// runStep is one action of a run script.
type runStep struct {
	Action string  `json:"action"`
	Label  string  `json:"label,omitempty"`
	X      float32 `json:"x,omitempty"`
	Y      float32 `json:"y,omitempty"`
	FromX  float32 `json:"fromX,omitempty"`
	FromY  float32 `json:"fromY,omitempty"`
	ToX    float32 `json:"toX,omitempty"`
	ToY    float32 `json:"toY,omitempty"`
	Frames int     `json:"frames,omitempty"`
}

type runScript struct {
	Steps []runStep `json:"steps"`
}

// Runner plays a scripted sequence of pointer input, waits and screenshots
// across ticks, for automated visual checks of a scene. Attach it with
// Game.SetRunner.
//
// Actions: "wait" (frames), "screenshot" (label), "press", "move",
// "release" (x, y) and "drag" (fromX, fromY, toX, toY, frames). Pointer
// actions need a PanInput on the game.
type Runner struct {
	steps     []runStep
	cursor    int
	waitCount int
	done      bool
}

// LoadRunScript parses a JSON run script.
func LoadRunScript(data []byte) (*Runner, error) {
	var script runScript
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse run script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("parse run script: no steps")
	}
	return &Runner{steps: script.Steps}, nil
}

// Done reports whether every step has run.
func (r *Runner) Done() bool { return r.done }

// step advances the runner by one tick. Called from Game.Update before
// input is polled.
func (r *Runner) step(g *Game) {
	if r.done {
		return
	}
	// Injected input drains before the next step.
	if g.pan != nil && g.pan.Injected() > 0 {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++

	switch st.Action {
	case "screenshot":
		g.Screenshot(st.Label)
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this tick counts as one
		}
	case "press", "move", "release", "drag":
		if g.pan == nil {
			g.log.Warn("run script pointer step without pan input", zap.String("action", st.Action))
			break
		}
		switch st.Action {
		case "press":
			g.pan.InjectPress(st.X, st.Y)
		case "move":
			g.pan.InjectMove(st.X, st.Y)
		case "release":
			g.pan.InjectRelease(st.X, st.Y)
		case "drag":
			g.pan.InjectDrag(mgl32.Vec2{st.FromX, st.FromY}, mgl32.Vec2{st.ToX, st.ToY}, st.Frames)
		}
	default:
		g.log.Warn("unknown run script action", zap.String("action", st.Action))
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 && (g.pan == nil || g.pan.Injected() == 0) {
		r.done = true
	}
}
