package canopy

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween/ease"
)

// AnimationState is the playback state of an Animation.
type AnimationState uint8

const (
	AnimationStopped AnimationState = iota
	AnimationPlaying
	AnimationPaused
	AnimationDestroyed
)

// EndAction decides what happens to animated values when an animation stops
// or finishes.
type EndAction uint8

const (
	EndBake      EndAction = iota // keep the values reached at the current time
	EndDiscard                    // fall back to the pre-animation base values
	EndBakeFinal                  // jump to and keep the values at the end of the play range
)

// Animatable lists the property types animators can interpolate.
type Animatable interface {
	float32 | mgl32.Vec2 | mgl32.Vec3 | mgl32.Vec4 | mgl32.Quat | bool
}

// TimePeriod is an animator's active window relative to the animation start.
type TimePeriod struct {
	Delay    float32
	Duration float32
}

// Animator drives one property of an Animation.
type Animator interface {
	update(bufferIndex BufferIndex, elapsedSeconds float32, bake bool)
	orphaned() bool
	restart()
}

// PropertyAnimator interpolates one property over its time period. The start
// value is captured from the property on the first update of each playthrough.
type PropertyAnimator[T Animatable] struct {
	owner  *PropertyOwner
	target *Property[T]
	period TimePeriod
	alpha  ease.TweenFunc
	eval   func(start T, t float32) T

	start   T
	started bool
}

func newPropertyAnimator[T Animatable](owner *PropertyOwner, target *Property[T], period TimePeriod, alpha ease.TweenFunc, eval func(T, float32) T) *PropertyAnimator[T] {
	if owner == nil || target == nil {
		panic("canopy: animator needs an owner and a target property")
	}
	return &PropertyAnimator[T]{owner: owner, target: target, period: period, alpha: alpha, eval: eval}
}

// AnimateTo interpolates the property from its current value to to.
func AnimateTo[T Animatable](owner *PropertyOwner, target *Property[T], to T, period TimePeriod, alpha ease.TweenFunc) *PropertyAnimator[T] {
	return newPropertyAnimator(owner, target, period, alpha, func(start T, t float32) T {
		return lerp(start, to, t)
	})
}

// AnimateBy interpolates the property from its current value by delta.
func AnimateBy[T Animatable](owner *PropertyOwner, target *Property[T], delta T, period TimePeriod, alpha ease.TweenFunc) *PropertyAnimator[T] {
	return newPropertyAnimator(owner, target, period, alpha, func(start T, t float32) T {
		return lerp(start, add(start, delta), t)
	})
}

// AnimateOpacityTo fades the node's opacity to to. Only the alpha channel of
// Color moves; the color channels keep the values captured at the start.
func AnimateOpacityTo(n *Node, to float32, period TimePeriod, alpha ease.TweenFunc) *PropertyAnimator[Color] {
	return newPropertyAnimator(&n.PropertyOwner, n.Color, period, alpha, func(start Color, t float32) Color {
		start[3] += (to - start[3]) * t
		return start
	})
}

// AnimateBetween drives the property through a set of key frames.
func AnimateBetween[T Animatable](owner *PropertyOwner, target *Property[T], frames *KeyFrames[T], period TimePeriod, alpha ease.TweenFunc) *PropertyAnimator[T] {
	return newPropertyAnimator(owner, target, period, alpha, func(_ T, t float32) T {
		return frames.Evaluate(t)
	})
}

func (a *PropertyAnimator[T]) orphaned() bool {
	return a.owner.IsDestroyed()
}

func (a *PropertyAnimator[T]) restart() {
	a.started = false
}

func (a *PropertyAnimator[T]) update(bufferIndex BufferIndex, elapsedSeconds float32, bake bool) {
	if !a.started {
		a.start = a.target.Get(bufferIndex)
		a.started = true
	}

	var t float32
	switch {
	case elapsedSeconds < a.period.Delay:
		t = 0
	case a.period.Duration <= 0:
		t = 1
	default:
		t = clamp01((elapsedSeconds - a.period.Delay) / a.period.Duration)
	}
	if a.alpha != nil {
		t = a.alpha(t, 0, 1, 1)
	}

	value := a.eval(a.start, t)
	if bake {
		a.target.Bake(bufferIndex, value)
	} else {
		a.target.Set(bufferIndex, value)
	}
}

// KeyFrame is one value at a progress point in [0, 1].
type KeyFrame[T Animatable] struct {
	Progress float32
	Value    T
}

// KeyFrames is an ordered list of key frames, interpolated linearly.
type KeyFrames[T Animatable] struct {
	frames []KeyFrame[T]
}

// Add inserts a key frame, keeping the list sorted by progress.
func (k *KeyFrames[T]) Add(progress float32, value T) *KeyFrames[T] {
	f := KeyFrame[T]{Progress: clamp01(progress), Value: value}
	i := len(k.frames)
	for i > 0 && k.frames[i-1].Progress > f.Progress {
		i--
	}
	k.frames = append(k.frames, KeyFrame[T]{})
	copy(k.frames[i+1:], k.frames[i:])
	k.frames[i] = f
	return k
}

// Evaluate returns the interpolated value at progress t.
// Panics if there are no key frames.
func (k *KeyFrames[T]) Evaluate(t float32) T {
	if len(k.frames) == 0 {
		panic("canopy: key frames are empty")
	}
	if t <= k.frames[0].Progress {
		return k.frames[0].Value
	}
	for i := 1; i < len(k.frames); i++ {
		next := k.frames[i]
		if t <= next.Progress {
			prev := k.frames[i-1]
			span := next.Progress - prev.Progress
			if span <= 0 {
				return next.Value
			}
			return lerp(prev.Value, next.Value, (t-prev.Progress)/span)
		}
	}
	return k.frames[len(k.frames)-1].Value
}

// --- Animation ---

// Animation owns a playhead and a set of animators. It lives in the
// UpdateManager's animation container from AddAnimation until it reaches
// AnimationDestroyed, at which point the next Animate pass removes it.
type Animation struct {
	ID uint32

	duration    float32
	speed       float32
	loopCount   int // 0 loops forever
	currentLoop int
	playRange   mgl32.Vec2
	endAction   EndAction

	removeOnFinish bool

	state       AnimationState
	elapsed     float32
	playedCount int
	animators   []Animator
}

// NewAnimation creates a stopped animation with the given duration in seconds.
func NewAnimation(durationSeconds float32) *Animation {
	return &Animation{
		ID:        nextAnimationID(),
		duration:  durationSeconds,
		speed:     1,
		loopCount: 1,
		playRange: mgl32.Vec2{0, 1},
	}
}

// AddAnimator attaches a to the animation.
func (a *Animation) AddAnimator(an Animator) {
	if an == nil {
		panic("canopy: cannot add nil animator")
	}
	a.animators = append(a.animators, an)
}

// AnimatorCount returns the number of live animators.
func (a *Animation) AnimatorCount() int {
	return len(a.animators)
}

// Duration returns the duration in seconds.
func (a *Animation) Duration() float32 { return a.duration }

// SetDuration sets the duration in seconds.
func (a *Animation) SetDuration(seconds float32) { a.duration = seconds }

// SetSpeedFactor sets the playback speed. Negative values play backwards.
func (a *Animation) SetSpeedFactor(speed float32) { a.speed = speed }

// SetLoopCount sets how many times the animation plays (0 loops forever).
func (a *Animation) SetLoopCount(count int) {
	a.loopCount = count
	a.currentLoop = 0
}

// SetLooping is shorthand for an infinite (true) or single (false) loop count.
func (a *Animation) SetLooping(looping bool) {
	if looping {
		a.SetLoopCount(0)
		return
	}
	a.SetLoopCount(1)
}

// SetPlayRange restricts playback to [start, end] in normalized progress.
func (a *Animation) SetPlayRange(start, end float32) {
	start, end = clamp01(start), clamp01(end)
	if start > end {
		start, end = end, start
	}
	a.playRange = mgl32.Vec2{start, end}
	if a.elapsed < a.rangeStart() {
		a.elapsed = a.rangeStart()
	}
	if a.elapsed > a.rangeEnd() {
		a.elapsed = a.rangeEnd()
	}
}

// SetEndAction sets the action applied when the animation stops or finishes.
func (a *Animation) SetEndAction(action EndAction) { a.endAction = action }

// SetRemoveOnFinish makes the animation destroy itself when it finishes, so
// the container drops it in the same Animate pass.
func (a *Animation) SetRemoveOnFinish(remove bool) { a.removeOnFinish = remove }

// State returns the current playback state.
func (a *Animation) State() AnimationState { return a.state }

// IsPlaying reports whether the animation is in the Playing state.
func (a *Animation) IsPlaying() bool { return a.state == AnimationPlaying }

// PlayedCount returns how many times the animation has finished.
func (a *Animation) PlayedCount() int { return a.playedCount }

// CurrentLoop returns the zero-based loop the playhead is in.
func (a *Animation) CurrentLoop() int { return a.currentLoop }

// ElapsedSeconds returns the playhead position.
func (a *Animation) ElapsedSeconds() float32 { return a.elapsed }

func (a *Animation) rangeStart() float32 { return a.playRange[0] * a.duration }
func (a *Animation) rangeEnd() float32   { return a.playRange[1] * a.duration }

// Play starts or resumes playback. A stopped animation whose playhead is at
// the end of the range restarts from the beginning.
func (a *Animation) Play() {
	if a.state == AnimationDestroyed {
		return
	}
	if a.state == AnimationStopped {
		if a.speed >= 0 && a.elapsed >= a.rangeEnd() {
			a.elapsed = a.rangeStart()
		} else if a.speed < 0 && a.elapsed <= a.rangeStart() {
			a.elapsed = a.rangeEnd()
		}
		for _, an := range a.animators {
			an.restart()
		}
	}
	a.state = AnimationPlaying
}

// PlayFrom starts playback at the given normalized progress.
func (a *Animation) PlayFrom(progress float32) {
	if a.state == AnimationDestroyed {
		return
	}
	p := clamp01(progress)
	if p < a.playRange[0] || p > a.playRange[1] {
		return
	}
	if a.state == AnimationStopped {
		for _, an := range a.animators {
			an.restart()
		}
	}
	a.elapsed = p * a.duration
	a.state = AnimationPlaying
}

// Pause freezes the playhead. Animated values are still applied each frame.
func (a *Animation) Pause() {
	if a.state == AnimationPlaying {
		a.state = AnimationPaused
	}
}

// Stop halts playback and applies the end action. Returns true when the
// animation was playing or paused, i.e. a finished notification is due.
func (a *Animation) Stop(bufferIndex BufferIndex) bool {
	if a.state != AnimationPlaying && a.state != AnimationPaused {
		return false
	}
	a.bakeForEndAction(bufferIndex)
	a.state = AnimationStopped
	a.currentLoop = 0
	return true
}

// OnDestroy moves the animation to the Destroyed state. A playing animation
// applies its end action first.
func (a *Animation) OnDestroy(bufferIndex BufferIndex) {
	if a.state == AnimationPlaying {
		a.bakeForEndAction(bufferIndex)
	}
	a.state = AnimationDestroyed
}

func (a *Animation) bakeForEndAction(bufferIndex BufferIndex) {
	switch a.endAction {
	case EndBake:
		a.updateAnimators(bufferIndex, a.elapsed, true)
	case EndBakeFinal:
		end := a.rangeEnd()
		if a.speed < 0 {
			end = a.rangeStart()
		}
		a.updateAnimators(bufferIndex, end, true)
	}
}

// Update advances the playhead by elapsedSeconds*speed while playing and
// applies the animators. Paused animations re-apply their current values.
func (a *Animation) Update(bufferIndex BufferIndex, elapsedSeconds float32) (looped, finished bool) {
	if a.state == AnimationStopped || a.state == AnimationDestroyed {
		return false, false
	}

	if a.state == AnimationPlaying {
		start, end := a.rangeStart(), a.rangeEnd()
		a.elapsed += elapsedSeconds * a.speed

		span := end - start
		pastEnd := a.speed >= 0 && a.elapsed >= end
		pastStart := a.speed < 0 && a.elapsed <= start

		if pastEnd || pastStart {
			if a.loopCount == 0 || a.currentLoop+1 < a.loopCount {
				looped = true
				a.currentLoop++
				if span > 0 {
					if pastEnd {
						a.elapsed = start + float32(math.Mod(float64(a.elapsed-start), float64(span)))
					} else {
						a.elapsed = end - float32(math.Mod(float64(end-a.elapsed), float64(span)))
					}
				} else {
					a.elapsed = start
				}
				for _, an := range a.animators {
					an.restart()
				}
			} else {
				finished = true
				if pastEnd {
					a.elapsed = end
				} else {
					a.elapsed = start
				}
			}
		}
	}

	bake := finished && a.endAction != EndDiscard
	a.updateAnimators(bufferIndex, a.elapsed, bake)

	if finished {
		a.state = AnimationStopped
		a.playedCount++
		a.currentLoop = 0
		if a.removeOnFinish {
			a.state = AnimationDestroyed
		}
	}
	return looped, finished
}

// updateAnimators applies every animator and drops those whose owner was destroyed.
func (a *Animation) updateAnimators(bufferIndex BufferIndex, elapsedSeconds float32, bake bool) {
	kept := a.animators[:0]
	for _, an := range a.animators {
		if an.orphaned() {
			continue
		}
		an.update(bufferIndex, elapsedSeconds, bake)
		kept = append(kept, an)
	}
	clear(a.animators[len(kept):])
	a.animators = kept
}

// --- interpolation helpers ---

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lerp[T Animatable](a, b T, t float32) T {
	switch av := any(a).(type) {
	case float32:
		bv := any(b).(float32)
		return any(av + (bv-av)*t).(T)
	case mgl32.Vec2:
		bv := any(b).(mgl32.Vec2)
		return any(av.Add(bv.Sub(av).Mul(t))).(T)
	case mgl32.Vec3:
		bv := any(b).(mgl32.Vec3)
		return any(av.Add(bv.Sub(av).Mul(t))).(T)
	case mgl32.Vec4:
		bv := any(b).(mgl32.Vec4)
		return any(av.Add(bv.Sub(av).Mul(t))).(T)
	case mgl32.Quat:
		bv := any(b).(mgl32.Quat)
		return any(mgl32.QuatSlerp(av, bv, t)).(T)
	case bool:
		if t > 0 {
			return b
		}
		return a
	}
	return b
}

func add[T Animatable](a, b T) T {
	switch av := any(a).(type) {
	case float32:
		return any(av + any(b).(float32)).(T)
	case mgl32.Vec2:
		return any(av.Add(any(b).(mgl32.Vec2))).(T)
	case mgl32.Vec3:
		return any(av.Add(any(b).(mgl32.Vec3))).(T)
	case mgl32.Vec4:
		return any(av.Add(any(b).(mgl32.Vec4))).(T)
	case mgl32.Quat:
		return any(any(b).(mgl32.Quat).Mul(av)).(T)
	case bool:
		return any(av || any(b).(bool)).(T)
	}
	return b
}
