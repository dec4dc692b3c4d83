package crx_arm

import (
	"math"
	"sync"
)

const (
	// DefaultAnimationRate is the fraction-per-second approach rate of the rendered joints.
	DefaultAnimationRate = 4.0
	// DefaultSnapThresholdDeg is the distance below which an axis snaps onto its target.
	DefaultSnapThresholdDeg = 0.01
)

// Interpolator eases the rendered (visual) joints toward the commanded joints once per
// frame and holds an optional preview vector for a ghost overlay. It is safe for
// concurrent use.
type Interpolator struct {
	rate      float64
	threshold float64

	mu         sync.Mutex
	visual     JointVector
	commanded  JointVector
	synced     bool
	preview    JointVector
	hasPreview bool
}

// NewInterpolator starts synced at initial. Non-positive rate or threshold fall back to
// the defaults.
func NewInterpolator(initial JointVector, rate, threshold float64) *Interpolator {
	if rate <= 0 {
		rate = DefaultAnimationRate
	}
	if threshold <= 0 {
		threshold = DefaultSnapThresholdDeg
	}
	return &Interpolator{
		rate:      rate,
		threshold: threshold,
		visual:    initial,
		commanded: initial,
		synced:    true,
	}
}

// SetCommanded sets the target the visual joints approach.
func (in *Interpolator) SetCommanded(j JointVector) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.commanded = j
	in.synced = in.withinThreshold()
}

// Tick advances the animation by dt seconds and returns the new visual joints.
func (in *Interpolator) Tick(dt float64) JointVector {
	if dt < 0 || math.IsNaN(dt) {
		dt = 0
	}
	step := math.Min(1, in.rate*dt)

	in.mu.Lock()
	defer in.mu.Unlock()
	for i := range in.visual {
		diff := in.commanded[i] - in.visual[i]
		if math.Abs(diff) <= in.threshold || step >= 1 {
			in.visual[i] = in.commanded[i]
			continue
		}
		in.visual[i] += diff * step
	}
	in.synced = in.withinThreshold()
	return in.visual
}

func (in *Interpolator) withinThreshold() bool {
	for i := range in.visual {
		if math.Abs(in.commanded[i]-in.visual[i]) > in.threshold {
			return false
		}
	}
	return true
}

// Visual returns the joints currently rendered.
func (in *Interpolator) Visual() JointVector {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.visual
}

// Commanded returns the animation target.
func (in *Interpolator) Commanded() JointVector {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.commanded
}

// Synced is true when every axis is within the snap threshold of its target.
func (in *Interpolator) Synced() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.synced
}

// ShowTargetGhost reports whether the translucent target overlay should be drawn.
func (in *Interpolator) ShowTargetGhost() bool {
	return !in.Synced()
}

// SetPreview shows a candidate solution as a ghost without touching commanded or visual.
func (in *Interpolator) SetPreview(j JointVector) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.preview = j
	in.hasPreview = true
}

// ClearPreview hides the preview ghost.
func (in *Interpolator) ClearPreview() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.preview = JointVector{}
	in.hasPreview = false
}

// Preview returns the preview vector, if one is set.
func (in *Interpolator) Preview() (JointVector, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.preview, in.hasPreview
}

// RenderFrame is everything the renderer needs for one frame.
type RenderFrame struct {
	Visual     JointVector
	Commanded  JointVector
	Synced     bool
	Ghost      bool
	Preview    JointVector
	HasPreview bool
}

// Frame returns a consistent snapshot of the interpolator.
func (in *Interpolator) Frame() RenderFrame {
	in.mu.Lock()
	defer in.mu.Unlock()
	return RenderFrame{
		Visual:     in.visual,
		Commanded:  in.commanded,
		Synced:     in.synced,
		Ghost:      !in.synced,
		Preview:    in.preview,
		HasPreview: in.hasPreview,
	}
}
