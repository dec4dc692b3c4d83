package crx_arm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// JointEvent is one report of the application's commanded joints.
type JointEvent struct {
	Joints JointVector
	Model  ArmModel
	// EditingCartesian is set while the operator is typing into the cartesian fields;
	// solver feedback must not overwrite their keystrokes.
	EditingCartesian bool
}

// LabeledSolution is a solution together with its canonical configuration string.
type LabeledSolution struct {
	Solution
	ConfigString string `json:"config_string"`
}

// Display receives what the orchestrator publishes. Calls are serialized.
type Display interface {
	ShowPose(pose CartesianPose, cfg Configuration)
	ShowSolutions(solutions []LabeledSolution)
}

// OrchestratorState is a snapshot of the last published cycle.
type OrchestratorState struct {
	Version       uint64
	HasPose       bool
	Pose          CartesianPose
	Configuration Configuration
	Solutions     []LabeledSolution
}

// Orchestrator keeps pose, configuration and the alternate solutions in step with the
// latest joint event. Bursts are debounced to their last event and every published
// result is checked against the event version, so a slow answer for a superseded event
// never overwrites a newer one.
type Orchestrator struct {
	kin     Kinematics
	display Display
	logger  logging.Logger

	debounced func(f func())
	version   atomic.Uint64
	// lifeMu orders cycle starts against Close.
	lifeMu sync.Mutex
	closed atomic.Bool
	cycles sync.WaitGroup

	cancelCtx  context.Context
	cancelFunc func()

	publishMu sync.Mutex
	mu        sync.RWMutex
	state     OrchestratorState
}

// NewOrchestrator creates an orchestrator. display may be nil.
func NewOrchestrator(kin Kinematics, display Display, window time.Duration, logger logging.Logger) *Orchestrator {
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &Orchestrator{
		kin:        kin,
		display:    display,
		logger:     logger,
		debounced:  debounce.New(window),
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}
}

// Submit reports new joints. It never blocks on the solver and returns the event's
// version. Any result of an earlier event still in flight becomes stale.
func (o *Orchestrator) Submit(ev JointEvent) uint64 {
	v := o.version.Add(1)
	if o.closed.Load() {
		return v
	}
	o.debounced(func() {
		o.lifeMu.Lock()
		defer o.lifeMu.Unlock()
		if o.closed.Load() {
			return
		}
		o.cycles.Add(1)
		utils.PanicCapturingGo(func() {
			defer o.cycles.Done()
			o.cycle(ev, v)
		})
	})
	return v
}

// Version returns the version of the latest submitted event.
func (o *Orchestrator) Version() uint64 {
	return o.version.Load()
}

// State returns the last published cycle.
func (o *Orchestrator) State() OrchestratorState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st := o.state
	st.Solutions = append([]LabeledSolution(nil), o.state.Solutions...)
	return st
}

// Close stops future cycles and waits for running ones to return.
func (o *Orchestrator) Close() {
	o.lifeMu.Lock()
	o.closed.Store(true)
	o.lifeMu.Unlock()
	o.cancelFunc()
	o.cycles.Wait()
}

func (o *Orchestrator) cycle(ev JointEvent, v uint64) {
	ctx := o.cancelCtx

	pose, cfg, err := o.kin.ForwardKinematics(ctx, ev.Joints, ev.Model)
	if err != nil {
		o.logger.Warnf("Forward kinematics for event %d failed, keeping previous pose: %v", v, err)
		return
	}
	if !o.publishPose(v, ev, pose, cfg) {
		return
	}

	// alternate branches reaching the current pose, not the eventual target
	set, err := o.kin.LabeledSolutions(ctx, pose, ev.Model)
	if err != nil {
		o.logger.Warnf("Solution lookup for event %d failed, keeping previous list: %v", v, err)
		return
	}
	o.publishSolutions(v, set)
}

func (o *Orchestrator) stale(v uint64) bool {
	if current := o.version.Load(); current != v {
		o.logger.Debugf("Discarding result of event %d, latest is %d", v, current)
		return true
	}
	return false
}

func (o *Orchestrator) publishPose(v uint64, ev JointEvent, pose CartesianPose, cfg Configuration) bool {
	o.publishMu.Lock()
	defer o.publishMu.Unlock()
	if o.stale(v) {
		return false
	}

	o.mu.Lock()
	o.state.Version = v
	o.state.HasPose = true
	o.state.Pose = pose
	o.state.Configuration = cfg
	o.mu.Unlock()

	if o.display != nil && !ev.EditingCartesian {
		o.display.ShowPose(pose, cfg)
	}
	return true
}

func (o *Orchestrator) publishSolutions(v uint64, set SolutionSet) {
	labeled := make([]LabeledSolution, len(set))
	for i, sol := range set {
		labeled[i] = LabeledSolution{Solution: sol, ConfigString: sol.Configuration.String()}
	}

	o.publishMu.Lock()
	defer o.publishMu.Unlock()
	if o.stale(v) {
		return
	}

	o.mu.Lock()
	o.state.Solutions = labeled
	o.mu.Unlock()

	if o.display != nil {
		o.display.ShowSolutions(labeled)
	}
}
