package crx_arm

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
)

var (
	ViewerModel = resource.NewModel("devrel", "crx", "viewer")
)

func init() {
	resource.RegisterComponent(sensor.API, ViewerModel,
		resource.Registration[sensor.Sensor, *Config]{
			Constructor: NewViewer,
		},
	)
}

// viewerSensor hosts the interactive kinematics core: the commanded joints, the solver
// orchestration, the animated pose and the handle drag. Readings exposes what a renderer
// draws each frame; DoCommand carries the operator's input.
type viewerSensor struct {
	resource.AlwaysRebuild

	name    resource.Name
	logger  logging.Logger
	cfg     *Config
	basis   spatialmath.Pose
	release func()

	gateway      *SolverGateway
	orchestrator *Orchestrator
	interp       *Interpolator
	session      *ManipulationSession
	loop         *RenderLoop
	prefs        *PreferenceStore
	closeOnce    sync.Once
	closeErr     error

	mu          sync.RWMutex
	model       ArmModel
	dh          DhParameters
	hasDh       bool
	editing     bool
	shownPose   CartesianPose
	shownConfig Configuration
	hasShown    bool
	solutions   []LabeledSolution
	lastOutcome *Outcome
}

// NewViewer creates the viewer sensor on the process wide solver gateway.
func NewViewer(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (sensor.Sensor, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}
	return NewCRXViewer(ctx, rawConf.ResourceName(), conf, logger)
}

// NewCRXViewer builds a viewer from an already validated config.
func NewCRXViewer(ctx context.Context, name resource.Name, conf *Config, logger logging.Logger) (sensor.Sensor, error) {
	gateway, err := GetSharedGateway(conf, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to get shared solver gateway: %w", err)
	}

	v, err := newViewer(ctx, name, conf, gateway, clock.New(), ReleaseSharedGateway, logger)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func newViewer(
	ctx context.Context,
	name resource.Name,
	conf *Config,
	gateway *SolverGateway,
	clk clock.Clock,
	release func(),
	logger logging.Logger,
) (*viewerSensor, error) {
	if release == nil {
		release = func() {}
	}

	if err := gateway.Initialize(ctx); err != nil {
		release()
		return nil, errors.Wrap(err, "kinematics solver failed to start")
	}

	v := &viewerSensor{
		name:    name,
		logger:  logger,
		cfg:     conf,
		basis:   ThreeJSBasis(conf.BaseOriginHeight),
		release: release,
		gateway: gateway,
		model:   conf.ArmModel(),
	}

	if path := conf.ResolvePreferencesFile(); path != "" {
		prefs, err := OpenPreferenceStore(path)
		if err != nil {
			release()
			return nil, err
		}
		v.prefs = prefs
	}

	v.interp = NewInterpolator(JointVector{}, conf.AnimationRate, conf.SnapThresholdDeg)
	v.orchestrator = NewOrchestrator(gateway, v, conf.Debounce(), logger)
	v.session = NewManipulationSession(gateway, CommandSinkFunc(v.command), v.basis, logger)
	v.loop = NewRenderLoop(clk, conf.FPS, v.interp, v.onFrame, logger)

	v.refreshDh(ctx)
	v.orchestrator.Submit(JointEvent{Joints: v.interp.Commanded(), Model: v.model})
	v.loop.Start()

	logger.Infof("CRX viewer initialized for %s against solver %s", v.model, conf.SolverURL)
	return v, nil
}

// Name returns the sensor's name
func (v *viewerSensor) Name() resource.Name {
	return v.name
}

// ShowPose receives the FK pose of the latest joints.
func (v *viewerSensor) ShowPose(pose CartesianPose, cfg Configuration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.shownPose = pose
	v.shownConfig = cfg
	v.hasShown = true
}

// ShowSolutions receives the alternate branches for the current pose.
func (v *viewerSensor) ShowSolutions(solutions []LabeledSolution) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.solutions = solutions
}

// onFrame re-anchors the idle handle to the last published FK pose. That pose belongs to the
// commanded joints, so the handle trails a new command by the debounce window and the solver
// round trip, not by the animation.
func (v *viewerSensor) onFrame(RenderFrame) {
	if v.session.State() != SessionIdle {
		return
	}
	if st := v.orchestrator.State(); st.HasPose {
		v.session.Anchor(st.Pose)
	}
}

// command is the session's sink for committed drags.
func (v *viewerSensor) command(j JointVector) {
	v.commandJoints(j)
}

// commandJoints is the single entry point for new commanded joints.
func (v *viewerSensor) commandJoints(j JointVector) uint64 {
	v.mu.RLock()
	model, editing := v.model, v.editing
	v.mu.RUnlock()

	v.interp.SetCommanded(j)
	return v.orchestrator.Submit(JointEvent{Joints: j, Model: model, EditingCartesian: editing})
}

func (v *viewerSensor) refreshDh(ctx context.Context) {
	v.mu.RLock()
	model := v.model
	v.mu.RUnlock()

	dh, err := v.gateway.DhParameters(ctx, model)
	if err != nil {
		v.logger.Warnf("Could not load DH parameters for %s: %v", model, err)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.model == model {
		v.dh = dh
		v.hasDh = true
	}
}

// Readings returns the live viewer state
func (v *viewerSensor) Readings(ctx context.Context, extra map[string]any) (map[string]any, error) {
	frame := v.interp.Frame()
	state := v.orchestrator.State()
	handle := v.session.Handle()

	v.mu.RLock()
	defer v.mu.RUnlock()

	readings := map[string]any{
		"model":              v.model.String(),
		"solver_state":       v.gateway.stateName(),
		"version":            state.Version,
		"commanded_joints":   jointsToAny(frame.Commanded),
		"visual_joints":      jointsToAny(frame.Visual),
		"display_joints":     jointsToAny(frame.Visual.ClampDisplay()),
		"synced":             frame.Synced,
		"show_target_ghost":  frame.Ghost,
		"session_state":      v.session.State().String(),
		"handle_position":    vectorToMap(handle.Position),
		"handle_orientation": orientationToMap(handle.Orientation),
		"editing_cartesian":  v.editing,
		"solutions":          solutionsToAny(v.solutions),
		"frames":             v.loop.Frames(),
	}

	if frame.HasPreview {
		readings["preview_joints"] = jointsToAny(frame.Preview)
	}
	if state.HasPose {
		readings["pose"] = poseToMap(state.Pose)
		readings["configuration"] = state.Configuration.String()
	}
	if v.hasShown {
		readings["displayed_pose"] = poseToMap(v.shownPose)
	}
	if v.hasDh {
		tool := ToolTransform(frame.Visual, v.dh).Point()
		readings["visual_tool_position"] = vectorToMap(tool)
	}
	if v.lastOutcome != nil {
		readings["last_drag"] = outcomeToMap(*v.lastOutcome)
	}

	return readings, nil
}

// DoCommand handles operator input
func (v *viewerSensor) DoCommand(ctx context.Context, cmd map[string]any) (map[string]any, error) {
	command, ok := cmd["command"].(string)
	if !ok {
		return nil, fmt.Errorf("command must be a string")
	}

	switch command {
	case "set_joints":
		return v.setJoints(cmd)

	case "set_cartesian":
		return v.setCartesian(ctx, cmd)

	case "set_editing":
		return v.setEditing(cmd)

	case "set_model":
		return v.setModel(ctx, cmd)

	case "begin_drag":
		return v.beginDrag(cmd)

	case "update_drag":
		return v.updateDrag(cmd)

	case "end_drag":
		return v.endDrag(ctx)

	case "cancel_drag":
		if err := v.session.Cancel(); err != nil {
			return map[string]any{"success": false}, err
		}
		return map[string]any{"success": true}, nil

	case "preview":
		return v.preview(cmd)

	case "clear_preview":
		v.interp.ClearPreview()
		return map[string]any{"success": true}, nil

	case "select_solution":
		return v.selectSolution(cmd)

	case "info_seen":
		return v.infoSeen(ctx)

	case "set_info_seen":
		return v.setInfoSeen(ctx, cmd)

	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}
}

func (v *viewerSensor) setJoints(cmd map[string]any) (map[string]any, error) {
	joints, err := jointsArg(cmd, "joints")
	if err != nil {
		return map[string]any{"success": false}, err
	}
	version := v.commandJoints(joints)
	return map[string]any{"success": true, "version": version}, nil
}

// setCartesian solves a typed-in pose and moves to the branch nearest the commanded
// joints. An unreachable pose leaves everything as it was.
func (v *viewerSensor) setCartesian(ctx context.Context, cmd map[string]any) (map[string]any, error) {
	var pose CartesianPose
	if err := decodeArg(cmd, "pose", &pose); err != nil {
		return map[string]any{"success": false}, err
	}

	v.mu.RLock()
	model := v.model
	v.mu.RUnlock()

	candidates, err := v.gateway.InverseKinematics(ctx, pose, model)
	if err != nil {
		v.logger.Warnf("Solving typed pose %v failed: %v", pose, err)
		return map[string]any{"success": false, "error": err.Error()}, nil
	}
	best, ok := SelectBest(candidates, v.interp.Commanded())
	if !ok {
		return map[string]any{"success": false, "reachable": false}, nil
	}
	version := v.commandJoints(best)
	return map[string]any{
		"success":   true,
		"reachable": true,
		"joints":    jointsToAny(best),
		"version":   version,
	}, nil
}

func (v *viewerSensor) setEditing(cmd map[string]any) (map[string]any, error) {
	editing, ok := cmd["editing"].(bool)
	if !ok {
		return nil, fmt.Errorf("set_editing command requires 'editing' boolean parameter")
	}
	v.mu.Lock()
	v.editing = editing
	v.mu.Unlock()
	return map[string]any{"success": true, "editing": editing}, nil
}

func (v *viewerSensor) setModel(ctx context.Context, cmd map[string]any) (map[string]any, error) {
	name, ok := cmd["model"].(string)
	if !ok {
		return nil, fmt.Errorf("set_model command requires 'model' string parameter")
	}
	model, err := ParseArmModel(name)
	if err != nil {
		return map[string]any{"success": false}, err
	}

	v.mu.Lock()
	v.model = model
	v.hasDh = false
	v.mu.Unlock()

	v.refreshDh(ctx)
	version := v.commandJoints(v.interp.Commanded())
	return map[string]any{"success": true, "model": model.String(), "version": version}, nil
}

func (v *viewerSensor) beginDrag(cmd map[string]any) (map[string]any, error) {
	pos, orient, err := v.dragArgs(cmd)
	if err != nil {
		return map[string]any{"success": false}, err
	}
	id, err := v.session.BeginDrag(pos, orient)
	if err != nil {
		return map[string]any{"success": false}, err
	}
	return map[string]any{"success": true, "session_id": id}, nil
}

func (v *viewerSensor) updateDrag(cmd map[string]any) (map[string]any, error) {
	pos, orient, err := v.dragArgs(cmd)
	if err != nil {
		return map[string]any{"success": false}, err
	}
	if err := v.session.UpdateDrag(pos, orient); err != nil {
		return map[string]any{"success": false}, err
	}
	return map[string]any{"success": true}, nil
}

// dragArgs defaults to the current handle when no position is given.
func (v *viewerSensor) dragArgs(cmd map[string]any) (r3.Vector, spatialmath.Orientation, error) {
	if _, ok := cmd["position"]; !ok {
		h := v.session.Handle()
		return h.Position, h.Orientation, nil
	}
	pos, orient, err := handleArgs(cmd)
	if err != nil {
		return pos, nil, err
	}
	if orient == nil {
		orient = v.session.Handle().Orientation
	}
	return pos, orient, nil
}

func (v *viewerSensor) endDrag(ctx context.Context) (map[string]any, error) {
	v.mu.RLock()
	model := v.model
	v.mu.RUnlock()

	outcome, err := v.session.EndDrag(ctx, v.interp.Visual(), model)
	if err != nil {
		return map[string]any{"success": false}, err
	}

	v.mu.Lock()
	v.lastOutcome = &outcome
	v.mu.Unlock()

	result := outcomeToMap(outcome)
	result["success"] = outcome.Status == OutcomeCommitted
	return result, nil
}

func (v *viewerSensor) solutionAt(cmd map[string]any) (LabeledSolution, error) {
	index, err := intArg(cmd, "index")
	if err != nil {
		return LabeledSolution{}, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if index < 0 || index >= len(v.solutions) {
		return LabeledSolution{}, fmt.Errorf("solution index %d out of range (have %d)", index, len(v.solutions))
	}
	return v.solutions[index], nil
}

func (v *viewerSensor) preview(cmd map[string]any) (map[string]any, error) {
	var joints JointVector
	if _, ok := cmd["joints"]; ok {
		j, err := jointsArg(cmd, "joints")
		if err != nil {
			return map[string]any{"success": false}, err
		}
		joints = j
	} else {
		sol, err := v.solutionAt(cmd)
		if err != nil {
			return map[string]any{"success": false}, err
		}
		joints = sol.Joints
	}
	v.interp.SetPreview(joints)
	return map[string]any{"success": true, "joints": jointsToAny(joints)}, nil
}

func (v *viewerSensor) selectSolution(cmd map[string]any) (map[string]any, error) {
	sol, err := v.solutionAt(cmd)
	if err != nil {
		return map[string]any{"success": false}, err
	}
	v.interp.ClearPreview()
	version := v.commandJoints(sol.Joints)
	return map[string]any{
		"success":       true,
		"joints":        jointsToAny(sol.Joints),
		"configuration": sol.ConfigString,
		"version":       version,
	}, nil
}

func (v *viewerSensor) infoSeen(ctx context.Context) (map[string]any, error) {
	if v.prefs == nil {
		return map[string]any{"info_seen": false, "persisted": false}, nil
	}
	seen, err := v.prefs.InfoSeen(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"info_seen": seen, "persisted": true}, nil
}

func (v *viewerSensor) setInfoSeen(ctx context.Context, cmd map[string]any) (map[string]any, error) {
	seen, ok := cmd["seen"].(bool)
	if !ok {
		return nil, fmt.Errorf("set_info_seen command requires 'seen' boolean parameter")
	}
	if v.prefs == nil {
		return map[string]any{"success": false}, fmt.Errorf("preferences_file is not configured")
	}
	if err := v.prefs.SetInfoSeen(ctx, seen); err != nil {
		return map[string]any{"success": false}, err
	}
	return map[string]any{"success": true, "info_seen": seen}, nil
}

// Close stops the render loop and solver cycles and releases the shared gateway
func (v *viewerSensor) Close(ctx context.Context) error {
	v.closeOnce.Do(func() {
		v.logger.Info("Closing CRX viewer")

		v.loop.Stop()
		v.orchestrator.Close()

		if v.prefs != nil {
			v.closeErr = multierr.Append(v.closeErr, v.prefs.Close())
		}
		v.release()
	})
	return v.closeErr
}
