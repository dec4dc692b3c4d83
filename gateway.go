package crx_arm

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Kinematics is what the orchestrator and manipulation session need from the solver.
type Kinematics interface {
	ForwardKinematics(ctx context.Context, joints JointVector, model ArmModel) (CartesianPose, Configuration, error)
	InverseKinematics(ctx context.Context, pose CartesianPose, model ArmModel) ([]JointVector, error)
	LabeledSolutions(ctx context.Context, pose CartesianPose, model ArmModel) (SolutionSet, error)
}

type gatewayState int

const (
	gatewayUninitialized gatewayState = iota
	gatewayInitializing
	gatewayReady
)

func (s gatewayState) String() string {
	switch s {
	case gatewayUninitialized:
		return "uninitialized"
	case gatewayInitializing:
		return "initializing"
	case gatewayReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Max concurrent FK calls used to label one IK answer.
const labelConcurrency = 4

// GatewayOptions tune a SolverGateway.
type GatewayOptions struct {
	// Prewarm runs one throwaway FK during Initialize.
	Prewarm bool
	// MaxCallsPerSec limits solver calls; zero means unlimited.
	MaxCallsPerSec float64
}

// SolverGateway is the typed facade over the external solver. It gates every call on a
// single shared initialization and converts bridge failures into SolverErrors.
type SolverGateway struct {
	bridge  Bridge
	logger  logging.Logger
	prewarm bool
	limiter *rate.Limiter

	mu    sync.Mutex
	state gatewayState
	init  singleflight.Group
	dh    *DhRegistry
}

// NewSolverGateway wraps bridge. A nil bridge is allowed and makes Initialize fail with
// ErrEnvironmentUnavailable.
func NewSolverGateway(bridge Bridge, opts GatewayOptions, logger logging.Logger) *SolverGateway {
	limit := rate.Inf
	burst := 1
	if opts.MaxCallsPerSec > 0 {
		limit = rate.Limit(opts.MaxCallsPerSec)
		burst = int(opts.MaxCallsPerSec)
		if burst < 1 {
			burst = 1
		}
	}
	return &SolverGateway{
		bridge:  bridge,
		logger:  logger,
		prewarm: opts.Prewarm,
		limiter: rate.NewLimiter(limit, burst),
		dh:      NewDhRegistry(),
	}
}

// Initialize starts the solver runtime once. Overlapping callers wait on the same
// attempt. A failed attempt leaves the gateway uninitialized so a later call can retry.
func (g *SolverGateway) Initialize(ctx context.Context) error {
	if g.Ready() {
		return nil
	}

	ch := g.init.DoChan("initialize", func() (interface{}, error) {
		return nil, g.start()
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (g *SolverGateway) start() error {
	g.mu.Lock()
	if g.state == gatewayReady {
		g.mu.Unlock()
		return nil
	}
	g.state = gatewayInitializing
	g.mu.Unlock()

	err := g.startBridge()

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.state = gatewayUninitialized
		return err
	}
	g.state = gatewayReady
	return nil
}

func (g *SolverGateway) startBridge() error {
	if g.bridge == nil {
		return errors.Wrap(ErrEnvironmentUnavailable, "no solver bridge")
	}

	// the shared attempt must not die with whichever caller happened to start it
	ctx := context.Background()

	g.logger.Info("Starting kinematics solver")
	if err := g.bridge.Start(ctx); err != nil {
		return err
	}
	if g.prewarm {
		if err := g.bridge.Prewarm(ctx); err != nil {
			g.logger.Warnf("Solver prewarm failed, first call may be slow: %v", err)
		}
	}
	g.logger.Info("Kinematics solver ready")
	return nil
}

// Ready reports whether Initialize has completed successfully.
func (g *SolverGateway) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == gatewayReady
}

func (g *SolverGateway) stateName() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.String()
}

func (g *SolverGateway) before(ctx context.Context, op string) error {
	if !g.Ready() {
		return newSolverError(op, ErrNotInitialized)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return newSolverError(op, err)
	}
	return nil
}

// ForwardKinematics returns the tool pose and configuration for joints.
func (g *SolverGateway) ForwardKinematics(ctx context.Context, joints JointVector, model ArmModel) (CartesianPose, Configuration, error) {
	if err := g.before(ctx, "forward kinematics"); err != nil {
		return CartesianPose{}, Configuration{}, err
	}
	res, err := g.bridge.ForwardKinematics(ctx, joints, model)
	if err != nil {
		return CartesianPose{}, Configuration{}, newSolverError("forward kinematics", err)
	}
	return res.Pose, res.Configuration, nil
}

// InverseKinematics returns every joint vector reaching pose. An empty result means the
// pose is unreachable and is not an error.
func (g *SolverGateway) InverseKinematics(ctx context.Context, pose CartesianPose, model ArmModel) ([]JointVector, error) {
	if err := g.before(ctx, "inverse kinematics"); err != nil {
		return nil, err
	}
	sols, err := g.bridge.InverseKinematics(ctx, pose, model)
	if err != nil {
		return nil, newSolverError("inverse kinematics", err)
	}
	return sols, nil
}

// LabeledSolutions runs IK for pose and labels every branch with its configuration.
// Branches whose FK fails are dropped; the solver's order is preserved.
func (g *SolverGateway) LabeledSolutions(ctx context.Context, pose CartesianPose, model ArmModel) (SolutionSet, error) {
	candidates, err := g.InverseKinematics(ctx, pose, model)
	if err != nil {
		return nil, err
	}

	labeled := make([]*Solution, len(candidates))
	var eg errgroup.Group
	eg.SetLimit(labelConcurrency)
	for i, joints := range candidates {
		eg.Go(func() error {
			_, cfg, err := g.ForwardKinematics(ctx, joints, model)
			if err != nil {
				g.logger.Debugf("Dropping IK solution %d, labeling failed: %v", i, err)
				return nil
			}
			labeled[i] = &Solution{Joints: joints, Configuration: cfg}
			return nil
		})
	}
	// the workers never return errors
	_ = eg.Wait()

	set := make(SolutionSet, 0, len(candidates))
	for _, sol := range labeled {
		if sol != nil {
			set = append(set, *sol)
		}
	}
	return set, nil
}

// DhParameters returns the DH parameters of model, fetched once and cached.
func (g *SolverGateway) DhParameters(ctx context.Context, model ArmModel) (DhParameters, error) {
	return g.dh.Get(ctx, model, func(ctx context.Context, model ArmModel) (DhParameters, error) {
		if err := g.before(ctx, "dh parameters"); err != nil {
			return DhParameters{}, err
		}
		params, err := g.bridge.DhParameters(ctx, model)
		if err != nil {
			return DhParameters{}, newSolverError("dh parameters", err)
		}
		g.logger.Debugf("Loaded DH parameters for %s: %+v", model, params)
		return params, nil
	})
}
