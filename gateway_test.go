package crx_arm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func readyGateway(t *testing.T, bridge *fakeBridge) *SolverGateway {
	t.Helper()
	g := NewSolverGateway(bridge, GatewayOptions{}, logging.NewTestLogger(t))
	require.NoError(t, g.Initialize(context.Background()))
	return g
}

func TestGatewayWithoutBridge(t *testing.T) {
	g := NewSolverGateway(nil, GatewayOptions{Prewarm: true}, logging.NewTestLogger(t))

	err := g.Initialize(context.Background())
	assert.True(t, errors.Is(err, ErrEnvironmentUnavailable))
	assert.False(t, g.Ready())
}

func TestGatewayCallsBeforeInitialize(t *testing.T) {
	bridge := &fakeBridge{}
	g := NewSolverGateway(bridge, GatewayOptions{}, logging.NewTestLogger(t))
	ctx := context.Background()

	_, _, err := g.ForwardKinematics(ctx, JointVector{}, ModelCRX10iA)
	assert.True(t, IsSolverError(err))
	assert.True(t, errors.Is(err, ErrNotInitialized))

	_, err = g.InverseKinematics(ctx, CartesianPose{}, ModelCRX10iA)
	assert.True(t, errors.Is(err, ErrNotInitialized))

	_, err = g.DhParameters(ctx, ModelCRX10iA)
	assert.True(t, errors.Is(err, ErrNotInitialized))

	assert.Equal(t, int32(0), bridge.fkCalls.Load())
}

func TestGatewayInitializeIsShared(t *testing.T) {
	bridge := &fakeBridge{startGate: make(chan struct{})}
	g := NewSolverGateway(bridge, GatewayOptions{Prewarm: true}, logging.NewTestLogger(t))

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- g.Initialize(context.Background())
		}()
	}

	assert.Eventually(t, func() bool { return bridge.starts.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "initializing", g.stateName())
	close(bridge.startGate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), bridge.starts.Load())
	assert.Equal(t, int32(1), bridge.prewarms.Load())
	assert.True(t, g.Ready())

	// already ready, no new attempt
	require.NoError(t, g.Initialize(context.Background()))
	assert.Equal(t, int32(1), bridge.starts.Load())
}

func TestGatewayInitializeRespectsCallerContext(t *testing.T) {
	bridge := &fakeBridge{startGate: make(chan struct{})}
	g := NewSolverGateway(bridge, GatewayOptions{}, logging.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.Initialize(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the shared attempt keeps going for everybody else
	close(bridge.startGate)
	require.NoError(t, g.Initialize(context.Background()))
	assert.Equal(t, int32(1), bridge.starts.Load())
}

func TestGatewayFailedInitializeCanRetry(t *testing.T) {
	bridge := &fakeBridge{startErr: errors.Wrap(ErrEnvironmentUnavailable, "down")}
	g := NewSolverGateway(bridge, GatewayOptions{}, logging.NewTestLogger(t))

	err := g.Initialize(context.Background())
	assert.True(t, errors.Is(err, ErrEnvironmentUnavailable))
	assert.Equal(t, "uninitialized", g.stateName())

	bridge.mu.Lock()
	bridge.startErr = nil
	bridge.mu.Unlock()

	require.NoError(t, g.Initialize(context.Background()))
	assert.Equal(t, int32(2), bridge.starts.Load())
}

func TestGatewayPrewarmFailureIsNotFatal(t *testing.T) {
	bridge := &fakeBridge{prewarmErr: errors.New("cold")}
	g := NewSolverGateway(bridge, GatewayOptions{Prewarm: true}, logging.NewTestLogger(t))

	require.NoError(t, g.Initialize(context.Background()))
	assert.True(t, g.Ready())
	assert.Equal(t, int32(1), bridge.prewarms.Load())
}

func TestGatewayWrapsBridgeFailures(t *testing.T) {
	bridge := &fakeBridge{}
	bridge.setFk(func(JointVector, ArmModel) (FkResult, error) { return FkResult{}, ErrNoResult })
	bridge.setIk(func(CartesianPose, ArmModel) ([]JointVector, error) { return nil, errors.New("boom") })
	g := readyGateway(t, bridge)

	_, _, err := g.ForwardKinematics(context.Background(), JointVector{}, ModelCRX10iA)
	assert.True(t, IsSolverError(err))
	assert.True(t, errors.Is(err, ErrNoResult))

	_, err = g.InverseKinematics(context.Background(), CartesianPose{}, ModelCRX10iA)
	assert.True(t, IsSolverError(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestGatewayForwardKinematics(t *testing.T) {
	g := readyGateway(t, &fakeBridge{})

	pose, cfg, err := g.ForwardKinematics(context.Background(), JointVector{1, 2, 3, 4, -5, 6}, ModelCRX10iAL)
	require.NoError(t, err)
	assert.Equal(t, CartesianPose{X: 10, Y: 20, Z: 30, W: 4, P: -5, R: 6}, pose)
	assert.Equal(t, WristFlipFlip, cfg.WristFlip)
}

func TestLabeledSolutionsDropsUnlabeledCandidates(t *testing.T) {
	bridge := &fakeBridge{}
	candidates := []JointVector{
		{10, 0, 0, 0, 5, 0},
		{20, 0, 0, 0, 5, 0},
		{30, 0, 0, 0, -5, 0},
		{40, 0, 0, 0, 5, 0},
	}
	bridge.setIk(func(CartesianPose, ArmModel) ([]JointVector, error) { return candidates, nil })
	bridge.setFk(func(j JointVector, _ ArmModel) (FkResult, error) {
		if j[0] == 20 {
			return FkResult{}, ErrNoResult
		}
		return linearFk(j), nil
	})
	g := readyGateway(t, bridge)

	set, err := g.LabeledSolutions(context.Background(), CartesianPose{}, ModelCRX10iA)
	require.NoError(t, err)
	require.Len(t, set, 3)
	assert.Equal(t, candidates[0], set[0].Joints)
	assert.Equal(t, candidates[2], set[1].Joints)
	assert.Equal(t, candidates[3], set[2].Joints)
	assert.Equal(t, WristFlipFlip, set[1].Configuration.WristFlip)
	assert.Equal(t, WristFlipNoFlip, set[2].Configuration.WristFlip)
}

func TestLabeledSolutionsEmptyIsNotAnError(t *testing.T) {
	g := readyGateway(t, &fakeBridge{})

	set, err := g.LabeledSolutions(context.Background(), CartesianPose{X: 100000}, ModelCRX10iA)
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestGatewayDhParametersCached(t *testing.T) {
	bridge := &fakeBridge{dhErr: errors.New("not yet")}
	g := readyGateway(t, bridge)
	ctx := context.Background()

	_, err := g.DhParameters(ctx, ModelCRX10iAL)
	assert.True(t, IsSolverError(err))

	bridge.mu.Lock()
	bridge.dhErr = nil
	bridge.mu.Unlock()

	for i := 0; i < 3; i++ {
		dh, err := g.DhParameters(ctx, ModelCRX10iAL)
		require.NoError(t, err)
		assert.Equal(t, testDh(ModelCRX10iAL), dh)
	}
	assert.Equal(t, int32(2), bridge.dhCalls.Load())

	_, err = g.DhParameters(ctx, ModelCRX10iA)
	require.NoError(t, err)
	assert.Equal(t, int32(3), bridge.dhCalls.Load())
}

func TestGatewayRateLimit(t *testing.T) {
	g := NewSolverGateway(&fakeBridge{}, GatewayOptions{MaxCallsPerSec: 1}, logging.NewTestLogger(t))
	require.NoError(t, g.Initialize(context.Background()))

	_, _, err := g.ForwardKinematics(context.Background(), JointVector{}, ModelCRX10iA)
	require.NoError(t, err)

	// burst used up; the next call has to wait longer than the deadline allows
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = g.ForwardKinematics(ctx, JointVector{}, ModelCRX10iA)
	assert.True(t, IsSolverError(err))
}
