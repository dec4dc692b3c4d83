package crx_arm

import (
	"context"
	"sync"
	"sync/atomic"
)

// fakeBridge is an in-memory solver. Its default FK maps joints linearly onto the pose and
// labels the wrist flip from the sign of J5.
type fakeBridge struct {
	startErr   error
	prewarmErr error
	startGate  chan struct{}

	starts   atomic.Int32
	prewarms atomic.Int32
	fkCalls  atomic.Int32
	ikCalls  atomic.Int32
	dhCalls  atomic.Int32

	mu    sync.Mutex
	fk    func(JointVector, ArmModel) (FkResult, error)
	ik    func(CartesianPose, ArmModel) ([]JointVector, error)
	dhErr error
}

func (b *fakeBridge) Start(ctx context.Context) error {
	b.starts.Add(1)
	if b.startGate != nil {
		<-b.startGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startErr
}

func (b *fakeBridge) Prewarm(ctx context.Context) error {
	b.prewarms.Add(1)
	return b.prewarmErr
}

func (b *fakeBridge) ForwardKinematics(ctx context.Context, joints JointVector, model ArmModel) (FkResult, error) {
	b.fkCalls.Add(1)
	b.mu.Lock()
	fk := b.fk
	b.mu.Unlock()
	if fk != nil {
		return fk(joints, model)
	}
	return linearFk(joints), nil
}

func (b *fakeBridge) InverseKinematics(ctx context.Context, pose CartesianPose, model ArmModel) ([]JointVector, error) {
	b.ikCalls.Add(1)
	b.mu.Lock()
	ik := b.ik
	b.mu.Unlock()
	if ik != nil {
		return ik(pose, model)
	}
	return nil, nil
}

func (b *fakeBridge) DhParameters(ctx context.Context, model ArmModel) (DhParameters, error) {
	b.dhCalls.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dhErr != nil {
		return DhParameters{}, b.dhErr
	}
	return testDh(model), nil
}

func (b *fakeBridge) setFk(fk func(JointVector, ArmModel) (FkResult, error)) {
	b.mu.Lock()
	b.fk = fk
	b.mu.Unlock()
}

func (b *fakeBridge) setIk(ik func(CartesianPose, ArmModel) ([]JointVector, error)) {
	b.mu.Lock()
	b.ik = ik
	b.mu.Unlock()
}

func linearFk(j JointVector) FkResult {
	cfg := Configuration{WristFlip: WristFlipNoFlip, ArmUpDown: ArmUp, ArmLeftRight: ArmLeft, ArmFrontBack: ArmFront}
	if j[4] < 0 {
		cfg.WristFlip = WristFlipFlip
	}
	return FkResult{
		Pose:          CartesianPose{X: 10 * j[0], Y: 10 * j[1], Z: 10 * j[2], W: j[3], P: j[4], R: j[5]},
		Configuration: cfg,
	}
}

func testDh(model ArmModel) DhParameters {
	if model == ModelCRX10iAL {
		return DhParameters{A2: 710, A3: 0, D4: 540, D5: -150, D6: 160, BaseHeight: 245}
	}
	return DhParameters{A2: 540, A3: 0, D4: 540, D5: -150, D6: 160, BaseHeight: 245}
}

// fakeKinematics drives the orchestrator and session without a gateway.
type fakeKinematics struct {
	mu         sync.Mutex
	fkFn       func(ctx context.Context, j JointVector) (CartesianPose, Configuration, error)
	candidates []JointVector
	ikErr      error
	solutions  SolutionSet
	solErr     error

	fkCalls      atomic.Int32
	fkDone       atomic.Int32
	ikCalls      atomic.Int32
	labeledCalls atomic.Int32
}

func (k *fakeKinematics) ForwardKinematics(ctx context.Context, joints JointVector, model ArmModel) (CartesianPose, Configuration, error) {
	k.fkCalls.Add(1)
	defer k.fkDone.Add(1)
	k.mu.Lock()
	fn := k.fkFn
	k.mu.Unlock()
	if fn != nil {
		return fn(ctx, joints)
	}
	res := linearFk(joints)
	return res.Pose, res.Configuration, nil
}

func (k *fakeKinematics) InverseKinematics(ctx context.Context, pose CartesianPose, model ArmModel) ([]JointVector, error) {
	k.ikCalls.Add(1)
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.candidates, k.ikErr
}

func (k *fakeKinematics) LabeledSolutions(ctx context.Context, pose CartesianPose, model ArmModel) (SolutionSet, error) {
	k.labeledCalls.Add(1)
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.solutions, k.solErr
}

// recordingDisplay keeps everything the orchestrator published.
type recordingDisplay struct {
	mu        sync.Mutex
	poses     []CartesianPose
	solutions [][]LabeledSolution
}

func (d *recordingDisplay) ShowPose(pose CartesianPose, cfg Configuration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.poses = append(d.poses, pose)
}

func (d *recordingDisplay) ShowSolutions(solutions []LabeledSolution) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.solutions = append(d.solutions, solutions)
}

func (d *recordingDisplay) Poses() []CartesianPose {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]CartesianPose(nil), d.poses...)
}

func (d *recordingDisplay) SolutionLists() [][]LabeledSolution {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]LabeledSolution(nil), d.solutions...)
}

type recordingSink struct {
	mu       sync.Mutex
	commands []JointVector
}

func (s *recordingSink) Command(j JointVector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, j)
}

func (s *recordingSink) Commands() []JointVector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]JointVector(nil), s.commands...)
}
