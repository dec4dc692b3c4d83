package crx_arm

import (
	"context"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
)

// SessionState is the phase of a handle manipulation.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionDragging
	SessionCommitting
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionDragging:
		return "dragging"
	case SessionCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

// OutcomeStatus says how a drag ended.
type OutcomeStatus string

const (
	OutcomeCommitted   OutcomeStatus = "committed"
	OutcomeUnreachable OutcomeStatus = "unreachable"
	OutcomeFailed      OutcomeStatus = "failed"
)

// Outcome is the result of EndDrag. Joints is only meaningful when committed.
type Outcome struct {
	SessionID string
	Status    OutcomeStatus
	Target    CartesianPose
	Joints    JointVector
	Err       error
}

// CommandSink receives the joints chosen at the end of a successful drag.
type CommandSink interface {
	Command(joints JointVector)
}

// CommandSinkFunc adapts a function to CommandSink.
type CommandSinkFunc func(JointVector)

// Command calls f.
func (f CommandSinkFunc) Command(j JointVector) { f(j) }

var _ CommandSink = CommandSinkFunc(nil)

// Handle is the world space transform of the manipulation gizmo.
type Handle struct {
	Position    r3.Vector
	Orientation spatialmath.Orientation
}

// ManipulationSession turns a drag of the tool handle into a commanded joint vector.
// No solver call is made while dragging; the target is solved once on release.
type ManipulationSession struct {
	kin    Kinematics
	sink   CommandSink
	basis  spatialmath.Pose
	logger logging.Logger

	mu     sync.Mutex
	state  SessionState
	id     string
	handle Handle
}

// NewManipulationSession creates an idle session. basis is the robot base frame in world
// coordinates.
func NewManipulationSession(kin Kinematics, sink CommandSink, basis spatialmath.Pose, logger logging.Logger) *ManipulationSession {
	return &ManipulationSession{
		kin:    kin,
		sink:   sink,
		basis:  basis,
		logger: logger,
		handle: Handle{Orientation: spatialmath.NewZeroOrientation()},
	}
}

// State returns the current phase.
func (s *ManipulationSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle returns the handle's world transform.
func (s *ManipulationSession) Handle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Anchor moves the handle onto the tool pose. It is ignored while a drag is active so the
// operator's hand is never pulled away. Returns whether the handle moved.
func (s *ManipulationSession) Anchor(toolPose CartesianPose) bool {
	pos, orient := BaseToWorldTransform(toolPose, s.basis)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionIdle {
		return false
	}
	s.handle = Handle{Position: pos, Orientation: orient}
	return true
}

// BeginDrag starts a drag at the given handle transform and returns its session id.
func (s *ManipulationSession) BeginDrag(position r3.Vector, orientation spatialmath.Orientation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionIdle {
		return "", errors.Wrapf(ErrInvalidTransition, "begin drag while %s", s.state)
	}
	s.state = SessionDragging
	s.id = uuid.NewString()
	s.handle = Handle{Position: position, Orientation: orZero(orientation)}
	s.logger.Debugf("Drag %s started", s.id)
	return s.id, nil
}

// UpdateDrag follows the operator's hand.
func (s *ManipulationSession) UpdateDrag(position r3.Vector, orientation spatialmath.Orientation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionDragging {
		return errors.Wrapf(ErrInvalidTransition, "update drag while %s", s.state)
	}
	s.handle = Handle{Position: position, Orientation: orZero(orientation)}
	return nil
}

// Cancel abandons an active drag without solving.
func (s *ManipulationSession) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionDragging {
		return errors.Wrapf(ErrInvalidTransition, "cancel while %s", s.state)
	}
	s.logger.Debugf("Drag %s cancelled", s.id)
	s.state = SessionIdle
	return nil
}

// EndDrag solves the released handle pose and picks the branch closest to visual, the
// joints currently on screen. When raw IK is empty the first labeled solution is used
// as a fallback. On success the joints are sent to the sink; otherwise the commanded
// joints are left alone. Solver failures are reported in the outcome, not as an error;
// the error return is for calls made outside a drag.
func (s *ManipulationSession) EndDrag(ctx context.Context, visual JointVector, model ArmModel) (Outcome, error) {
	s.mu.Lock()
	if s.state != SessionDragging {
		state := s.state
		s.mu.Unlock()
		return Outcome{}, errors.Wrapf(ErrInvalidTransition, "end drag while %s", state)
	}
	s.state = SessionCommitting
	id := s.id
	handle := s.handle
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = SessionIdle
		s.mu.Unlock()
	}()

	target := WorldToBasePose(s.basis, handle.Position, handle.Orientation)
	out := Outcome{SessionID: id, Target: target}

	joints, ok, err := s.solve(ctx, target, visual, model)
	switch {
	case err != nil:
		s.logger.Warnf("Drag %s: solving %v failed: %v", id, target, err)
		out.Status = OutcomeFailed
		out.Err = err
	case !ok:
		s.logger.Infof("Drag %s: target %v is unreachable", id, target)
		out.Status = OutcomeUnreachable
	default:
		out.Status = OutcomeCommitted
		out.Joints = joints
		if s.sink != nil {
			s.sink.Command(joints)
		}
	}
	return out, nil
}

func (s *ManipulationSession) solve(ctx context.Context, target CartesianPose, ref JointVector, model ArmModel) (JointVector, bool, error) {
	candidates, err := s.kin.InverseKinematics(ctx, target, model)
	if err != nil {
		return JointVector{}, false, err
	}
	if best, ok := SelectBest(candidates, ref); ok {
		return best, true, nil
	}

	set, err := s.kin.LabeledSolutions(ctx, target, model)
	if err != nil {
		return JointVector{}, false, err
	}
	if len(set) == 0 {
		return JointVector{}, false, nil
	}
	return set[0].Joints, true, nil
}

func orZero(o spatialmath.Orientation) spatialmath.Orientation {
	if o == nil {
		return spatialmath.NewZeroOrientation()
	}
	return o
}
