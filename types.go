package crx_arm

import (
	"fmt"
	"math"
	"strings"
)

// NumJoints is the number of axes on every supported arm.
const NumJoints = 6

// Slider range shown by the display layer. The core itself never clamps.
const displayLimitDeg = 170.0

// JointVector holds J1..J6 in degrees.
type JointVector [NumJoints]float64

// JointsFromSlice copies a 6 element slice into a JointVector.
func JointsFromSlice(values []float64) (JointVector, error) {
	var j JointVector
	if len(values) != NumJoints {
		return j, fmt.Errorf("expected %d joint values, got %d", NumJoints, len(values))
	}
	copy(j[:], values)
	return j, nil
}

// Slice returns the joints as a freshly allocated slice.
func (j JointVector) Slice() []float64 {
	out := make([]float64, NumJoints)
	copy(out, j[:])
	return out
}

// ClampDisplay limits each axis to the slider range.
func (j JointVector) ClampDisplay() JointVector {
	var out JointVector
	for i, v := range j {
		out[i] = math.Max(-displayLimitDeg, math.Min(displayLimitDeg, v))
	}
	return out
}

func (j JointVector) String() string {
	parts := make([]string, NumJoints)
	for i, v := range j {
		parts[i] = fmt.Sprintf("J%d=%.3f", i+1, v)
	}
	return strings.Join(parts, " ")
}

// CartesianPose is a tool pose in the robot base frame. X, Y, Z are millimeters;
// W, P, R are degrees composed as Rz(R)*Ry(P)*Rx(W).
type CartesianPose struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
	P float64 `json:"p"`
	R float64 `json:"r"`
}

func (p CartesianPose) String() string {
	return fmt.Sprintf("X=%.3f Y=%.3f Z=%.3f W=%.3f P=%.3f R=%.3f", p.X, p.Y, p.Z, p.W, p.P, p.R)
}

// ArmModel selects one of the supported kinematic variants.
type ArmModel int

const (
	ModelCRX10iA ArmModel = iota
	ModelCRX10iAL
)

var armModelNames = map[ArmModel]string{
	ModelCRX10iA:  "crx-10ia",
	ModelCRX10iAL: "crx-10ia-l",
}

func (m ArmModel) String() string {
	if name, ok := armModelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(m))
}

// ParseArmModel accepts the names returned by ArmModel.String, case-insensitively.
func ParseArmModel(name string) (ArmModel, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "/", "-")
	for m, n := range armModelNames {
		if n == normalized {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown arm model %q", name)
}

// DhParameters are the link lengths and offsets of one arm model, in millimeters.
// Values are owned by the solver; they are fetched once per model and never modified.
type DhParameters struct {
	A2         float64 `json:"a2"`
	A3         float64 `json:"a3"`
	D4         float64 `json:"d4"`
	D5         float64 `json:"d5"`
	D6         float64 `json:"d6"`
	BaseHeight float64 `json:"base_height"`
}

// Solution is one inverse kinematics branch.
type Solution struct {
	Joints        JointVector   `json:"joints"`
	Configuration Configuration `json:"configuration"`
}

// SolutionSet is the solver's answer for one target pose. Its order is whatever the
// solver produced and may change between calls. An empty set means unreachable.
type SolutionSet []Solution

// Joints returns the joint vectors of the set in order.
func (s SolutionSet) Joints() []JointVector {
	out := make([]JointVector, len(s))
	for i, sol := range s {
		out[i] = sol.Joints
	}
	return out
}
