package crx_arm

import (
	"encoding/json"
	"fmt"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// decodeArg re-decodes a loosely typed DoCommand argument into out.
func decodeArg(cmd map[string]any, key string, out any) error {
	raw, ok := cmd[key]
	if !ok {
		return fmt.Errorf("missing %q", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("invalid %q: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid %q: %w", key, err)
	}
	return nil
}

func jointsArg(cmd map[string]any, key string) (JointVector, error) {
	var values []float64
	if err := decodeArg(cmd, key, &values); err != nil {
		return JointVector{}, err
	}
	return JointsFromSlice(values)
}

func intArg(cmd map[string]any, key string) (int, error) {
	switch v := cmd[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case nil:
		return 0, fmt.Errorf("missing %q", key)
	default:
		return 0, fmt.Errorf("%q must be a number, got %T", key, v)
	}
}

// handleArgs reads "position" {x,y,z} and an optional "orientation" given as an
// orientation vector in degrees {ox,oy,oz,theta}.
func handleArgs(cmd map[string]any) (r3.Vector, spatialmath.Orientation, error) {
	var pos r3.Vector
	if err := decodeArg(cmd, "position", &pos); err != nil {
		return r3.Vector{}, nil, err
	}
	if _, ok := cmd["orientation"]; !ok {
		return pos, nil, nil
	}
	var ov struct {
		OX    float64 `json:"ox"`
		OY    float64 `json:"oy"`
		OZ    float64 `json:"oz"`
		Theta float64 `json:"theta"`
	}
	if err := decodeArg(cmd, "orientation", &ov); err != nil {
		return r3.Vector{}, nil, err
	}
	if ov.OX == 0 && ov.OY == 0 && ov.OZ == 0 {
		ov.OZ = 1
	}
	return pos, &spatialmath.OrientationVectorDegrees{OX: ov.OX, OY: ov.OY, OZ: ov.OZ, Theta: ov.Theta}, nil
}

func jointsToAny(j JointVector) []any {
	out := make([]any, len(j))
	for i, v := range j {
		out[i] = v
	}
	return out
}

func poseToMap(p CartesianPose) map[string]any {
	return map[string]any{"x": p.X, "y": p.Y, "z": p.Z, "w": p.W, "p": p.P, "r": p.R}
}

func vectorToMap(v r3.Vector) map[string]any {
	return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
}

func orientationToMap(o spatialmath.Orientation) map[string]any {
	ov := o.OrientationVectorDegrees()
	return map[string]any{"ox": ov.OX, "oy": ov.OY, "oz": ov.OZ, "theta": ov.Theta}
}

func solutionsToAny(sols []LabeledSolution) []any {
	out := make([]any, len(sols))
	for i, s := range sols {
		out[i] = map[string]any{
			"index":         i,
			"joints":        jointsToAny(s.Joints),
			"configuration": s.ConfigString,
		}
	}
	return out
}

func outcomeToMap(o Outcome) map[string]any {
	m := map[string]any{
		"session_id": o.SessionID,
		"status":     string(o.Status),
		"target":     poseToMap(o.Target),
	}
	if o.Status == OutcomeCommitted {
		m["joints"] = jointsToAny(o.Joints)
	}
	if o.Err != nil {
		m["error"] = o.Err.Error()
	}
	return m
}
