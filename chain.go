package crx_arm

import (
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
	rutils "go.viam.com/rdk/utils"
)

// JointTransforms maps joint angles onto the local transform of each rendered link,
// in robot base coordinates (Z up). Element i is link i+1 relative to link i; the final
// element is the tool flange relative to J6.
//
// This is a visual approximation for drawing the arm. It is not the solver's kinematic
// model and its tool position does not equal the FK pose.
func JointTransforms(joints JointVector, dh DhParameters) []spatialmath.Pose {
	return []spatialmath.Pose{
		link(r3.Vector{Z: dh.BaseHeight}, r3.Vector{Z: 1}, -joints[0]),
		link(r3.Vector{}, r3.Vector{Y: 1}, joints[1]),
		link(r3.Vector{Z: dh.A2}, r3.Vector{Y: 1}, joints[2]),
		link(r3.Vector{Z: dh.A3}, r3.Vector{Z: 1}, -joints[3]),
		link(r3.Vector{Z: dh.D4}, r3.Vector{Y: 1}, -joints[4]),
		link(r3.Vector{Y: dh.D5}, r3.Vector{Z: 1}, -joints[5]),
		spatialmath.NewPoseFromPoint(r3.Vector{Z: dh.D6}),
	}
}

// ToolTransform composes JointTransforms into the flange pose in the base frame.
func ToolTransform(joints JointVector, dh DhParameters) spatialmath.Pose {
	pose := spatialmath.NewZeroPose()
	for _, t := range JointTransforms(joints, dh) {
		pose = spatialmath.Compose(pose, t)
	}
	return pose
}

func link(offset, axis r3.Vector, angleDeg float64) spatialmath.Pose {
	return spatialmath.NewPose(offset, &spatialmath.R4AA{
		Theta: rutils.DegToRad(angleDeg),
		RX:    axis.X,
		RY:    axis.Y,
		RZ:    axis.Z,
	})
}
