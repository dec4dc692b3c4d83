package crx_arm

import (
	"math"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
	rutils "go.viam.com/rdk/utils"
)

// PoseToSpatial converts a base frame cartesian pose into a rigid transform.
// WPR maps onto Tait-Bryan intrinsic z-y-x angles: W is roll about X, P is pitch about Y
// and R is yaw about Z, i.e. Rz(R)*Ry(P)*Rx(W).
func PoseToSpatial(p CartesianPose) spatialmath.Pose {
	return spatialmath.NewPose(
		r3.Vector{X: p.X, Y: p.Y, Z: p.Z},
		&spatialmath.EulerAngles{
			Roll:  rutils.DegToRad(p.W),
			Pitch: rutils.DegToRad(p.P),
			Yaw:   rutils.DegToRad(p.R),
		},
	)
}

// PoseFromSpatial is the inverse of PoseToSpatial.
//
// Near P = ±90° the extraction is degenerate (gimbal lock): only W±R is determined, and
// the individual W and R values returned there are whatever the decomposition yields.
// No disambiguation is attempted.
func PoseFromSpatial(pose spatialmath.Pose) CartesianPose {
	pt := pose.Point()
	ea := pose.Orientation().EulerAngles()
	return CartesianPose{
		X: pt.X,
		Y: pt.Y,
		Z: pt.Z,
		W: finiteDeg(ea.Roll),
		P: finiteDeg(ea.Pitch),
		R: finiteDeg(ea.Yaw),
	}
}

func finiteDeg(rad float64) float64 {
	if math.IsNaN(rad) || math.IsInf(rad, 0) {
		return 0
	}
	return rutils.RadToDeg(rad)
}

// WorldToBasePose expresses a world space handle transform in the robot base frame.
// basis is the robot base frame expressed in world coordinates.
func WorldToBasePose(basis spatialmath.Pose, worldPosition r3.Vector, worldOrientation spatialmath.Orientation) CartesianPose {
	if worldOrientation == nil {
		worldOrientation = spatialmath.NewZeroOrientation()
	}
	world := spatialmath.NewPose(worldPosition, worldOrientation)
	local := spatialmath.Compose(spatialmath.PoseInverse(basis), world)
	return PoseFromSpatial(local)
}

// BaseToWorldTransform places a base frame pose in world space, used to re-anchor the
// manipulation handle at the tool center point.
func BaseToWorldTransform(pose CartesianPose, basis spatialmath.Pose) (r3.Vector, spatialmath.Orientation) {
	world := spatialmath.Compose(basis, PoseToSpatial(pose))
	return world.Point(), world.Orientation()
}

// ThreeJSBasis is the robot base frame inside a Y-up scene: robot Z becomes scene Y and
// robot Y becomes scene -Z. originHeight lifts the base origin along scene Y.
func ThreeJSBasis(originHeight float64) spatialmath.Pose {
	return spatialmath.NewPose(
		r3.Vector{X: 0, Y: originHeight, Z: 0},
		&spatialmath.R4AA{Theta: -math.Pi / 2, RX: 1, RY: 0, RZ: 0},
	)
}
