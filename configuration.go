package crx_arm

import "fmt"

// WristFlip is the wrist branch of a configuration.
type WristFlip int

const (
	WristFlipUnknown WristFlip = iota
	WristFlipFlip
	WristFlipNoFlip
)

// ArmUpDown is the elbow branch of a configuration.
type ArmUpDown int

const (
	ArmUpDownUnknown ArmUpDown = iota
	ArmUp
	ArmDown
)

// ArmLeftRight is the shoulder side of a configuration.
type ArmLeftRight int

const (
	ArmLeftRightUnknown ArmLeftRight = iota
	ArmLeft
	ArmRight
)

// ArmFrontBack is the shoulder facing of a configuration.
type ArmFrontBack int

const (
	ArmFrontBackUnknown ArmFrontBack = iota
	ArmFront
	ArmBack
)

func (w WristFlip) String() string {
	switch w {
	case WristFlipFlip:
		return "F"
	case WristFlipNoFlip:
		return "N"
	default:
		return "?"
	}
}

func (a ArmUpDown) String() string {
	switch a {
	case ArmUp:
		return "U"
	case ArmDown:
		return "D"
	default:
		return "?"
	}
}

func (a ArmLeftRight) String() string {
	switch a {
	case ArmLeft:
		return "L"
	case ArmRight:
		return "R"
	default:
		return "?"
	}
}

// Front/back uses the controller's Top/Bottom letters.
func (a ArmFrontBack) String() string {
	switch a {
	case ArmFront:
		return "T"
	case ArmBack:
		return "B"
	default:
		return "?"
	}
}

// Configuration identifies which IK branch a joint vector belongs to. Two joint vectors
// reaching the same pose with different configurations are distinct solutions.
type Configuration struct {
	WristFlip    WristFlip    `json:"wrist_flip"`
	ArmUpDown    ArmUpDown    `json:"arm_up_down"`
	ArmLeftRight ArmLeftRight `json:"arm_left_right"`
	ArmFrontBack ArmFrontBack `json:"arm_front_back"`
	TurnAxis4    int          `json:"turn_axis_4"`
	TurnAxis5    int          `json:"turn_axis_5"`
	TurnAxis6    int          `json:"turn_axis_6"`
}

// String renders the canonical configuration string, e.g. "N U T L, 0, 0, 0".
func (c Configuration) String() string {
	return fmt.Sprintf("%s %s %s %s, %d, %d, %d",
		c.WristFlip, c.ArmUpDown, c.ArmFrontBack, c.ArmLeftRight,
		c.TurnAxis4, c.TurnAxis5, c.TurnAxis6)
}
