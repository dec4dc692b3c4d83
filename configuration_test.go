package crx_arm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationString(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Configuration
		expected string
	}{
		{
			name:     "unknown",
			cfg:      Configuration{},
			expected: "? ? ? ?, 0, 0, 0",
		},
		{
			name:     "no flip up front left",
			cfg:      Configuration{WristFlip: WristFlipNoFlip, ArmUpDown: ArmUp, ArmFrontBack: ArmFront, ArmLeftRight: ArmLeft},
			expected: "N U T L, 0, 0, 0",
		},
		{
			name: "flip down back right with turns",
			cfg: Configuration{
				WristFlip: WristFlipFlip, ArmUpDown: ArmDown, ArmFrontBack: ArmBack, ArmLeftRight: ArmRight,
				TurnAxis4: 1, TurnAxis5: 0, TurnAxis6: -1,
			},
			expected: "F D B R, 1, 0, -1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.String())
		})
	}
}

func TestConfigurationFromSolverJSON(t *testing.T) {
	// enum ordinals as the solver sends them
	raw := `{"wrist_flip":2,"arm_up_down":1,"arm_left_right":2,"arm_front_back":1,"turn_axis_4":0,"turn_axis_5":0,"turn_axis_6":1}`

	var cfg Configuration
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	assert.Equal(t, "N U T R, 0, 0, 1", cfg.String())
}
