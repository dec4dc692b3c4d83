package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	crxArm "crx_arm"

	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
)

func main() {
	err := realMain()
	if err != nil {
		panic(err)
	}
}

func realMain() error {
	configFile := flag.String("config", "", "JSON or YAML viewer config (overrides -solver)")
	solverURL := flag.String("solver", "http://localhost:5080", "Kinematics solver base URL")
	model := flag.String("model", "crx-10ia-l", "Arm model")
	joints := flag.String("joints", "0,0,0,0,0,0", "Joint angles J1..J6 in degrees")
	target := flag.String("target", "", "Optional drag target x,y,z in scene coordinates (mm)")
	flag.Parse()

	ctx := context.Background()
	logger := logging.NewLogger("crx-viewer-cli")

	cfg, err := loadConfig(*configFile, *solverURL, *model)
	if err != nil {
		return err
	}

	viewer, err := crxArm.NewCRXViewer(ctx, resource.NewName(sensor.API, "crx-viewer"), cfg, logger)
	if err != nil {
		return err
	}
	defer viewer.Close(ctx)

	values, err := parseFloats(*joints, crxArm.NumJoints)
	if err != nil {
		return fmt.Errorf("invalid -joints: %w", err)
	}

	logger.Infof("Commanding joints %v", values)
	if _, err := viewer.DoCommand(ctx, map[string]any{"command": "set_joints", "joints": values}); err != nil {
		return err
	}

	// wait out the debounce window and the solver round trips
	readings, err := waitForPose(ctx, viewer, cfg.Debounce()+2*time.Second)
	if err != nil {
		return err
	}
	printReadings(readings)

	if *target == "" {
		return nil
	}

	xyz, err := parseFloats(*target, 3)
	if err != nil {
		return fmt.Errorf("invalid -target: %w", err)
	}

	logger.Infof("Dragging handle to %v", xyz)
	if _, err := viewer.DoCommand(ctx, map[string]any{"command": "begin_drag"}); err != nil {
		return err
	}
	if _, err := viewer.DoCommand(ctx, map[string]any{
		"command":  "update_drag",
		"position": map[string]any{"x": xyz[0], "y": xyz[1], "z": xyz[2]},
	}); err != nil {
		return err
	}
	result, err := viewer.DoCommand(ctx, map[string]any{"command": "end_drag"})
	if err != nil {
		return err
	}
	fmt.Printf("Drag %v: %v\n", result["session_id"], result["status"])
	if joints, ok := result["joints"]; ok {
		fmt.Printf("  joints: %v\n", joints)
	}
	return nil
}

func loadConfig(path, solverURL, model string) (*crxArm.Config, error) {
	if path != "" {
		return crxArm.LoadConfigFile(path)
	}
	cfg := &crxArm.Config{SolverURL: solverURL, Model: model}
	if _, _, err := cfg.Validate("cli"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func waitForPose(ctx context.Context, viewer sensor.Sensor, timeout time.Duration) (map[string]any, error) {
	deadline := time.Now().Add(timeout)
	for {
		readings, err := viewer.Readings(ctx, nil)
		if err != nil {
			return nil, err
		}
		if _, ok := readings["pose"]; ok {
			if sols, _ := readings["solutions"].([]any); len(sols) > 0 || time.Now().After(deadline) {
				return readings, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("no pose from solver after %v", timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func printReadings(readings map[string]any) {
	fmt.Printf("Model:         %v\n", readings["model"])
	fmt.Printf("Pose:          %v\n", readings["pose"])
	fmt.Printf("Configuration: %v\n", readings["configuration"])
	sols, _ := readings["solutions"].([]any)
	fmt.Printf("Solutions:     %d\n", len(sols))
	for _, s := range sols {
		sol, _ := s.(map[string]any)
		fmt.Printf("  [%v] %v  %v\n", sol["index"], sol["configuration"], sol["joints"])
	}
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
