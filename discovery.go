// discovery.go
package crx_arm

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/discovery"
)

var CRXDiscoveryModel = resource.NewModel("devrel", "crx", "discovery")

// Well known places a solver service listens when run next to the module.
var defaultSolverURLs = []string{
	"http://localhost:5080",
	"http://127.0.0.1:5080",
}

const defaultProbeTimeout = 500 * time.Millisecond

func init() {
	resource.RegisterService(
		discovery.API,
		CRXDiscoveryModel,
		resource.Registration[discovery.Service, *CRXDiscoveryConfig]{
			Constructor: newCRXDiscovery,
		})
}

// CRXDiscoveryConfig is the configuration for the discovery service
type CRXDiscoveryConfig struct {
	CandidateURLs []string      `json:"candidate_urls,omitempty"` // Probed in addition to the defaults and CRX_SOLVER_URL
	ProbeTimeout  time.Duration `json:"probe_timeout,omitempty"`  // Per solver health check (default: 500ms)
}

// Validate ensures the config is valid
func (cfg *CRXDiscoveryConfig) Validate(path string) ([]string, []string, error) {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	return nil, nil, nil
}

// crxDiscovery implements the discovery service
type crxDiscovery struct {
	resource.Named
	resource.AlwaysRebuild
	resource.TriviallyCloseable
	logger logging.Logger
	cfg    *CRXDiscoveryConfig
}

// newCRXDiscovery creates a new CRX solver discovery service
func newCRXDiscovery(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (discovery.Service, error) {
	cfg, err := resource.NativeConfig[*CRXDiscoveryConfig](conf)
	if err != nil {
		return nil, err
	}

	return &crxDiscovery{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
		cfg:    cfg,
	}, nil
}

// DiscoverResources probes candidate solver URLs and returns a viewer configuration for
// every arm model on each solver that answers.
func (dis *crxDiscovery) DiscoverResources(ctx context.Context, extra map[string]any) ([]resource.Config, error) {
	dis.logger.Info("Starting CRX solver discovery")

	// Phase 1: Gather candidate URLs
	all := append([]string{}, dis.cfg.CandidateURLs...)
	if env := os.Getenv("CRX_SOLVER_URL"); env != "" {
		all = append(all, env)
	}
	all = append(all, defaultSolverURLs...)

	// Phase 2: Normalize and drop duplicates
	candidates := filterCandidateURLs(all)
	dis.logger.Debugf("Probing %d candidate solver URLs", len(candidates))

	moduleDataDir := os.Getenv("VIAM_MODULE_DATA")
	if moduleDataDir == "" {
		moduleDataDir = "/tmp"
	}

	// Phase 3: Probe each solver and generate configs
	var allConfigs []resource.Config
	for _, solverURL := range candidates {
		// Check context cancellation
		select {
		case <-ctx.Done():
			dis.logger.Info("Discovery cancelled")
			return allConfigs, ctx.Err()
		default:
		}

		if !dis.probe(ctx, solverURL) {
			dis.logger.Debugf("No solver answering at %s", solverURL)
			continue
		}

		suffix := extractURLSuffix(solverURL)
		dis.logger.Infof("Discovered kinematics solver at %s", solverURL)
		prefs := findPreferencesFile(moduleDataDir, suffix, dis.logger)
		allConfigs = append(allConfigs, generateViewerConfigs(solverURL, suffix, prefs)...)
	}

	if len(allConfigs) == 0 {
		dis.logger.Info("No kinematics solvers discovered")
	} else {
		dis.logger.Infof("Discovered %d component configurations", len(allConfigs))
	}

	return allConfigs, nil
}

func (dis *crxDiscovery) probe(ctx context.Context, solverURL string) bool {
	timeout := dis.cfg.ProbeTimeout
	if timeout == 0 {
		timeout = defaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return NewHTTPBridge(solverURL, timeout).Start(probeCtx) == nil
}

// generateViewerConfigs creates one viewer per supported arm model
func generateViewerConfigs(solverURL, suffix, preferencesFile string) []resource.Config {
	models := make([]ArmModel, 0, len(armModelNames))
	for m := range armModelNames {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i] < models[j] })

	configs := make([]resource.Config, 0, len(models))
	for _, m := range models {
		attrs := map[string]interface{}{
			"solver_url": solverURL,
			"model":      m.String(),
		}
		if preferencesFile != "" {
			attrs["preferences_file"] = preferencesFile
		}
		configs = append(configs, resource.Config{
			Name:       "crx-viewer-" + suffix + "-" + m.String(),
			API:        sensor.API,
			Model:      ViewerModel,
			Attributes: attrs,
		})
	}
	return configs
}

// filterCandidateURLs keeps http(s) URLs with a host, normalized and in first-seen order
func filterCandidateURLs(urls []string) []string {
	candidates := []string{}
	seen := map[string]bool{}
	for _, raw := range urls {
		normalized, ok := normalizeSolverURL(raw)
		if !ok || seen[normalized] {
			continue
		}
		seen[normalized] = true
		candidates = append(candidates, normalized)
	}
	return candidates
}

func normalizeSolverURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	return scheme + "://" + strings.ToLower(u.Host) + strings.TrimRight(u.Path, "/"), true
}

// extractURLSuffix derives a resource-name friendly suffix from a solver URL
// http://localhost:5080 -> "localhost-5080"
// https://solver.local/api -> "solver-local-api"
func extractURLSuffix(solverURL string) string {
	u, err := url.Parse(solverURL)
	if err != nil || u.Host == "" {
		return "solver"
	}
	s := u.Host + u.Path
	s = strings.NewReplacer(":", "-", ".", "-", "/", "-").Replace(s)
	return strings.Trim(s, "-")
}

// findPreferencesFile searches for an existing preferences database in moduleDataDir
// Tries the solver-specific file first, then falls back to the shared default
// Returns just the filename, or the solver-specific name when nothing exists yet
func findPreferencesFile(moduleDataDir, suffix string, logger logging.Logger) string {
	specific := suffix + "_viewer.db"
	if _, err := os.Stat(filepath.Join(moduleDataDir, specific)); err == nil {
		logger.Debugf("Found solver-specific preferences file: %s", specific)
		return specific
	}

	if _, err := os.Stat(filepath.Join(moduleDataDir, "crx_viewer.db")); err == nil {
		logger.Debugf("Found default preferences file: crx_viewer.db")
		return "crx_viewer.db"
	}

	logger.Debug("No preferences file found")
	return specific
}
