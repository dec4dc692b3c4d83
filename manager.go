package crx_arm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.viam.com/rdk/logging"
)

var (
	globalGateway *SolverGateway
	gatewayMutex  sync.Mutex
	refCount      int64
	currentConfig *Config

	// newBridge builds the bridge for a shared gateway; tests swap it out.
	newBridge = func(cfg *Config) Bridge {
		return NewHTTPBridge(cfg.SolverURL, cfg.Timeout)
	}
)

// Compare configs for compatibility
func configsEqual(a, b *Config) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.SolverURL == b.SolverURL &&
		a.Timeout == b.Timeout &&
		a.MaxCallsPerSec == b.MaxCallsPerSec &&
		a.GatewayOptions().Prewarm == b.GatewayOptions().Prewarm
}

// GetSharedGateway returns the process wide solver gateway, creating it on first use.
// Every successful call must be paired with ReleaseSharedGateway.
func GetSharedGateway(cfg *Config, logger logging.Logger) (*SolverGateway, error) {
	gatewayMutex.Lock()
	defer gatewayMutex.Unlock()

	currentRefCount := atomic.LoadInt64(&refCount)

	if globalGateway != nil {
		if !configsEqual(currentConfig, cfg) {
			return nil, fmt.Errorf("conflict: existing solver gateway uses different config (refCount: %d)", currentRefCount)
		}
		atomic.AddInt64(&refCount, 1)
		return globalGateway, nil
	}

	globalGateway = NewSolverGateway(newBridge(cfg), cfg.GatewayOptions(), logger)
	currentConfig = cfg
	atomic.StoreInt64(&refCount, 1)

	return globalGateway, nil
}

// ReleaseSharedGateway drops one reference; the gateway is discarded with the last one.
func ReleaseSharedGateway() {
	gatewayMutex.Lock()
	defer gatewayMutex.Unlock()

	currentRefCount := atomic.AddInt64(&refCount, -1)
	if currentRefCount <= 0 {
		globalGateway = nil
		currentConfig = nil
		atomic.StoreInt64(&refCount, 0)
	}
}

// GetGatewayStatus reports the reference count, whether a gateway exists and a summary.
func GetGatewayStatus() (int64, bool, string) {
	gatewayMutex.Lock()
	defer gatewayMutex.Unlock()

	currentRefCount := atomic.LoadInt64(&refCount)
	hasGateway := globalGateway != nil
	summary := ""

	if currentConfig != nil && globalGateway != nil {
		summary = fmt.Sprintf("Solver: %s, state: %s", currentConfig.SolverURL, globalGateway.stateName())
	}

	return currentRefCount, hasGateway, summary
}
