// Package observability provides hooks for metrics and instrumentation.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register hooks
// at startup to receive events about pipeline execution; the server wires a
// Prometheus implementation, the CLI leaves the no-ops in place.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This keeps pkg/pipeline free of metrics-framework imports and avoids
// import cycles, since hooks are registered by main, not by libraries.
package observability

import (
	"sync"
	"time"
)

// RunHooks receives events from pipeline execution.
type RunHooks interface {
	// OnStageComplete records a finished pipeline stage.
	OnStageComplete(stage string, duration time.Duration)

	// OnRunComplete records a finished pipeline run.
	OnRunComplete(mode string, parcels int, duration time.Duration)
}

// NoopRunHooks is a no-op implementation of RunHooks.
type NoopRunHooks struct{}

func (NoopRunHooks) OnStageComplete(string, time.Duration)    {}
func (NoopRunHooks) OnRunComplete(string, int, time.Duration) {}

var (
	runHooks RunHooks = NoopRunHooks{}
	hooksMu  sync.RWMutex
)

// SetRunHooks registers custom run hooks.
// This should be called once at application startup before any runs.
func SetRunHooks(h RunHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		runHooks = h
	}
}

// Run returns the registered run hooks.
func Run() RunHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return runHooks
}

// StageCompleted emits a stage-complete event on the registered hooks.
func StageCompleted(stage string, duration time.Duration) {
	Run().OnStageComplete(stage, duration)
}

// RunCompleted emits a run-complete event on the registered hooks.
func RunCompleted(mode string, parcels int, duration time.Duration) {
	Run().OnRunComplete(mode, parcels, duration)
}
