package config

import "time"

// Runner defaults.
const (
	DefaultRunnerWorkers     = 0
	DefaultRunnerFileTimeout = 30 * time.Second
	DefaultRunnerMaxFileSize = "1MB"
)

// Logging defaults.
const (
	DefaultLoggingLevel = "info"
	DefaultLoggingJSON  = false
)

// Telemetry defaults.
const (
	DefaultTelemetrySampleRatio = 1.0
	DefaultTelemetryEnvironment = "development"
)

// DefaultExclude lists directory names the runner never descends into.
func DefaultExclude() []string {
	return []string{"node_modules", ".git", "dist", "build", "coverage"}
}
