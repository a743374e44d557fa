// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for every jestify mode (CLI, MCP, LSP).
package observability

import (
	"io"
	"log/slog"
)

// AppMode identifies the application execution mode.
type AppMode string

const (
	// ModeCLI is the one-shot command mode.
	ModeCLI AppMode = "cli"
	// ModeMCP is the MCP stdio server mode.
	ModeMCP AppMode = "mcp"
	// ModeLSP is the language server mode.
	ModeLSP AppMode = "lsp"
)

const (
	defaultServiceName        = "jestify"
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// LogWriter receives log records. Nil means stderr; stdout is never
	// used because the stdio servers frame their protocol on it.
	LogWriter io.Writer

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporters.
	OTLPHeaders map[string]string

	ServiceName    string
	ServiceVersion string
	Environment    string
	Mode           AppMode

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables OTLP export.
	OTLPEndpoint string

	// SampleRatio is the root trace sampling ratio. Zero samples everything.
	SampleRatio float64

	LogLevel slog.Level

	ShutdownTimeoutSec int

	OTLPInsecure bool
	LogJSON      bool

	// Prometheus attaches a pull exporter and exposes it as
	// Providers.MetricsHandler.
	Prometheus bool
}

// DefaultConfig returns a Config for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
