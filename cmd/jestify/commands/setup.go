// Package commands implements the jestify CLI command handlers.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/jestify/pkg/config"
	"github.com/Sumatoshi-tech/jestify/pkg/dialect"
	"github.com/Sumatoshi-tech/jestify/pkg/observability"
	"github.com/Sumatoshi-tech/jestify/pkg/rewrite"
	"github.com/Sumatoshi-tech/jestify/pkg/version"
)

// Flag names shared by several commands.
const (
	flagConfig    = "config"
	flagVerbose   = "verbose"
	flagQuiet     = "quiet"
	flagDialect   = "dialect"
	flagNamespace = "namespace"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown output format")

// session is the state every command builds before doing work.
type session struct {
	cfg       *config.Config
	providers observability.Providers
}

// AddPersistentFlags registers the flags every command understands.
func AddPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(flagConfig, "", "Config file (default: .jestify.yaml in . or $HOME)")
	cmd.PersistentFlags().BoolP(flagVerbose, "v", false, "Debug logging")
	cmd.PersistentFlags().BoolP(flagQuiet, "q", false, "Only log errors")
}

// start loads configuration and initializes observability for mode. Logs go
// to the command's stderr.
func start(cmd *cobra.Command, mode observability.AppMode) (*session, error) {
	path, _ := cmd.Flags().GetString(flagConfig)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}

	if verbose, _ := cmd.Flags().GetBool(flagVerbose); verbose {
		level = slog.LevelDebug
	}

	if quiet, _ := cmd.Flags().GetBool(flagQuiet); quiet {
		level = slog.LevelError
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Resolved()
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.Mode = mode
	obsCfg.LogWriter = cmd.ErrOrStderr()
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON || mode != observability.ModeCLI
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio

	if mode == observability.ModeMCP {
		if addr, _ := cmd.Flags().GetString(flagMetricsAddr); addr != "" {
			obsCfg.Prometheus = true
		}
	}

	providers, err := observability.Init(cmd.Context(), obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	return &session{cfg: cfg, providers: providers}, nil
}

// close flushes telemetry, logging failures.
func (s *session) close() {
	if err := s.providers.Shutdown(context.Background()); err != nil {
		s.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// dialects resolves the configured dialects, narrowed by --dialect and
// re-targeted by --namespace when those flags are given.
func (s *session) dialects(cmd *cobra.Command) ([]dialect.Dialect, error) {
	if cmd.Flags().Lookup(flagDialect) != nil && cmd.Flags().Changed(flagDialect) {
		names, _ := cmd.Flags().GetStringSlice(flagDialect)
		s.cfg.Dialects = names
	}

	resolved, err := s.cfg.ResolveDialects()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Lookup(flagNamespace) != nil && cmd.Flags().Changed(flagNamespace) {
		ns, _ := cmd.Flags().GetString(flagNamespace)

		for i := range resolved {
			resolved[i] = resolved[i].WithNamespace(ns)

			if err := resolved[i].Validate(); err != nil {
				return nil, err
			}
		}
	}

	return resolved, nil
}

// engine builds a rewrite engine for the session's dialects.
func (s *session) engine(cmd *cobra.Command) (*rewrite.Engine, error) {
	dialects, err := s.dialects(cmd)
	if err != nil {
		return nil, err
	}

	engine, err := rewrite.New(rewrite.Options{Dialects: dialects})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	return engine, nil
}

// addDialectFlags registers --dialect and --namespace.
func addDialectFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice(flagDialect, nil, "Source dialects to rewrite, repeatable: expect, should (default: config)")
	cmd.Flags().String(flagNamespace, "", "Namespace for container matchers: jasmine or expect (default: per dialect)")
}
