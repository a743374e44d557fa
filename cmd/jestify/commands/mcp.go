package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/jestify/pkg/mcp"
	"github.com/Sumatoshi-tech/jestify/pkg/observability"
)

const (
	flagMetricsAddr = "metrics-addr"
	metricsPath     = "/metrics"

	metricsReadHeaderTimeout = 5 * time.Second
	metricsShutdownTimeout   = 5 * time.Second
)

// ErrNoMetricsHandler is returned when --metrics-addr is set but no
// Prometheus exporter was initialized.
var ErrNoMetricsHandler = errors.New("prometheus exporter not initialized")

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes the rewriter as tools that AI agents can discover and
invoke:
  - jestify_rewrite: rewrite chai assertions in a source snippet
  - jestify_rules: list the chai to Jest rule table

With --metrics-addr a Prometheus scrape endpoint is served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := start(cmd, observability.ModeMCP)
			if err != nil {
				return err
			}
			defer sess.close()

			red, err := observability.NewREDMetrics(sess.providers.Meter)
			if err != nil {
				return fmt.Errorf("red metrics: %w", err)
			}

			dialects, err := sess.dialects(cmd)
			if err != nil {
				return err
			}

			if addr, _ := cmd.Flags().GetString(flagMetricsAddr); addr != "" {
				_, stop, serveErr := serveMetrics(cmd.Context(), addr, sess, red)
				if serveErr != nil {
					return serveErr
				}
				defer stop()
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:   sess.providers.Logger,
				Metrics:  red,
				Tracer:   sess.providers.Tracer,
				Dialects: dialects,
			})

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().String(flagMetricsAddr, "", "Serve Prometheus metrics on this address, e.g. :9464")
	addDialectFlags(cmd)

	return cmd
}

// serveMetrics starts the scrape endpoint in the background. It returns
// the bound address and a function that shuts the endpoint down.
func serveMetrics(
	ctx context.Context, addr string, sess *session, red *observability.REDMetrics,
) (string, func(), error) {
	if sess.providers.MetricsHandler == nil {
		return "", nil, ErrNoMetricsHandler
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, observability.HTTPMiddleware(sess.providers.Tracer, red, sess.providers.MetricsHandler))

	server := &http.Server{Handler: mux, ReadHeaderTimeout: metricsReadHeaderTimeout}
	logger := sess.providers.Logger

	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", serveErr)
		}
	}()

	bound := listener.Addr().String()
	logger.Info("serving metrics", "http.addr", bound, "http.route", metricsPath)

	return bound, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("metrics server shutdown failed", "error", shutdownErr)
		}
	}, nil
}
