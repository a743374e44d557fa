package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/jestify/pkg/config"
	"github.com/Sumatoshi-tech/jestify/pkg/dialect"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".jestify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, dialect.Names(), cfg.Dialects)
	assert.Equal(t, config.DefaultRunnerWorkers, cfg.Runner.Workers)
	assert.Equal(t, config.DefaultRunnerFileTimeout, cfg.Runner.FileTimeout)
	assert.Equal(t, config.DefaultRunnerMaxFileSize, cfg.Runner.MaxFileSize)
	assert.Equal(t, config.DefaultExclude(), cfg.Runner.Exclude)
	assert.Equal(t, config.DefaultLoggingLevel, cfg.Logging.Level)
	assert.InDelta(t, config.DefaultTelemetrySampleRatio, cfg.Telemetry.SampleRatio, 1e-9)

	dialects, err := cfg.ResolveDialects()
	require.NoError(t, err)
	require.Len(t, dialects, 2)
	assert.Equal(t, dialect.NamespaceJasmine, dialects[0].Namespace)
	assert.Equal(t, dialect.NamespaceExpect, dialects[1].Namespace)

	size, err := cfg.MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000*1000), size)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
dialects: [expect]
dialect:
  expect:
    library: chai-latest
    container_namespace: expect
    require_binding: true
runner:
  workers: 4
  file_timeout: 5s
  max_file_size: 256KiB
  exclude: [vendor]
logging:
  level: debug
  json: true
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{dialect.Expect}, cfg.Dialects)
	assert.Equal(t, 4, cfg.Runner.Workers)
	assert.Equal(t, 5*time.Second, cfg.Runner.FileTimeout)
	assert.Equal(t, []string{"vendor"}, cfg.Runner.Exclude)
	assert.True(t, cfg.Logging.JSON)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	size, err := cfg.MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(256*1024), size)

	dialects, err := cfg.ResolveDialects()
	require.NoError(t, err)
	require.Len(t, dialects, 1)
	assert.Equal(t, dialect.Dialect{
		Name:           dialect.Expect,
		Library:        "chai-latest",
		Namespace:      dialect.NamespaceExpect,
		RequireBinding: true,
	}, dialects[0])
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("JESTIFY_RUNNER_WORKERS", "3")
	t.Setenv("JESTIFY_DIALECT_SHOULD_CONTAINER_NAMESPACE", "jasmine")

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Runner.Workers)
	assert.Equal(t, dialect.NamespaceJasmine, cfg.Dialect[dialect.Should].ContainerNamespace)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_SchemaRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"unknown top-level key", "colour: true\n"},
		{"unknown dialect", "dialect:\n  assert:\n    library: chai\n"},
		{"bad namespace", "dialect:\n  expect:\n    container_namespace: jest\n"},
		{"bad dialect name", "dialects: [assert]\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"bad timeout", "runner:\n  file_timeout: soon\n"},
		{"negative workers", "runner:\n  workers: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, config.ErrSchema)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{"no dialects", func(c *config.Config) { c.Dialects = nil }, config.ErrNoDialects},
		{"unknown dialect", func(c *config.Config) { c.Dialects = []string{"assert"} }, dialect.ErrUnknownDialect},
		{"zero timeout", func(c *config.Config) { c.Runner.FileTimeout = 0 }, config.ErrInvalidTimeout},
		{"bad size", func(c *config.Config) { c.Runner.MaxFileSize = "lots" }, config.ErrInvalidFileSize},
		{"bad level", func(c *config.Config) { c.Logging.Level = "trace" }, config.ErrInvalidLevel},
		{"bad ratio", func(c *config.Config) { c.Telemetry.SampleRatio = 2 }, config.ErrInvalidRatio},
		{"negative workers", func(c *config.Config) { c.Runner.Workers = -2 }, config.ErrInvalidWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestMaxFileSizeBytes_Disabled(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Runner.MaxFileSize = "0"

	size, err := cfg.MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Zero(t, size)
}
