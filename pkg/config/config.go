// Package config provides configuration loading and validation for jestify.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/jestify/pkg/dialect"
)

// Sentinel validation errors.
var (
	ErrSchema          = errors.New("configuration does not match schema")
	ErrInvalidWorkers  = errors.New("runner workers must not be negative")
	ErrInvalidTimeout  = errors.New("runner file timeout must be positive")
	ErrInvalidFileSize = errors.New("invalid runner max file size")
	ErrInvalidLevel    = errors.New("invalid logging level")
	ErrInvalidRatio    = errors.New("telemetry sample ratio must be within [0, 1]")
	ErrNoDialects      = errors.New("at least one dialect must be enabled")
)

// EnvPrefix prefixes every environment override, e.g. JESTIFY_RUNNER_WORKERS.
const EnvPrefix = "JESTIFY"

//go:embed schema.json
var schema []byte

// Config holds all configuration for jestify.
type Config struct {
	Dialect   map[string]DialectConfig `mapstructure:"dialect"`
	Dialects  []string                 `mapstructure:"dialects"`
	Logging   LoggingConfig            `mapstructure:"logging"`
	Telemetry TelemetryConfig          `mapstructure:"telemetry"`
	Runner    RunnerConfig             `mapstructure:"runner"`
}

// DialectConfig overrides the defaults of one source dialect.
type DialectConfig struct {
	Library            string `mapstructure:"library"`
	ContainerNamespace string `mapstructure:"container_namespace"`
	RequireBinding     bool   `mapstructure:"require_binding"`
}

// RunnerConfig controls the file walker.
type RunnerConfig struct {
	MaxFileSize string        `mapstructure:"max_file_size"`
	Exclude     []string      `mapstructure:"exclude"`
	FileTimeout time.Duration `mapstructure:"file_timeout"`
	Workers     int           `mapstructure:"workers"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches for .jestify.yaml in the working directory
// and the home directory; a missing file is not an error in that case.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".jestify")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	schemaErr := validateSchema(viperCfg.AllSettings())
	if schemaErr != nil {
		return nil, schemaErr
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	var config Config

	// Defaults are static and always decode.
	_ = viperCfg.Unmarshal(&config)

	return &config
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("dialects", dialect.Names())

	for _, name := range dialect.Names() {
		d := dialect.MustNew(name)
		viperCfg.SetDefault("dialect."+name+".library", d.Library)
		viperCfg.SetDefault("dialect."+name+".container_namespace", d.Namespace)
		viperCfg.SetDefault("dialect."+name+".require_binding", d.RequireBinding)
	}

	viperCfg.SetDefault("runner.workers", DefaultRunnerWorkers)
	viperCfg.SetDefault("runner.file_timeout", DefaultRunnerFileTimeout.String())
	viperCfg.SetDefault("runner.max_file_size", DefaultRunnerMaxFileSize)
	viperCfg.SetDefault("runner.exclude", DefaultExclude())

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.json", DefaultLoggingJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", DefaultTelemetrySampleRatio)
	viperCfg.SetDefault("telemetry.environment", DefaultTelemetryEnvironment)
}

func validateSchema(settings map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewGoLoader(settings),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		problems = append(problems, verr.Field()+": "+verr.Description())
	}

	return fmt.Errorf("%w: %s", ErrSchema, strings.Join(problems, "; "))
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	if len(c.Dialects) == 0 {
		return ErrNoDialects
	}

	if _, err := c.ResolveDialects(); err != nil {
		return err
	}

	if c.Runner.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Runner.Workers)
	}

	if c.Runner.FileTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Runner.FileTimeout)
	}

	if _, err := c.MaxFileSizeBytes(); err != nil {
		return err
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidRatio, c.Telemetry.SampleRatio)
	}

	return nil
}

// ResolveDialects returns the enabled dialects in processing order with
// their overrides applied.
func (c *Config) ResolveDialects() ([]dialect.Dialect, error) {
	overrides := make(map[string]dialect.Dialect, len(c.Dialect))
	for name, dc := range c.Dialect {
		overrides[name] = dialect.Dialect{
			Name:           name,
			Library:        dc.Library,
			Namespace:      dc.ContainerNamespace,
			RequireBinding: dc.RequireBinding,
		}
	}

	resolved, err := dialect.Resolve(c.Dialects, overrides)
	if err != nil {
		return nil, fmt.Errorf("dialects: %w", err)
	}

	return resolved, nil
}

// MaxFileSizeBytes parses runner.max_file_size ("1MB", "512 KiB").
// Zero disables the limit.
func (c *Config) MaxFileSizeBytes() (uint64, error) {
	if c.Runner.MaxFileSize == "" || c.Runner.MaxFileSize == "0" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(c.Runner.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidFileSize, c.Runner.MaxFileSize, err)
	}

	return size, nil
}

// LogLevel maps logging.level to a slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, c.Logging.Level)
	}
}
