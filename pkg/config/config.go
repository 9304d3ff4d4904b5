// Package config loads mnemoscan settings from defaults, a YAML file,
// MNEMOSCAN_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/mnemonic"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/units"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers     = errors.New("workers must not be negative")
	ErrInvalidChunkSize   = errors.New("chunk size must be positive")
	ErrInvalidMaxInFlight = errors.New("max in-flight chunks must not be negative")
	ErrInvalidCadence     = errors.New("checkpoint cadence must not be negative")
	ErrInvalidInterval    = errors.New("progress interval must be positive")
	ErrInvalidLogFormat   = errors.New("log format must be text or json")
	ErrInvalidLogLevel    = errors.New("unknown log level")
	ErrNoInput            = errors.New("no input file given and none found")
	ErrOutputIsInput      = errors.New("output file must differ from input file")
)

// Config holds all mnemoscan settings.
type Config struct {
	Input       string `mapstructure:"input"`
	Output      string `mapstructure:"output"`
	Language    string `mapstructure:"language"`
	Workers     int    `mapstructure:"workers"`
	ChunkSize   int    `mapstructure:"chunk_size"`
	MaxInFlight int    `mapstructure:"max_in_flight"`
	ReadBuffer  string `mapstructure:"read_buffer"`
	WriteBuffer string `mapstructure:"write_buffer"`

	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`

	// Resolved values, filled in by LoadConfig.
	ReadBufferBytes  int               `mapstructure:"-"`
	WriteBufferBytes int               `mapstructure:"-"`
	Lang             mnemonic.Language `mapstructure:"-"`
}

// CheckpointConfig controls where and how often progress is saved.
type CheckpointConfig struct {
	Path string `mapstructure:"path"`
	// Every saves after this many committed lines (0 disables the line trigger).
	Every int64 `mapstructure:"every"`
	// Interval saves after this much wall-clock time (0 disables the time trigger).
	Interval time.Duration `mapstructure:"interval"`
	// Clear discards an existing checkpoint before scanning.
	Clear bool `mapstructure:"clear"`
}

// ProgressConfig controls the status line.
type ProgressConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Force draws the status line even when stderr is not a terminal.
	Force      bool          `mapstructure:"force"`
	Interval   time.Duration `mapstructure:"interval"`
	CountTotal bool          `mapstructure:"count_total"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds optional telemetry export settings.
type MetricsConfig struct {
	// Listen is the address of the Prometheus /metrics endpoint; empty disables it.
	Listen       string `mapstructure:"listen"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// LoadConfig reads configuration from configPath (or mnemoscan.yaml in the
// working directory or ~/.mnemoscan), the environment and any changed flags
// in flags that are listed in FlagKeys. flags may be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(filepath.Join(home, configDir))
		}
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindErr := bindFlags(viperCfg, flags)
	if bindErr != nil {
		return nil, bindErr
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// bindFlags attaches the flags named in FlagKeys to their config keys.
func bindFlags(viperCfg *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}

	for name, key := range FlagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}

		err := viperCfg.BindPFlag(key, flag)
		if err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}

	return nil
}

// validateConfig checks ranges and resolves derived values.
func validateConfig(config *Config) error {
	if config.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Workers)
	}

	if config.ChunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, config.ChunkSize)
	}

	if config.MaxInFlight < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxInFlight, config.MaxInFlight)
	}

	if config.Checkpoint.Every < 0 || config.Checkpoint.Interval < 0 {
		return fmt.Errorf("%w: every=%d interval=%s", ErrInvalidCadence,
			config.Checkpoint.Every, config.Checkpoint.Interval)
	}

	if config.Progress.Interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, config.Progress.Interval)
	}

	switch config.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	_, levelErr := ParseLogLevel(config.Logging.Level)
	if levelErr != nil {
		return levelErr
	}

	lang, err := mnemonic.ParseLanguage(config.Language)
	if err != nil {
		return err
	}

	config.Lang = lang

	config.ReadBufferBytes, err = units.ParseSize(config.ReadBuffer)
	if err != nil {
		return fmt.Errorf("read buffer: %w", err)
	}

	config.WriteBufferBytes, err = units.ParseSize(config.WriteBuffer)
	if err != nil {
		return fmt.Errorf("write buffer: %w", err)
	}

	return nil
}

// ResolvePaths fills in the input and output paths relative to dir when they
// are not configured. The input falls back to the first existing entry of
// DefaultInputCandidates; the output to output/<input stem>_valid.txt.
func (c *Config) ResolvePaths(dir string) error {
	if c.Input == "" {
		c.Input = DiscoverInput(dir)
		if c.Input == "" {
			return fmt.Errorf("%w (looked for %s in %s)", ErrNoInput,
				strings.Join(DefaultInputCandidates, ", "), dir)
		}
	}

	if c.Output == "" {
		c.Output = DeriveOutput(dir, c.Input)
	}

	inAbs, inErr := filepath.Abs(c.Input)
	outAbs, outErr := filepath.Abs(c.Output)

	if inErr == nil && outErr == nil && inAbs == outAbs {
		return fmt.Errorf("%w: %s", ErrOutputIsInput, c.Output)
	}

	return nil
}

// DiscoverInput returns the first candidate input file that exists in dir,
// or "" when there is none.
func DiscoverInput(dir string) string {
	for _, name := range DefaultInputCandidates {
		path := filepath.Join(dir, name)

		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path
		}
	}

	return ""
}

// DeriveOutput returns dir/output/<stem>_valid.txt for the given input.
// Compression and text extensions are stripped from the stem.
func DeriveOutput(dir, input string) string {
	stem := filepath.Base(input)

	for _, ext := range []string{".lz4", ".txt"} {
		stem = strings.TrimSuffix(stem, ext)
	}

	if stem == "" || stem == "." {
		stem = "input"
	}

	return filepath.Join(dir, outputDir, stem+outputSuffix)
}
