package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/checkpoint"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/dispatch"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/mnemonic"
)

// Config file lookup and environment.
const (
	configName = "mnemoscan"
	configDir  = ".mnemoscan"
	envPrefix  = "MNEMOSCAN"
)

// Derived output location.
const (
	outputDir    = "output"
	outputSuffix = "_valid.txt"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Scan defaults.
const (
	DefaultCheckpointEvery    = 10_000
	DefaultCheckpointInterval = 5 * time.Second
	DefaultProgressInterval   = time.Second
	DefaultReadBuffer         = "1MiB"
	DefaultWriteBuffer        = "256KiB"
)

// DefaultInputCandidates are tried in order when no input is configured.
var DefaultInputCandidates = []string{
	"wordlist.txt", "wordlist",
	"mnemonics.txt", "mnemonics",
	"seeds.txt", "seeds",
	"input.txt", "input",
	"input/mnemonics.txt",
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"input":               "input",
	"output":              "output",
	"language":            "language",
	"workers":             "workers",
	"chunk-size":          "chunk_size",
	"max-in-flight":       "max_in_flight",
	"read-buffer":         "read_buffer",
	"write-buffer":        "write_buffer",
	"checkpoint":          "checkpoint.path",
	"checkpoint-every":    "checkpoint.every",
	"checkpoint-interval": "checkpoint.interval",
	"clear-checkpoint":    "checkpoint.clear",
	"progress":            "progress.enabled",
	"force-progress":      "progress.force",
	"progress-interval":   "progress.interval",
	"count-total":         "progress.count_total",
	"log-level":           "logging.level",
	"log-format":          "logging.format",
	"metrics-listen":      "metrics.listen",
	"otlp-endpoint":       "metrics.otlp_endpoint",
	"otlp-insecure":       "metrics.otlp_insecure",
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Scan defaults.
	viperCfg.SetDefault("input", "")
	viperCfg.SetDefault("output", "")
	viperCfg.SetDefault("language", string(mnemonic.DefaultLanguage))
	viperCfg.SetDefault("workers", 0)
	viperCfg.SetDefault("chunk_size", dispatch.DefaultChunkSize)
	viperCfg.SetDefault("max_in_flight", 0)
	viperCfg.SetDefault("read_buffer", DefaultReadBuffer)
	viperCfg.SetDefault("write_buffer", DefaultWriteBuffer)

	// Checkpoint defaults.
	viperCfg.SetDefault("checkpoint.path", checkpoint.DefaultPath())
	viperCfg.SetDefault("checkpoint.every", DefaultCheckpointEvery)
	viperCfg.SetDefault("checkpoint.interval", DefaultCheckpointInterval)
	viperCfg.SetDefault("checkpoint.clear", false)

	// Progress defaults.
	viperCfg.SetDefault("progress.enabled", true)
	viperCfg.SetDefault("progress.force", false)
	viperCfg.SetDefault("progress.interval", DefaultProgressInterval)
	viperCfg.SetDefault("progress.count_total", true)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", LogFormatText)

	// Metrics defaults.
	viperCfg.SetDefault("metrics.listen", "")
	viperCfg.SetDefault("metrics.otlp_endpoint", "")
	viperCfg.SetDefault("metrics.otlp_insecure", false)
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}
}
