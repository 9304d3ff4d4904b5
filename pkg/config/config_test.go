package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/config"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/mnemonic"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/units"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mnemoscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""), nil)
	require.NoError(t, err)

	assert.Equal(t, mnemonic.English, cfg.Lang)
	assert.Zero(t, cfg.Workers)
	assert.Equal(t, 4096, cfg.ChunkSize)
	assert.Equal(t, units.MiB, cfg.ReadBufferBytes)
	assert.Equal(t, 256*units.KiB, cfg.WriteBufferBytes)
	assert.Equal(t, int64(config.DefaultCheckpointEvery), cfg.Checkpoint.Every)
	assert.Equal(t, config.DefaultCheckpointInterval, cfg.Checkpoint.Interval)
	assert.Equal(t, "checkpoint.json", filepath.Base(cfg.Checkpoint.Path))
	assert.True(t, cfg.Progress.Enabled)
	assert.True(t, cfg.Progress.CountTotal)
	assert.Equal(t, time.Second, cfg.Progress.Interval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, config.LogFormatText, cfg.Logging.Format)
	assert.Empty(t, cfg.Metrics.Listen)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
input: seeds.txt
language: Spanish
workers: 3
chunk_size: 128
read_buffer: 64KiB
checkpoint:
  path: /tmp/ckpt.json
  every: 500
  interval: 2m
progress:
  interval: 250ms
  count_total: false
logging:
  level: debug
  format: json
metrics:
  listen: ":9464"
`)

	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "seeds.txt", cfg.Input)
	assert.Equal(t, mnemonic.Spanish, cfg.Lang)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 128, cfg.ChunkSize)
	assert.Equal(t, 64*units.KiB, cfg.ReadBufferBytes)
	assert.Equal(t, "/tmp/ckpt.json", cfg.Checkpoint.Path)
	assert.Equal(t, int64(500), cfg.Checkpoint.Every)
	assert.Equal(t, 2*time.Minute, cfg.Checkpoint.Interval)
	assert.Equal(t, 250*time.Millisecond, cfg.Progress.Interval)
	assert.False(t, cfg.Progress.CountTotal)
	assert.Equal(t, config.LogFormatJSON, cfg.Logging.Format)
	assert.Equal(t, ":9464", cfg.Metrics.Listen)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("MNEMOSCAN_WORKERS", "6")
	t.Setenv("MNEMOSCAN_CHECKPOINT_PATH", "/var/tmp/env.json")
	t.Setenv("MNEMOSCAN_LOGGING_LEVEL", "warn")

	cfg, err := config.LoadConfig(writeConfig(t, "workers: 2\n"), nil)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Workers, "environment overrides file")
	assert.Equal(t, "/var/tmp/env.json", cfg.Checkpoint.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfig_FlagsOverrideEverything(t *testing.T) {
	t.Setenv("MNEMOSCAN_CHUNK_SIZE", "64")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("chunk-size", 0, "")
	flags.Bool("clear-checkpoint", false, "")
	flags.String("language", "", "")
	flags.Int("unrelated", 0, "")

	require.NoError(t, flags.Parse([]string{"--chunk-size=32", "--clear-checkpoint"}))

	cfg, err := config.LoadConfig(writeConfig(t, "chunk_size: 16\nlanguage: french\n"), flags)
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.ChunkSize)
	assert.True(t, cfg.Checkpoint.Clear)
	assert.Equal(t, mnemonic.French, cfg.Lang, "unchanged flag does not shadow the file")
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "negative workers", content: "workers: -1", wantErr: config.ErrInvalidWorkers},
		{name: "zero chunk", content: "chunk_size: 0", wantErr: config.ErrInvalidChunkSize},
		{name: "negative in flight", content: "max_in_flight: -2", wantErr: config.ErrInvalidMaxInFlight},
		{name: "negative cadence", content: "checkpoint:\n  every: -1", wantErr: config.ErrInvalidCadence},
		{name: "zero progress interval", content: "progress:\n  interval: 0s", wantErr: config.ErrInvalidInterval},
		{name: "bad log format", content: "logging:\n  format: xml", wantErr: config.ErrInvalidLogFormat},
		{name: "bad log level", content: "logging:\n  level: loud", wantErr: config.ErrInvalidLogLevel},
		{name: "bad language", content: "language: klingon", wantErr: mnemonic.ErrUnknownLanguage},
		{name: "bad buffer", content: "read_buffer: huge", wantErr: units.ErrInvalidSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content), nil)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestResolvePaths_DiscoversInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seeds"), []byte("x\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.txt"), []byte("x\n"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "mnemonics.txt"), 0o750))

	cfg := &config.Config{}
	require.NoError(t, cfg.ResolvePaths(dir))

	assert.Equal(t, filepath.Join(dir, "seeds"), cfg.Input, "directories are skipped")
	assert.Equal(t, filepath.Join(dir, "output", "seeds_valid.txt"), cfg.Output)
}

func TestResolvePaths_NoInput(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	require.ErrorIs(t, cfg.ResolvePaths(t.TempDir()), config.ErrNoInput)
}

func TestResolvePaths_OutputIsInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := &config.Config{Input: filepath.Join(dir, "a.txt"), Output: filepath.Join(dir, ".", "a.txt")}

	require.ErrorIs(t, cfg.ResolvePaths(dir), config.ErrOutputIsInput)
}

func TestDeriveOutput(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join("out", "output", "batch_valid.txt"), config.DeriveOutput("out", "/data/batch.txt.lz4"))
	assert.Equal(t, filepath.Join(".", "output", "seeds_valid.txt"), config.DeriveOutput(".", "seeds"))
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	level, err := config.ParseLogLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = config.ParseLogLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = config.ParseLogLevel("trace")
	require.ErrorIs(t, err, config.ErrInvalidLogLevel)
}
