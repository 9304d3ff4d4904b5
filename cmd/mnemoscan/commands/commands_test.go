package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mnemoscan/internal/scan"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/cancel"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/checkpoint"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/exitcode"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/linesource"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/persist"
)

const (
	validPhrase   = "legal winner thank year wave sausage worth useful legal winner thank yellow"
	invalidPhrase = "legal winner thank year wave sausage worth useful legal winner thank thank"
)

// syncBuffer is a bytes.Buffer safe for the progress goroutine and the logger.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func noSignals() cancel.Option {
	return cancel.WithNotify(func(chan<- os.Signal, ...os.Signal) {}, func(chan<- os.Signal) {})
}

type harness struct {
	dir        string
	checkpoint string
	stdout     *syncBuffer
	stderr     *syncBuffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()

	return &harness{
		dir:        dir,
		checkpoint: filepath.Join(dir, "state", "checkpoint.json"),
		stdout:     &syncBuffer{},
		stderr:     &syncBuffer{},
	}
}

func (h *harness) writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func (h *harness) execute(ctx context.Context, cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	cmd.SetOut(h.stdout)
	cmd.SetErr(h.stderr)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	return cmd.ExecuteContext(ctx)
}

func (h *harness) validate(ctx context.Context, terminal bool, args ...string) error {
	cmd := newValidateCommandWithDeps(
		func() (string, error) { return h.dir, nil },
		func(io.Writer) bool { return terminal },
		noSignals(),
	)

	args = append(args, "--checkpoint", h.checkpoint, "--log-level", "error", "--config", h.configFile())

	return h.execute(ctx, cmd, args...)
}

// configFile returns an empty config file so no user config is picked up.
func (h *harness) configFile() string {
	path := filepath.Join(h.dir, "mnemoscan.yaml")

	_, err := os.Stat(path)
	if err != nil {
		_ = os.WriteFile(path, []byte("{}\n"), 0o600)
	}

	return path
}

func TestValidate_WritesValidPhrases(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	input := h.writeFile(t, "phrases.txt", validPhrase+"\n"+invalidPhrase+"\n\n"+validPhrase+"\n")

	err := h.validate(context.Background(), false, input)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(h.dir, "output", "phrases_valid.txt"))
	require.NoError(t, err)

	assert.Equal(t, validPhrase+"\n"+validPhrase+"\n", string(data))
	assert.Contains(t, h.stdout.String(), "completed")
	assert.NoFileExists(t, h.checkpoint)
}

func TestValidate_ExplicitOutputAndDiscoveredInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.writeFile(t, "mnemonics.txt", validPhrase+"\n")

	output := filepath.Join(h.dir, "found.txt")

	err := h.validate(context.Background(), false, "--output", output, "--workers", "3", "--chunk-size", "1")
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, validPhrase+"\n", string(data))
}

func TestValidate_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no input found", args: nil},
		{name: "negative workers", args: []string{"in.txt", "--workers", "-1"}},
		{name: "bad log format", args: []string{"in.txt", "--log-format", "xml"}},
		{name: "unknown language", args: []string{"in.txt", "--language", "klingon"}},
		{name: "bad buffer size", args: []string{"in.txt", "--read-buffer", "lots"}},
		{name: "too many args", args: []string{"a", "b", "c"}},
		{name: "output equals input", args: []string{"in.txt", "in.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			args := make([]string, 0, len(tt.args))

			for _, arg := range tt.args {
				if arg == "in.txt" {
					arg = h.writeFile(t, "in.txt", validPhrase+"\n")
				}

				args = append(args, arg)
			}

			err := h.validate(context.Background(), false, args...)
			require.ErrorIs(t, err, ErrUsage)
			assert.Equal(t, exitcode.Usage, ExitCode(err))
		})
	}
}

func TestValidate_InputMismatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	input := h.writeFile(t, "in.txt", validPhrase+"\n")

	store := checkpoint.NewStore(h.checkpoint, nil)
	require.NoError(t, store.Save(context.Background(), checkpoint.Record{
		Input:     checkpoint.InputIdentity{Path: "/elsewhere/in.txt", Size: 1, Sample: "0123456789abcdef"},
		Committed: 1,
		Processed: 1,
	}))

	err := h.validate(context.Background(), false, input)
	require.ErrorIs(t, err, scan.ErrInputMismatch)
	assert.Equal(t, exitcode.InputMismatch, ExitCode(err))

	err = h.validate(context.Background(), false, input, "--clear-checkpoint")
	require.NoError(t, err)
}

func TestValidate_InterruptedBeforeStart(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	input := h.writeFile(t, "in.txt", validPhrase+"\n")

	ctx, cancelFn := context.WithCancel(context.Background())
	cancelFn()

	err := h.validate(ctx, false, input)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, exitcode.Interrupted, ExitCode(err))
	assert.Contains(t, h.stdout.String(), "interrupted")
	assert.Contains(t, h.stdout.String(), "run the same command again")
}

func TestValidate_ProgressLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		terminal bool
		args     []string
		expected bool
	}{
		{name: "terminal", terminal: true, expected: true},
		{name: "not a terminal", terminal: false, expected: false},
		{name: "forced", terminal: false, args: []string{"--force-progress"}, expected: true},
		{name: "disabled", terminal: true, args: []string{"--progress=false"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			input := h.writeFile(t, "in.txt", validPhrase+"\n")

			err := h.validate(context.Background(), tt.terminal, append([]string{input}, tt.args...)...)
			require.NoError(t, err)

			assert.Equal(t, tt.expected, strings.Contains(h.stderr.String(), "lines/s"))
		})
	}
}

func TestCheckpointShowAndClear(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	store := checkpoint.NewStore(h.checkpoint, nil)

	require.NoError(t, store.Save(context.Background(), checkpoint.Record{
		Input:      checkpoint.InputIdentity{Path: "/data/in.txt", Size: 2048, Sample: "0123456789abcdef"},
		Language:   "english",
		Committed:  42,
		Offset:     512,
		Processed:  40,
		Valid:      3,
		OutputPath: "/data/output/in_valid.txt",
		OutputSize: 230,
		UpdatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}))

	formats := []struct {
		format   string
		contains string
	}{
		{format: FormatTable, contains: "Committed line"},
		{format: persist.FormatJSON, contains: `"committed_ordinal": 42`},
		{format: persist.FormatYAML, contains: "committed_ordinal: 42"},
	}

	for _, f := range formats {
		out := &syncBuffer{}
		cmd := NewCheckpointCommand()
		cmd.SetArgs([]string{"show", "--checkpoint", h.checkpoint, "--config", h.configFile(), "--format", f.format})
		cmd.SetOut(out)
		cmd.SetErr(io.Discard)

		require.NoError(t, cmd.Execute(), f.format)
		assert.Contains(t, out.String(), f.contains, f.format)
	}

	err := h.execute(context.Background(), NewCheckpointCommand(),
		"show", "--checkpoint", h.checkpoint, "--config", h.configFile(), "--format", "xml")
	require.ErrorIs(t, err, persist.ErrUnknownFormat)
	assert.Equal(t, exitcode.Usage, ExitCode(err))

	err = h.execute(context.Background(), NewCheckpointCommand(),
		"clear", "--checkpoint", h.checkpoint, "--config", h.configFile())
	require.NoError(t, err)
	assert.Contains(t, h.stdout.String(), "Removed checkpoint")
	assert.False(t, store.Exists())

	err = h.execute(context.Background(), NewCheckpointCommand(),
		"show", "--checkpoint", h.checkpoint, "--config", h.configFile())
	require.NoError(t, err)
	assert.Contains(t, h.stdout.String(), "No usable checkpoint")
}

func TestLanguagesCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	require.NoError(t, h.execute(context.Background(), NewLanguagesCommand()))

	out := h.stdout.String()
	assert.Contains(t, out, "english (default)")
	assert.Contains(t, out, "chinese_simplified")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 9)
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := renderSummary(&buf, scan.Summary{
		Status:       scan.StatusCompleted,
		Input:        "in.txt",
		Output:       "out.txt",
		Total:        12_000,
		Committed:    12_000,
		Processed:    11_500,
		Valid:        1_234,
		RunProcessed: 6_000,
		RunValid:     600,
		Resumed:      true,
		ResumedFrom:  6_000,
		SeekMode:     linesource.SeekOffset,
		Checkpoints:  2,
		Elapsed:      3 * time.Second,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "12,000")
	assert.Contains(t, out, "1,234")
	assert.Contains(t, out, "6,000 (offset)")
	assert.Contains(t, out, "2.0k lines/s")
	assert.Contains(t, out, "00:03")
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil", err: nil, expected: exitcode.OK},
		{name: "usage", err: usageError(assert.AnError), expected: exitcode.Usage},
		{name: "mismatch", err: scan.ErrInputMismatch, expected: exitcode.InputMismatch},
		{name: "interrupted", err: ErrInterrupted, expected: exitcode.Interrupted},
		{name: "other", err: assert.AnError, expected: exitcode.Failure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, ExitCode(tt.err))
		})
	}
}
