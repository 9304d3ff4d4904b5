package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Sumatoshi-tech/mnemoscan/internal/scan"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/cancel"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/checkpoint"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/config"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/dispatch"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/mnemonic"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/observability"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/safeconv"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/version"
)

// positionalKeys are the flags filled by validate's positional arguments.
var positionalKeys = []string{"input", "output"}

type terminalCheck func(w io.Writer) bool

// ValidateCommand holds dependencies for the validate command.
type ValidateCommand struct {
	configPath string

	workDir    func() (string, error)
	isTerminal terminalCheck
	cancelOpts []cancel.Option
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return newValidateCommandWithDeps(os.Getwd, writerIsTerminal)
}

func newValidateCommandWithDeps(
	workDir func() (string, error),
	isTerminal terminalCheck,
	cancelOpts ...cancel.Option,
) *cobra.Command {
	vc := &ValidateCommand{
		workDir:    workDir,
		isTerminal: isTerminal,
		cancelOpts: cancelOpts,
	}

	cmd := &cobra.Command{
		Use:   "validate [input [output]]",
		Short: "Scan an input file for valid mnemonic phrases",
		Long: `Read candidate phrases, one per line, and append every valid BIP-39
mnemonic to the output file. On Ctrl-C the scan finishes the chunks in flight,
saves a checkpoint and exits; running the same command again resumes.`,
		Args: maxArgs(len(positionalKeys)),
		RunE: vc.run,
	}

	flags := cmd.Flags()
	flags.StringVar(&vc.configPath, "config", "", "Config file (default: ./mnemoscan.yaml or ~/.mnemoscan/mnemoscan.yaml)")
	flags.StringP("input", "i", "", "Input file, one phrase per line (default: first of wordlist.txt, mnemonics.txt, ...)")
	flags.StringP("output", "o", "", "Output file for valid phrases (default: output/<input>_valid.txt)")
	flags.StringP("language", "l", string(mnemonic.DefaultLanguage), "Wordlist language (see 'mnemoscan languages')")
	flags.IntP("workers", "w", 0, "Number of validation workers (0 = CPU count)")
	flags.Int("chunk-size", dispatch.DefaultChunkSize, "Lines per work chunk")
	flags.Int("max-in-flight", 0, "Chunks validated ahead of the writer (0 = workers*2)")
	flags.String("read-buffer", config.DefaultReadBuffer, "Input read buffer size (e.g. '1MiB')")
	flags.String("write-buffer", config.DefaultWriteBuffer, "Output write buffer size (e.g. '256KiB')")

	flags.String("checkpoint", "", "Checkpoint file (default: ~/.mnemoscan/checkpoint.json)")
	flags.Int64("checkpoint-every", config.DefaultCheckpointEvery, "Save progress every N lines (0 = disabled)")
	flags.Duration("checkpoint-interval", config.DefaultCheckpointInterval, "Save progress at least this often (0 = disabled)")
	flags.Bool("clear-checkpoint", false, "Discard saved progress and start from the first line")

	flags.Bool("progress", true, "Show a live status line on stderr")
	flags.Bool("force-progress", false, "Show the status line even when stderr is not a terminal")
	flags.Duration("progress-interval", config.DefaultProgressInterval, "Status line refresh interval")
	flags.Bool("count-total", true, "Count input lines first to show percent and ETA")

	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", config.LogFormatText, "Log format: text, json")
	flags.String("metrics-listen", "", "Serve Prometheus metrics on this address (e.g. ':9090')")
	flags.String("otlp-endpoint", "", "Export traces and metrics to this OTLP gRPC endpoint")
	flags.Bool("otlp-insecure", false, "Disable TLS for the OTLP connection")

	return cmd
}

func (vc *ValidateCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := vc.loadConfig(cmd, args)
	if err != nil {
		return err
	}

	providers, obsCfg, err := initObservability(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer shutdownObservability(providers, obsCfg)

	logger := providers.Logger

	if cfg.Metrics.Listen != "" {
		srv, srvErr := observability.StartMetricsServer(cfg.Metrics.Listen, providers.MetricsHandler, logger)
		if srvErr != nil {
			return srvErr
		}

		defer func() {
			closeErr := srv.Close(context.Background())
			if closeErr != nil {
				logger.Warn("metrics: server close failed", "error", closeErr)
			}
		}()
	}

	metrics, err := observability.NewScanMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	ctrl := cancel.New(logger, vc.cancelOpts...)

	ctx, release := ctrl.Watch(cmd.Context())
	defer release()

	opts := scan.Options{
		InputPath:  cfg.Input,
		OutputPath: cfg.Output,
		Language:   cfg.Lang,
		Store:      checkpoint.NewStore(cfg.Checkpoint.Path, logger),
		Dispatch: dispatch.Config{
			Workers:     cfg.Workers,
			ChunkSize:   cfg.ChunkSize,
			MaxInFlight: cfg.MaxInFlight,
		},
		CheckpointEvery:    cfg.Checkpoint.Every,
		CheckpointInterval: cfg.Checkpoint.Interval,
		ClearCheckpoint:    cfg.Checkpoint.Clear,
		CountTotal:         cfg.Progress.CountTotal,
		ReadBuffer:         cfg.ReadBufferBytes,
		WriteBuffer:        cfg.WriteBufferBytes,
		ProgressInterval:   cfg.Progress.Interval,
		Logger:             logger,
		Metrics:            metrics,
		Tracer:             providers.Tracer,
	}

	stderr := cmd.ErrOrStderr()
	if cfg.Progress.Enabled && (cfg.Progress.Force || vc.isTerminal(stderr)) {
		opts.Progress = stderr
	}

	logger.InfoContext(ctx, "scan: starting",
		"input", cfg.Input, "output", cfg.Output, "language", cfg.Lang, "checkpoint", cfg.Checkpoint.Path)

	summary, err := scan.Run(ctx, opts)
	if err != nil {
		return err
	}

	err = renderSummary(cmd.OutOrStdout(), summary)
	if err != nil {
		return err
	}

	if summary.Status == scan.StatusInterrupted {
		fmt.Fprintf(cmd.OutOrStdout(), "Progress saved to %s; run the same command again to resume.\n",
			cfg.Checkpoint.Path)

		return fmt.Errorf("%w at line %d", ErrInterrupted, summary.Committed)
	}

	return nil
}

// loadConfig merges positional arguments into the flags, loads the
// configuration and fills in default input and output paths.
func (vc *ValidateCommand) loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	flags := cmd.Flags()

	for i, arg := range args {
		err := flags.Set(positionalKeys[i], arg)
		if err != nil {
			return nil, usageError(err)
		}
	}

	cfg, err := config.LoadConfig(vc.configPath, flags)
	if err != nil {
		return nil, usageError(err)
	}

	dir, err := vc.workDir()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	err = cfg.ResolvePaths(dir)
	if err != nil {
		return nil, usageError(err)
	}

	return cfg, nil
}

func initObservability(cfg *config.Config, logOutput io.Writer) (observability.Providers, observability.Config, error) {
	level, err := config.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Providers{}, observability.Config{}, usageError(err)
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON
	obsCfg.LogOutput = logOutput
	obsCfg.OTLPEndpoint = cfg.Metrics.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Metrics.OTLPInsecure
	obsCfg.Prometheus = cfg.Metrics.Listen != ""

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return observability.Providers{}, obsCfg, fmt.Errorf("init observability: %w", err)
	}

	return providers, obsCfg, nil
}

func shutdownObservability(providers observability.Providers, obsCfg observability.Config) {
	timeout := time.Duration(obsCfg.ShutdownTimeoutSec) * time.Second

	ctx, cancelFn := context.WithTimeout(context.Background(), timeout)
	defer cancelFn()

	err := providers.Shutdown(ctx)
	if err != nil {
		providers.Logger.Warn("observability: shutdown failed", "error", err)
	}
}

// writerIsTerminal reports whether w is a terminal file descriptor.
func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(safeconv.MustUintptrToInt(f.Fd()))
}
