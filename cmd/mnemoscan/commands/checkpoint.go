package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/checkpoint"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/config"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/persist"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/safeconv"
)

// FormatTable renders a checkpoint as a table; other formats come from persist.
const FormatTable = "table"

// checkpointFlags are shared by the checkpoint subcommands.
type checkpointFlags struct {
	configPath string
}

func (cf *checkpointFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cf.configPath, "config", "", "Config file (default: ./mnemoscan.yaml or ~/.mnemoscan/mnemoscan.yaml)")
	cmd.Flags().String("checkpoint", "", "Checkpoint file (default: ~/.mnemoscan/checkpoint.json)")
}

func (cf *checkpointFlags) store(cmd *cobra.Command) (*checkpoint.Store, error) {
	cfg, err := config.LoadConfig(cf.configPath, cmd.Flags())
	if err != nil {
		return nil, usageError(err)
	}

	return checkpoint.NewStore(cfg.Checkpoint.Path, nil), nil
}

// NewCheckpointCommand creates the checkpoint command group.
func NewCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or clear saved scan progress",
	}

	cmd.AddCommand(newCheckpointShowCommand())
	cmd.AddCommand(newCheckpointClearCommand())

	return cmd
}

func newCheckpointShowCommand() *cobra.Command {
	cf := &checkpointFlags{}

	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved checkpoint",
		Args:  maxArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := cf.store(cmd)
			if err != nil {
				return err
			}

			rec, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if rec == nil {
				fmt.Fprintf(out, "No usable checkpoint at %s\n", store.Path())

				return nil
			}

			return writeRecord(out, format, rec)
		},
	}

	cf.register(cmd)
	cmd.Flags().StringVar(&format, "format", FormatTable, "Output format: table, json, yaml")

	return cmd
}

func writeRecord(w io.Writer, format string, rec *checkpoint.Record) error {
	if format == FormatTable {
		return writeRecordTable(w, rec)
	}

	codec, err := persist.CodecFor(format)
	if err != nil {
		return usageError(err)
	}

	err = codec.Encode(w, rec)
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}

	return nil
}

func writeRecordTable(w io.Writer, rec *checkpoint.Record) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)

	tbl.AppendHeader(table.Row{"Checkpoint", fmt.Sprintf("v%d", rec.Version)})
	tbl.AppendRow(table.Row{"Input", rec.Input.Path})
	tbl.AppendRow(table.Row{"Input size", humanize.IBytes(safeconv.ClampUint64(rec.Input.Size))})
	tbl.AppendRow(table.Row{"Language", rec.Language})
	tbl.AppendRow(table.Row{"Committed line", humanize.Comma(rec.Committed)})
	tbl.AppendRow(table.Row{"Processed", humanize.Comma(rec.Processed)})
	tbl.AppendRow(table.Row{"Valid", humanize.Comma(rec.Valid)})
	tbl.AppendRow(table.Row{"Output", rec.OutputPath})
	tbl.AppendRow(table.Row{"Output size", humanize.IBytes(safeconv.ClampUint64(rec.OutputSize))})
	tbl.AppendRow(table.Row{"Updated", fmt.Sprintf("%s (%s)",
		rec.UpdatedAt.Format(time.RFC3339), humanize.Time(rec.UpdatedAt))})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}

	return nil
}

func newCheckpointClearCommand() *cobra.Command {
	cf := &checkpointFlags{}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved checkpoint so the next scan starts over",
		Args:  maxArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := cf.store(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if !store.Exists() {
				fmt.Fprintf(out, "No checkpoint at %s\n", store.Path())

				return nil
			}

			err = store.Clear()
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Removed checkpoint %s\n", store.Path())

			return nil
		},
	}

	cf.register(cmd)

	return cmd
}
