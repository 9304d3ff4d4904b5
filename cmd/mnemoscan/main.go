// Package main provides the entry point for the mnemoscan CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mnemoscan/cmd/mnemoscan/commands"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/exitcode"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "mnemoscan",
		Short: "Mnemoscan - bulk BIP-39 mnemonic validator",
		Long: `Mnemoscan checks large files of candidate mnemonic phrases and writes
the valid ones to an output file. Progress is checkpointed, so an interrupted
scan resumes where it stopped.

Commands:
  validate    Scan an input file for valid phrases
  checkpoint  Inspect or clear saved progress
  languages   List supported wordlists`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetFlagErrorFunc(commands.FlagError)

	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewCheckpointCommand())
	rootCmd.AddCommand(commands.NewLanguagesCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		code := commands.ExitCode(err)
		if code != exitcode.Interrupted {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

		os.Exit(code)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(os.Stdout, version.String("mnemoscan"))
		},
	}
}
