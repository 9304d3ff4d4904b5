package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/mnemonic"
)

// NewLanguagesCommand creates the languages command.
func NewLanguagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported wordlist languages",
		Args:  maxArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			for _, lang := range mnemonic.Languages() {
				if lang == mnemonic.DefaultLanguage {
					fmt.Fprintf(out, "%s (default)\n", lang)

					continue
				}

				fmt.Fprintln(out, lang)
			}

			return nil
		},
	}
}
