package cmd

import (
	"fmt"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/spf13/cobra"
)

func newPageNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "page-name <url>...",
		Short: "Print the page name recorded for URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, rawURL := range args {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), domain.FormatPageName(rawURL)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
