package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bnema/stellar-site/internal/adapters/widget/probe"
	"github.com/bnema/stellar-site/internal/domain"
	"github.com/spf13/cobra"
)

func newProbeCmd(app *app) *cobra.Command {
	var (
		remoteURL string
		timeout   time.Duration
		asJSON    bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Open a page in headless Chrome and report the widget state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := probe.Config{RemoteURL: remoteURL, Timeout: timeout}

			var result probe.Result
			run := func(ctx context.Context) error {
				var err error
				result, err = app.probe(ctx, cfg, args[0])
				return err
			}

			var err error
			if quiet || asJSON {
				err = run(cmd.Context())
			} else {
				err = runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Probing "+args[0]+"...", run)
			}
			if err != nil {
				return fmt.Errorf("probe %s: %w", args[0], err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return writeProbeResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&remoteURL, "remote", "", "DevTools WebSocket URL of a running Chrome")
	cmd.Flags().DurationVar(&timeout, "timeout", probe.DefaultTimeout, "how long to wait for the widget")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "do not show progress")
	return cmd
}

func writeProbeResult(w io.Writer, result probe.Result) error {
	entryPoint := "missing"
	if result.HasEntryPoint {
		entryPoint = "installed"
	}

	lines := []string{
		fmt.Sprintf("page:        %s", domain.FormatPageName(result.URL)),
		fmt.Sprintf("title:       %s", result.Title),
		fmt.Sprintf("entry point: %s", entryPoint),
		fmt.Sprintf("script:      %s", orNone(result.ScriptSrc)),
		fmt.Sprintf("app id:      %s", orNone(fmt.Sprint(result.Settings["app_id"]))),
		fmt.Sprintf("user id:     %s", orNone(fmt.Sprint(result.Settings["user_id"]))),
		fmt.Sprintf("elapsed:     %s", result.Elapsed.Round(time.Millisecond)),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func orNone(value string) string {
	if value == "" || value == "<nil>" {
		return "none"
	}
	return value
}
