package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sessionrender "github.com/bnema/stellar-site/internal/adapters/render/session"
	"github.com/bnema/stellar-site/internal/application"
	"github.com/bnema/stellar-site/internal/domain"
	"github.com/spf13/cobra"
)

const defaultStaleAfter = 24 * time.Hour

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and edit stored visitor sessions",
	}

	cmd.AddCommand(
		newSessionShowCmd(app),
		newSessionIdentifyCmd(app),
		newSessionClearCmd(app),
	)
	return cmd
}

func newSessionShowCmd(app *app) *cobra.Command {
	var (
		asJSON     bool
		staleAfter time.Duration
	)

	cmd := &cobra.Command{
		Use:   "show <visitor-id>...",
		Short: "Show the identity stored for visitors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.visitorService()
			if err != nil {
				return err
			}

			statuses := make([]application.SessionStatus, 0, len(args))
			for _, visitorID := range args {
				status, err := svc.GetStatus(cmd.Context(), visitorID)
				switch {
				case errors.Is(err, domain.ErrSnapshotNotFound):
					statuses = append(statuses, application.SessionStatus{VisitorID: visitorID})
				case err != nil:
					return err
				default:
					statuses = append(statuses, status)
				}
			}

			return writeSessionsOutput(cmd, app, statuses, staleAfter, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print sessions as JSON")
	cmd.Flags().DurationVar(&staleAfter, "stale-after", defaultStaleAfter, "mark sessions without a page view for this long as inactive")
	return cmd
}

func newSessionIdentifyCmd(app *app) *cobra.Command {
	var (
		userID string
		email  string
		name   string
		attrs  []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "identify <visitor-id>",
		Short: "Merge an identity into a visitor's stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			custom, err := parseAttributes(attrs)
			if err != nil {
				return err
			}

			svc, err := app.visitorService()
			if err != nil {
				return err
			}

			status, err := svc.Identify(cmd.Context(), application.IdentifyCommand{
				VisitorID: args[0],
				Identity: domain.PartialIdentity{
					UserID:           userID,
					Email:            email,
					Name:             name,
					CreatedAt:        app.now().Unix(),
					CustomAttributes: custom,
				},
			})
			if err != nil {
				return err
			}

			return writeSessionsOutput(cmd, app, []application.SessionStatus{status}, defaultStaleAfter, asJSON)
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "widget user id")
	cmd.Flags().StringVar(&email, "email", "", "visitor email")
	cmd.Flags().StringVar(&name, "name", "", "visitor name")
	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "custom attribute as key=value (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the session as JSON")
	return cmd
}

func newSessionClearCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <visitor-id>",
		Short: "Forget the identity stored for a visitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.visitorService()
			if err != nil {
				return err
			}
			if err := svc.Clear(cmd.Context(), application.ClearSessionCommand{VisitorID: args[0]}); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleared session for %s\n", args[0])
			return err
		},
	}
}

func writeSessionsOutput(cmd *cobra.Command, app *app, statuses []application.SessionStatus, staleAfter time.Duration, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	rendered, err := app.sessionRender(statuses, sessionrender.RenderOptions{
		Now:        app.now(),
		StaleAfter: staleAfter,
	})
	if err != nil {
		return fmt.Errorf("render sessions: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

// parseAttributes reads key=value pairs; integer values are stored as
// numbers.
func parseAttributes(pairs []string) (domain.Attributes, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	attrs := make(domain.Attributes, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q: want key=value", pair)
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			attrs[key] = n
			continue
		}
		attrs[key] = value
	}
	return attrs, nil
}
