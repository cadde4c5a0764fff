package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/bnema/stellar-site/internal/adapters/web"
	"github.com/bnema/stellar-site/internal/application"
	"github.com/spf13/cobra"
)

func newServeCmd(app *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the site until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = app.cfg.Server.Addr
			}

			server, err := app.webServer(cmd.Context(), addr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if app.cfg.File != "" {
				app.logger.Info("config loaded", "file", app.cfg.File)
			}
			return server.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}

func (a *app) webServer(ctx context.Context, addr string) (*web.Server, error) {
	s, err := a.openStores()
	if err != nil {
		return nil, err
	}
	tokens, err := a.tokenCodec(ctx)
	if err != nil {
		return nil, err
	}
	if a.cfg.Widget.AppID == "" {
		a.logger.Warn("widget.app_id is not set; pages render without the messenger")
	}

	site := application.NewSiteService(s.contacts, a.cfg.Identity.Overrides, nil, a.logger.Named("site"))
	pool := web.NewTabPool(web.PoolConfig{
		Tab:          a.tabConfig(),
		IdleTTL:      a.cfg.Server.TabIdleTTL,
		PollInterval: a.cfg.Widget.PollInterval,
	}, web.PoolDeps{
		Storage:  s.visitors,
		Site:     site,
		Sessions: a.authSessions(s.users),
		Logger:   a.logger.Named("pool"),
	})

	server, err := web.NewServer(web.ServerConfig{
		Addr:         addr,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		PollInterval: a.cfg.Widget.PollInterval,
	}, web.ServerDeps{
		Pool:   pool,
		Site:   site,
		Tokens: tokens,
		Logger: a.logger,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("wire web server: %w", err)
	}
	return server, nil
}
