package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivikasavnish/go-flowrec/pkg/browser"
	"github.com/ivikasavnish/go-flowrec/pkg/config"
	"github.com/ivikasavnish/go-flowrec/pkg/controller"
	"github.com/ivikasavnish/go-flowrec/pkg/debugger"
	"github.com/ivikasavnish/go-flowrec/pkg/export"
	"github.com/ivikasavnish/go-flowrec/pkg/flowstore"
	"github.com/ivikasavnish/go-flowrec/pkg/recorder"
	"github.com/ivikasavnish/go-flowrec/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr     string
		startURL string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Launch a browser and serve the recorder API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if startURL != "" {
				cfg.Browser.StartURL = startURL
			}
			return serve(cmd.Context(), a, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&startURL, "url", "", "page to open on start (overrides browser.start_url)")
	return cmd
}

func serve(ctx context.Context, a *app, cfg *config.Config) error {
	logger := a.logger("serve")
	if cfg.Browser.Engine != config.EngineRod {
		logger.Warn("recording needs the rod engine; ignoring browser.engine", zap.String("engine", cfg.Browser.Engine))
	}

	store, err := openStore(ctx, a, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	b := browser.NewBrowser(browser.FromConfig(cfg.Browser), browser.WithLogger(a.logger("browser")))
	if err := b.Start(ctx); err != nil {
		return err
	}
	defer b.Stop()

	p, err := b.OpenPage(ctx, cfg.Browser.StartURL)
	if err != nil {
		return err
	}

	ctrl := controller.New(p,
		controller.WithLogger(a.logger("controller")),
		controller.WithStore(store),
		controller.WithExporter(export.NewDir(cfg.Export.Dir, nil, a.logger("export"))),
		controller.WithRecorderOptions(
			recorder.WithLogger(a.logger("recorder")),
			recorder.WithIdleFlush(cfg.Recorder.IdleFlush),
			recorder.WithScrollWindow(cfg.Recorder.ScrollWindow),
		),
		controller.WithExecutorOptions(executorOptions(a, cfg.Debugger)...),
	)
	srv := server.New(ctrl, server.WithLogger(a.logger("http")), server.WithNavigator(p))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Server.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		// Stop an active recording before the browser goes away.
		if err := ctrl.Close(); err != nil {
			logger.Warn("closing controller", zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, a *app, cfg config.StoreConfig) (flowstore.Store, error) {
	if cfg.Driver == config.DriverMemory {
		return flowstore.NewMemoryStore(), nil
	}
	return flowstore.OpenSQLite(ctx, cfg.Path, a.logger("store"))
}

func executorOptions(a *app, cfg config.DebuggerConfig) []debugger.ExecutorOption {
	return []debugger.ExecutorOption{
		debugger.WithExecutorLogger(a.logger("executor")),
		debugger.WithSettleDelay(cfg.SettleDelay),
		debugger.WithScrollDuration(cfg.ScrollDuration),
		debugger.WithWaitPoll(cfg.WaitPoll),
		debugger.WithWaitTimeout(cfg.WaitTimeout),
	}
}
