package command

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/mtlsclient-go/internal/infra/credwatch"
	"github.com/yndnr/mtlsclient-go/internal/infra/shutdown"
	"github.com/yndnr/mtlsclient-go/internal/telemetry/metric"
	"github.com/yndnr/mtlsclient-go/pkg/mtls"
)

// shutdownTimeout bounds cleanup after a signal.
const shutdownTimeout = 10 * time.Second

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Rebuild the client whenever credential files change and serve admin endpoints",
		Description: "Only file locators are watched. The admin server exposes /healthz, " +
			"/credentials, /reload and /metrics.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Admin server address",
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period after a change before rebuilding",
			},
			&cli.DurationFlag{
				Name:  "min-interval",
				Usage: "Minimum time between rebuilds",
			},
		},
		Action: watch,
	}
}

func watch(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	cfg, err := e.mtlsConfig()
	if err != nil {
		return err
	}

	registry := metric.NewRegistry()
	build := func(ctx context.Context, cfg mtls.Config) (*mtls.Client, error) {
		return mtls.Build(ctx, cfg, e.buildOptions(mtls.WithObserver(registry))...)
	}

	opts := []credwatch.WatcherOption{
		credwatch.WithLogger(e.logger),
		credwatch.WithOnReload(func(_ *mtls.Client, err error) { registry.ObserveReload(err) }),
	}
	if d := e.profile.Watch.Debounce; d > 0 {
		opts = append(opts, credwatch.WithDebounce(d))
	}
	if d := e.profile.Watch.MinInterval; d > 0 {
		opts = append(opts, credwatch.WithMinInterval(d))
	}

	watcher, err := credwatch.NewWatcher(c.Context, cfg, build, opts...)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	ln, err := net.Listen("tcp", e.profile.Watch.Listen)
	if err != nil {
		watcher.Stop()
		return fmt.Errorf("watch: listen: %w", err)
	}

	admin := &adminHandler{watcher: watcher, registry: registry, log: e.logger}
	srv := &http.Server{
		Handler:           admin.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancelCause(c.Context)
	defer cancel(nil)

	h := shutdown.NewHandler(shutdownTimeout)
	h.SetLogger(e.logger)
	h.OnShutdown("credential watcher", func(context.Context) error {
		watcher.Stop()
		watcher.Current().CloseIdleConnections()
		return nil
	})
	h.OnShutdown("admin server", srv.Shutdown)

	watcher.StartAsync(ctx)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancel(fmt.Errorf("admin server: %w", err))
		}
	}()

	e.logger.Info("watching credentials",
		"files", watcher.Files(),
		"admin", ln.Addr().String(),
		"build_id", watcher.Current().BuildID)

	if err := h.Wait(ctx); err != nil {
		return err
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}
