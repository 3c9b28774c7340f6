package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"golang.org/x/sync/errgroup"

	"github.com/srediag/telemetry-shm/internal/config"
	"github.com/srediag/telemetry-shm/internal/poller"
	"github.com/srediag/telemetry-shm/internal/server"
	"github.com/srediag/telemetry-shm/pkg/health"
	"github.com/srediag/telemetry-shm/pkg/layout"
	"github.com/srediag/telemetry-shm/pkg/shm"
	"github.com/srediag/telemetry-shm/pkg/transport"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll the region and serve it over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	opts, err := a.openOptions()
	if err != nil {
		return err
	}
	dial := shm.Dialer(opts)

	var tr transport.Transport
	if a.cfg.Reconnect.Enabled {
		r := a.cfg.Reconnect
		a.log.Info("waiting for region", "path", opts.ResolvePath())
		tr, err = poller.Dial(ctx, dial, poller.NewBackOff(r.Initial, r.MaxInterval, r.MaxElapsed), a.log)
	} else {
		tr, err = dial(ctx)
	}
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	popts := []poller.Option{poller.WithLogger(a.log.Named("poller")), poller.WithRegisterer(reg)}
	if a.cfg.Reconnect.Enabled {
		popts = append(popts, poller.WithRedial(dial))
	}
	p, err := poller.New(tr, a.cfg.Poll, popts...)
	if err != nil {
		_ = tr.Close()
		return err
	}
	atexit.Register(func() {
		if err := p.Close(); err != nil {
			a.log.Warn("close region", "error", err)
		}
	})

	if err := a.applySettingsFile(ctx, p); err != nil {
		return err
	}

	h := health.NewHandler(p, health.Options{
		PollDeadline: 10 * p.Config().Interval,
		StaleAfter:   a.cfg.HTTP.StaleAfter,
	}, reg)
	srv := server.New(p, h, reg, a.log.Named("http"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(ctx) })
	g.Go(func() error { return srv.ListenAndServe(ctx, a.cfg.HTTP.Addr) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// applySettingsFile pushes the configured settings file once and, when
// watching is enabled, again on every change.
func (a *app) applySettingsFile(ctx context.Context, p *poller.Poller) error {
	path := a.cfg.Settings.File
	if path == "" {
		return nil
	}
	s, err := config.LoadSettings(path)
	if err != nil {
		return err
	}
	if err := p.WriteSettings(ctx, s); err != nil {
		return err
	}
	if !a.cfg.Settings.Watch {
		return nil
	}
	w, err := config.NewSettingsWatcher(path, func(s layout.Settings) {
		if err := p.WriteSettings(ctx, s); err != nil {
			a.log.Warn("apply settings", "path", path, "error", err)
			return
		}
		a.log.Info("settings applied", "path", path)
	}, a.log.Named("settings"))
	if err != nil {
		return err
	}
	w.Start()
	atexit.Register(func() { _ = w.Stop() })
	return nil
}
