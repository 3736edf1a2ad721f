package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lc/outliers/internal/analyzer"
	"github.com/lc/outliers/internal/config"
	"github.com/lc/outliers/internal/engine"
	"github.com/lc/outliers/internal/log"
	"github.com/lc/outliers/internal/metrics"
	"github.com/lc/outliers/internal/settings"
	"github.com/lc/outliers/internal/watch"
)

type daemonOpts struct {
	runOpts
	metricsFile string
	noWatch     bool
}

func newDaemonCmd() *cobra.Command {
	var opts daemonOpts
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run analyzers on the configured schedule",
		Long: `Run a cycle at startup and then on daemon.schedule (cron syntax, default
@hourly). Configuration and use-case files are watched and the configuration
is reloaded between cycles when they change. A configuration that can no
longer be loaded stops the daemon.`,
		Example: "outliers daemon --config /etc/outliers/outliers.conf --use-cases '/etc/outliers/use_cases/**/*.conf'",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), opts)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after every reload and cycle")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "do not reload when files change")
	return cmd
}

func runDaemon(ctx context.Context, opts daemonOpts) error {
	m := metrics.New()
	s, err := settings.New(config.New(), opts.configs, settings.WithMetrics(m))
	if err != nil {
		return err
	}
	if dup := s.CheckNoDuplicateKey(); dup != nil {
		log.Warn("duplicate key in configuration, the last value is used", "error", dup)
	}

	var w *watch.Watcher
	if !opts.noWatch {
		w, err = watch.New(watch.ForLocations(opts.configs, opts.useCases, analyzer.UseCaseExt))
		if err != nil {
			return err
		}
		defer w.Close()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	fatal := make(chan error, 1)
	eng := engine.New(s, analyzer.NewFactory(nil, analyzer.WithMetrics(m)), nil,
		engine.WithUseCases(opts.useCases),
		engine.WithMetrics(m, opts.metricsFile),
		engine.OnFatal(func(err error) {
			select {
			case fatal <- err:
			default:
			}
		}),
	)
	if err := eng.Run(gctx); err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Trigger(gctx); err != nil {
		return err
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-fatal:
			return err
		}
	})

	if w != nil {
		g.Go(func() error {
			return w.Watch(gctx, func() error { return eng.Reload(gctx) })
		})
	}

	err = g.Wait()
	log.Info("shutting down…")
	return err
}
