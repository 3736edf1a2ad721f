// Package engine orchestrates the outliers daemon. It owns the only place
// where settings are reconfigured: reload requests and analyzer run cycles
// are queued as commands and processed one at a time by a single goroutine,
// so a run never observes a half-applied configuration.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/lc/outliers/internal/analyzer"
	"github.com/lc/outliers/internal/filesys"
	"github.com/lc/outliers/internal/log"
	"github.com/lc/outliers/internal/metrics"
	"github.com/lc/outliers/internal/settings"
)

const (
	// Small buffer for commands to avoid blocking senders momentarily.
	_commandBufferSize = 10
)

// ErrClosed is returned when a command is queued after the loop stopped.
var ErrClosed = errors.New("engine: closed")

// Runner evaluates analyzers against documents. Implementations live
// outside this module; LogRunner only reports what would run.
type Runner interface {
	Run(ctx context.Context, s *settings.Settings, analyzers []analyzer.Analyzer) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, s *settings.Settings, analyzers []analyzer.Analyzer) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, s *settings.Settings, analyzers []analyzer.Analyzer) error {
	return f(ctx, s, analyzers)
}

// Engine serializes reloads and run cycles.
type Engine struct {
	settings *settings.Settings
	factory  *analyzer.Factory
	runner   Runner
	fs       filesys.ReadFS
	metrics  *metrics.Metrics

	useCases    []string
	multiOpts   []analyzer.Option
	onFatal     func(error)
	metricsFile string

	cmdChan  chan command // Commands are processed serially by runLoop
	wg       sync.WaitGroup
	running  atomic.Bool
	cycles   atomic.Int64
	cancelFn context.CancelFunc
	cron     *cron.Cron
	entryID  cron.EntryID
	spec     string
}

// Opt configures an Engine.
type Opt func(e *Engine)

// WithUseCases sets the use-case locations expanded by analyzer.Discover
// on every run cycle.
func WithUseCases(locations []string) Opt {
	return func(e *Engine) {
		e.useCases = append([]string(nil), locations...)
	}
}

// WithCreateOptions sets the options passed to Factory.CreateMulti.
// The default is non-strict so one broken use case does not stop the others.
func WithCreateOptions(opts ...analyzer.Option) Opt {
	return func(e *Engine) {
		e.multiOpts = opts
	}
}

// WithMetrics records run cycles in m and, if path is not empty, writes the
// registry to path after every reload and cycle.
func WithMetrics(m *metrics.Metrics, path string) Opt {
	return func(e *Engine) {
		e.metrics = m
		e.metricsFile = path
	}
}

// WithFS reads use-case locations through fs.
func WithFS(fs filesys.ReadFS) Opt {
	return func(e *Engine) {
		e.fs = fs
	}
}

// OnFatal is called from the loop when a reload fails. The previous
// configuration stays active.
func OnFatal(fn func(error)) Opt {
	return func(e *Engine) {
		e.onFatal = fn
	}
}

// New creates an engine. A nil runner means LogRunner.
func New(s *settings.Settings, factory *analyzer.Factory, runner Runner, opts ...Opt) *Engine {
	if runner == nil {
		runner = LogRunner{}
	}
	e := &Engine{
		settings:  s,
		factory:   factory,
		runner:    runner,
		fs:        filesys.OS(),
		multiOpts: []analyzer.Option{analyzer.WithStrict(false)},
		cmdChan:   make(chan command, _commandBufferSize),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run starts the command loop and the cron schedule taken from
// settings.DaemonSchedule. The provided context controls their lifetime.
func (e *Engine) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancelFn = cancel

	e.running.Store(true)
	e.wg.Add(1)
	go e.runLoop(runCtx)

	if err := e.schedule(runCtx); err != nil {
		e.Close()
		return err
	}

	log.Info("engine: started", "schedule", e.settings.DaemonSchedule())
	return nil
}

// Close stops the schedule and the command loop and waits for them.
func (e *Engine) Close() {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
	if e.cancelFn != nil {
		e.cancelFn()
	}
	e.wg.Wait()
	log.Info("engine: stopped")
}

// Reload queues a reprocessing of the configuration files.
func (e *Engine) Reload(ctx context.Context) error {
	return e.send(ctx, reloadCmd{})
}

// Trigger queues a run cycle.
func (e *Engine) Trigger(ctx context.Context) error {
	return e.send(ctx, runCmd{})
}

// Cycles returns the number of completed run cycles.
func (e *Engine) Cycles() int64 { return e.cycles.Load() }

// RunOnce executes a run cycle on the caller's goroutine. It must not be
// used while the loop is running.
func (e *Engine) RunOnce(ctx context.Context) ([]analyzer.Analyzer, error) {
	return e.handleRun(ctx)
}

func (e *Engine) send(ctx context.Context, cmd command) error {
	if !e.running.Load() {
		return ErrClosed
	}
	select {
	case e.cmdChan <- cmd:
		return nil // Command successfully queued
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) schedule(ctx context.Context) error {
	e.cron = cron.New()
	if err := e.addSchedule(ctx, e.settings.DaemonSchedule()); err != nil {
		return err
	}
	e.cron.Start()
	return nil
}

// addSchedule replaces the cron entry queuing run cycles.
func (e *Engine) addSchedule(ctx context.Context, spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid daemon schedule %q: %w", spec, err)
	}
	id, err := e.cron.AddFunc(spec, func() {
		select {
		case e.cmdChan <- runCmd{}:
		case <-ctx.Done():
		default:
			log.Warn("engine: command channel full, skipping scheduled run")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling run cycles: %w", err)
	}
	if e.entryID != 0 {
		e.cron.Remove(e.entryID)
	}
	e.entryID = id
	e.spec = spec
	return nil
}

// runLoop is the central processing loop. It serializes all state changes.
func (e *Engine) runLoop(ctx context.Context) {
	defer e.wg.Done()
	defer e.running.Store(false)
	defer log.Info("engine: runLoop stopping")

	log.Info("engine: runLoop starting")

	for {
		select {
		case cmd := <-e.cmdChan:
			switch cmd.(type) {
			case reloadCmd:
				if err := e.handleReload(ctx); err != nil {
					log.Error("engine: configuration reload failed, keeping previous configuration", "error", err)
					if e.onFatal != nil {
						e.onFatal(err)
					}
				}
			case runCmd:
				if _, err := e.handleRun(ctx); err != nil {
					log.Warn("engine: run cycle finished with errors", "error", err)
				}
			default:
				log.Warnf("engine: received unknown command type: %T", cmd)
			}
			e.writeMetrics()

		case <-ctx.Done():
			return
		}
	}
}

// --- Command Handlers (run only within runLoop) ---

func (e *Engine) handleReload(ctx context.Context) error {
	log.Info("engine: reloading configuration", "paths", e.settings.ConfigPaths())
	if err := e.settings.ProcessConfigurationFiles(); err != nil {
		return err
	}
	if dup := e.settings.CheckNoDuplicateKey(); dup != nil {
		log.Warn("engine: duplicate key in configuration, the last value is used", "error", dup)
	}
	if spec := e.settings.DaemonSchedule(); e.cron != nil && spec != e.spec {
		if err := e.addSchedule(ctx, spec); err != nil {
			return err
		}
		log.Info("engine: schedule changed", "schedule", spec)
	}
	return nil
}

// handleRun builds the analyzers of every use-case file and hands them to
// the runner. Files that fail are reported and do not stop the others.
func (e *Engine) handleRun(ctx context.Context) ([]analyzer.Analyzer, error) {
	var errs error

	paths, err := analyzer.Discover(e.fs, e.useCases)
	errs = multierr.Append(errs, err)

	var analyzers []analyzer.Analyzer
	for _, p := range paths {
		batch, err := e.factory.CreateMulti(p, e.multiOpts...)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		analyzers = append(analyzers, batch...)
	}

	log.Info("engine: run cycle starting",
		"load_id", e.settings.LoadID(), "use_case_files", len(paths), "analyzers", len(analyzers))

	errs = multierr.Append(errs, e.runner.Run(ctx, e.settings, analyzers))
	e.metrics.RunCycle(errs)
	e.cycles.Inc()
	return analyzers, errs
}

func (e *Engine) writeMetrics() {
	if err := e.metrics.WriteTextfile(e.metricsFile); err != nil {
		log.Warn("engine: could not write metrics", "error", err)
	}
}

// command interface defines the structure of commands sent to the engine.
type command interface {
	isCommand()
}

type reloadCmd struct{}

func (reloadCmd) isCommand() {}

type runCmd struct{}

func (runCmd) isCommand() {}

// LogRunner logs the analyzers of a cycle without evaluating them.
type LogRunner struct{}

// Run implements Runner.
func (LogRunner) Run(_ context.Context, s *settings.Settings, analyzers []analyzer.Analyzer) error {
	for _, a := range analyzers {
		log.Info("engine: analyzer ready",
			"name", a.Name(),
			"model_type", a.ModelType(),
			"extra_settings", len(a.ExtraModelSettings()),
			"es_save_results", s.ESSaveResults(),
		)
	}
	return nil
}
