// Package watch triggers configuration reloads when the configuration files
// or the use-case files of a running daemon change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/lc/outliers/internal/filesys"
	"github.com/lc/outliers/internal/log"
)

// DefaultDebounce is the quiet period before a burst of events is reported.
const DefaultDebounce = 250 * time.Millisecond

// ErrRunning is returned by Watch when the watcher is already running.
var ErrRunning = errors.New("watch: already running")

// Config lists what to watch.
type Config struct {
	// Files are watched individually. Their parent directories are watched so
	// that editors replacing the file by rename are still seen.
	Files []string
	// Dirs are watched recursively for files with one of Extensions.
	Dirs []string
	// Extensions filters events inside Dirs, e.g. ".conf".
	Extensions []string
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
}

// ForLocations builds a Config from configuration paths and use-case
// locations as accepted by analyzer.Discover: files are watched by name,
// directories recursively and glob patterns from their static base.
func ForLocations(configPaths, useCases []string, ext string) Config {
	c := Config{Extensions: []string{ext}}
	c.Files = append(c.Files, configPaths...)
	for _, loc := range useCases {
		info, err := os.Stat(loc)
		switch {
		case err == nil && info.IsDir():
			c.Dirs = append(c.Dirs, loc)
		case err == nil:
			c.Files = append(c.Files, loc)
		default:
			base, _ := doublestar.SplitPattern(filepath.ToSlash(loc))
			c.Dirs = append(c.Dirs, filepath.FromSlash(base))
		}
	}
	return c
}

// Watcher reports changes through a debounced callback.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	debounce *debouncer

	files map[string]struct{} // absolute paths of Config.Files
	dirs  []string            // absolute roots of Config.Dirs

	mu      sync.Mutex
	running bool
}

// New creates a watcher. Nothing is watched until Watch is called.
func New(cfg Config) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		debounce: newDebouncer(cfg.Debounce),
		files:    make(map[string]struct{}),
	}
	return w, nil
}

// Watch blocks until ctx is cancelled, calling onChange once per burst of
// relevant events. Errors from onChange are logged.
func (w *Watcher) Watch(ctx context.Context, onChange func() error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrRunning
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.debounce.stop()
		_ = w.fsw.Close()
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.addAll(); err != nil {
		return err
	}
	log.Info("watch: started",
		"files", len(w.files), "dirs", len(w.dirs), "debounce", w.cfg.Debounce.String())

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: events channel closed")
			}
			if event.Has(fsnotify.Create) && w.underDirs(event.Name) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						log.Warn("watch: could not watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if !w.relevant(event) {
				continue
			}
			log.Debug("watch: event", "path", event.Name, "op", event.Op.String())
			name := event.Name
			w.debounce.trigger(func() {
				log.Info("watch: change detected, reloading", "path", name)
				if err := onChange(); err != nil {
					log.Error("watch: reload request failed", "error", err)
				}
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: errors channel closed")
			}
			log.Error("watch: watcher error", "error", err)
		}
	}
}

// Close releases the underlying fsnotify watcher. Watch closes it on return;
// Close is for a watcher that was never started.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) addAll() error {
	parents := make(map[string]struct{})
	for _, f := range w.cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		w.files[abs] = struct{}{}
		parents[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range parents {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %q: %w", dir, err)
		}
	}
	for _, d := range w.cfg.Dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return err
		}
		w.dirs = append(w.dirs, abs)
		if err := w.addTree(abs); err != nil {
			return err
		}
	}
	return nil
}

// addTree watches root and every non-hidden directory below it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if filesys.IsHidden(root, p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	if _, ok := w.files[abs]; ok {
		return true
	}
	for _, root := range w.dirs {
		if !within(root, abs) || filesys.IsHidden(root, abs) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(abs))
		for _, want := range w.cfg.Extensions {
			if ext == strings.ToLower(want) {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) underDirs(p string) bool {
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	for _, root := range w.dirs {
		if within(root, abs) && !filesys.IsHidden(root, abs) {
			return true
		}
	}
	return false
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// debouncer collapses rapid triggers into a single call after a quiet period.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
