// Package config loads and merges the outliers configuration files.
// It handles reading every configured path, overlaying them in order and
// reporting every unreadable path at once.
package config

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/lc/outliers/internal/filesys"
	"github.com/lc/outliers/internal/ini"
)

// ExitCode is the process exit status used when configuration files cannot
// be loaded.
const ExitCode = 2

var (
	// ErrNoPaths is returned when no configuration path was given.
	ErrNoPaths = errors.New("no configuration file given")
	// ErrIsDirectory is returned when a configuration path is a directory.
	ErrIsDirectory = errors.New("is a directory")
)

// UnreadableError lists every configuration path that could not be opened
// or parsed. Err combines the individual causes.
type UnreadableError struct {
	Paths []string
	Err   error
}

func (e *UnreadableError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Failed to load %d configuration file(s):\n", len(e.Paths))
	for _, p := range e.Paths {
		fmt.Fprintf(&sb, "\t - %s\n", p)
	}
	return sb.String()
}

func (e *UnreadableError) Unwrap() error { return e.Err }

// FailedPaths returns the paths carried by an *UnreadableError in err's
// chain, or nil.
func FailedPaths(err error) []string {
	var ue *UnreadableError
	if errors.As(err, &ue) {
		return ue.Paths
	}
	return nil
}

// Provider defines the interface for loading configuration.
type Provider interface {
	Load(paths []string) (*ini.File, error)
	ValidateNoDuplicates(paths []string) error
}

// Loader implements Provider on top of a filesys.ReadFS.
type Loader struct {
	fs filesys.ReadFS
}

// Verify Loader implements Provider interface.
var _ Provider = (*Loader)(nil)

// New creates a loader reading the local disk.
func New() *Loader {
	return NewWithFS(filesys.OS())
}

// NewWithFS creates a loader reading through fs.
func NewWithFS(fs filesys.ReadFS) *Loader {
	return &Loader{fs: fs}
}

// Load parses every path and overlays them in the given order; for the same
// (section, option) the last file wins. Repeated options inside one file are
// tolerated with last-value-wins.
//
// Every path is attempted. If any of them cannot be read or parsed the
// result is an *UnreadableError naming all of them and no tree.
func (l *Loader) Load(paths []string) (*ini.File, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	merged := ini.New()
	var (
		failed []string
		errs   error
		seen   = make(map[string]struct{}, len(paths))
	)
	for _, p := range paths {
		doc, err := l.parse(p, ini.Options{Strict: false})
		if err != nil {
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				failed = append(failed, p)
				errs = multierr.Append(errs, err)
			}
			continue
		}
		merged.Overlay(doc)
	}

	if len(failed) > 0 {
		return nil, &UnreadableError{Paths: failed, Err: errs}
	}
	return merged, nil
}

// ValidateNoDuplicates re-parses paths in strict mode and returns the first
// *ini.DuplicateSectionError or *ini.DuplicateOptionError found, or nil.
// Only repetitions within a single file count; the same key in two files is
// a normal overlay. Other read or parse failures are ignored here since Load
// reports them.
func (l *Loader) ValidateNoDuplicates(paths []string) error {
	for _, p := range paths {
		_, err := l.parse(p, ini.Options{Strict: true})
		if err == nil {
			continue
		}
		var (
			dupSection *ini.DuplicateSectionError
			dupOption  *ini.DuplicateOptionError
		)
		if errors.As(err, &dupSection) || errors.As(err, &dupOption) {
			return err
		}
	}
	return nil
}

// Parse reads a single file.
func (l *Loader) Parse(path string, opts ini.Options) (*ini.File, error) {
	return l.parse(path, opts)
}

func (l *Loader) parse(path string, opts ini.Options) (*ini.File, error) {
	info, err := l.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	if info != nil && info.IsDir() {
		return nil, fmt.Errorf("opening config file %s: %w", path, ErrIsDirectory)
	}
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	doc, err := ini.ParseBytes(data, path, opts)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return doc, nil
}
