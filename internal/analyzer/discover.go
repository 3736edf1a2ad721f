package analyzer

import (
	"fmt"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/lc/outliers/internal/filesys"
)

// UseCaseExt is the extension of use-case files found in directories.
const UseCaseExt = ".conf"

// Discover expands use-case locations into file paths. A regular file is
// returned as is, a directory yields every *.conf file below it (hidden
// entries skipped) and anything else is treated as a glob pattern where
// "**" crosses directories. Paths keep the order of first appearance.
//
// Every location is examined; those that match nothing are reported
// together.
func Discover(fs filesys.ReadFS, locations []string) ([]string, error) {
	var (
		out  []string
		errs error
		seen = make(map[string]struct{})
	)
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, loc := range locations {
		info, err := fs.Stat(loc)
		if err == nil && !info.IsDir() {
			add(loc)
			continue
		}
		if err == nil && info.IsDir() {
			matches, gerr := fs.Glob(filepath.Join(loc, "**", "*"+UseCaseExt))
			if gerr != nil {
				errs = multierr.Append(errs, fmt.Errorf("listing %s: %w", loc, gerr))
				continue
			}
			for _, m := range matches {
				if !filesys.IsHidden(loc, m) {
					add(m)
				}
			}
			continue
		}

		matches, gerr := fs.Glob(loc)
		if gerr != nil {
			errs = multierr.Append(errs, fmt.Errorf("expanding %s: %w", loc, gerr))
			continue
		}
		if len(matches) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", loc, ErrNoUseCases))
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}
	return out, errs
}
