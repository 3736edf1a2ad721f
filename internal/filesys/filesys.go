// Package filesys provides the file system seam used by the outliers
// configuration loader, analyzer factory and use-case discovery. Production
// code reads the local disk through OS(); tests substitute a mock to inject
// failures that are awkward to reproduce on a real disk.
package filesys

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ReadFS is the read-only surface the loaders need.
type ReadFS interface {
	Stat(string) (fs.FileInfo, error)
	ReadFile(string) ([]byte, error)
	Glob(string) ([]string, error)
}

// OS returns a file system implementation that delegates to the standard library.
func OS() OsFS {
	return OsFS{}
}

// OsFS implements ReadFS against the local disk.
type OsFS struct{}

func (OsFS) Stat(p string) (fs.FileInfo, error) { return os.Stat(p) }
func (OsFS) ReadFile(p string) ([]byte, error)  { return os.ReadFile(p) }

// Glob expands a doublestar pattern ("**" crosses directories) against the
// local disk. Matches are returned in lexical order.
func (OsFS) Glob(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
}

var _ ReadFS = OsFS{}

// IsHidden reports whether any element of p below root starts with a dot.
func IsHidden(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		rel = p
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}
