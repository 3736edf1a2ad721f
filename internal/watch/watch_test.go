package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

type WatchTestSuite struct {
	suite.Suite
	dir string
}

func (s *WatchTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *WatchTestSuite) write(name, content string) string {
	p := filepath.Join(s.dir, filepath.FromSlash(name))
	s.Require().NoError(os.MkdirAll(filepath.Dir(p), 0o755))
	s.Require().NoError(os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (s *WatchTestSuite) TestDebouncerCollapsesBursts() {
	d := newDebouncer(50 * time.Millisecond)
	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.trigger(func() { calls.Inc() })
	}
	s.Eventually(func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	s.Equal(int32(1), calls.Load())
}

func (s *WatchTestSuite) TestDebouncerStop() {
	d := newDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	d.trigger(func() { calls.Inc() })
	d.stop()
	d.trigger(func() { calls.Inc() })
	time.Sleep(60 * time.Millisecond)
	s.Equal(int32(0), calls.Load())
}

func (s *WatchTestSuite) TestForLocations() {
	file := s.write("uc/single.conf", "")
	dir := filepath.Join(s.dir, "uc")
	cfg := ForLocations([]string{"/etc/outliers.conf"}, []string{file, dir, dir + "/**/*.conf"}, ".conf")

	s.Equal([]string{"/etc/outliers.conf", file}, cfg.Files)
	s.Equal([]string{dir, dir}, cfg.Dirs)
	s.Equal([]string{".conf"}, cfg.Extensions)
}

func (s *WatchTestSuite) TestWatchReportsRelevantChanges() {
	conf := s.write("outliers.conf", "[general]\n")
	s.write("use_cases/a.conf", "")

	w, err := New(Config{
		Files:      []string{conf},
		Dirs:       []string{filepath.Join(s.dir, "use_cases")},
		Extensions: []string{".conf"},
		Debounce:   30 * time.Millisecond,
	})
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	var changes atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func() error {
			changes.Inc()
			return nil
		})
	}()
	// let the watches register
	time.Sleep(100 * time.Millisecond)

	// ignored: other extension, hidden file, sibling of the config file
	s.write("use_cases/readme.txt", "x")
	s.write("use_cases/.a.conf.swp", "x")
	s.write("other.conf", "x")
	time.Sleep(150 * time.Millisecond)
	s.Equal(int32(0), changes.Load())

	s.write("outliers.conf", "[general]\nes_save_results = true\n")
	s.Eventually(func() bool { return changes.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// new directories are picked up
	s.Require().NoError(os.MkdirAll(filepath.Join(s.dir, "use_cases", "nested"), 0o755))
	time.Sleep(100 * time.Millisecond)
	s.write("use_cases/nested/b.conf", "")
	s.Eventually(func() bool { return changes.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("watcher did not stop")
	}
}

func (s *WatchTestSuite) TestWithin() {
	s.True(within("/a/b", "/a/b/c.conf"))
	s.True(within("/a/b", "/a/b"))
	s.False(within("/a/b", "/a/bc/d.conf"))
	s.False(within("/a/b", "/a/c.conf"))
}

func TestWatchTestSuite(t *testing.T) {
	suite.Run(t, new(WatchTestSuite))
}
