package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/suite"

	"github.com/lc/outliers/internal/config"
)

type CLITestSuite struct {
	suite.Suite
	dir string
}

func (s *CLITestSuite) SetupSuite() {
	color.NoColor = true
}

func (s *CLITestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *CLITestSuite) write(name, content string) string {
	p := filepath.Join(s.dir, filepath.FromSlash(name))
	s.Require().NoError(os.MkdirAll(filepath.Dir(p), 0o755))
	s.Require().NoError(os.WriteFile(p, []byte(content), 0o644))
	return p
}

const validUseCase = `[simplequery_a]
model_type = simplequery
outlier_type = t
outlier_reason = r
outlier_summary = s
unknown_knob = 1
`

func (s *CLITestSuite) TestExitCode() {
	s.Equal(config.ExitCode, exitCode(&config.UnreadableError{Paths: []string{"a"}}))
	s.Equal(1, exitCode(errors.New("other")))
}

func (s *CLITestSuite) TestUnreadableConfigExitsWithTwo() {
	missing := filepath.Join(s.dir, "a.conf")
	alsoMissing := filepath.Join(s.dir, "b.conf")

	root := newRootCmd()
	root.SetArgs([]string{"tests", "--config", missing, "--config", alsoMissing, "--use-cases", s.dir})
	root.SetOut(new(bytes.Buffer))
	err := root.Execute()

	s.Require().Error(err)
	s.Equal(config.ExitCode, exitCode(err))
	s.Equal([]string{missing, alsoMissing}, config.FailedPaths(err))
}

func (s *CLITestSuite) TestTestsModeReportsAllProblems() {
	conf := s.write("outliers.conf", "[general]\nes_save_results = true\nes_save_results = true\n[whitelist_regexps]\nx = (bad\n")
	s.write("use_cases/good.conf", validUseCase)
	s.write("use_cases/bad.conf", "[b]\nmodel_type = nope\n")

	var out bytes.Buffer
	err := runTests(&out, runOpts{configs: []string{conf}, useCases: []string{filepath.Join(s.dir, "use_cases")}})
	s.Require().Error(err)
	s.Equal(1, exitCode(err))

	text := out.String()
	s.Contains(text, "3 problem(s) found")
	s.Contains(text, "already exists")
	s.Contains(text, "(bad")
	s.Contains(text, "unknown model type")
	s.Contains(text, "good.conf (1 analyzers)")
}

func (s *CLITestSuite) TestTestsModeClean() {
	conf := s.write("outliers.conf", "[general]\nes_save_results = true\n")
	uc := s.write("use_cases/good.conf", validUseCase)

	var out bytes.Buffer
	s.Require().NoError(runTests(&out, runOpts{configs: []string{conf}, useCases: []string{uc}}))
	s.Contains(out.String(), "All configuration and use-case files are valid.")
}

func (s *CLITestSuite) TestInteractive() {
	conf := s.write("outliers.conf", "[general]\nes_save_results = true\n[whitelist_regexps]\nx = ^a$, (bad\n")
	s.write("use_cases/good.conf", validUseCase+"\n[broken]\nmodel_type = nope\n")

	var out bytes.Buffer
	err := runInteractive(context.Background(), &out, runOpts{configs: []string{conf}, useCases: []string{filepath.Join(s.dir, "use_cases")}})
	s.Require().NoError(err)

	text := out.String()
	s.Contains(text, "regex groups: 1")
	s.Contains(text, `does not compile and is ignored: " (bad"`)
	s.Contains(text, "simplequery_a")
	s.NotContains(text, "broken")
}

func TestCLITestSuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}
