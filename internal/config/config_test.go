package config_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lc/outliers/internal/config"
	"github.com/lc/outliers/internal/ini"
	"github.com/lc/outliers/internal/mocks"
)

type ConfigTestSuite struct {
	suite.Suite
	dir    string
	loader *config.Loader
}

func (s *ConfigTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.loader = config.New()
}

func (s *ConfigTestSuite) write(name, content string) string {
	p := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (s *ConfigTestSuite) TestLoadMergesLastWins() {
	base := s.write("base.conf", `[general]
es_save_results = true
print_outliers_to_console = false

[whitelist_literals]
a = one
`)
	site := s.write("site.conf", `[general]
print_outliers_to_console = true

[assets]
host = hostname
`)

	tree, err := s.loader.Load([]string{base, site})
	s.Require().NoError(err)

	s.Equal([]string{"general", "whitelist_literals", "assets"}, tree.Sections())

	v, err := tree.Get("general", "print_outliers_to_console")
	s.Require().NoError(err)
	s.Equal("true", v)

	v, err = tree.Get("general", "es_save_results")
	s.Require().NoError(err)
	s.Equal("true", v)

	// reversed order, first file wins
	tree, err = s.loader.Load([]string{site, base})
	s.Require().NoError(err)
	v, err = tree.Get("general", "print_outliers_to_console")
	s.Require().NoError(err)
	s.Equal("false", v)
}

func (s *ConfigTestSuite) TestLoadIsDeterministic() {
	a := s.write("a.conf", "[s]\nx = 1\ny = 1\n")
	b := s.write("b.conf", "[s]\ny = 2\n[t]\nz = 3\n")

	first, err := s.loader.Load([]string{a, b})
	s.Require().NoError(err)
	second, err := s.loader.Load([]string{a, b})
	s.Require().NoError(err)

	s.Equal(first, second)
}

func (s *ConfigTestSuite) TestLoadToleratesDuplicatesWithinFile() {
	p := s.write("dup.conf", "[s]\nx = 1\nx = 2\n")

	tree, err := s.loader.Load([]string{p})
	s.Require().NoError(err)
	v, err := tree.Get("s", "x")
	s.Require().NoError(err)
	s.Equal("2", v)
}

func (s *ConfigTestSuite) TestLoadReportsEveryUnreadablePath() {
	good := s.write("good.conf", "[general]\nes_save_results = true\n")
	missing := filepath.Join(s.dir, "missing.conf")
	broken := s.write("broken.conf", "no header = here\n")
	dir := s.dir

	tree, err := s.loader.Load([]string{missing, good, dir, broken, missing})
	s.Require().Error(err)
	s.Nil(tree)

	var ue *config.UnreadableError
	s.Require().ErrorAs(err, &ue)
	s.Equal([]string{missing, dir, broken}, ue.Paths)
	s.Equal([]string{missing, dir, broken}, config.FailedPaths(err))

	msg := err.Error()
	s.Contains(msg, "Failed to load 3 configuration file(s):")
	s.Contains(msg, "\t - "+missing+"\n")
	s.Contains(msg, "\t - "+dir+"\n")
	s.Contains(msg, "\t - "+broken+"\n")

	s.True(errors.Is(err, fs.ErrNotExist))
	s.True(errors.Is(err, config.ErrIsDirectory))
	var mse *ini.MissingSectionHeaderError
	s.ErrorAs(err, &mse)
}

func (s *ConfigTestSuite) TestLoadWithoutPaths() {
	_, err := s.loader.Load(nil)
	s.ErrorIs(err, config.ErrNoPaths)
	s.Nil(config.FailedPaths(err))
}

func (s *ConfigTestSuite) TestLoadPermissionDenied() {
	mfs := new(mocks.MockFS)
	mfs.On("Stat", "/etc/outliers/secret.conf").Return(nil, nil)
	mfs.On("ReadFile", "/etc/outliers/secret.conf").Return(nil, fs.ErrPermission)
	mfs.On("Stat", "/etc/outliers/ok.conf").Return(nil, nil)
	mfs.On("ReadFile", "/etc/outliers/ok.conf").Return([]byte("[general]\nes_save_results = 1\n"), nil)

	loader := config.NewWithFS(mfs)
	_, err := loader.Load([]string{"/etc/outliers/ok.conf", "/etc/outliers/secret.conf"})

	s.Require().Error(err)
	s.Equal([]string{"/etc/outliers/secret.conf"}, config.FailedPaths(err))
	s.True(errors.Is(err, fs.ErrPermission))
	mfs.AssertExpectations(s.T())
}

func (s *ConfigTestSuite) TestValidateNoDuplicates() {
	testCases := []struct {
		name      string
		files     map[string]string
		expectErr any
	}{
		{
			name: "clean files",
			files: map[string]string{
				"a.conf": "[s]\nx = 1\n",
			},
		},
		{
			name: "same key in two files is an overlay",
			files: map[string]string{
				"a.conf": "[s]\nx = 1\n",
				"b.conf": "[s]\nx = 2\n",
			},
		},
		{
			name: "duplicate option",
			files: map[string]string{
				"a.conf": "[s]\nx = 1\n",
				"b.conf": "[s]\ny = 1\ny = 2\n",
			},
			expectErr: new(*ini.DuplicateOptionError),
		},
		{
			name: "duplicate section",
			files: map[string]string{
				"a.conf": "[s]\nx = 1\n[t]\n[s]\n",
			},
			expectErr: new(*ini.DuplicateSectionError),
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			dir := s.T().TempDir()
			var paths []string
			for _, name := range []string{"a.conf", "b.conf"} {
				content, ok := tc.files[name]
				if !ok {
					continue
				}
				p := filepath.Join(dir, name)
				s.Require().NoError(os.WriteFile(p, []byte(content), 0o644))
				paths = append(paths, p)
			}

			err := s.loader.ValidateNoDuplicates(paths)
			if tc.expectErr == nil {
				s.NoError(err)
				return
			}
			s.ErrorAs(err, tc.expectErr)
		})
	}
}

func (s *ConfigTestSuite) TestValidateNoDuplicatesIgnoresUnreadable() {
	s.NoError(s.loader.ValidateNoDuplicates([]string{filepath.Join(s.dir, "missing.conf")}))
}

func (s *ConfigTestSuite) TestParseUsesFS() {
	mfs := new(mocks.MockFS)
	mfs.On("Stat", "use.conf").Return(nil, nil)
	mfs.On("ReadFile", "use.conf").Return([]byte("[a]\nx = 1\nx = 2\n"), nil)

	loader := config.NewWithFS(mfs)
	_, err := loader.Parse("use.conf", ini.Options{Strict: true})
	var doe *ini.DuplicateOptionError
	s.ErrorAs(err, &doe)

	doc, err := loader.Parse("use.conf", ini.Options{})
	s.Require().NoError(err)
	v, _ := doc.Get("a", "x")
	s.Equal("2", v)
	mfs.AssertNumberOfCalls(s.T(), "ReadFile", 2)
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
