package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/langpack/config"
)

const source = `
languages: [en, fr]
attributes:
  - name: LanguageName
    values: {en: English, fr: Français}
texts:
  - name: greeting
    values: {en: Hello, fr: Bonjour}
  - name: farewell
    values: {en: Bye}
`

type CommandSuite struct {
	suite.Suite

	ctx context.Context
	cfg config.ConfigurationDefault
	dir string
}

func (s *CommandSuite) SetupTest() {
	s.ctx = context.Background()

	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	s.Require().NoError(err)
	s.cfg = cfg

	s.dir = s.T().TempDir()
	s.cfg.LocalizationAssetsURL = "file://" + filepath.Join(s.dir, "out") + "?create_dir=true"
}

func (s *CommandSuite) writeSource() string {
	path := filepath.Join(s.dir, "strings.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(source), 0o600))
	return path
}

func (s *CommandSuite) TestBuildThenInspect() {
	s.Require().NoError(run(s.ctx, &s.cfg, "build", []string{s.writeSource()}, &bytes.Buffer{}))

	var out bytes.Buffer
	s.Require().NoError(run(s.ctx, &s.cfg, "inspect", []string{"--language", "fr"}, &out))

	s.Contains(out.String(), "English")
	s.Contains(out.String(), "Français")
	s.Contains(out.String(), `"Bonjour"`)
	s.Contains(out.String(), "farewell")
}

func (s *CommandSuite) TestInspectUnknownLanguage() {
	s.Require().NoError(run(s.ctx, &s.cfg, "build", []string{s.writeSource()}, &bytes.Buffer{}))

	err := run(s.ctx, &s.cfg, "inspect", []string{"--language", "de"}, &bytes.Buffer{})
	s.Require().Error(err)
	s.Contains(err.Error(), "de")
}

func (s *CommandSuite) TestCommandErrors() {
	testCases := []struct {
		name    string
		command string
		args    []string
	}{
		{name: "unknown command", command: "publish"},
		{name: "build without source", command: "build"},
		{name: "build missing source", command: "build", args: []string{filepath.Join(s.dir, "missing.toml")}},
		{name: "build unknown format", command: "build", args: []string{s.writeSource() + ".txt"}},
		{name: "inspect empty bucket", command: "inspect"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Error(run(s.ctx, &s.cfg, tc.command, tc.args, &bytes.Buffer{}))
		})
	}
}

func (s *CommandSuite) TestVersion() {
	var out bytes.Buffer
	s.Require().NoError(run(s.ctx, &s.cfg, "version", nil, &out))
	s.Contains(out.String(), "langpack")
}

func TestCommandSuite(t *testing.T) {
	suite.Run(t, new(CommandSuite))
}
