package pack_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pitabwire/langpack/pack"
)

const tomlSource = `
languages = ["en", "fr"]

[[attribute]]
name = "LanguageName"
values = { en = "English", fr = "Français" }

[[text]]
name = "greeting"
values = { en = "Hello", fr = "Bonjour" }

[[text]]
name = "# translators note"
values = { en = "ignored" }

[[text]]
name = "level1"
values = { en = "One" }

[[text]]
name = "^"
values = { en = "Two", fr = "Deux" }

[[text]]
name = "^"
values = { en = "Three" }

[[text]]
name = "greeting"
values = { fr = "Salut" }
`

const yamlSource = `
languages: [en, fr]
attributes:
  - name: LanguageName
    values: {en: English, fr: Français}
texts:
  - name: greeting
    values: {en: Hello, fr: Bonjour}
`

func (s *PackSuite) TestBuildFromToml() {
	src, err := pack.DecodeSource(strings.NewReader(tomlSource), "toml")
	s.Require().NoError(err)

	meta, packs, err := pack.Build(context.Background(), src)
	s.Require().NoError(err)

	s.Equal([]string{"LanguageName"}, meta.AttributeNames)
	s.Equal([]string{"greeting", "level1", "level2", "level3"}, meta.TextNames)
	s.Equal([]pack.Language{
		{Type: "en", Attributes: []string{"English"}},
		{Type: "fr", Attributes: []string{"Français"}},
	}, meta.Languages)

	s.Equal(pack.Texts{"Hello", "One", "Two", "Three"}, packs["en"])
	s.Equal(pack.Texts{"Salut", "", "Deux", ""}, packs["fr"])
}

func (s *PackSuite) TestLoadSourceYaml() {
	path := filepath.Join(s.T().TempDir(), "strings.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(yamlSource), 0o600))

	src, err := pack.LoadSource(path)
	s.Require().NoError(err)

	meta, packs, err := pack.Build(context.Background(), src)
	s.Require().NoError(err)
	s.Equal(0, meta.TextIndex("greeting"))
	s.Equal(pack.Texts{"Bonjour"}, packs["fr"])
}

func (s *PackSuite) TestBuildRejectsInvalidSources() {
	testCases := []struct {
		name string
		src  pack.Source
	}{
		{name: "no languages", src: pack.Source{}},
		{name: "duplicate language", src: pack.Source{Languages: []string{"en", "en"}}},
		{
			name: "numbering without previous",
			src: pack.Source{
				Languages: []string{"en"},
				Texts:     []pack.Entry{{Name: "^"}},
			},
		},
		{
			name: "numbering without suffix",
			src: pack.Source{
				Languages: []string{"en"},
				Texts:     []pack.Entry{{Name: "title"}, {Name: "^"}},
			},
		},
		{
			name: "disallowed character",
			src: pack.Source{
				Languages: []string{"en"},
				Texts:     []pack.Entry{{Name: "bad{name}"}},
			},
		},
		{
			name: "undeclared language",
			src: pack.Source{
				Languages: []string{"en"},
				Texts:     []pack.Entry{{Name: "ok", Values: map[string]string{"de": "Hallo"}}},
			},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, _, err := pack.Build(context.Background(), &tc.src)
			s.Require().Error(err)
		})
	}

	_, err := pack.DecodeSource(strings.NewReader(""), "csv")
	s.Require().ErrorIs(err, pack.ErrUnknownFormat)
}
