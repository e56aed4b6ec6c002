package pack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"github.com/pitabwire/util"
	"gopkg.in/yaml.v3"
)

const (
	commentMark      = '#'
	autoNumberMark   = "^"
	disallowedInName = "{}\\\n\t"
)

var (
	ErrInvalidSource      = errors.New("pack: invalid source")
	ErrUnknownFormat      = errors.New("pack: unknown source format")
	ErrUndeclaredLanguage = errors.New("pack: value for undeclared language")
)

// Source is the authoring format packs are built from.
type Source struct {
	Languages  []string `toml:"languages" yaml:"languages"`
	Attributes []Entry  `toml:"attribute" yaml:"attributes"`
	Texts      []Entry  `toml:"text"      yaml:"texts"`
}

// Entry is one named row with a value per language type.
type Entry struct {
	Name   string            `toml:"name"   yaml:"name"`
	Values map[string]string `toml:"values" yaml:"values"`
}

// LoadSource reads a source file, choosing the decoder from its extension.
func LoadSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer util.CloseAndLogOnError(context.Background(), f)

	return DecodeSource(f, strings.TrimPrefix(filepath.Ext(path), "."))
}

// DecodeSource decodes a source in the given format ("toml", "yaml" or "yml").
func DecodeSource(r io.Reader, format string) (*Source, error) {
	var src Source
	switch strings.ToLower(format) {
	case "toml":
		if _, err := toml.NewDecoder(r).Decode(&src); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&src); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &src, nil
}

// Build compiles a source into a meta index and one text pack per language.
// Names starting with '#' are comments, "^" continues the numbering of the previous
// name, repeated names merge into the first row. Missing translations are empty.
func Build(ctx context.Context, src *Source) (*Meta, map[string]Texts, error) {
	if len(src.Languages) == 0 {
		return nil, nil, fmt.Errorf("%w: no languages declared", ErrInvalidSource)
	}

	languages := make(map[string]int, len(src.Languages))
	for i, l := range src.Languages {
		l = strings.TrimSpace(l)
		if l == "" {
			return nil, nil, fmt.Errorf("%w: empty language type", ErrInvalidSource)
		}
		if _, dup := languages[l]; dup {
			return nil, nil, fmt.Errorf("%w: language %q declared twice", ErrInvalidSource, l)
		}
		languages[l] = i
	}

	attributes, err := collect(ctx, "attribute", src.Attributes, src.Languages, languages)
	if err != nil {
		return nil, nil, err
	}
	texts, err := collect(ctx, "text", src.Texts, src.Languages, languages)
	if err != nil {
		return nil, nil, err
	}

	metaLanguages := make([]Language, len(src.Languages))
	packs := make(map[string]Texts, len(src.Languages))
	for i, l := range src.Languages {
		l = strings.TrimSpace(l)
		metaLanguages[i] = Language{Type: l, Attributes: attributes.column(i)}
		packs[l] = texts.column(i)
	}

	meta, err := NewMeta(attributes.names, texts.names, metaLanguages)
	if err != nil {
		return nil, nil, err
	}
	return meta, packs, nil
}

type table struct {
	names []string
	rows  [][]string
	index map[string]int
}

func (t *table) column(language int) []string {
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[language]
	}
	return out
}

func collect(
	ctx context.Context,
	what string,
	entries []Entry,
	order []string,
	languages map[string]int,
) (*table, error) {
	log := util.Log(ctx).WithField("section", what)

	t := &table{index: make(map[string]int, len(entries))}
	numbering := autoNumbering{}

	for i, entry := range entries {
		name, skip, err := numbering.resolve(strings.TrimSpace(entry.Name))
		if err != nil {
			return nil, fmt.Errorf("%w: %s #%d: %w", ErrInvalidSource, what, i, err)
		}
		if skip {
			continue
		}

		row, ok := t.index[name]
		if !ok {
			row = len(t.names)
			t.index[name] = row
			t.names = append(t.names, name)
			t.rows = append(t.rows, make([]string, len(order)))
		}

		for languageType, value := range entry.Values {
			column, known := languages[languageType]
			if !known {
				return nil, fmt.Errorf("%w: %s %q uses %q", ErrUndeclaredLanguage, what, name, languageType)
			}
			if t.rows[row][column] != "" {
				log.WithField("name", name).WithField("language", languageType).
					Warn("conflicting value, later entry wins")
			}
			t.rows[row][column] = value
		}
	}
	return t, nil
}

// autoNumbering tracks the last explicit name so "^" rows can continue its suffix.
type autoNumbering struct {
	previous string
	prefix   string
	next     int
	active   bool
}

func (a *autoNumbering) resolve(name string) (string, bool, error) {
	if name == "" || name[0] == commentMark {
		return "", true, nil
	}
	if strings.ContainsAny(name, disallowedInName) {
		return "", false, fmt.Errorf("invalid name %q", name)
	}

	if name != autoNumberMark {
		a.previous = name
		a.active = false
		return name, false, nil
	}

	if !a.active {
		if a.previous == "" {
			return "", false, errors.New("automatic numbering can not start a section")
		}
		prefix, suffix, ok := splitNumericSuffix(a.previous)
		if !ok {
			return "", false, fmt.Errorf("previous name %q has no numeric suffix", a.previous)
		}
		a.prefix, a.next, a.active = prefix, suffix, true
	}
	a.next++
	return a.prefix + strconv.Itoa(a.next), false, nil
}

func splitNumericSuffix(name string) (string, int, bool) {
	cut := strings.LastIndexFunc(name, func(r rune) bool { return !unicode.IsDigit(r) }) + 1
	if cut >= len(name) {
		return "", 0, false
	}
	n, err := strconv.Atoi(name[cut:])
	if err != nil {
		return "", 0, false
	}
	return name[:cut], n, true
}
