package pack

import (
	"context"
	"fmt"
	"io"
)

// Language is one entry of the meta language list.
type Language struct {
	// Type is the stable machine identifier of the language, e.g. "en" or "zh-Hans".
	Type string
	// Attributes is parallel to Meta.AttributeNames.
	Attributes []string
}

// Meta is the language independent index of a pack set. A decoded Meta is never
// mutated; a reload produces a new value.
type Meta struct {
	AttributeNames []string
	TextNames      []string
	Languages      []Language

	attributeIndex map[string]int
	textIndex      map[string]int
	languageIndex  map[string]int
}

// NewMeta builds a Meta and its lookup tables, rejecting duplicate names and
// attribute rows that do not match the attribute names.
func NewMeta(attributeNames, textNames []string, languages []Language) (*Meta, error) {
	m := &Meta{
		AttributeNames: attributeNames,
		TextNames:      textNames,
		Languages:      languages,
	}
	if err := m.index(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Meta) index() error {
	var err error
	if m.attributeIndex, err = indexNames("attribute", m.AttributeNames); err != nil {
		return err
	}
	if m.textIndex, err = indexNames("text", m.TextNames); err != nil {
		return err
	}

	types := make([]string, len(m.Languages))
	for i, l := range m.Languages {
		if len(l.Attributes) != len(m.AttributeNames) {
			return fmt.Errorf("%w: language %q has %d attributes, expected %d",
				ErrDecode, l.Type, len(l.Attributes), len(m.AttributeNames))
		}
		types[i] = l.Type
	}
	m.languageIndex, err = indexNames("language", types)
	return err
}

func indexNames(what string, names []string) (map[string]int, error) {
	index := make(map[string]int, len(names))
	for i, name := range names {
		if _, ok := index[name]; ok {
			return nil, fmt.Errorf("%w: duplicate %s name %q", ErrDecode, what, name)
		}
		index[name] = i
	}
	return index, nil
}

// AttributeIndex returns the slot of an attribute or -1.
func (m *Meta) AttributeIndex(name string) int {
	if i, ok := m.attributeIndex[name]; ok {
		return i
	}
	return -1
}

// TextIndex returns the slot of a text name or -1.
func (m *Meta) TextIndex(name string) int {
	if i, ok := m.textIndex[name]; ok {
		return i
	}
	return -1
}

// LanguageIndex returns the position of a language type or -1.
func (m *Meta) LanguageIndex(languageType string) int {
	if i, ok := m.languageIndex[languageType]; ok {
		return i
	}
	return -1
}

// Attribute returns the value of a named attribute for the language at index.
func (m *Meta) Attribute(languageIndex int, name string) (string, bool) {
	if languageIndex < 0 || languageIndex >= len(m.Languages) {
		return "", false
	}
	slot := m.AttributeIndex(name)
	if slot < 0 {
		return "", false
	}
	return m.Languages[languageIndex].Attributes[slot], true
}

// ReadMeta decodes a meta index. ctx is checked between entries.
func ReadMeta(ctx context.Context, r io.Reader) (*Meta, error) {
	d := newDecoder(ctx, r)

	attributeCount, err := d.count("attribute count")
	if err != nil {
		return nil, err
	}
	textCount, err := d.count("text count")
	if err != nil {
		return nil, err
	}

	attributeNames, err := readStrings(d, attributeCount)
	if err != nil {
		return nil, err
	}
	textNames, err := readStrings(d, textCount)
	if err != nil {
		return nil, err
	}

	languageCount, err := d.count("language count")
	if err != nil {
		return nil, err
	}

	languages := make([]Language, 0, preallocate(languageCount))
	for range languageCount {
		if err = d.step(); err != nil {
			return nil, err
		}
		var l Language
		if l.Type, err = d.string(); err != nil {
			return nil, err
		}
		if l.Attributes, err = readStrings(d, attributeCount); err != nil {
			return nil, err
		}
		languages = append(languages, l)
	}

	return NewMeta(attributeNames, textNames, languages)
}

func readStrings(d *decoder, n int) ([]string, error) {
	out := make([]string, 0, preallocate(n))
	for range n {
		if err := d.step(); err != nil {
			return nil, err
		}
		s, err := d.string()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteMeta encodes m in the layout ReadMeta expects.
func WriteMeta(w io.Writer, m *Meta) error {
	for _, l := range m.Languages {
		if len(l.Attributes) != len(m.AttributeNames) {
			return fmt.Errorf("pack: language %q has %d attributes, expected %d",
				l.Type, len(l.Attributes), len(m.AttributeNames))
		}
	}

	e := newEncoder(w)
	e.int32(len(m.AttributeNames))
	e.int32(len(m.TextNames))
	for _, name := range m.AttributeNames {
		e.string(name)
	}
	for _, name := range m.TextNames {
		e.string(name)
	}
	e.int32(len(m.Languages))
	for _, l := range m.Languages {
		e.string(l.Type)
		for _, value := range l.Attributes {
			e.string(value)
		}
	}
	return e.flush()
}
