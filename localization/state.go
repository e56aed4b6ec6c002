package localization

import (
	"slices"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/pitabwire/langpack/pack"
)

const (
	indexUnloaded   = -2
	indexMetaLoaded = -1
)

// LanguageNameAttribute is the attribute holding a language's display name.
const LanguageNameAttribute = "LanguageName"

// snapshot is the published state. It is never modified after being stored.
type snapshot struct {
	version uint64
	meta    *pack.Meta
	index   int
	texts   pack.Texts

	bundleOnce sync.Once
	tag        language.Tag
	bundleTag  language.Tag
	bundle     *i18n.Bundle
}

func unloadedSnapshot() *snapshot {
	return &snapshot{index: indexUnloaded}
}

func (s *snapshot) metaLoaded() bool {
	return s.meta != nil
}

func (s *snapshot) languageLoaded() bool {
	return s.index >= 0
}

// publicIndex folds both non-language states into -1.
func (s *snapshot) publicIndex() int {
	if s.index < 0 {
		return -1
	}
	return s.index
}

func (s *snapshot) languageType() string {
	if s.index < 0 {
		return ""
	}
	return s.meta.Languages[s.index].Type
}

func (s *snapshot) languageCount() int {
	if s.meta == nil {
		return 0
	}
	return len(s.meta.Languages)
}

func (s *snapshot) text(name string) (string, bool) {
	if s.meta == nil || s.texts == nil {
		return "", false
	}
	i := s.meta.TextIndex(name)
	if i < 0 {
		return "", false
	}
	return s.texts[i], true
}

// i18n lazily builds a go-i18n bundle holding the active pack, so templated texts
// like "Hello {{.Name}}" can be rendered with data. The returned tag is the one the
// bundle was filled under; languages go-i18n has no plural rules for fall back to
// English rules.
func (s *snapshot) i18n() (*i18n.Bundle, language.Tag) {
	s.bundleOnce.Do(func() {
		s.tag = language.Und
		if s.languageLoaded() {
			if tag, err := language.Parse(s.languageType()); err == nil {
				s.tag = tag
			}
		}

		messages := make([]*i18n.Message, 0, len(s.texts))
		if s.texts != nil {
			for i, name := range s.meta.TextNames {
				messages = append(messages, &i18n.Message{ID: name, Other: s.texts[i]})
			}
		}

		s.bundleTag = s.tag
		s.bundle = i18n.NewBundle(s.bundleTag)
		if err := s.bundle.AddMessages(s.bundleTag, messages...); err != nil {
			s.bundleTag = language.English
			s.bundle = i18n.NewBundle(s.bundleTag)
			_ = s.bundle.AddMessages(s.bundleTag, messages...)
		}
	})
	return s.bundle, s.bundleTag
}

// usedCharacters returns the sorted set of runes in the active pack and in the
// language's display name.
func (s *snapshot) usedCharacters() string {
	if !s.languageLoaded() {
		return ""
	}

	seen := map[rune]struct{}{}
	add := func(text string) {
		for _, r := range text {
			seen[r] = struct{}{}
		}
	}
	for _, text := range s.texts {
		add(text)
	}
	if name, ok := s.meta.Attribute(s.index, LanguageNameAttribute); ok {
		add(name)
	}

	runes := make([]rune, 0, len(seen))
	for r := range seen {
		runes = append(runes, r)
	}
	slices.Sort(runes)

	var b strings.Builder
	b.Grow(len(runes))
	for _, r := range runes {
		b.WriteRune(r)
	}
	return b.String()
}
