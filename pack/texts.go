package pack

import (
	"context"
	"io"
)

// Texts is a language text pack, positionally aligned with Meta.TextNames.
type Texts []string

// ReadTexts decodes a language text pack. ctx is checked between entries.
func ReadTexts(ctx context.Context, r io.Reader) (Texts, error) {
	d := newDecoder(ctx, r)

	n, err := d.count("text count")
	if err != nil {
		return nil, err
	}
	texts, err := readStrings(d, n)
	if err != nil {
		return nil, err
	}
	return Texts(texts), nil
}

// WriteTexts encodes a language text pack.
func WriteTexts(w io.Writer, texts Texts) error {
	e := newEncoder(w)
	e.int32(len(texts))
	for _, text := range texts {
		e.string(text)
	}
	return e.flush()
}
