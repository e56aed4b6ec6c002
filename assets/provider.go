// Package assets supplies the byte streams packs are decoded from.
package assets

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no object exists at the requested path.
var ErrNotFound = errors.New("assets: not found")

// Provider opens a readable stream for a logical path such as "Localization/meta".
// Implementations must be safe for concurrent use.
type Provider interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, path string) (io.ReadCloser, error)

func (f ProviderFunc) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return f(ctx, path)
}
