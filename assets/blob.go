package assets

import (
	"context"
	"fmt"
	"io"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	_ "gocloud.dev/blob/s3blob"   // s3:// buckets
	"gocloud.dev/gcerrors"
)

// BlobProvider serves packs out of a gocloud blob bucket.
type BlobProvider struct {
	bucket *blob.Bucket
	owned  bool
}

// OpenBucket opens a bucket by URL: file://, mem:// or s3://.
func OpenBucket(ctx context.Context, url string) (*BlobProvider, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("assets: open bucket %q: %w", url, err)
	}
	return &BlobProvider{bucket: bucket, owned: true}, nil
}

// NewBlobProvider wraps a bucket owned by the caller.
func NewBlobProvider(bucket *blob.Bucket) *BlobProvider {
	return &BlobProvider{bucket: bucket}
}

func (p *BlobProvider) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := p.bucket.NewReader(ctx, path, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("assets: open %q: %w", path, err)
	}
	return r, nil
}

// Write stores an object, replacing any existing one. Used by the pack build. When fill
// fails the write is aborted and the previous object is left untouched.
func (p *BlobProvider) Write(ctx context.Context, path string, fill func(w io.Writer) error) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := p.bucket.NewWriter(wctx, path, &blob.WriterOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("assets: create %q: %w", path, err)
	}
	if err = fill(w); err != nil {
		// a canceled writer discards its data on Close
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Close releases the bucket when this provider opened it.
func (p *BlobProvider) Close() error {
	if !p.owned {
		return nil
	}
	return p.bucket.Close()
}
