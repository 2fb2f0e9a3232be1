package backend

import (
	"context"
	"errors"
	"io"

	// Packages
	blob "gocloud.dev/blob"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WriteChunk writes the bytes for one chunk under the deterministic
// per-chunk key. Re-writing the same index overwrites the previous
// bytes. A failed copy deletes the partial object so no corrupt chunk
// survives for assembly.
func (b *blobbackend) WriteChunk(ctx context.Context, id string, index int64, r io.Reader) (int64, error) {
	sk := b.chunkKey(id, index)

	w, err := b.bucket.NewWriter(ctx, sk, &blob.WriterOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return 0, blobErr(err, sk)
	}

	n, err := io.Copy(w, r)
	if err != nil {
		err = errors.Join(err, w.Close())
		b.bucket.Delete(ctx, sk)
		return 0, blobErr(err, sk)
	}
	if err := w.Close(); err != nil {
		b.bucket.Delete(ctx, sk)
		return 0, blobErr(err, sk)
	}

	// Return the number of bytes written
	return n, nil
}
