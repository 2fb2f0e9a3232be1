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

// DeleteChunks removes all per-chunk objects for an upload. Deleting
// chunks which do not exist is not an error, so cleanup after cancel or
// expiry is idempotent.
func (b *blobbackend) DeleteChunks(ctx context.Context, id string) error {
	prefix := b.chunkPrefix(id)

	var result error
	iter := b.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Join(result, blobErr(err, prefix))
		}
		if obj.IsDir {
			continue
		}
		if err := b.bucket.Delete(ctx, obj.Key); err != nil {
			result = errors.Join(result, blobErr(err, obj.Key))
		}
	}

	// Return any errors
	return result
}

// DeleteObject removes an assembled object by storage key.
func (b *blobbackend) DeleteObject(ctx context.Context, key string) error {
	if err := b.bucket.Delete(ctx, key); err != nil {
		return blobErr(err, key)
	}
	return nil
}
