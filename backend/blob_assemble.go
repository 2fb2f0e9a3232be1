package backend

import (
	"context"
	"errors"
	"io"

	// Packages
	schema "github.com/mutablelogic/go-upload/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	blob "gocloud.dev/blob"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Assemble concatenates the chunks of an upload in index order
// 0..TotalChunks-1 into one final object, and returns the storage key of
// that object. Chunks may have arrived in any order; assembly by index
// guarantees byte-identical reconstruction of the original file. A failed
// assembly deletes the partial object and returns an error, leaving the
// chunks in place so assembly can be retried.
func (b *blobbackend) Assemble(ctx context.Context, req schema.AssembleRequest) (string, error) {
	if req.Id == "" || req.TotalChunks < 1 {
		return "", httpresponse.ErrBadRequest.Withf("invalid assemble request for %q", req.Id)
	}
	sk := b.objectKey(req.Id, req.FileName)

	contentType := req.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w, err := b.bucket.NewWriter(ctx, sk, &blob.WriterOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", blobErr(err, sk)
	}

	// Copy each chunk into the final object, in index order
	for index := int64(0); index < req.TotalChunks; index++ {
		if err := b.copyChunk(ctx, w, req.Id, index); err != nil {
			err = errors.Join(err, w.Close())
			b.bucket.Delete(ctx, sk)
			return "", err
		}
	}
	if err := w.Close(); err != nil {
		b.bucket.Delete(ctx, sk)
		return "", blobErr(err, sk)
	}

	// Return the storage key of the assembled object
	return sk, nil
}

// ReadObject reads back an assembled object by storage key. Caller must
// close the returned reader.
func (b *blobbackend) ReadObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	attrs, err := b.bucket.Attributes(ctx, key)
	if err != nil {
		return nil, 0, blobErr(err, key)
	}
	r, err := b.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, 0, blobErr(err, key)
	}
	return r, attrs.Size, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (b *blobbackend) copyChunk(ctx context.Context, w io.Writer, id string, index int64) error {
	sk := b.chunkKey(id, index)
	r, err := b.bucket.NewReader(ctx, sk, nil)
	if err != nil {
		return blobErr(err, sk)
	}
	defer r.Close()
	if _, err := io.Copy(w, r); err != nil {
		return blobErr(err, sk)
	}
	return nil
}
