package httpclient

import (
	"context"
	"io"
	"sync/atomic"

	// Packages
	schema "github.com/mutablelogic/go-upload/schema"
	errgroup "golang.org/x/sync/errgroup"
)

///////////////////////////////////////////////////////////////////////////////
// CONSTANTS

// parallelChunks is the default number of concurrent chunk uploads
// issued by Upload.
const parallelChunks = 4

///////////////////////////////////////////////////////////////////////////////
// TYPES

// UploadOpt is a functional option for Upload.
type UploadOpt func(*uploadOpts) error

type uploadOpts struct {
	parallel int
	progress func(received, total int64)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WithParallel sets the number of chunks uploaded concurrently.
func WithParallel(n int) UploadOpt {
	return func(o *uploadOpts) error {
		if n > 0 {
			o.parallel = n
		}
		return nil
	}
}

// WithProgress sets a callback invoked after each accepted chunk with
// the number of chunks received so far and the total chunk count.
func WithProgress(fn func(received, total int64)) UploadOpt {
	return func(o *uploadOpts) error {
		o.progress = fn
		return nil
	}
}

// Upload performs a whole chunked upload in one call: it initializes a
// session, splits the reader into chunks, uploads them with bounded
// parallelism, and completes the session. The reader must supply exactly
// meta.FileSize bytes. On failure the session is cancelled best-effort.
func (c *Client) Upload(ctx context.Context, r io.Reader, meta schema.UploadMeta, opts ...UploadOpt) (*schema.CompleteResponse, error) {
	o := uploadOpts{parallel: parallelChunks}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	// Initialize the session
	session, err := c.CreateUpload(ctx, meta)
	if err != nil {
		return nil, err
	}

	// Upload chunks with bounded parallelism. Chunks are read from the
	// reader in order; SetLimit backpressures the read loop so at most
	// parallel chunk buffers are in flight.
	var received atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.parallel)
	for index := int64(0); index < session.TotalChunks; index++ {
		size := session.ChunkSize
		if index == session.TotalChunks-1 {
			if remainder := session.FileSize % session.ChunkSize; remainder != 0 {
				size = remainder
			}
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			_ = group.Wait()
			_ = c.CancelUpload(ctx, session.Id)
			return nil, err
		}

		index := index
		group.Go(func() error {
			if _, err := c.WriteChunk(groupCtx, session.Id, index, chunk); err != nil {
				return err
			}
			if o.progress != nil {
				o.progress(received.Add(1), session.TotalChunks)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		_ = c.CancelUpload(ctx, session.Id)
		return nil, err
	}

	// Complete the session
	return c.CompleteUpload(ctx, session.Id)
}
