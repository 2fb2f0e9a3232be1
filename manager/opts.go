package manager

import (
	"context"
	"time"

	// Packages
	upload "github.com/mutablelogic/go-upload"
	backend "github.com/mutablelogic/go-upload/backend"
	schema "github.com/mutablelogic/go-upload/schema"
	sessionstore "github.com/mutablelogic/go-upload/sessionstore"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt is a functional option for upload manager configuration.
type Opt func(*opts) error

type opts struct {
	tracer    trace.Tracer
	store     upload.Store
	blob      upload.Blob
	chunkSize int64
	ttl       time.Duration
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithTracer sets the tracer used for tracing operations.
func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

// WithStore sets the session store. When not set, an in-memory store is
// used, which is only suitable for tests and single-instance deployments.
func WithStore(store upload.Store) Opt {
	return func(o *opts) error {
		o.store = store
		return nil
	}
}

// WithBlob sets the blob backend directly.
func WithBlob(blob upload.Blob) Opt {
	return func(o *opts) error {
		o.blob = blob
		return nil
	}
}

// WithBackend opens a blob backend (mem://, file://, s3://) from a URL.
func WithBackend(ctx context.Context, url string, backendOpts ...backend.Opt) Opt {
	return func(o *opts) error {
		blob, err := backend.NewBlobBackend(ctx, url, backendOpts...)
		if err != nil {
			return err
		}
		o.blob = blob
		return nil
	}
}

// WithChunkSize sets the default chunk size offered to callers which do
// not request one.
func WithChunkSize(size int64) Opt {
	return func(o *opts) error {
		if size < 1 {
			return httpresponse.ErrBadRequest.Withf("invalid chunk size: %v", size)
		}
		o.chunkSize = size
		return nil
	}
}

// WithSessionTTL sets the session expiry window. The deadline slides
// forward by this amount on every accepted chunk.
func WithSessionTTL(ttl time.Duration) Opt {
	return func(o *opts) error {
		if ttl < time.Second {
			return httpresponse.ErrBadRequest.Withf("invalid session ttl: %v", ttl)
		}
		o.ttl = ttl
		return nil
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func applyOpts(_ context.Context, opt []Opt) (opts, error) {
	// Set defaults
	o := opts{
		chunkSize: schema.DefaultChunkSize,
		ttl:       schema.DefaultSessionTTL,
	}

	// Apply options
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}

	// Default to an in-memory session store
	if o.store == nil {
		o.store = sessionstore.NewMemStore()
	}

	// Return success
	return o, nil
}
