package upload

import (
	"context"
	"io"
	"net/url"
	"time"

	// Packages
	schema "github.com/mutablelogic/go-upload/schema"
)

////////////////////////////////////////////////////////////////////////////////
// INTERFACES

// Blob is the interface for durable chunk and object storage. Chunks are
// written under a deterministic per-chunk key, then assembled in index
// order into one final object when an upload completes.
type Blob interface {
	io.Closer

	// Name returns the name of the blob backend
	Name() string

	// URL returns the backend destination URL. The scheme, host (bucket/name),
	// and path (prefix/directory) identify the storage location.
	URL() *url.URL

	// WriteChunk writes the bytes for one chunk of an upload. Returns the
	// number of bytes written.
	WriteChunk(context.Context, string, int64, io.Reader) (int64, error)

	// Assemble concatenates the chunks of an upload in index order
	// 0..total-1 into one final object, and returns the storage key of
	// that object.
	Assemble(context.Context, schema.AssembleRequest) (string, error)

	// ReadObject reads back an assembled object by storage key.
	// Caller must close the returned reader.
	ReadObject(context.Context, string) (io.ReadCloser, int64, error)

	// DeleteChunks removes all per-chunk objects for an upload. Used for
	// cleanup after completion, cancellation or expiry.
	DeleteChunks(context.Context, string) error

	// DeleteObject removes an assembled object by storage key.
	DeleteObject(context.Context, string) error
}

// Store is the interface for upload session persistence. The store is the
// single source of truth for session state, and must support conditional
// updates so that concurrent chunk uploads for the same session never
// lose updates.
type Store interface {
	// CreateSession persists a new session. Fails if a session with the
	// same id already exists.
	CreateSession(context.Context, *schema.UploadSession) error

	// GetSession returns the latest committed state of a session, or
	// ErrNotFound.
	GetSession(context.Context, string) (*schema.UploadSession, error)

	// UpdateSession writes the given session state, conditional on the
	// session's Version matching the stored version. On success the
	// Version is incremented in place. A version mismatch returns
	// ErrConflict and leaves the stored state unchanged.
	UpdateSession(context.Context, *schema.UploadSession) error

	// ListSessions returns a page of sessions, newest first.
	ListSessions(context.Context, schema.SessionListRequest) (*schema.SessionList, error)

	// ListExpired returns live sessions (initialized or uploading) whose
	// expiry deadline has passed.
	ListExpired(context.Context, time.Time) ([]schema.UploadSession, error)
}
