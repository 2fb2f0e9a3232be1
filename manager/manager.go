package manager

import (
	"context"
	"errors"
	"net/http"

	// Packages
	upload "github.com/mutablelogic/go-upload"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Manager orchestrates upload sessions: initialize, chunk, complete,
// cancel and expiry. The session store is the single source of truth for
// session state; the blob store holds chunk bytes and assembled objects.
type Manager struct {
	opts
}

// ErrGone rejects chunk and completion requests against sessions which
// are expired or otherwise in a terminal state.
var ErrGone = httpresponse.Err(http.StatusGone)

// maxRetries bounds the conditional-update retry loop for one request.
// Each retry re-reads the session, so a loop only repeats while other
// writers make progress on the same session.
const maxRetries = 5

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a new upload manager. A blob backend is required; the
// session store defaults to an in-memory store when none is provided.
func New(ctx context.Context, opt ...Opt) (*Manager, error) {
	self := new(Manager)

	// Apply options
	if opts, err := applyOpts(ctx, opt); err != nil {
		return nil, err
	} else {
		self.opts = opts
	}

	// A blob backend is required
	if self.blob == nil {
		return nil, httpresponse.ErrInternalError.With("no blob backend")
	}

	// Return success
	return self, nil
}

// Close releases the blob backend.
func (manager *Manager) Close() error {
	var result error
	if manager.blob != nil {
		result = errors.Join(result, manager.blob.Close())
		manager.blob = nil
	}

	// Return any errors
	return result
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Store returns the session store.
func (manager *Manager) Store() upload.Store {
	return manager.store
}

// Blob returns the blob backend.
func (manager *Manager) Blob() upload.Blob {
	return manager.blob
}
