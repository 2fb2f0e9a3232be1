package sessionstore

import (
	"context"
	"slices"
	"sync"
	"time"

	// Packages
	upload "github.com/mutablelogic/go-upload"
	schema "github.com/mutablelogic/go-upload/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// memstore keeps sessions in process memory. It is used by tests and
// single-instance deployments; multi-instance deployments should use the
// postgresql store so session state survives restarts and is shared
// between instances.
type memstore struct {
	sync.RWMutex
	sessions map[string]*schema.UploadSession
}

var _ upload.Store = (*memstore)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewMemStore creates an empty in-memory session store.
func NewMemStore() *memstore {
	self := new(memstore)
	self.sessions = make(map[string]*schema.UploadSession)
	return self
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (store *memstore) CreateSession(_ context.Context, session *schema.UploadSession) error {
	store.Lock()
	defer store.Unlock()

	if _, exists := store.sessions[session.Id]; exists {
		return httpresponse.ErrConflict.Withf("upload %q already exists", session.Id)
	}
	session.Version = 1
	store.sessions[session.Id] = copySession(session)

	// Return success
	return nil
}

func (store *memstore) GetSession(_ context.Context, id string) (*schema.UploadSession, error) {
	store.RLock()
	defer store.RUnlock()

	session, exists := store.sessions[id]
	if !exists {
		return nil, httpresponse.ErrNotFound.Withf("upload %q not found", id)
	}
	return copySession(session), nil
}

func (store *memstore) UpdateSession(_ context.Context, session *schema.UploadSession) error {
	store.Lock()
	defer store.Unlock()

	stored, exists := store.sessions[session.Id]
	if !exists {
		return httpresponse.ErrNotFound.Withf("upload %q not found", session.Id)
	}
	if stored.Version != session.Version {
		return httpresponse.ErrConflict.Withf("upload %q version mismatch", session.Id)
	}
	session.Version = stored.Version + 1
	store.sessions[session.Id] = copySession(session)

	// Return success
	return nil
}

func (store *memstore) ListSessions(_ context.Context, req schema.SessionListRequest) (*schema.SessionList, error) {
	store.RLock()
	defer store.RUnlock()

	// Filter and sort newest first
	sessions := make([]schema.UploadSession, 0, len(store.sessions))
	for _, session := range store.sessions {
		if req.Status != "" && session.Status != req.Status {
			continue
		}
		sessions = append(sessions, *copySession(session))
	}
	slices.SortFunc(sessions, func(a, b schema.UploadSession) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	// Page the results
	var list schema.SessionList
	list.Count = uint64(len(sessions))
	limit := uint64(schema.SessionListLimit)
	if req.Limit != nil {
		limit = min(types.PtrUint64(req.Limit), schema.SessionListLimit)
	}
	for i := req.Offset; i < list.Count && uint64(len(list.Body)) < limit; i++ {
		list.Body = append(list.Body, sessions[i])
	}

	// Return success
	return &list, nil
}

func (store *memstore) ListExpired(_ context.Context, now time.Time) ([]schema.UploadSession, error) {
	store.RLock()
	defer store.RUnlock()

	var expired []schema.UploadSession
	for _, session := range store.sessions {
		if session.ExpiredAt(now) {
			expired = append(expired, *copySession(session))
		}
	}
	slices.SortFunc(expired, func(a, b schema.UploadSession) int {
		return a.ExpiresAt.Compare(b.ExpiresAt)
	})
	return expired, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// copySession returns a deep copy, so callers never share chunk slices
// with the stored state.
func copySession(session *schema.UploadSession) *schema.UploadSession {
	copied := *session
	copied.Chunks = slices.Clone(session.Chunks)
	if session.StorageKey != nil {
		key := *session.StorageKey
		copied.StorageKey = &key
	}
	return &copied
}
