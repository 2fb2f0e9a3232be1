package manager

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	// Packages
	uuid "github.com/google/uuid"
	otel "github.com/mutablelogic/go-client/pkg/otel"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	checksum "github.com/mutablelogic/go-upload/checksum"
	schema "github.com/mutablelogic/go-upload/schema"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// CreateUpload initializes a new upload session from caller metadata.
// The session starts in the initialized state with no chunks received;
// nothing is written to the blob store.
func (manager *Manager) CreateUpload(ctx context.Context, meta schema.UploadMeta) (*schema.UploadSession, error) {
	// OTEL span
	var result error
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("CreateUpload"))
	defer func() { endFunc(result) }()

	// Validate the metadata
	if meta.FileName == "" {
		result = httpresponse.ErrBadRequest.With("missing file name")
		return nil, result
	}
	if meta.FileSize < 1 {
		result = httpresponse.ErrBadRequest.Withf("invalid file size: %v", meta.FileSize)
		return nil, result
	}
	chunkSize := meta.ChunkSize
	if chunkSize == 0 {
		chunkSize = manager.chunkSize
	}
	if chunkSize < 1 {
		result = httpresponse.ErrBadRequest.Withf("invalid chunk size: %v", chunkSize)
		return nil, result
	}

	// Create the session
	now := time.Now().UTC()
	session := &schema.UploadSession{
		Id:           uuid.NewString(),
		FileName:     meta.FileName,
		MimeType:     meta.MimeType,
		FileSize:     meta.FileSize,
		ChunkSize:    chunkSize,
		TotalChunks:  schema.TotalChunksFor(meta.FileSize, chunkSize),
		Status:       schema.StatusInitialized,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(manager.ttl),
	}
	if err := manager.store.CreateSession(child, session); err != nil {
		result = err
		return nil, result
	}

	// Return success
	return session, nil
}

// GetUpload returns the latest committed state of a session.
func (manager *Manager) GetUpload(ctx context.Context, id string) (*schema.UploadSession, error) {
	// OTEL span
	var result error
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("GetUpload"))
	defer func() { endFunc(result) }()

	// Read the session
	session, err := manager.store.GetSession(child, id)
	if err != nil {
		result = err
		return nil, result
	}

	// Return success
	return session, nil
}

// ListUploads returns a page of sessions, newest first.
func (manager *Manager) ListUploads(ctx context.Context, req schema.SessionListRequest) (*schema.SessionList, error) {
	// OTEL span
	var result error
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("ListUploads"))
	defer func() { endFunc(result) }()

	// List the sessions
	list, err := manager.store.ListSessions(child, req)
	if err != nil {
		result = err
		return nil, result
	}

	// Return success
	return list, nil
}

// WriteChunk stores the bytes for one chunk of an upload and records the
// chunk index against the session. When a digest is supplied it is
// verified against the chunk bytes before anything is persisted, so a
// corrupt chunk leaves both the session and the blob store untouched.
// Re-uploading an index which was already received is idempotent. Each
// accepted chunk slides the session expiry deadline forward.
func (manager *Manager) WriteChunk(ctx context.Context, id string, index int64, digest string, r io.Reader) (*schema.ChunkResponse, error) {
	// OTEL span
	var result error
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("WriteChunk"))
	defer func() { endFunc(result) }()

	// Read the session, check it can still accept chunks
	session, err := manager.store.GetSession(child, id)
	if err != nil {
		result = err
		return nil, result
	}
	if err := manager.checkWritable(child, session); err != nil {
		result = err
		return nil, result
	}
	if index < 0 || index >= session.TotalChunks {
		result = httpresponse.ErrBadRequest.Withf("upload %q: chunk index %d out of range [0,%d)", id, index, session.TotalChunks)
		return nil, result
	}

	// Buffer the chunk so it can be verified before the blob write. The
	// final chunk carries the remainder of the file, all others are
	// exactly one chunk size.
	data, err := io.ReadAll(io.LimitReader(r, session.ChunkSize+1))
	if err != nil {
		result = httpresponse.ErrBadRequest.Withf("upload %q: reading chunk %d: %v", id, index, err)
		return nil, result
	}
	if expected := chunkSizeFor(session, index); int64(len(data)) != expected {
		result = httpresponse.ErrBadRequest.Withf("upload %q: chunk %d is %d bytes, expected %d", id, index, len(data), expected)
		return nil, result
	}
	if digest != "" && !checksum.Verify(data, digest) {
		result = httpresponse.ErrBadRequest.Withf("upload %q: checksum mismatch for chunk %d", id, index)
		return nil, result
	}

	// Write the chunk bytes. On failure the chunk is not recorded, so
	// the client may retry the same index.
	if _, err := manager.blob.WriteChunk(child, id, index, bytes.NewReader(data)); err != nil {
		result = err
		return nil, result
	}

	// Record the chunk index, retrying on version conflicts with
	// concurrent chunk uploads for the same session
	for retry := 0; ; retry++ {
		session.AddChunk(index)
		if session.Status == schema.StatusInitialized {
			session.Status = schema.StatusUploading
		}
		now := time.Now().UTC()
		session.LastActivity = now
		session.ExpiresAt = now.Add(manager.ttl)

		err := manager.store.UpdateSession(child, session)
		if err == nil {
			break
		}
		if !errors.Is(err, httpresponse.ErrConflict) || retry >= maxRetries {
			result = err
			return nil, result
		}
		if session, err = manager.store.GetSession(child, id); err != nil {
			result = err
			return nil, result
		}
		if err := manager.checkWritable(child, session); err != nil {
			result = err
			return nil, result
		}
	}

	// Return success
	return &schema.ChunkResponse{
		Id:          session.Id,
		Index:       index,
		Received:    session.Received(),
		TotalChunks: session.TotalChunks,
		Status:      session.Status,
	}, nil
}

// CompleteUpload assembles the chunks of a fully-received upload into
// the final object and marks the session completed. Completing an
// already-completed session returns the same storage key. When chunks
// are missing the session is left as-is and the error names the missing
// indices.
func (manager *Manager) CompleteUpload(ctx context.Context, id string) (*schema.CompleteResponse, error) {
	// OTEL span
	var result error
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("CompleteUpload"))
	defer func() { endFunc(result) }()

	// Read the session
	session, err := manager.store.GetSession(child, id)
	if err != nil {
		result = err
		return nil, result
	}
	if response := completedResponse(session); response != nil {
		return response, nil
	}
	if err := manager.checkWritable(child, session); err != nil {
		result = err
		return nil, result
	}
	if !session.Complete() {
		result = httpresponse.ErrConflict.Withf("upload %q incomplete: missing chunks %v", id, session.Missing())
		return nil, result
	}

	// Assemble the final object. On failure the session stays in the
	// uploading state so completion can be retried.
	key, err := manager.blob.Assemble(child, schema.AssembleRequest{
		Id:          session.Id,
		FileName:    session.FileName,
		MimeType:    session.MimeType,
		TotalChunks: session.TotalChunks,
	})
	if err != nil {
		result = err
		return nil, result
	}

	// Mark the session completed. A concurrent completion may win the
	// race; both callers then observe the same storage key.
	for retry := 0; ; retry++ {
		session.Status = schema.StatusCompleted
		session.StorageKey = &key
		session.LastActivity = time.Now().UTC()

		err := manager.store.UpdateSession(child, session)
		if err == nil {
			break
		}
		if !errors.Is(err, httpresponse.ErrConflict) || retry >= maxRetries {
			result = err
			return nil, result
		}
		if session, err = manager.store.GetSession(child, id); err != nil {
			result = err
			return nil, result
		}
		if response := completedResponse(session); response != nil {
			return response, nil
		}
		if err := manager.checkWritable(child, session); err != nil {
			result = err
			return nil, result
		}
	}

	// Chunk cleanup is best-effort, the expiry sweeper retries it
	_ = manager.blob.DeleteChunks(child, id)

	// Return success
	return &schema.CompleteResponse{
		Id:         session.Id,
		StorageKey: key,
		Size:       session.FileSize,
	}, nil
}

// CancelUpload cancels an upload session and removes its chunks.
// Cancelling a session which is already in a terminal state is a no-op
// which returns the session unchanged.
func (manager *Manager) CancelUpload(ctx context.Context, id string) (*schema.UploadSession, error) {
	// OTEL span
	var result error
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("CancelUpload"))
	defer func() { endFunc(result) }()

	// Read the session
	session, err := manager.store.GetSession(child, id)
	if err != nil {
		result = err
		return nil, result
	}

	// Mark the session cancelled, unless it is already terminal
	for retry := 0; !session.Status.Terminal(); retry++ {
		session.Status = schema.StatusCancelled
		session.LastActivity = time.Now().UTC()

		err := manager.store.UpdateSession(child, session)
		if err == nil {
			break
		}
		if !errors.Is(err, httpresponse.ErrConflict) || retry >= maxRetries {
			result = err
			return nil, result
		}
		if session, err = manager.store.GetSession(child, id); err != nil {
			result = err
			return nil, result
		}
	}

	// Chunk cleanup is best-effort and does not fail the cancel
	_ = manager.blob.DeleteChunks(child, id)

	// Return success
	return session, nil
}

// PurgeExpired marks live sessions whose deadline has passed as expired
// and removes their chunks. It returns the number of sessions expired.
// Expiry is also enforced on every chunk and completion request, so the
// sweep only reclaims storage, it is not on the critical path.
func (manager *Manager) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	// OTEL span
	var result error
	child, endFunc := otel.StartSpan(manager.tracer, ctx, spanManagerName("PurgeExpired"))
	defer func() { endFunc(result) }()

	// List sessions past their deadline
	expired, err := manager.store.ListExpired(child, now)
	if err != nil {
		result = err
		return 0, result
	}

	// Mark each expired and remove its chunks. A version conflict means
	// another writer touched the session, leave it for the next sweep.
	var count int
	for i := range expired {
		session := &expired[i]
		session.Status = schema.StatusExpired
		session.LastActivity = now
		if err := manager.store.UpdateSession(child, session); err != nil {
			if !errors.Is(err, httpresponse.ErrConflict) && !errors.Is(err, httpresponse.ErrNotFound) {
				result = errors.Join(result, err)
			}
			continue
		}
		if err := manager.blob.DeleteChunks(child, session.Id); err != nil {
			result = errors.Join(result, err)
		}
		count++
	}

	// Return any errors
	return count, result
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// checkWritable returns ErrGone when the session is terminal or past its
// deadline. A session found past its deadline is marked expired on the
// way out, so later reads observe the terminal state.
func (manager *Manager) checkWritable(ctx context.Context, session *schema.UploadSession) error {
	if session.Status.Terminal() {
		return ErrGone.Withf("upload %q is %v", session.Id, session.Status)
	}
	if session.ExpiredAt(time.Now()) {
		expired := *session
		expired.Status = schema.StatusExpired
		if err := manager.store.UpdateSession(ctx, &expired); err == nil {
			_ = manager.blob.DeleteChunks(ctx, session.Id)
		}
		return ErrGone.Withf("upload %q has expired", session.Id)
	}
	return nil
}

// chunkSizeFor returns the exact byte length chunk index must carry.
func chunkSizeFor(session *schema.UploadSession, index int64) int64 {
	if index == session.TotalChunks-1 {
		if remainder := session.FileSize % session.ChunkSize; remainder != 0 {
			return remainder
		}
	}
	return session.ChunkSize
}

// completedResponse returns the idempotent completion response for a
// session which has already completed, or nil.
func completedResponse(session *schema.UploadSession) *schema.CompleteResponse {
	if session.Status != schema.StatusCompleted || session.StorageKey == nil {
		return nil
	}
	return &schema.CompleteResponse{
		Id:         session.Id,
		StorageKey: *session.StorageKey,
		Size:       session.FileSize,
	}
}

func spanManagerName(op string) string {
	return schema.SchemaName + ".manager." + op
}
