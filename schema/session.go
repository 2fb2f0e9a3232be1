package schema

import (
	"slices"
	"time"

	// Packages
	pg "github.com/mutablelogic/go-pg"
	types "github.com/mutablelogic/go-server/pkg/types"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Status is the lifecycle state of an upload session. A session never
// transitions out of a terminal state.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusUploading   Status = "uploading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusExpired     Status = "expired"
	StatusCancelled   Status = "cancelled"
)

// UploadMeta is the caller-supplied metadata for a new upload session.
type UploadMeta struct {
	FileName  string `json:"name"`
	FileSize  int64  `json:"size"`
	MimeType  string `json:"mimetype,omitempty"`
	ChunkSize int64  `json:"chunk_size,omitempty"`
}

// UploadSession tracks one in-progress or terminal upload attempt.
// TotalChunks is fixed at initialization and never recomputed. Chunks is
// the sorted set of chunk indices received so far. Version is the
// optimistic-concurrency token for conditional store updates.
type UploadSession struct {
	Id           string    `json:"id"`
	FileName     string    `json:"name"`
	MimeType     string    `json:"mimetype,omitempty"`
	FileSize     int64     `json:"size"`
	ChunkSize    int64     `json:"chunk_size"`
	TotalChunks  int64     `json:"total_chunks"`
	Chunks       []int64   `json:"chunks,omitempty"`
	Status       Status    `json:"status"`
	StorageKey   *string   `json:"storage_key,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
	LastActivity time.Time `json:"last_activity,omitzero"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
	Version      int64     `json:"-"`
}

// ChunkResponse reports progress after a chunk has been accepted.
type ChunkResponse struct {
	Id          string `json:"id"`
	Index       int64  `json:"index"`
	Received    int64  `json:"received"`
	TotalChunks int64  `json:"total_chunks"`
	Status      Status `json:"status"`
}

// CompleteResponse is returned when an upload has been assembled.
type CompleteResponse struct {
	Id         string `json:"id"`
	StorageKey string `json:"storage_key"`
	Size       int64  `json:"size"`
}

// AssembleRequest instructs the blob store to concatenate chunks
// 0..TotalChunks-1 into one final object.
type AssembleRequest struct {
	Id          string `json:"id"`
	FileName    string `json:"name"`
	MimeType    string `json:"mimetype,omitempty"`
	TotalChunks int64  `json:"total_chunks"`
}

type SessionListRequest struct {
	Status Status `json:"status,omitempty" help:"Filter by status"`
	pg.OffsetLimit
}

type SessionList struct {
	Count uint64          `json:"count"`
	Body  []UploadSession `json:"body,omitempty"`
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - STATUS

// Terminal reports whether the status is final. Terminal sessions never
// accept chunks and never transition again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether the status is one of the defined lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusInitialized, StatusUploading, StatusCompleted, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS - SESSION

// TotalChunksFor returns ceil(size/chunkSize). Both arguments must be
// positive.
func TotalChunksFor(size, chunkSize int64) int64 {
	return (size + chunkSize - 1) / chunkSize
}

// Received returns the number of distinct chunks received so far.
func (s *UploadSession) Received() int64 {
	return int64(len(s.Chunks))
}

// HasChunk reports whether a chunk index has already been received.
func (s *UploadSession) HasChunk(index int64) bool {
	_, found := slices.BinarySearch(s.Chunks, index)
	return found
}

// AddChunk adds a chunk index to the received set, keeping the set
// sorted. Adding an index twice is idempotent; the second add reports
// false and does not grow the set.
func (s *UploadSession) AddChunk(index int64) bool {
	i, found := slices.BinarySearch(s.Chunks, index)
	if found {
		return false
	}
	s.Chunks = slices.Insert(s.Chunks, i, index)
	return true
}

// Complete reports whether every chunk 0..TotalChunks-1 has been received.
func (s *UploadSession) Complete() bool {
	return s.Received() == s.TotalChunks
}

// Missing returns the chunk indices not yet received, in ascending order.
func (s *UploadSession) Missing() []int64 {
	if s.Complete() {
		return nil
	}
	missing := make([]int64, 0, s.TotalChunks-s.Received())
	for index := int64(0); index < s.TotalChunks; index++ {
		if !s.HasChunk(index) {
			missing = append(missing, index)
		}
	}
	return missing
}

// ExpiredAt reports whether the session deadline has passed at the given
// time. Terminal sessions are not considered expired; they are already
// final.
func (s *UploadSession) ExpiredAt(now time.Time) bool {
	return !s.Status.Terminal() && now.After(s.ExpiresAt)
}

////////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (s UploadSession) String() string {
	return types.Stringify(s)
}

func (m UploadMeta) String() string {
	return types.Stringify(m)
}

func (r ChunkResponse) String() string {
	return types.Stringify(r)
}

func (r CompleteResponse) String() string {
	return types.Stringify(r)
}

func (r SessionListRequest) String() string {
	return types.Stringify(r)
}

func (l SessionList) String() string {
	return types.Stringify(l)
}
