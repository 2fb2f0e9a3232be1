package schema

import "time"

////////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	SchemaName       = "upload"
	APIPrefix        = "/upload/v1"
	SessionListLimit = 1000

	// DefaultChunkSize is the negotiated chunk size when the caller does
	// not request one.
	DefaultChunkSize int64 = 5 << 20

	// DefaultSessionTTL is the expiry window for a session. The deadline
	// slides forward by this amount on every accepted chunk.
	DefaultSessionTTL = time.Hour

	// DefaultSweepInterval is how often the expiry sweep runs.
	DefaultSweepInterval = 5 * time.Minute

	// ChecksumHeader carries the hex-encoded SHA-256 digest of the chunk
	// bytes on chunk upload requests.
	ChecksumHeader = "X-Chunk-Checksum"
)
