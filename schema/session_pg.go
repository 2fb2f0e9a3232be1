package schema

import (
	"context"
	"strings"
	"time"

	// Packages
	pg "github.com/mutablelogic/go-pg"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// SessionId selects a session by its upload id.
type SessionId string

// SessionKey selects a session for a conditional update. The update only
// applies when the stored version matches.
type SessionKey struct {
	Id      string
	Version int64
}

// ExpiredListRequest selects live sessions whose deadline has passed.
type ExpiredListRequest struct {
	Now time.Time
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func Bootstrap(ctx context.Context, conn pg.Conn) error {
	// Create the schema
	if err := pg.SchemaCreate(ctx, conn, SchemaName); err != nil {
		return err
	}

	// Create types, tables, ...
	if err := bootstrapSession(ctx, conn); err != nil {
		return err
	}

	// Commit the transaction
	return nil
}

//////////////////////////////////////////////////////////////////////////////////
// SELECTOR

func (id SessionId) Select(bind *pg.Bind, op pg.Op) (string, error) {
	if id == "" {
		return "", httpresponse.ErrBadRequest.With("invalid upload id")
	} else {
		bind.Set("id", string(id))
	}

	switch op {
	case pg.Get:
		return sessionGet, nil
	case pg.Delete:
		return sessionDelete, nil
	default:
		return "", httpresponse.ErrNotImplemented.Withf("SessionId operation: %q", op)
	}
}

func (key SessionKey) Select(bind *pg.Bind, op pg.Op) (string, error) {
	if key.Id == "" {
		return "", httpresponse.ErrBadRequest.With("invalid upload id")
	} else {
		bind.Set("id", key.Id)
		bind.Set("version", key.Version)
	}

	switch op {
	case pg.Update:
		return sessionUpdate, nil
	default:
		return "", httpresponse.ErrNotImplemented.Withf("SessionKey operation: %q", op)
	}
}

func (req SessionListRequest) Select(bind *pg.Bind, op pg.Op) (string, error) {
	// Orderby
	bind.Set("orderby", `ORDER BY "created_at" DESC`)

	// Where
	var where []string
	if req.Status != "" {
		if !req.Status.Valid() {
			return "", httpresponse.ErrBadRequest.Withf("invalid status: %q", req.Status)
		}
		bind.Set("status", string(req.Status))
		where = append(where, `"status" = @status`)
	}
	if len(where) > 0 {
		bind.Set("where", "WHERE "+strings.Join(where, " AND "))
	} else {
		bind.Set("where", "")
	}

	// Bind offset and limit
	req.OffsetLimit.Bind(bind, SessionListLimit)

	switch op {
	case pg.List:
		return sessionList, nil
	default:
		return "", httpresponse.ErrNotImplemented.Withf("SessionListRequest operation: %q", op)
	}
}

func (req ExpiredListRequest) Select(bind *pg.Bind, op pg.Op) (string, error) {
	bind.Set("now", req.Now)

	switch op {
	case pg.List:
		return sessionExpiredList, nil
	default:
		return "", httpresponse.ErrNotImplemented.Withf("ExpiredListRequest operation: %q", op)
	}
}

//////////////////////////////////////////////////////////////////////////////////
// READER

func (s *UploadSession) Scan(row pg.Row) error {
	return row.Scan(
		&s.Id, &s.FileName, &s.MimeType, &s.FileSize, &s.ChunkSize,
		&s.TotalChunks, &s.Chunks, &s.Status, &s.StorageKey,
		&s.CreatedAt, &s.LastActivity, &s.ExpiresAt, &s.Version,
	)
}

func (l *SessionList) Scan(row pg.Row) error {
	var session UploadSession
	if err := session.Scan(row); err != nil {
		return err
	}
	l.Body = append(l.Body, session)
	return nil
}

func (l *SessionList) ScanCount(row pg.Row) error {
	return row.Scan(&l.Count)
}

//////////////////////////////////////////////////////////////////////////////////
// WRITER

func (s UploadSession) Insert(bind *pg.Bind) (string, error) {
	if s.Id == "" {
		return "", httpresponse.ErrBadRequest.With("invalid upload id")
	}
	if !s.Status.Valid() {
		return "", httpresponse.ErrBadRequest.Withf("invalid status: %q", s.Status)
	}
	bindSession(bind, &s)
	return sessionInsert, nil
}

func (s UploadSession) Update(bind *pg.Bind) error {
	if !s.Status.Valid() {
		return httpresponse.ErrBadRequest.Withf("invalid status: %q", s.Status)
	}
	bindSession(bind, &s)
	return nil
}

func bindSession(bind *pg.Bind, s *UploadSession) {
	bind.Set("id", s.Id)
	bind.Set("name", s.FileName)
	bind.Set("mimetype", s.MimeType)
	bind.Set("size", s.FileSize)
	bind.Set("chunk_size", s.ChunkSize)
	bind.Set("total_chunks", s.TotalChunks)
	bind.Set("chunks", s.Chunks)
	bind.Set("status", string(s.Status))
	bind.Set("storage_key", s.StorageKey)
	bind.Set("created_at", s.CreatedAt)
	bind.Set("last_activity", s.LastActivity)
	bind.Set("expires_at", s.ExpiresAt)
}

//////////////////////////////////////////////////////////////////////////////////
// SQL

// Create objects in the schema
func bootstrapSession(ctx context.Context, conn pg.Conn) error {
	q := []string{
		sessionCreateTable,
		sessionCreateIndex,
	}
	for _, query := range q {
		if err := conn.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

const (
	sessionCreateTable = `
		CREATE TABLE IF NOT EXISTS ${"schema"}."session" (
			"id"            TEXT PRIMARY KEY,                             -- Upload identifier
			"name"          TEXT NOT NULL,                                -- File name
			"mimetype"      TEXT NOT NULL DEFAULT '',                     -- MIME type
			"size"          BIGINT NOT NULL,                              -- Declared file size
			"chunk_size"    BIGINT NOT NULL,                              -- Negotiated chunk size
			"total_chunks"  BIGINT NOT NULL,                              -- ceil(size / chunk_size)
			"chunks"        BIGINT[] NOT NULL DEFAULT '{}',               -- Received chunk indices
			"status"        TEXT NOT NULL,                                -- Lifecycle state
			"storage_key"   TEXT,                                         -- Set on completion
			"created_at"    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP, -- Creation timestamp
			"last_activity" TIMESTAMP NOT NULL,                           -- Last accepted chunk
			"expires_at"    TIMESTAMP NOT NULL,                           -- Sliding expiry deadline
			"version"       BIGINT NOT NULL DEFAULT 1,                    -- Conditional-update token
			CHECK ("status" IN ('initialized', 'uploading', 'completed', 'failed', 'expired', 'cancelled'))
		)
	`
	sessionCreateIndex = `
		CREATE INDEX IF NOT EXISTS "session_status_expires_idx" ON ${"schema"}."session" ("status", "expires_at")
	`
	sessionColumns = `
		"id", "name", "mimetype", "size", "chunk_size", "total_chunks", "chunks",
		"status", "storage_key", "created_at", "last_activity", "expires_at", "version"
	`
	sessionInsert = `
		INSERT INTO ${"schema"}."session" (
			"id", "name", "mimetype", "size", "chunk_size", "total_chunks", "chunks",
			"status", "storage_key", "created_at", "last_activity", "expires_at", "version"
		) VALUES (
			@id, @name, @mimetype, @size, @chunk_size, @total_chunks, @chunks,
			@status, @storage_key, @created_at, @last_activity, @expires_at, DEFAULT
		) RETURNING ` + sessionColumns
	sessionSelect = `SELECT ` + sessionColumns + ` FROM ${"schema"}."session"`
	sessionGet    = sessionSelect + ` WHERE "id" = @id`
	sessionDelete = `DELETE FROM ${"schema"}."session" WHERE "id" = @id RETURNING ` + sessionColumns
	sessionList   = `WITH q AS (` + sessionSelect + `) SELECT * FROM q ${where} ${orderby}`
	// The version guard makes the update a compare-and-swap: a concurrent
	// writer which committed first leaves no row matching, and the caller
	// sees a conflict instead of silently losing its update.
	sessionUpdate = `
		UPDATE ${"schema"}."session" SET
			"chunks" = @chunks, "status" = @status, "storage_key" = @storage_key,
			"last_activity" = @last_activity, "expires_at" = @expires_at,
			"version" = "version" + 1
		WHERE "id" = @id AND "version" = @version
		RETURNING ` + sessionColumns
	sessionExpiredList = `WITH q AS (` + sessionSelect + `) SELECT * FROM q WHERE "status" IN ('initialized', 'uploading') AND "expires_at" < @now ORDER BY "expires_at"`
)
