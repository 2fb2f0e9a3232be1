package sessionstore

import (
	"context"
	"errors"
	"time"

	// Packages
	pg "github.com/mutablelogic/go-pg"
	upload "github.com/mutablelogic/go-upload"
	schema "github.com/mutablelogic/go-upload/schema"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// pgstore persists sessions in a postgresql table with a version column,
// so concurrent chunk uploads from any number of server instances update
// session state through conditional writes.
type pgstore struct {
	conn pg.PoolConn
}

var _ upload.Store = (*pgstore)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewPGStore creates the schema objects if they do not exist and returns
// a postgresql-backed session store.
func NewPGStore(ctx context.Context, conn pg.PoolConn) (*pgstore, error) {
	self := new(pgstore)

	if conn == nil {
		return nil, httpresponse.ErrInternalError.With("connection is nil")
	} else {
		self.conn = conn.With("schema", schema.SchemaName).(pg.PoolConn)
	}

	// Create the schema
	if exists, err := pg.SchemaExists(ctx, self.conn, schema.SchemaName); err != nil {
		return nil, err
	} else if !exists {
		if err := pg.SchemaCreate(ctx, self.conn, schema.SchemaName); err != nil {
			return nil, err
		}
	}

	// Bootstrap the schema
	if err := self.conn.Tx(ctx, func(conn pg.Conn) error {
		return schema.Bootstrap(ctx, conn)
	}); err != nil {
		return nil, err
	}

	// Return success
	return self, nil
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (store *pgstore) CreateSession(ctx context.Context, session *schema.UploadSession) error {
	var inserted schema.UploadSession
	if err := store.conn.Insert(ctx, &inserted, *session); err != nil {
		return httperr(err, session.Id)
	}
	*session = inserted

	// Return success
	return nil
}

func (store *pgstore) GetSession(ctx context.Context, id string) (*schema.UploadSession, error) {
	var session schema.UploadSession
	if err := store.conn.Get(ctx, &session, schema.SessionId(id)); err != nil {
		return nil, httperr(err, id)
	}
	// Return success
	return &session, nil
}

func (store *pgstore) UpdateSession(ctx context.Context, session *schema.UploadSession) error {
	var updated schema.UploadSession
	err := store.conn.Update(ctx, &updated, schema.SessionKey{Id: session.Id, Version: session.Version}, *session)
	if errors.Is(err, pg.ErrNotFound) {
		// No row matched the version guard. Distinguish a missing session
		// from a concurrent update.
		if _, err := store.GetSession(ctx, session.Id); err != nil {
			return err
		}
		return httpresponse.ErrConflict.Withf("upload %q version mismatch", session.Id)
	} else if err != nil {
		return err
	}
	*session = updated

	// Return success
	return nil
}

func (store *pgstore) ListSessions(ctx context.Context, req schema.SessionListRequest) (*schema.SessionList, error) {
	var list schema.SessionList
	if err := store.conn.List(ctx, &list, req); err != nil {
		return nil, err
	}
	return &list, nil
}

func (store *pgstore) ListExpired(ctx context.Context, now time.Time) ([]schema.UploadSession, error) {
	var list schema.SessionList
	if err := store.conn.List(ctx, &list, schema.ExpiredListRequest{Now: now}); err != nil {
		return nil, err
	}
	return list.Body, nil
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func httperr(err error, id string) error {
	if errors.Is(err, pg.ErrNotFound) {
		return httpresponse.ErrNotFound.Withf("upload %q not found", id)
	}
	return err
}
