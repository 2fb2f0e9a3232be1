package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	// Packages
	client "github.com/mutablelogic/go-client"
	schema "github.com/mutablelogic/go-upload/schema"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// CreateUpload initializes a new upload session for a file.
func (c *Client) CreateUpload(ctx context.Context, meta schema.UploadMeta) (*schema.UploadSession, error) {
	req, err := client.NewJSONRequest(meta)
	if err != nil {
		return nil, err
	}

	// Perform request
	var response schema.UploadSession
	if err := c.DoWithContext(ctx, req, &response, client.OptPath("session")); err != nil {
		return nil, err
	}

	// Return the response
	return &response, nil
}

// GetUpload returns the current state of an upload session.
func (c *Client) GetUpload(ctx context.Context, id string) (*schema.UploadSession, error) {
	req := client.NewRequest()

	// Perform request
	var response schema.UploadSession
	if err := c.DoWithContext(ctx, req, &response, client.OptPath("session", id)); err != nil {
		return nil, err
	}

	// Return the response
	return &response, nil
}

// ListUploads returns a page of upload sessions, newest first.
func (c *Client) ListUploads(ctx context.Context, opts ...ListOpt) (*schema.SessionList, error) {
	query := make(url.Values)
	for _, opt := range opts {
		opt(query)
	}

	// Perform request
	var response schema.SessionList
	if err := c.DoWithContext(ctx, client.NewRequest(), &response, client.OptPath("session"), client.OptQuery(query)); err != nil {
		return nil, err
	}

	// Return the response
	return &response, nil
}

// CompleteUpload assembles a fully-uploaded session into its final
// object and returns the storage key.
func (c *Client) CompleteUpload(ctx context.Context, id string) (*schema.CompleteResponse, error) {
	req := client.NewRequestEx(http.MethodPost, "")

	// Perform request
	var response schema.CompleteResponse
	if err := c.DoWithContext(ctx, req, &response, client.OptPath("session", id, "complete")); err != nil {
		return nil, err
	}

	// Return the response
	return &response, nil
}

// CancelUpload cancels an upload session. Cancelling a session which is
// already terminal is not an error.
func (c *Client) CancelUpload(ctx context.Context, id string) error {
	req := client.NewRequestEx(http.MethodDelete, "")
	return c.DoWithContext(ctx, req, nil, client.OptPath("session", id))
}

///////////////////////////////////////////////////////////////////////////////
// LIST OPTIONS

// ListOpt is a functional option for ListUploads.
type ListOpt func(url.Values)

// WithStatus filters the listing by session status.
func WithStatus(status schema.Status) ListOpt {
	return func(query url.Values) {
		query.Set("status", string(status))
	}
}

// WithOffsetLimit pages the listing.
func WithOffsetLimit(offset, limit uint64) ListOpt {
	return func(query url.Values) {
		query.Set("offset", strconv.FormatUint(offset, 10))
		query.Set("limit", strconv.FormatUint(limit, 10))
	}
}
