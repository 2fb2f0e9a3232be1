package httpclient

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	// Packages
	client "github.com/mutablelogic/go-client"
	types "github.com/mutablelogic/go-server/pkg/types"
	checksum "github.com/mutablelogic/go-upload/checksum"
	schema "github.com/mutablelogic/go-upload/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// chunkPayload implements client.Payload for raw chunk PUT requests.
type chunkPayload struct {
	body *bytes.Reader
}

var _ client.Payload = (*chunkPayload)(nil)

///////////////////////////////////////////////////////////////////////////////
// INTERFACE IMPLEMENTATION

func (p *chunkPayload) Method() string {
	return http.MethodPut
}

func (p *chunkPayload) Accept() string {
	return types.ContentTypeJSON
}

func (p *chunkPayload) Type() string {
	return types.ContentTypeBinary
}

func (p *chunkPayload) Read(b []byte) (int, error) {
	return p.body.Read(b)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WriteChunk uploads the bytes for one chunk of an upload session. The
// chunk digest is computed and sent so the server can verify the bytes
// before persisting them.
func (c *Client) WriteChunk(ctx context.Context, id string, index int64, data []byte) (*schema.ChunkResponse, error) {
	payload := &chunkPayload{
		body: bytes.NewReader(data),
	}

	// Perform request
	var response schema.ChunkResponse
	if err := c.DoWithContext(ctx, payload, &response,
		client.OptPath("session", id, "chunk", strconv.FormatInt(index, 10)),
		client.OptReqHeader(schema.ChecksumHeader, checksum.Sum(data)),
	); err != nil {
		return nil, err
	}

	// Return the response
	return &response, nil
}
