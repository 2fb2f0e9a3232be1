// Package httpclient provides a typed client for the upload session API.
// The endpoint URL must include the API prefix, e.g.
// "http://localhost:8080/upload/v1".
package httpclient

import (
	// Packages
	client "github.com/mutablelogic/go-client"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client wraps the base HTTP client with typed methods for the upload
// session API.
type Client struct {
	*client.Client
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a new upload HTTP client with the given endpoint URL and
// options.
func New(url string, opts ...client.ClientOpt) (*Client, error) {
	c := new(Client)
	cl, err := client.New(append(opts, client.OptEndpoint(url))...)
	if err != nil {
		return nil, err
	}
	c.Client = cl

	// Return success
	return c, nil
}
