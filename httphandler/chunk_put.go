package httphandler

import (
	"net/http"

	// Packages
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	manager "github.com/mutablelogic/go-upload/manager"
	schema "github.com/mutablelogic/go-upload/schema"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func chunkPut(w http.ResponseWriter, r *http.Request, mgr *manager.Manager, id string, index int64) error {
	// The chunk digest is optional
	digest := r.Header.Get(schema.ChecksumHeader)

	response, err := mgr.WriteChunk(r.Context(), id, index, digest, r.Body)
	if err != nil {
		return httpresponse.Error(w, err)
	}

	// Return success
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), response)
}
