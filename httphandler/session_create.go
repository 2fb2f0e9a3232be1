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

func sessionCreate(w http.ResponseWriter, r *http.Request, mgr *manager.Manager) error {
	// Read request
	var meta schema.UploadMeta
	if err := httprequest.Read(r, &meta); err != nil {
		return httpresponse.Error(w, err)
	}

	// Create session
	session, err := mgr.CreateUpload(r.Context(), meta)
	if err != nil {
		return httpresponse.Error(w, err)
	}

	// Return success
	return httpresponse.JSON(w, http.StatusCreated, httprequest.Indent(r), session)
}
