package httphandler

import (
	"net/http"

	// Packages
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	manager "github.com/mutablelogic/go-upload/manager"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func sessionComplete(w http.ResponseWriter, r *http.Request, mgr *manager.Manager, id string) error {
	response, err := mgr.CompleteUpload(r.Context(), id)
	if err != nil {
		return httpresponse.Error(w, err)
	}

	// Return success
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), response)
}
