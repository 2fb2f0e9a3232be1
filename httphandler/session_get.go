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

func sessionGet(w http.ResponseWriter, r *http.Request, mgr *manager.Manager, id string) error {
	session, err := mgr.GetUpload(r.Context(), id)
	if err != nil {
		return httpresponse.Error(w, err)
	}

	// Return success
	return httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), session)
}
