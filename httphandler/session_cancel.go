package httphandler

import (
	"net/http"

	// Packages
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	manager "github.com/mutablelogic/go-upload/manager"
)

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func sessionCancel(w http.ResponseWriter, r *http.Request, mgr *manager.Manager, id string) error {
	if _, err := mgr.CancelUpload(r.Context(), id); err != nil {
		return httpresponse.Error(w, err)
	}

	// Return success
	return httpresponse.Empty(w, http.StatusOK)
}
