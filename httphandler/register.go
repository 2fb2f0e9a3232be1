package httphandler

import (
	"context"
	"net/http"
	"strconv"

	// Packages
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	types "github.com/mutablelogic/go-server/pkg/types"
	manager "github.com/mutablelogic/go-upload/manager"
	schema "github.com/mutablelogic/go-upload/schema"
)

////////////////////////////////////////////////////////////////////////////////
// INTERFACES

// Router is the interface required to register HTTP handlers. It is
// satisfied by the go-server HTTP router.
type Router interface {
	// Return the CORS origin
	Origin() string

	// Register a handler for a path
	HandleFunc(context.Context, string, http.HandlerFunc)
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterHandlers registers all upload session handlers on the provided
// router under the API prefix.
func RegisterHandlers(ctx context.Context, router Router, mgr *manager.Manager) {
	registerSessionHandlers(ctx, router, schema.APIPrefix, mgr)
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func registerSessionHandlers(ctx context.Context, router Router, prefix string, mgr *manager.Manager) {
	// Create or list sessions
	router.HandleFunc(ctx, types.JoinPath(prefix, "session"), func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		httpresponse.Cors(w, r, router.Origin(), http.MethodGet, http.MethodPost)

		switch r.Method {
		case http.MethodOptions:
			_ = httpresponse.Empty(w, http.StatusOK)
		case http.MethodPost:
			_ = sessionCreate(w, r, mgr)
		case http.MethodGet:
			_ = sessionList(w, r, mgr)
		default:
			_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
		}
	})

	// Get or cancel a session
	router.HandleFunc(ctx, types.JoinPath(prefix, "session/{id}"), func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		httpresponse.Cors(w, r, router.Origin(), http.MethodGet, http.MethodDelete)

		switch r.Method {
		case http.MethodOptions:
			_ = httpresponse.Empty(w, http.StatusOK)
		case http.MethodGet:
			_ = sessionGet(w, r, mgr, r.PathValue("id"))
		case http.MethodDelete:
			_ = sessionCancel(w, r, mgr, r.PathValue("id"))
		default:
			_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
		}
	})

	// Upload one chunk
	router.HandleFunc(ctx, types.JoinPath(prefix, "session/{id}/chunk/{index}"), func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		httpresponse.Cors(w, r, router.Origin(), http.MethodPut)

		switch r.Method {
		case http.MethodOptions:
			_ = httpresponse.Empty(w, http.StatusOK)
		case http.MethodPut:
			index, err := strconv.ParseInt(r.PathValue("index"), 10, 64)
			if err != nil {
				_ = httpresponse.Error(w, httpresponse.ErrBadRequest.Withf("invalid chunk index %q", r.PathValue("index")))
				return
			}
			_ = chunkPut(w, r, mgr, r.PathValue("id"), index)
		default:
			_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
		}
	})

	// Complete a session
	router.HandleFunc(ctx, types.JoinPath(prefix, "session/{id}/complete"), func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		httpresponse.Cors(w, r, router.Origin(), http.MethodPost)

		switch r.Method {
		case http.MethodOptions:
			_ = httpresponse.Empty(w, http.StatusOK)
		case http.MethodPost:
			_ = sessionComplete(w, r, mgr, r.PathValue("id"))
		default:
			_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
		}
	})
}
