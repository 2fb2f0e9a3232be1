package httphandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	// Packages
	checksum "github.com/mutablelogic/go-upload/checksum"
	httphandler "github.com/mutablelogic/go-upload/httphandler"
	manager "github.com/mutablelogic/go-upload/manager"
	schema "github.com/mutablelogic/go-upload/schema"
	assert "github.com/stretchr/testify/assert"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// muxRouter adapts an http.ServeMux to the handler Router interface.
type muxRouter struct {
	mux *http.ServeMux
}

func (router *muxRouter) Origin() string {
	return "*"
}

func (router *muxRouter) HandleFunc(_ context.Context, path string, fn http.HandlerFunc) {
	router.mux.HandleFunc(path, fn)
}

///////////////////////////////////////////////////////////////////////////////
// TESTS

func Test_Handler_Session(t *testing.T) {
	assert := assert.New(t)
	mux := newTestMux(t)
	data := []byte("aaaabbbbcc")

	// Create a session
	var session schema.UploadSession
	response := do(mux, http.MethodPost, "/upload/v1/session", strings.NewReader(`{"name":"file.bin","size":10,"chunk_size":4}`), nil)
	if !assert.Equal(http.StatusCreated, response.Code, response.Body.String()) {
		t.FailNow()
	}
	assert.NoError(json.Unmarshal(response.Body.Bytes(), &session))
	assert.NotEmpty(session.Id)
	assert.Equal(int64(3), session.TotalChunks)

	t.Run("Get", func(t *testing.T) {
		response := do(mux, http.MethodGet, "/upload/v1/session/"+session.Id, nil, nil)
		assert.Equal(http.StatusOK, response.Code)

		var stored schema.UploadSession
		assert.NoError(json.Unmarshal(response.Body.Bytes(), &stored))
		assert.Equal(session.Id, stored.Id)
		assert.Equal(schema.StatusInitialized, stored.Status)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		response := do(mux, http.MethodGet, "/upload/v1/session/missing", nil, nil)
		assert.Equal(http.StatusNotFound, response.Code)
	})

	t.Run("List", func(t *testing.T) {
		response := do(mux, http.MethodGet, "/upload/v1/session", nil, nil)
		assert.Equal(http.StatusOK, response.Code)

		var list schema.SessionList
		assert.NoError(json.Unmarshal(response.Body.Bytes(), &list))
		assert.Equal(uint64(1), list.Count)
	})

	t.Run("Chunks", func(t *testing.T) {
		for _, index := range []string{"2", "0", "1"} {
			start := int64(index[0]-'0') * 4
			end := min(int64(len(data)), start+4)
			chunk := data[start:end]
			response := do(mux, http.MethodPut, "/upload/v1/session/"+session.Id+"/chunk/"+index, bytes.NewReader(chunk), map[string]string{
				schema.ChecksumHeader: checksum.Sum(chunk),
			})
			assert.Equal(http.StatusOK, response.Code, response.Body.String())
		}

		var progress schema.ChunkResponse
		response := do(mux, http.MethodPut, "/upload/v1/session/"+session.Id+"/chunk/0", bytes.NewReader(data[0:4]), nil)
		assert.Equal(http.StatusOK, response.Code)
		assert.NoError(json.Unmarshal(response.Body.Bytes(), &progress))
		assert.Equal(int64(3), progress.Received)
	})

	t.Run("ChecksumMismatch", func(t *testing.T) {
		response := do(mux, http.MethodPut, "/upload/v1/session/"+session.Id+"/chunk/0", bytes.NewReader(data[0:4]), map[string]string{
			schema.ChecksumHeader: checksum.Sum([]byte("other")),
		})
		assert.Equal(http.StatusBadRequest, response.Code)
	})

	t.Run("BadIndex", func(t *testing.T) {
		response := do(mux, http.MethodPut, "/upload/v1/session/"+session.Id+"/chunk/xx", bytes.NewReader(data[0:4]), nil)
		assert.Equal(http.StatusBadRequest, response.Code)
	})

	t.Run("Complete", func(t *testing.T) {
		var completed schema.CompleteResponse
		response := do(mux, http.MethodPost, "/upload/v1/session/"+session.Id+"/complete", nil, nil)
		assert.Equal(http.StatusOK, response.Code, response.Body.String())
		assert.NoError(json.Unmarshal(response.Body.Bytes(), &completed))
		assert.NotEmpty(completed.StorageKey)
		assert.Equal(int64(10), completed.Size)
	})

	t.Run("ChunkAfterComplete", func(t *testing.T) {
		response := do(mux, http.MethodPut, "/upload/v1/session/"+session.Id+"/chunk/0", bytes.NewReader(data[0:4]), nil)
		assert.Equal(http.StatusGone, response.Code)
	})
}

func Test_Handler_Cancel(t *testing.T) {
	assert := assert.New(t)
	mux := newTestMux(t)

	var session schema.UploadSession
	response := do(mux, http.MethodPost, "/upload/v1/session", strings.NewReader(`{"name":"doomed.bin","size":8,"chunk_size":4}`), nil)
	if !assert.Equal(http.StatusCreated, response.Code) {
		t.FailNow()
	}
	assert.NoError(json.Unmarshal(response.Body.Bytes(), &session))

	// Cancel twice, both succeed
	response = do(mux, http.MethodDelete, "/upload/v1/session/"+session.Id, nil, nil)
	assert.Equal(http.StatusOK, response.Code)
	response = do(mux, http.MethodDelete, "/upload/v1/session/"+session.Id, nil, nil)
	assert.Equal(http.StatusOK, response.Code)

	// Completion is rejected
	response = do(mux, http.MethodPost, "/upload/v1/session/"+session.Id+"/complete", nil, nil)
	assert.Equal(http.StatusGone, response.Code)
}

func Test_Handler_CreateInvalid(t *testing.T) {
	assert := assert.New(t)
	mux := newTestMux(t)

	response := do(mux, http.MethodPost, "/upload/v1/session", strings.NewReader(`{"size":8}`), nil)
	assert.Equal(http.StatusBadRequest, response.Code)
}

func Test_Handler_MethodNotAllowed(t *testing.T) {
	assert := assert.New(t)
	mux := newTestMux(t)

	response := do(mux, http.MethodPut, "/upload/v1/session", nil, nil)
	assert.Equal(http.StatusMethodNotAllowed, response.Code)
}

///////////////////////////////////////////////////////////////////////////////
// HELPERS

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mgr, err := manager.New(context.Background(), manager.WithBackend(context.Background(), "mem://"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mgr.Close() })

	router := &muxRouter{mux: http.NewServeMux()}
	httphandler.RegisterHandlers(context.Background(), router, mgr)
	return router.mux
}

func do(mux *http.ServeMux, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, body)
	if method == http.MethodPost && body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		r.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}
