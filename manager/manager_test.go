package manager

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	// Packages
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	checksum "github.com/mutablelogic/go-upload/checksum"
	schema "github.com/mutablelogic/go-upload/schema"
	assert "github.com/stretchr/testify/assert"
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE TESTS

func Test_Manager_New(t *testing.T) {
	assert := assert.New(t)

	t.Run("NoBackend", func(t *testing.T) {
		_, err := New(context.TODO())
		assert.Error(err)
	})

	t.Run("MemBackend", func(t *testing.T) {
		mgr, err := New(context.TODO(), WithBackend(context.TODO(), "mem://"))
		assert.NoError(err)
		assert.NotNil(mgr)
		assert.NoError(mgr.Close())
	})

	t.Run("InvalidChunkSize", func(t *testing.T) {
		_, err := New(context.TODO(), WithBackend(context.TODO(), "mem://"), WithChunkSize(0))
		assert.Error(err)
	})
}

////////////////////////////////////////////////////////////////////////////////
// CREATE TESTS

func Test_Manager_CreateUpload(t *testing.T) {
	assert := assert.New(t)
	mgr := newTestManager(t)

	t.Run("Valid", func(t *testing.T) {
		session, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{
			FileName: "report.csv", FileSize: 10, MimeType: "text/csv",
		})
		if !assert.NoError(err) {
			t.FailNow()
		}
		assert.NotEmpty(session.Id)
		assert.Equal(schema.StatusInitialized, session.Status)
		assert.Equal(int64(4), session.ChunkSize)
		assert.Equal(int64(3), session.TotalChunks)
		assert.Empty(session.Chunks)
		assert.True(session.ExpiresAt.After(time.Now()))
	})

	t.Run("ExactMultiple", func(t *testing.T) {
		session, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{
			FileName: "exact.bin", FileSize: 8,
		})
		assert.NoError(err)
		assert.Equal(int64(2), session.TotalChunks)
	})

	t.Run("CallerChunkSize", func(t *testing.T) {
		session, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{
			FileName: "small.bin", FileSize: 10, ChunkSize: 10,
		})
		assert.NoError(err)
		assert.Equal(int64(1), session.TotalChunks)
	})

	t.Run("MissingName", func(t *testing.T) {
		_, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{FileSize: 10})
		assert.ErrorIs(err, httpresponse.ErrBadRequest)
	})

	t.Run("InvalidSize", func(t *testing.T) {
		_, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{FileName: "x", FileSize: 0})
		assert.ErrorIs(err, httpresponse.ErrBadRequest)
	})

	t.Run("InvalidChunkSize", func(t *testing.T) {
		_, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{FileName: "x", FileSize: 10, ChunkSize: -1})
		assert.ErrorIs(err, httpresponse.ErrBadRequest)
	})
}

////////////////////////////////////////////////////////////////////////////////
// CHUNK TESTS

func Test_Manager_WriteChunk(t *testing.T) {
	assert := assert.New(t)
	mgr := newTestManager(t)
	data := []byte("aaaabbbbcc")

	session, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{
		FileName: "file.bin", FileSize: int64(len(data)),
	})
	if !assert.NoError(err) {
		t.FailNow()
	}

	t.Run("First", func(t *testing.T) {
		response, err := mgr.WriteChunk(context.TODO(), session.Id, 0, "", bytes.NewReader(data[0:4]))
		if !assert.NoError(err) {
			t.FailNow()
		}
		assert.Equal(int64(1), response.Received)
		assert.Equal(int64(3), response.TotalChunks)
		assert.Equal(schema.StatusUploading, response.Status)
	})

	t.Run("Duplicate", func(t *testing.T) {
		response, err := mgr.WriteChunk(context.TODO(), session.Id, 0, "", bytes.NewReader(data[0:4]))
		assert.NoError(err)
		assert.Equal(int64(1), response.Received)
	})

	t.Run("WithChecksum", func(t *testing.T) {
		response, err := mgr.WriteChunk(context.TODO(), session.Id, 1, checksum.Sum(data[4:8]), bytes.NewReader(data[4:8]))
		assert.NoError(err)
		assert.Equal(int64(2), response.Received)
	})

	t.Run("ChecksumMismatch", func(t *testing.T) {
		_, err := mgr.WriteChunk(context.TODO(), session.Id, 2, checksum.Sum([]byte("other")), bytes.NewReader(data[8:10]))
		assert.ErrorIs(err, httpresponse.ErrBadRequest)

		// The rejected chunk is not recorded
		stored, err := mgr.GetUpload(context.TODO(), session.Id)
		assert.NoError(err)
		assert.Equal(int64(2), stored.Received())
		assert.False(stored.HasChunk(2))
	})

	t.Run("IndexOutOfRange", func(t *testing.T) {
		_, err := mgr.WriteChunk(context.TODO(), session.Id, 3, "", bytes.NewReader(data[0:4]))
		assert.ErrorIs(err, httpresponse.ErrBadRequest)
		_, err = mgr.WriteChunk(context.TODO(), session.Id, -1, "", bytes.NewReader(data[0:4]))
		assert.ErrorIs(err, httpresponse.ErrBadRequest)
	})

	t.Run("WrongSize", func(t *testing.T) {
		_, err := mgr.WriteChunk(context.TODO(), session.Id, 2, "", bytes.NewReader(data[8:9]))
		assert.ErrorIs(err, httpresponse.ErrBadRequest)
		_, err = mgr.WriteChunk(context.TODO(), session.Id, 2, "", bytes.NewReader(data))
		assert.ErrorIs(err, httpresponse.ErrBadRequest)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := mgr.WriteChunk(context.TODO(), "missing", 0, "", bytes.NewReader(data[0:4]))
		assert.ErrorIs(err, httpresponse.ErrNotFound)
	})
}

func Test_Manager_WriteChunk_Expired(t *testing.T) {
	assert := assert.New(t)
	mgr := newTestManager(t)

	session, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{
		FileName: "stale.bin", FileSize: 8,
	})
	if !assert.NoError(err) {
		t.FailNow()
	}
	expireNow(t, mgr, session.Id)

	_, err = mgr.WriteChunk(context.TODO(), session.Id, 0, "", bytes.NewReader([]byte("aaaa")))
	assert.ErrorIs(err, ErrGone)

	// The session is marked expired on the way out
	stored, err := mgr.GetUpload(context.TODO(), session.Id)
	assert.NoError(err)
	assert.Equal(schema.StatusExpired, stored.Status)
}

func Test_Manager_WriteChunk_Concurrent(t *testing.T) {
	assert := assert.New(t)
	mgr := newTestManager(t)

	session, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{
		FileName: "parallel.bin", FileSize: 64,
	})
	if !assert.NoError(err) {
		t.FailNow()
	}
	assert.Equal(int64(16), session.TotalChunks)

	// Upload every chunk from its own goroutine
	var wg sync.WaitGroup
	for index := int64(0); index < session.TotalChunks; index++ {
		wg.Add(1)
		go func(index int64) {
			defer wg.Done()
			chunk := bytes.Repeat([]byte{byte(index)}, 4)
			_, err := mgr.WriteChunk(context.TODO(), session.Id, index, "", bytes.NewReader(chunk))
			assert.NoError(err)
		}(index)
	}
	wg.Wait()

	// No update was lost
	stored, err := mgr.GetUpload(context.TODO(), session.Id)
	assert.NoError(err)
	assert.True(stored.Complete())
}

////////////////////////////////////////////////////////////////////////////////
// COMPLETE TESTS

func Test_Manager_CompleteUpload(t *testing.T) {
	assert := assert.New(t)
	mgr := newTestManager(t)
	data := []byte("aaaabbbbcc")

	session, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{
		FileName: "final.bin", FileSize: int64(len(data)),
	})
	if !assert.NoError(err) {
		t.FailNow()
	}

	t.Run("Incomplete", func(t *testing.T) {
		_, err := mgr.CompleteUpload(context.TODO(), session.Id)
		assert.ErrorIs(err, httpresponse.ErrConflict)

		stored, err := mgr.GetUpload(context.TODO(), session.Id)
		assert.NoError(err)
		assert.False(stored.Status.Terminal())
	})

	// Upload out of order
	for _, index := range []int64{2, 0, 1} {
		end := min(int64(len(data)), (index+1)*4)
		_, err := mgr.WriteChunk(context.TODO(), session.Id, index, "", bytes.NewReader(data[index*4:end]))
		if !assert.NoError(err) {
			t.FailNow()
		}
	}

	var storageKey string
	t.Run("Complete", func(t *testing.T) {
		response, err := mgr.CompleteUpload(context.TODO(), session.Id)
		if !assert.NoError(err) {
			t.FailNow()
		}
		assert.NotEmpty(response.StorageKey)
		assert.Equal(int64(len(data)), response.Size)
		storageKey = response.StorageKey

		stored, err := mgr.GetUpload(context.TODO(), session.Id)
		assert.NoError(err)
		assert.Equal(schema.StatusCompleted, stored.Status)
	})

	t.Run("ByteIdentical", func(t *testing.T) {
		r, size, err := mgr.Blob().ReadObject(context.TODO(), storageKey)
		if !assert.NoError(err) {
			t.FailNow()
		}
		defer r.Close()
		assert.Equal(int64(len(data)), size)
		assembled, err := io.ReadAll(r)
		assert.NoError(err)
		assert.Equal(data, assembled)
	})

	t.Run("Idempotent", func(t *testing.T) {
		response, err := mgr.CompleteUpload(context.TODO(), session.Id)
		assert.NoError(err)
		assert.Equal(storageKey, response.StorageKey)
	})

	t.Run("ChunkAfterComplete", func(t *testing.T) {
		_, err := mgr.WriteChunk(context.TODO(), session.Id, 0, "", bytes.NewReader(data[0:4]))
		assert.ErrorIs(err, ErrGone)
	})
}

func Test_Manager_CompleteUpload_Expired(t *testing.T) {
	assert := assert.New(t)
	mgr := newTestManager(t)

	session, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{
		FileName: "stale.bin", FileSize: 4,
	})
	if !assert.NoError(err) {
		t.FailNow()
	}
	_, err = mgr.WriteChunk(context.TODO(), session.Id, 0, "", bytes.NewReader([]byte("aaaa")))
	assert.NoError(err)
	expireNow(t, mgr, session.Id)

	_, err = mgr.CompleteUpload(context.TODO(), session.Id)
	assert.ErrorIs(err, ErrGone)
}

func Test_Manager_LargeUpload(t *testing.T) {
	assert := assert.New(t)
	mgr, err := New(context.TODO(), WithBackend(context.TODO(), "mem://"))
	if !assert.NoError(err) {
		t.FailNow()
	}
	defer mgr.Close()

	// 15 MB file with the default 5 MiB chunk size: two full chunks and
	// a remainder
	data := bytes.Repeat([]byte("0123456789abcdef"), 15_000_000/16)
	session, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{
		FileName: "large.bin", FileSize: int64(len(data)),
	})
	if !assert.NoError(err) {
		t.FailNow()
	}
	assert.Equal(int64(3), session.TotalChunks)

	for index := int64(0); index < session.TotalChunks; index++ {
		end := min(int64(len(data)), (index+1)*session.ChunkSize)
		chunk := data[index*session.ChunkSize : end]
		_, err := mgr.WriteChunk(context.TODO(), session.Id, index, checksum.Sum(chunk), bytes.NewReader(chunk))
		if !assert.NoError(err) {
			t.FailNow()
		}
	}

	response, err := mgr.CompleteUpload(context.TODO(), session.Id)
	if !assert.NoError(err) {
		t.FailNow()
	}
	r, size, err := mgr.Blob().ReadObject(context.TODO(), response.StorageKey)
	if !assert.NoError(err) {
		t.FailNow()
	}
	defer r.Close()
	assert.Equal(int64(len(data)), size)
	assembled, err := io.ReadAll(r)
	assert.NoError(err)
	assert.True(bytes.Equal(data, assembled))
}

////////////////////////////////////////////////////////////////////////////////
// CANCEL TESTS

func Test_Manager_CancelUpload(t *testing.T) {
	assert := assert.New(t)
	mgr := newTestManager(t)

	session, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{
		FileName: "doomed.bin", FileSize: 8,
	})
	if !assert.NoError(err) {
		t.FailNow()
	}
	_, err = mgr.WriteChunk(context.TODO(), session.Id, 0, "", bytes.NewReader([]byte("aaaa")))
	assert.NoError(err)

	t.Run("Cancel", func(t *testing.T) {
		cancelled, err := mgr.CancelUpload(context.TODO(), session.Id)
		assert.NoError(err)
		assert.Equal(schema.StatusCancelled, cancelled.Status)
	})

	t.Run("Idempotent", func(t *testing.T) {
		cancelled, err := mgr.CancelUpload(context.TODO(), session.Id)
		assert.NoError(err)
		assert.Equal(schema.StatusCancelled, cancelled.Status)
	})

	t.Run("ChunkAfterCancel", func(t *testing.T) {
		_, err := mgr.WriteChunk(context.TODO(), session.Id, 1, "", bytes.NewReader([]byte("bbbb")))
		assert.ErrorIs(err, ErrGone)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := mgr.CancelUpload(context.TODO(), "missing")
		assert.ErrorIs(err, httpresponse.ErrNotFound)
	})
}

////////////////////////////////////////////////////////////////////////////////
// EXPIRY TESTS

func Test_Manager_PurgeExpired(t *testing.T) {
	assert := assert.New(t)
	mgr := newTestManager(t)

	stale, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{
		FileName: "stale.bin", FileSize: 8,
	})
	if !assert.NoError(err) {
		t.FailNow()
	}
	fresh, err := mgr.CreateUpload(context.TODO(), schema.UploadMeta{
		FileName: "fresh.bin", FileSize: 8,
	})
	if !assert.NoError(err) {
		t.FailNow()
	}
	expireNow(t, mgr, stale.Id)

	count, err := mgr.PurgeExpired(context.TODO(), time.Now())
	assert.NoError(err)
	assert.Equal(1, count)

	stored, err := mgr.GetUpload(context.TODO(), stale.Id)
	assert.NoError(err)
	assert.Equal(schema.StatusExpired, stored.Status)

	stored, err = mgr.GetUpload(context.TODO(), fresh.Id)
	assert.NoError(err)
	assert.Equal(schema.StatusInitialized, stored.Status)

	// Second sweep finds nothing
	count, err = mgr.PurgeExpired(context.TODO(), time.Now())
	assert.NoError(err)
	assert.Equal(0, count)
}

////////////////////////////////////////////////////////////////////////////////
// HELPERS

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := New(context.TODO(), WithBackend(context.TODO(), "mem://"), WithChunkSize(4))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

// expireNow rewinds a session deadline so it is already in the past.
func expireNow(t *testing.T, mgr *Manager, id string) {
	t.Helper()
	session, err := mgr.Store().GetSession(context.TODO(), id)
	if err != nil {
		t.Fatal(err)
	}
	session.ExpiresAt = time.Now().Add(-time.Minute)
	if err := mgr.Store().UpdateSession(context.TODO(), session); err != nil {
		t.Fatal(err)
	}
}
