package mmsapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/", APIKey: "mms_key", Version: "1.4.0", Logger: zerolog.Nop()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pingPath, r.URL.Path)
		assert.Equal(t, "mms_key", r.Header.Get("X-API-Key"))
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "tddf-uploader/1.4.0 (Go; "))
		writeJSON(w, map[string]string{
			"status":        "ok",
			"environment":   "production",
			"serviceStatus": "running",
			"keyStatus":     "valid",
			"keyUser":       "uploader",
		})
	})

	ping, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "production", ping.Environment)
	assert.Equal(t, "uploader", ping.KeyUser)
	assert.True(t, ping.Ready())
}

func TestPing_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPingResponse_Ready(t *testing.T) {
	assert.True(t, PingResponse{ServiceStatus: "running", KeyStatus: "valid"}.Ready())
	assert.False(t, PingResponse{ServiceStatus: "running", KeyStatus: "not_provided"}.Ready())
	assert.False(t, PingResponse{ServiceStatus: "starting", KeyStatus: "valid"}.Ready())
}

func TestStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, statusPath, r.URL.Path)
		writeJSON(w, map[string]any{"pending": 3, "processing": 1, "completed": 40, "failed": 2, "isBusy": true})
	})

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, QueueStatus{Pending: 3, Processing: 1, Completed: 40, Failed: 2, IsBusy: true}, *status)
}

func TestStatus_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue offline", http.StatusServiceUnavailable)
	})

	_, err := c.Status(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Equal(t, "queue offline", statusErr.Body)
}

func TestWakeUp(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		switch {
		case n == 1:
			w.WriteHeader(http.StatusBadGateway)
		case n == 2:
			writeJSON(w, map[string]string{"serviceStatus": "running", "keyStatus": "pending"})
		default:
			writeJSON(w, map[string]string{"serviceStatus": "running", "keyStatus": "valid"})
		}
	})

	ping, err := c.WakeUp(context.Background(), 5, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ping.Ready())
	assert.Equal(t, int32(3), calls.Load())
}

func TestWakeUp_GivesUp(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]string{"serviceStatus": "starting"})
	})

	_, err := c.WakeUp(context.Background(), 3, time.Millisecond)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWakeUp_StopsOnUnauthorized(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.WakeUp(context.Background(), 10, time.Millisecond)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpload(t *testing.T) {
	const name = "VERMNTSB.6759_TDDF_830_01152023_083045.TSYSO"

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, uploadPath, r.URL.Path)

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()

		body, _ := io.ReadAll(file)
		assert.Equal(t, name, header.Filename)
		assert.Equal(t, "TDDF payload", string(body))
		writeJSON(w, map[string]string{"id": "upl_1"})
	})

	require.NoError(t, c.Upload(context.Background(), name, strings.NewReader("TDDF payload")))
}

func TestUpload_Duplicate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusConflict)
	})

	err := c.Upload(context.Background(), "a.TSYSO", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"serviceStatus": "running", "keyStatus": "valid"})
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL, RequestsPerSecond: 20, Logger: zerolog.Nop()})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Ping(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestUserAgent(t *testing.T) {
	assert.True(t, strings.HasPrefix(UserAgent(""), "tddf-uploader/dev (Go; "))
}
