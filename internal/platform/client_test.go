package platform

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolthost/runtime/internal/runtimeerr"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := []map[string]any{{"result": map[string]any{"data": map[string]any{"json": payload}}}}
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func writeErrorEnvelope(t *testing.T, w http.ResponseWriter, status int, code, message string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := []map[string]any{{"error": map[string]any{
		"message": message,
		"code":    code,
		"data":    map[string]any{"code": code, "httpStatus": status},
	}}}
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestComposeOneSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rt-req-1", r.Header.Get("x-request-id"))
		writeEnvelope(t, w, http.StatusOK, Compose{ComposeID: "c1", Name: "demo"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	out, err := c.ComposeOne(t.Context(), "c1", "rt-req-1")
	require.NoError(t, err)
	assert.Equal(t, "c1", out.ComposeID)
	assert.Equal(t, "demo", out.Name)
}

func TestComposeOneMissingIDIsLocalBadRequest(t *testing.T) {
	var hit atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	_, err := c.ComposeOne(t.Context(), "", "")
	require.Error(t, err)
	assert.False(t, hit.Load(), "should fail before reaching the network")
}

func TestCallRetriesOnRetryableStatus(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			writeErrorEnvelope(t, w, http.StatusServiceUnavailable, "INTERNAL_SERVER_ERROR", "overloaded")
			return
		}
		writeEnvelope(t, w, http.StatusOK, Compose{ComposeID: "c1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", WithMaxRetries(3))
	out, err := c.ComposeOne(t.Context(), "c1", "")
	require.NoError(t, err)
	assert.Equal(t, "c1", out.ComposeID)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestCallDoesNotRetryConflict(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		writeErrorEnvelope(t, w, http.StatusConflict, "CONFLICT", "already exists")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", WithMaxRetries(3))
	_, err := c.ComposeCreate(t.Context(), ComposeCreateInput{
		ProjectID: "p1", EnvironmentID: "e1", AppName: "a", ComposeFile: "x",
	}, "")
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
	re := asRuntimeErr(t, err)
	assert.Equal(t, "CONFLICT", re.Code)
	assert.Equal(t, http.StatusConflict, re.StatusCode)
}

func TestCallExhaustsRetriesAndWraps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorEnvelope(t, w, http.StatusBadGateway, "INTERNAL_SERVER_ERROR", "down")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", WithMaxRetries(1))
	_, err := c.ComposeOne(t.Context(), "c1", "")
	require.Error(t, err)
	re := asRuntimeErr(t, err)
	assert.Equal(t, "RETRY_EXHAUSTED", re.Code)
}

func TestCallInvalidJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", WithMaxRetries(0))
	_, err := c.ComposeOne(t.Context(), "c1", "")
	require.Error(t, err)
	re := asRuntimeErr(t, err)
	assert.Equal(t, "INVALID_JSON_RESPONSE", re.Code)
}

func TestCallMissingResultField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[{}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", WithMaxRetries(0))
	_, err := c.ComposeOne(t.Context(), "c1", "")
	require.Error(t, err)
	re := asRuntimeErr(t, err)
	assert.Equal(t, "INVALID_TRPC_RESPONSE", re.Code)
}

func TestRequestIDGeneratedWhenInvalid(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("x-request-id")
		writeEnvelope(t, w, http.StatusOK, Compose{ComposeID: "c1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	_, err := c.ComposeOne(t.Context(), "c1", "bad id with spaces!!")
	require.NoError(t, err)
	assert.True(t, validateRequestID(seen), "server should observe a regenerated, valid request id")
	assert.NotEqual(t, "bad id with spaces!!", seen)
}

func TestBackoffDurationCapped(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffDuration(attempt)
		assert.LessOrEqual(t, d, maxBackoff)
		assert.Greater(t, d, time.Duration(0))
	}
}

func asRuntimeErr(t *testing.T, err error) *runtimeerr.RuntimeError {
	t.Helper()
	re, ok := err.(*runtimeerr.RuntimeError)
	require.True(t, ok, "expected *runtimeerr.RuntimeError, got %T", err)
	return re
}
