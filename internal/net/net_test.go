package net

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverResponse struct {
	Name string `json:"name"`
}

func TestNonRetryable(t *testing.T) {
	var tries atomic.Int32
	testServer := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		tries.Add(1)
		assert.Equal(t, http.MethodPost, req.Method)
		res.WriteHeader(http.StatusNotFound)
	}))
	defer testServer.Close()

	n := New(testServer.URL, Metadata{SDKType: "flagkit-go", SDKVersion: "test"}, WithRetries(2, time.Millisecond))
	var out serverResponse
	err := n.PostJSON(context.Background(), "/123", struct{}{}, &out)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "/123", statusErr.Endpoint)
	assert.Equal(t, int32(1), tries.Load())
}

func TestRetries(t *testing.T) {
	var tries atomic.Int32
	testServer := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		if tries.Add(1) == 1 {
			res.WriteHeader(http.StatusInternalServerError)
			return
		}
		res.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(res).Encode(serverResponse{Name: "test"})
	}))
	defer testServer.Close()

	n := New(testServer.URL+"/", Metadata{}, WithRetries(2, time.Millisecond))
	var out serverResponse
	err := n.PostJSON(context.Background(), "/123", struct{}{}, &out)
	require.NoError(t, err)
	assert.Equal(t, "test", out.Name)
	assert.Equal(t, int32(2), tries.Load())
}

func TestNoRetriesByDefault(t *testing.T) {
	var tries atomic.Int32
	testServer := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		tries.Add(1)
		res.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer testServer.Close()

	n := New(testServer.URL, Metadata{})
	_, err := n.Get(context.Background(), "/configuration", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), tries.Load())
}

func TestGetReturnsHeadersAndBody(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "abc", req.URL.Query().Get("token"))
		assert.Equal(t, "flagkit-go/1.0 go/1.24.2", req.Header.Get("User-Agent"))
		assert.Equal(t, "session-1", req.Header.Get("X-Flagkit-Session-ID"))
		res.Header().Set("X-Test", "yes")
		_, _ = res.Write([]byte("hello"))
	}))
	defer testServer.Close()

	n := New(testServer.URL, Metadata{SDKType: "flagkit-go", SDKVersion: "1.0", LanguageVersion: "1.24.2", SessionID: "session-1"})
	res, err := n.Get(context.Background(), "/configuration", url.Values{"token": {"abc"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "yes", res.Header.Get("X-Test"))
	assert.Equal(t, []byte("hello"), res.Body)
}

func TestRetryStopsOnCancel(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		res.WriteHeader(http.StatusBadGateway)
	}))
	defer testServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := New(testServer.URL, Metadata{}, WithRetries(MaxRetries, time.Hour))
	start := time.Now()
	_, err := n.Get(ctx, "/configuration", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestUserAgentWithoutLanguageVersion(t *testing.T) {
	assert.Equal(t, "flagkit-go/1.0", Metadata{SDKType: "flagkit-go", SDKVersion: "1.0"}.userAgent())
}
