package broker

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiscoveryServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2.0/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"issuer":"https://example.com/v2.0"}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPCacheServesSecondRequestFromCache(t *testing.T) {
	var hits int32
	server := newDiscoveryServer(t, &hits)

	cache := NewHTTPCache(nil)
	client := &http.Client{Transport: cache}
	url := server.URL + "/v2.0/.well-known/openid-configuration"

	for i := 0; i < 2; i++ {
		resp, err := client.Get(url)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.JSONEq(t, `{"issuer":"https://example.com/v2.0"}`, string(body))
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.True(t, cache.Changed())
}

func TestHTTPCachePersistedAcrossInstances(t *testing.T) {
	var hits int32
	server := newDiscoveryServer(t, &hits)
	url := server.URL + "/v2.0/.well-known/openid-configuration"

	first := NewHTTPCache(nil)
	resp, err := (&http.Client{Transport: first}).Get(url)
	require.NoError(t, err)
	_ = resp.Body.Close()

	blob, err := first.Serialize()
	require.NoError(t, err)

	second := NewHTTPCache(nil)
	second.Deserialize(blob)
	assert.False(t, second.Changed())

	resp, err = (&http.Client{Transport: second}).Get(url)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestHTTPCacheExpiredEntryRefetches(t *testing.T) {
	var hits int32
	server := newDiscoveryServer(t, &hits)
	url := server.URL + "/v2.0/.well-known/openid-configuration"

	cache := NewHTTPCache(nil)
	client := &http.Client{Transport: cache}

	resp, err := client.Get(url)
	require.NoError(t, err)
	_ = resp.Body.Close()

	cache.now = func() time.Time { return time.Now().Add(discoveryTTL + time.Minute) }
	resp, err = client.Get(url)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestHTTPCacheIgnoresNonDiscoveryRequests(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	cache := NewHTTPCache(nil)
	client := &http.Client{Transport: cache}
	for i := 0; i < 2; i++ {
		resp, err := client.Get(server.URL + "/token")
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.False(t, cache.Changed())
}

func TestHTTPCacheDeserializeCorruptResets(t *testing.T) {
	cache := NewHTTPCache(nil)
	cache.Deserialize([]byte("not json"))
	assert.Empty(t, cache.entries)
	assert.False(t, cache.Changed())
}
