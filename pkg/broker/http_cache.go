package broker

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// discoveryTTL bounds how long a cached discovery document is served
// without revalidation. Entra metadata changes rarely.
const discoveryTTL = 24 * time.Hour

type httpCacheEntry struct {
	Status    int         `json:"status"`
	Header    http.Header `json:"header"`
	Body      []byte      `json:"body"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// HTTPCache is a persisted response cache for OIDC discovery documents,
// usable as an http.RoundTripper. With a warm cache the silent path never
// touches the network for provider metadata.
type HTTPCache struct {
	base    http.RoundTripper
	now     func() time.Time
	entries map[string]httpCacheEntry
	changed bool
}

// NewHTTPCache wraps base with the response cache. A nil base uses
// http.DefaultTransport.
func NewHTTPCache(base http.RoundTripper) *HTTPCache {
	if base == nil {
		base = http.DefaultTransport
	}
	return &HTTPCache{
		base:    base,
		now:     time.Now,
		entries: map[string]httpCacheEntry{},
	}
}

// Deserialize replaces the cache contents with the blob's. Corrupt or empty
// blobs reset to an empty cache, never an error.
func (c *HTTPCache) Deserialize(blob []byte) {
	c.entries = map[string]httpCacheEntry{}
	c.changed = false
	if len(blob) == 0 {
		return
	}
	var entries map[string]httpCacheEntry
	if err := json.Unmarshal(blob, &entries); err != nil {
		return
	}
	c.entries = entries
}

// Serialize renders the cache contents for persistence.
func (c *HTTPCache) Serialize() ([]byte, error) {
	return json.Marshal(c.entries)
}

// Changed reports whether new responses were cached since deserialization.
func (c *HTTPCache) Changed() bool { return c.changed }

func cacheable(req *http.Request) bool {
	return req.Method == http.MethodGet &&
		strings.Contains(req.URL.Path, "/.well-known/openid-configuration")
}

// RoundTrip serves cacheable requests from fresh cache entries and records
// successful upstream responses for later runs.
func (c *HTTPCache) RoundTrip(req *http.Request) (*http.Response, error) {
	if !cacheable(req) {
		return c.base.RoundTrip(req)
	}

	key := req.URL.String()
	if entry, ok := c.entries[key]; ok && c.now().Sub(entry.FetchedAt) < discoveryTTL {
		return entry.response(req), nil
	}

	resp, err := c.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	entry := httpCacheEntry{
		Status:    resp.StatusCode,
		Header:    resp.Header.Clone(),
		Body:      body,
		FetchedAt: c.now(),
	}
	c.entries[key] = entry
	c.changed = true
	return entry.response(req), nil
}

func (e httpCacheEntry) response(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    e.Status,
		Status:        http.StatusText(e.Status),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}
