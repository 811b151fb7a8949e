package originclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twicecache/twice/internal/config"
	"github.com/twicecache/twice/internal/model"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	addr := strings.TrimPrefix(srv.URL, "http://")
	return srv, addr
}

func TestForwardSetsLoopPreventionAndStripsCacheControl(t *testing.T) {
	var gotTwice, gotCacheControl string
	_, addr := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotTwice = r.Header.Get("X-Twice")
		gotCacheControl = r.Header.Get("Cache-Control")
		w.Header().Set("X-Twice-Control", "max-age=60")
		w.Header().Set("X-Twice-Vary", "u, lang")
		w.WriteHeader(200)
		w.Write([]byte("HELLO"))
	})

	cfg := &config.Config{
		BackendAppserver: addr,
		TwiceHeader:      "X-Twice",
		CacheHeader:      "X-Twice-Control",
		CookiesHeader:    "X-Twice-Vary",
		OriginTimeout:    time.Second,
	}
	c := New(cfg)
	req := &model.Request{
		Method:  "GET",
		Path:    "/a",
		Host:    "localhost",
		Headers: http.Header{"Cache-Control": []string{"no-cache"}},
	}
	resp, directives, err := c.Forward(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "true", gotTwice)
	assert.Empty(t, gotCacheControl)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, []byte("HELLO"), resp.Body)
	assert.Equal(t, 60, directives.MaxAgeSeconds)
	assert.Equal(t, []string{"u", "lang"}, directives.VaryCookies)
}

func TestForwardIgnoresNonPositiveMaxAge(t *testing.T) {
	_, addr := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Twice-Control", "max-age=0")
		w.WriteHeader(200)
	})
	cfg := &config.Config{
		BackendAppserver: addr,
		TwiceHeader:      "X-Twice",
		CacheHeader:      "X-Twice-Control",
		CookiesHeader:    "X-Twice-Vary",
		OriginTimeout:    time.Second,
	}
	c := New(cfg)
	_, directives, err := c.Forward(context.Background(), &model.Request{Method: "GET", Path: "/a", Headers: http.Header{}})
	require.NoError(t, err)
	assert.Equal(t, 0, directives.MaxAgeSeconds)
}

func TestForwardTimesOutOnSlowOrigin(t *testing.T) {
	_, addr := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(200)
	})
	cfg := &config.Config{
		BackendAppserver: addr,
		TwiceHeader:      "X-Twice",
		CacheHeader:      "X-Twice-Control",
		CookiesHeader:    "X-Twice-Vary",
		OriginTimeout:    5 * time.Millisecond,
	}
	c := New(cfg)
	_, _, err := c.Forward(context.Background(), &model.Request{Method: "GET", Path: "/a", Headers: http.Header{}})
	assert.Error(t, err)
}
