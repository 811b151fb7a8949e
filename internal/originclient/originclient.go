// Package originclient forwards requests to the dynamic application
// server behind twice and decodes its cache/variance directives.
package originclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/twicecache/twice/internal/config"
	"github.com/twicecache/twice/internal/model"
)

// Client forwards requests to backend_appserver.
type Client struct {
	httpClient *http.Client
	addr       string
	rewrite    string
	twiceHdr   string
	cacheHdr   string
	cookiesHdr string
	timeout    time.Duration
}

// New builds a Client from the resolved configuration.
func New(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{
			// Forward derives a per-fetch deadline from
			// origin_timeout; the client itself is kept unbounded and
			// that context is what actually enforces the timeout.
			Timeout: 0,
		},
		addr:       cfg.BackendAppserver,
		rewrite:    cfg.RewriteHost,
		twiceHdr:   cfg.TwiceHeader,
		cacheHdr:   cfg.CacheHeader,
		cookiesHdr: cfg.CookiesHeader,
		timeout:    cfg.OriginTimeout,
	}
}

// Directives captures the origin's cache/variance declaration decoded
// off the forwarded response.
type Directives struct {
	MaxAgeSeconds int      // 0 if absent or non-positive
	VaryCookies   []string // names only, order as declared
}

// hopByHopHeaders are connection-scoped and must never be forwarded
// verbatim to a different connection, per RFC 7230 §6.1.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forward sends a cloned copy of req to the origin, stripping hop-by-hop
// headers and any client-supplied Cache-Control, adding the
// loop-prevention header, and returns the origin's response alongside
// its decoded cache/variance directives.
func (c *Client) Forward(ctx context.Context, req *model.Request) (*model.Response, Directives, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	host := c.addr
	if c.rewrite != "" {
		host = c.rewrite
	}
	url := fmt.Sprintf("http://%s%s", host, req.Path)

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	upstream, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, Directives{}, fmt.Errorf("originclient: build request: %w", err)
	}
	for name, values := range req.Headers {
		for _, v := range values {
			upstream.Header.Add(name, v)
		}
	}
	for _, h := range hopByHopHeaders {
		upstream.Header.Del(h)
	}
	upstream.Header.Del("Cache-Control")
	upstream.Header.Set(c.twiceHdr, "true")
	upstream.Host = req.Host

	resp, err := c.httpClient.Do(upstream)
	if err != nil {
		return nil, Directives{}, fmt.Errorf("originclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Directives{}, fmt.Errorf("originclient: read body: %w", err)
	}

	out := &model.Response{
		Status:  resp.StatusCode,
		Headers: resp.Header.Clone(),
		Body:    respBody,
	}
	return out, c.decodeDirectives(resp.Header), nil
}

func (c *Client) decodeDirectives(h http.Header) Directives {
	var d Directives
	if raw := h.Get(c.cacheHdr); raw != "" {
		if n, ok := parseMaxAge(raw); ok && n > 0 {
			d.MaxAgeSeconds = n
		}
	}
	if raw := h.Get(c.cookiesHdr); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				d.VaryCookies = append(d.VaryCookies, name)
			}
		}
	}
	return d
}

// parseMaxAge extracts N from a "max-age=N" directive.
func parseMaxAge(raw string) (int, bool) {
	const prefix = "max-age="
	idx := strings.Index(raw, prefix)
	if idx < 0 {
		return 0, false
	}
	rest := raw[idx+len(prefix):]
	if comma := strings.IndexByte(rest, ','); comma >= 0 {
		rest = rest[:comma]
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0, false
	}
	return n, true
}
