// Package model holds the Request/Response value types the core pipeline
// operates on. HTTP wire framing itself is out of scope — these
// are the plain values a framing layer is expected to produce and
// consume, not a transport implementation.
package model

import (
	"net/http"
	"strings"
)

// Request is the inbound (or forwarded) HTTP request value the pipeline
// and element registry operate on.
type Request struct {
	Method     string
	Path       string // path + query, already percent-decoded as needed
	Host       string
	RealHost   string // X-Real-Host, if present
	Headers    http.Header
	Cookies    map[string]string
	RemoteAddr string
	Body       []byte
}

// EffectiveHost returns X-Real-Host when present, else Host.
func (r *Request) EffectiveHost() string {
	if r.RealHost != "" {
		return r.RealHost
	}
	return r.Host
}

// Header returns the first value of a header, case-insensitively, or "".
func (r *Request) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// Cookie returns the named cookie's value, or "" if not present.
func (r *Request) Cookie(name string) string {
	return r.Cookies[name]
}

// ParseCookieHeader splits a raw Cookie header into a name->value map.
func ParseCookieHeader(raw string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return out
}

// Response is an HTTP response value, produced either by the origin
// client or by the pipeline for the client-facing side.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// HeaderValue is a case-insensitive header lookup helper for raw
// map[string][]string headers decoded off the wire.
func HeaderValue(h http.Header, name string) string {
	if h == nil {
		return ""
	}
	return h.Get(name)
}
