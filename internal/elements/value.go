// Package elements is the C2 element registry: per kind, a
// quartet hash/fetch/validate/extract. Adding a kind is adding a row.
package elements

import (
	"encoding/json"
	"net/http"
	"time"
)

// Value is the shape stored in the cache backend for every element kind.
// Pages populate Bytes/Status/ContentType/ExpiresOn/CacheControlSeconds;
// the session kind populates Fields (one row, keyed by field name, since
// a request has at most one session in play); kv/db fragments populate
// Bytes as a scalar. Absent distinguishes "fetched, found nothing" from
// a zero-value Value never having been fetched at all.
type Value struct {
	Bytes               []byte            `json:"bytes,omitempty"`
	Fields              map[string]string `json:"fields,omitempty"`
	Status              int               `json:"status,omitempty"`
	ContentType         string            `json:"content_type,omitempty"`
	ExpiresOn           time.Time         `json:"expires_on"`
	CacheControlSeconds int               `json:"cache_control_seconds"`
	Absent              bool              `json:"absent,omitempty"`

	// Transient fields: populated by a page Fetch from the origin's
	// decoded directives, consumed by Extract, never persisted to the
	// cache backend.
	OriginMaxAgeSeconds int      `json:"-"`
	OriginVaryCookies   []string `json:"-"`
}

// Clone returns a deep-enough copy so a caller can mutate the result
// without affecting a cached original — the pipeline never mutates the
// cached page body directly, only a copy of it.
func (v Value) Clone() Value {
	out := v
	if v.Bytes != nil {
		out.Bytes = append([]byte(nil), v.Bytes...)
	}
	if v.Fields != nil {
		out.Fields = make(map[string]string, len(v.Fields))
		for k, fv := range v.Fields {
			out.Fields[k] = fv
		}
	}
	return out
}

// Scalar returns Bytes as a string, the representation kv/db fragment
// values take in the per-request fragment map.
func (v Value) Scalar() string {
	if v.Absent {
		return ""
	}
	return string(v.Bytes)
}

// Marshal/Unmarshal adapt Value to the []byte the cache backend stores.
func Marshal(v Value) ([]byte, error) {
	return json.Marshal(v)
}

func Unmarshal(raw []byte) (Value, error) {
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// responseContentType is a small helper kinds use when building a Value
// from a fetched http response.
func responseContentType(h http.Header) string {
	if h == nil {
		return ""
	}
	return h.Get("Content-Type")
}
