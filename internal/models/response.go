package models

import (
	"net/http"
	"time"
)

// ResponseType mirrors the fetch response type of the request's origin relation
type ResponseType string

const (
	ResponseTypeBasic  ResponseType = "basic"  // same-origin
	ResponseTypeCORS   ResponseType = "cors"   // cross-origin, readable
	ResponseTypeOpaque ResponseType = "opaque" // cross-origin, not readable
	ResponseTypeError  ResponseType = "error"  // synthesized by the proxy
)

// ResponseSnapshot is a fully buffered response as stored in a cache region
type ResponseSnapshot struct {
	Status     int          `json:"status"`
	StatusText string       `json:"status_text,omitempty"`
	Header     http.Header  `json:"header,omitempty"`
	Body       []byte       `json:"body,omitempty"`
	Type       ResponseType `json:"type"`
	URL        string       `json:"url,omitempty"`
	StoredAt   int64        `json:"stored_at,omitempty"`
}

// IsOK reports whether the status is in the 2xx range
func (r *ResponseSnapshot) IsOK() bool {
	return r != nil && r.Status >= 200 && r.Status <= 299
}

// IsCacheableStatic reports whether a cache-first miss may store this response
func (r *ResponseSnapshot) IsCacheableStatic() bool {
	return r != nil && r.Status == http.StatusOK && r.Type == ResponseTypeBasic
}

// Clone returns a deep copy so stored and returned snapshots never share buffers
func (r *ResponseSnapshot) Clone() *ResponseSnapshot {
	if r == nil {
		return nil
	}
	c := *r
	c.Header = r.Header.Clone()
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}

// Age returns how long ago the snapshot was stored
func (r *ResponseSnapshot) Age() time.Duration {
	if r == nil || r.StoredAt == 0 {
		return 0
	}
	return time.Since(time.Unix(r.StoredAt, 0))
}

// NewUnavailableResponse builds the plain-text 503 served when neither network nor cache can answer
func NewUnavailableResponse(message string) *ResponseSnapshot {
	header := make(http.Header)
	header.Set("Content-Type", "text/plain")
	return &ResponseSnapshot{
		Status:     http.StatusServiceUnavailable,
		StatusText: http.StatusText(http.StatusServiceUnavailable),
		Header:     header,
		Body:       []byte(message),
		Type:       ResponseTypeError,
	}
}
