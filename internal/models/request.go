package models

import (
	"net/http"
	"net/url"
)

// RequestDescriptor is the read-only view of an intercepted request
type RequestDescriptor struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte // forwarded on network fetches, never part of the cache key
}

// NewRequestDescriptor parses rawURL and builds a descriptor with an empty header set
func NewRequestDescriptor(method, rawURL string) (*RequestDescriptor, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if method == "" {
		method = http.MethodGet
	}
	return &RequestDescriptor{
		Method: method,
		URL:    u,
		Header: make(http.Header),
	}, nil
}

// String returns the URL of the request
func (r *RequestDescriptor) String() string {
	if r == nil || r.URL == nil {
		return ""
	}
	return r.URL.String()
}
