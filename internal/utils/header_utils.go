package utils

import (
	"net/http"
	"net/url"
	"strings"

	"go-offline-proxy/internal/models"
)

// hopByHopHeaders are meaningful only for a single transport-level connection
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// StripHopByHop removes hop-by-hop headers, including those named in Connection
func StripHopByHop(h http.Header) {
	if h == nil {
		return
	}
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}

// CopyHeader copies end-to-end headers from src into dst
func CopyHeader(dst, src http.Header) {
	cleaned := src.Clone()
	StripHopByHop(cleaned)
	for k, vv := range cleaned {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// SameOrigin reports whether two URLs share scheme, host and port
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(hostPort(a), hostPort(b))
}

func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return u.Hostname() + ":80"
	case "https":
		return u.Hostname() + ":443"
	}
	return u.Host
}

// ResponseTypeFor classifies a fetched response by its relation to the application origin
func ResponseTypeFor(requestURL, origin *url.URL, header http.Header) models.ResponseType {
	if SameOrigin(requestURL, origin) {
		return models.ResponseTypeBasic
	}
	if header != nil && header.Get("Access-Control-Allow-Origin") != "" {
		return models.ResponseTypeCORS
	}
	return models.ResponseTypeOpaque
}
