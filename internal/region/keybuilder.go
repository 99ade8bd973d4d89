package region

import (
	"errors"
	"net/url"
	"strings"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
)

// Ensure KeyBuilderImpl implements interfaces.KeyBuilder
var _ interfaces.KeyBuilder = (*KeyBuilderImpl)(nil)

// KeyBuilderImpl implements the KeyBuilder interface
type KeyBuilderImpl struct{}

// NewKeyBuilder creates a new KeyBuilder instance
func NewKeyBuilder() interfaces.KeyBuilder {
	return &KeyBuilderImpl{}
}

// Build creates a cache key of the form "METHOD url" for a request.
// Headers and body never take part in the key; the fragment is dropped and
// scheme and host are lower-cased.
func (kb *KeyBuilderImpl) Build(req *models.RequestDescriptor) (string, error) {
	if req == nil {
		return "", errors.New("request cannot be nil")
	}

	if req.URL == nil {
		return "", errors.New("request URL cannot be nil")
	}

	if req.Method == "" {
		return "", errors.New("request method cannot be empty")
	}

	if !req.URL.IsAbs() || req.URL.Host == "" {
		return "", errors.New("request URL must be absolute")
	}

	u := *req.URL
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return strings.ToUpper(req.Method) + " " + u.String(), nil
}

// KeyForURL builds the GET key of an absolute URL
func KeyForURL(kb interfaces.KeyBuilder, u *url.URL) (string, error) {
	return kb.Build(&models.RequestDescriptor{Method: "GET", URL: u})
}
