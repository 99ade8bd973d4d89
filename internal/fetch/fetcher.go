package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
	"go-offline-proxy/internal/utils"
)

// Ensure HTTPFetcher implements interfaces.Fetcher
var _ interfaces.Fetcher = (*HTTPFetcher)(nil)

// ErrBodyTooLarge is returned when an upstream body exceeds the configured limit
var ErrBodyTooLarge = errors.New("response body too large")

// HTTPFetcher fetches requests from the network and buffers whole responses.
// Deadlines come from the caller's context.
type HTTPFetcher struct {
	client       *http.Client
	origin       *url.URL
	userAgent    string
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewHTTPFetcher creates a fetcher for the configured upstream origin
func NewHTTPFetcher(cfg *config.UpstreamConfig, client *http.Client, logger *zap.Logger) (*HTTPFetcher, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream origin: %w", err)
	}
	if client == nil {
		client = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}

	return &HTTPFetcher{
		client:       client,
		origin:       origin,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       logger,
	}, nil
}

// Fetch performs the request. Any HTTP status is a successful fetch; only
// transport failures and oversized bodies are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *models.RequestDescriptor) (*models.ResponseSnapshot, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("request cannot be nil")
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if req.Header != nil {
		utils.CopyHeader(httpReq.Header, req.Header)
	}
	if f.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if f.maxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBodyBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", req.URL.Redacted(), err)
	}
	if f.maxBodyBytes > 0 && int64(len(data)) > f.maxBodyBytes {
		f.logger.Warn("Upstream response exceeds body limit",
			zap.String("url", req.URL.Redacted()),
			zap.String("limit", humanize.IBytes(uint64(f.maxBodyBytes))))
		return nil, fmt.Errorf("fetch %s: %w", req.URL.Redacted(), ErrBodyTooLarge)
	}

	header := resp.Header.Clone()
	utils.StripHopByHop(header)

	return &models.ResponseSnapshot{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Header:     header,
		Body:       data,
		Type:       utils.ResponseTypeFor(req.URL, f.origin, resp.Header),
		URL:        resp.Request.URL.String(),
	}, nil
}
