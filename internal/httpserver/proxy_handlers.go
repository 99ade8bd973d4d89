package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"go-offline-proxy/internal/models"
	"go-offline-proxy/internal/utils"
)

// handleProxy arbitrates any request that is not a control endpoint
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	ic := s.host.Active()
	if ic == nil {
		http.Error(w, models.ErrNoActiveVersion.Error(), http.StatusServiceUnavailable)
		return
	}

	req, err := s.describe(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	res, err := ic.Arbitrate(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrNoFallback) {
			status = http.StatusBadGateway
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusGatewayTimeout
			}
		}
		s.logger.Warn("Request failed",
			zap.String("method", req.Method),
			zap.String("url", req.String()),
			zap.Int("status", status),
			zap.Error(err))
		http.Error(w, http.StatusText(status), status)
		return
	}

	s.writeSnapshot(w, r, res)
}

// describe builds the request descriptor. Origin-form requests target the
// upstream origin; absolute-form requests keep their own URL.
func (s *Server) describe(w http.ResponseWriter, r *http.Request) (*models.RequestDescriptor, error) {
	var target url.URL
	if r.URL.IsAbs() {
		target = *r.URL
	} else {
		target = *s.origin
		target.Path = r.URL.Path
		target.RawPath = r.URL.RawPath
		target.RawQuery = r.URL.RawQuery
	}

	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		reader := io.Reader(r.Body)
		if s.maxBodyBytes > 0 {
			reader = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, err
		}
		body = data
	}

	header := r.Header.Clone()
	utils.StripHopByHop(header)

	return &models.RequestDescriptor{
		Method: r.Method,
		URL:    &target,
		Header: header,
		Body:   body,
	}, nil
}

// writeSnapshot writes a buffered response back to the client
func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request, res *models.Result) {
	resp := res.Response

	utils.CopyHeader(w.Header(), resp.Header)
	w.Header().Set(SourceHeader, string(res.Source))
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.Status)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		s.logger.Debug("Failed to write proxied response", zap.Error(err))
	}
}
