package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/lifecycle"
	"go-offline-proxy/internal/notifier"
	"go-offline-proxy/internal/region/service"
)

// SourceHeader tells clients where a proxied response came from
const SourceHeader = "X-Offline-Proxy-Source"

// Server represents the HTTP proxy server
type Server struct {
	host         *lifecycle.Host
	hub          *notifier.Hub
	regions      *service.RegionService
	origin       *url.URL
	cfg          config.ServerConfig
	maxBodyBytes int64
	logger       *zap.Logger

	mu      sync.Mutex
	servers []*http.Server
}

// NewServer creates a new proxy HTTP server
func NewServer(cfg *config.Config, host *lifecycle.Host, hub *notifier.Hub, regions *service.RegionService, logger *zap.Logger) (*Server, error) {
	origin, err := url.Parse(cfg.Upstream.Origin)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream origin: %w", err)
	}

	return &Server{
		host:         host,
		hub:          hub,
		regions:      regions,
		origin:       origin,
		cfg:          cfg.Server,
		maxBodyBytes: cfg.Upstream.MaxBodyBytes,
		logger:       logger,
	}, nil
}

// Start starts the HTTP server on a TCP address
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.logger.Info("Starting proxy HTTP server", zap.String("addr", listener.Addr().String()))
	return s.serve(listener)
}

// StartUnixSocket starts the HTTP server on a Unix socket
func (s *Server) StartUnixSocket(socketPath string) error {
	// Remove existing socket file
	if err := os.RemoveAll(socketPath); err != nil {
		s.logger.Warn("Failed to remove existing socket file", zap.String("path", socketPath), zap.Error(err))
	}

	// Create Unix socket listener
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}

	// Set socket permissions (readable/writable by owner and group)
	if err := os.Chmod(socketPath, 0660); err != nil {
		s.logger.Warn("Failed to set socket permissions", zap.String("path", socketPath), zap.Error(err))
	}

	s.logger.Info("Starting proxy HTTP server on Unix socket", zap.String("socket_path", socketPath))
	return s.serve(listener)
}

func (s *Server) serve(listener net.Listener) error {
	server := &http.Server{
		Handler:      s.createRouter(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeout) * time.Second,
	}

	s.mu.Lock()
	s.servers = append(s.servers, server)
	s.mu.Unlock()

	err := server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop disconnects event subscribers and stops every listener
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping proxy HTTP server")
	s.hub.Close()

	s.mu.Lock()
	servers := s.servers
	s.servers = nil
	s.mu.Unlock()

	var errs []error
	for _, server := range servers {
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// createRouter creates and configures the HTTP router
func (s *Server) createRouter() *mux.Router {
	router := mux.NewRouter()
	router.SkipClean(true)

	// Control endpoints only answer origin-form requests; absolute-form
	// requests for the same paths are proxied
	local := router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return !r.URL.IsAbs()
	}).Subrouter()

	local.HandleFunc("/sw/message", s.handleMessage).Methods("POST")
	local.HandleFunc("/sw/events", s.handleEvents).Methods("GET")
	local.HandleFunc("/sw/regions", s.handleRegions).Methods("GET")

	// Health check
	local.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Prometheus metrics endpoint
	local.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Everything else goes through the active interceptor
	router.PathPrefix("/").HandlerFunc(s.handleProxy)

	return router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	version := ""
	if ic := s.host.Active(); ic != nil {
		version = ic.Version()
	} else {
		status = "starting"
	}

	s.writeResponse(w, map[string]interface{}{
		"status":  status,
		"version": version,
		"time":    time.Now().UTC(),
	})
}

// parseRequest parses JSON request body
func (s *Server) parseRequest(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	defer r.Body.Close()

	return json.Unmarshal(body, v)
}

// writeResponse writes JSON response
func (s *Server) writeResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeErrorResponse writes error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := &MessageResponse{
		Success: false,
		Error:   message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to write error response", zap.Error(err))
	}
}
