package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"go-offline-proxy/internal/models"
)

const eventsHeartbeat = 15 * time.Second

// handleMessage delivers a client message to the active version
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg models.ClientMessage
	if err := s.parseRequest(r, &msg); err != nil {
		s.writeErrorResponse(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if msg.Type == "" {
		s.writeErrorResponse(w, "Missing required field: type", http.StatusBadRequest)
		return
	}

	ic := s.host.Active()
	if ic == nil {
		s.writeErrorResponse(w, models.ErrNoActiveVersion.Error(), http.StatusServiceUnavailable)
		return
	}

	if err := ic.HandleMessage(r.Context(), msg); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Message handling error: %v", err), http.StatusInternalServerError)
		return
	}

	s.writeResponse(w, &MessageResponse{Success: true})
}

// handleRegions lists stored regions with the active and waiting versions
func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	infos, err := s.regions.List(r.Context(), r.URL.Query().Get("keys") == "true")
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Region listing error: %v", err), http.StatusInternalServerError)
		return
	}

	resp := &RegionsResponse{Regions: infos}
	if ic := s.host.Active(); ic != nil {
		resp.Active = ic.Version()
	}
	if ic := s.host.Waiting(); ic != nil {
		resp.Waiting = ic.Version()
	}
	s.writeResponse(w, resp)
}

// handleEvents streams client messages as server-sent events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeErrorResponse(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	// the stream outlives the server write timeout
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("Failed to clear write deadline", zap.Error(err))
	}

	id, messages := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(eventsHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-messages:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error("Failed to encode client message", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
