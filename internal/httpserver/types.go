package httpserver

import "go-offline-proxy/internal/region/service"

// MessageResponse represents the result of posting a client message
type MessageResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RegionsResponse describes the stored regions and the lifecycle versions
type RegionsResponse struct {
	Active  string               `json:"active,omitempty"`
	Waiting string               `json:"waiting,omitempty"`
	Regions []service.RegionInfo `json:"regions"`
}
