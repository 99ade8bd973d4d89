package interfaces

import (
	"context"

	"go-offline-proxy/internal/models"
)

//go:generate mockgen -package=mock -source=fetcher.go -destination=mock/fetcher.go

// Fetcher performs a network fetch and buffers the full response
type Fetcher interface {
	Fetch(ctx context.Context, req *models.RequestDescriptor) (*models.ResponseSnapshot, error)
}
