package interfaces

import "go-offline-proxy/internal/models"

//go:generate mockgen -package=mock -source=keybuilder.go -destination=mock/keybuilder.go

// KeyBuilder canonizes requests into deterministic cache keys
type KeyBuilder interface {
	Build(req *models.RequestDescriptor) (string, error)
}
