package interfaces

import (
	"context"

	"go-offline-proxy/internal/models"
)

//go:generate mockgen -package=mock -source=region.go -destination=mock/region.go

// Region is a named, isolated keyspace of response snapshots
type Region interface {
	Name() string
	Match(ctx context.Context, key string) (*models.ResponseSnapshot, bool) // returns snapshot and found flag
	Put(ctx context.Context, key string, resp *models.ResponseSnapshot) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// RegionStore opens, lists and deletes regions by name
type RegionStore interface {
	Open(ctx context.Context, name string) (Region, error) // creates the region if absent
	Names(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error) // reports whether the region existed
}
