package noop

import (
	"context"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
)

// Ensure NoOpStore implements interfaces.RegionStore
var _ interfaces.RegionStore = (*NoOpStore)(nil)

// NoOpStore is a no-operation region store for disabled levels
type NoOpStore struct{}

// NewNoOpStore creates a new no-operation store instance
func NewNoOpStore() *NoOpStore {
	return &NoOpStore{}
}

// Open returns a region that holds nothing
func (n *NoOpStore) Open(_ context.Context, name string) (interfaces.Region, error) {
	return &noOpRegion{name: name}, nil
}

// Names always returns no regions
func (n *NoOpStore) Names(_ context.Context) ([]string, error) {
	return nil, nil
}

// Delete reports that the region never existed
func (n *NoOpStore) Delete(_ context.Context, _ string) (bool, error) {
	return false, nil
}

type noOpRegion struct {
	name string
}

// Name returns the region name
func (r *noOpRegion) Name() string {
	return r.name
}

// Match always returns a miss
func (r *noOpRegion) Match(_ context.Context, _ string) (*models.ResponseSnapshot, bool) {
	return nil, false
}

// Put does nothing
func (r *noOpRegion) Put(_ context.Context, _ string, _ *models.ResponseSnapshot) error {
	// No-op
	return nil
}

// Delete does nothing
func (r *noOpRegion) Delete(_ context.Context, _ string) error {
	// No-op
	return nil
}

// Keys always returns no keys
func (r *noOpRegion) Keys(_ context.Context) ([]string, error) {
	return nil, nil
}
