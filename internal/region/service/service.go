package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"go-offline-proxy/internal/interfaces"
)

// RegionInfo describes one stored region
type RegionInfo struct {
	Name    string   `json:"name"`
	Entries int      `json:"entries"`
	Keys    []string `json:"keys,omitempty"`
}

// RegionService exposes read-only inspection of the region store
type RegionService struct {
	store  interfaces.RegionStore
	logger *zap.Logger
}

// NewRegionService creates a new region service instance
func NewRegionService(store interfaces.RegionStore, logger *zap.Logger) *RegionService {
	return &RegionService{
		store:  store,
		logger: logger,
	}
}

// List returns every region with its entry count. Keys are included when withKeys is set.
func (s *RegionService) List(ctx context.Context, withKeys bool) ([]RegionInfo, error) {
	names, err := s.store.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	infos := make([]RegionInfo, 0, len(names))
	for _, name := range names {
		r, err := s.store.Open(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to open region %s: %w", name, err)
		}

		keys, err := r.Keys(ctx)
		if err != nil {
			s.logger.Warn("Failed to list region keys",
				zap.String("region", name),
				zap.Error(err))
			infos = append(infos, RegionInfo{Name: name})
			continue
		}

		info := RegionInfo{Name: name, Entries: len(keys)}
		if withKeys {
			info.Keys = keys
		}
		infos = append(infos, info)
	}

	return infos, nil
}
