package multi

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
)

// Ensure MultiStore implements interfaces.RegionStore
var _ interfaces.RegionStore = (*MultiStore)(nil)

// MultiStore implements a composite region store over several levels.
// Lookups go through the levels in order; writes and deletions go to all.
type MultiStore struct {
	stores            []interfaces.RegionStore
	logger            *zap.Logger
	enablePropagation bool
}

// NewMultiStore creates a new MultiStore with provided store implementations.
// The first store is the fastest level.
func NewMultiStore(stores []interfaces.RegionStore, logger *zap.Logger, enablePropagation bool) *MultiStore {
	return &MultiStore{
		stores:            stores,
		logger:            logger,
		enablePropagation: enablePropagation,
	}
}

// levelName returns the metric label of the store at index i
func levelName(i int) string {
	return fmt.Sprintf("l%d", i+1)
}

// Open opens the region in every level
func (ms *MultiStore) Open(ctx context.Context, name string) (interfaces.Region, error) {
	if len(ms.stores) == 0 {
		return nil, errors.New("no region stores configured")
	}

	regions := make([]interfaces.Region, 0, len(ms.stores))
	for i, store := range ms.stores {
		r, err := store.Open(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to open region %s at %s: %w", name, levelName(i), err)
		}
		regions = append(regions, r)
	}

	return &multiRegion{
		name:              name,
		regions:           regions,
		logger:            ms.logger,
		enablePropagation: ms.enablePropagation,
	}, nil
}

// Names returns the union of region names across all levels
func (ms *MultiStore) Names(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for i, store := range ms.stores {
		names, err := store.Names(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list regions at %s: %w", levelName(i), err)
		}
		for _, name := range names {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the region from every level and reports whether any level had it
func (ms *MultiStore) Delete(ctx context.Context, name string) (bool, error) {
	existed := false
	var errs []error
	for i, store := range ms.stores {
		ok, err := store.Delete(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", levelName(i), err))
			continue
		}
		existed = existed || ok
	}
	return existed, errors.Join(errs...)
}

// GetStoreCount returns the number of levels
func (ms *MultiStore) GetStoreCount() int {
	return len(ms.stores)
}

// multiRegion is one region opened at every level
type multiRegion struct {
	name              string
	regions           []interfaces.Region
	logger            *zap.Logger
	enablePropagation bool
}

// Name returns the region name
func (mr *multiRegion) Name() string {
	return mr.name
}

// Match returns the entry from the first level holding the key.
// With propagation enabled a hit is copied into the faster levels.
func (mr *multiRegion) Match(ctx context.Context, key string) (*models.ResponseSnapshot, bool) {
	for i, r := range mr.regions {
		resp, found := r.Match(ctx, key)
		if !found {
			continue
		}

		metrics.RecordStoreHit(levelName(i))
		if mr.enablePropagation && i > 0 {
			mr.propagate(ctx, i, key, resp)
		}
		return resp, true
	}
	return nil, false
}

func (mr *multiRegion) propagate(ctx context.Context, hitLevel int, key string, resp *models.ResponseSnapshot) {
	for j := 0; j < hitLevel; j++ {
		if err := mr.regions[j].Put(ctx, key, resp.Clone()); err != nil {
			mr.logger.Warn("Failed to propagate region entry",
				zap.String("region", mr.name),
				zap.String("key", key),
				zap.String("level", levelName(j)),
				zap.Error(err))
		}
	}
}

// Put writes the entry to every level
func (mr *multiRegion) Put(ctx context.Context, key string, resp *models.ResponseSnapshot) error {
	var errs []error
	for i, r := range mr.regions {
		if err := r.Put(ctx, key, resp); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", levelName(i), err))
		}
	}
	return errors.Join(errs...)
}

// Delete removes the entry from every level
func (mr *multiRegion) Delete(ctx context.Context, key string) error {
	var errs []error
	for i, r := range mr.regions {
		if err := r.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", levelName(i), err))
		}
	}
	return errors.Join(errs...)
}

// Keys returns the union of keys across all levels
func (mr *multiRegion) Keys(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for i, r := range mr.regions {
		keys, err := r.Keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", levelName(i), err)
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
