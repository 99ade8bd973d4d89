package l1

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
	"go-offline-proxy/internal/region"
	"go-offline-proxy/internal/scheduler"
)

// separates region name and request key inside the shared bigcache keyspace
const keySeparator = "\x00"

const (
	// entries live until evicted by size or by region deletion
	lifeWindow = 100 * 365 * 24 * time.Hour

	// sizing hints for the initial shard allocation
	averageEntrySize   = 16 * 1024
	maxEntriesInWindow = 1000
)

// Ensure BigCacheStore implements interfaces.RegionStore
var _ interfaces.RegionStore = (*BigCacheStore)(nil)

// BigCacheStore implements an in-memory region store on top of a single BigCache
type BigCacheStore struct {
	cache            *bigcache.BigCache
	logger           *zap.Logger
	metricsScheduler *scheduler.Scheduler
	maxEntryBytes    int

	mu    sync.RWMutex
	names map[string]struct{}
}

// NewBigCacheStore creates a new BigCacheStore instance
func NewBigCacheStore(l1Cfg *config.L1Config, logger *zap.Logger) (*BigCacheStore, error) {
	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.Shards = config.L1Shards
	cfg.CleanWindow = 0
	cfg.HardMaxCacheSize = l1Cfg.Size // Size in MB
	cfg.MaxEntrySize = averageEntrySize
	cfg.MaxEntriesInWindow = maxEntriesInWindow
	cfg.Verbose = false

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	s := &BigCacheStore{
		cache:         cache,
		logger:        logger,
		maxEntryBytes: l1Cfg.MaxEntrySizeKB * 1024,
		names:         make(map[string]struct{}),
	}

	s.startMetricsCollection(l1Cfg.GetStatsInterval())

	return s, nil
}

// Open returns the named region, registering it if absent
func (s *BigCacheStore) Open(_ context.Context, name string) (interfaces.Region, error) {
	if name == "" {
		return nil, errors.New("region name cannot be empty")
	}
	s.register(name)
	return &bigCacheRegion{store: s, name: name}, nil
}

// Names lists the known regions in lexical order
func (s *BigCacheStore) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a region and every entry stored under it
func (s *BigCacheStore) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	_, existed := s.names[name]
	delete(s.names, name)
	s.mu.Unlock()

	keys := s.scan(name)
	for _, key := range keys {
		if err := s.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			metrics.RecordCacheError("l1", "upstream")
			return existed, fmt.Errorf("failed to delete entry of region %s: %w", name, err)
		}
	}

	s.logger.Debug("Deleted L1 region", zap.String("region", name), zap.Int("entries", len(keys)))
	return existed || len(keys) > 0, nil
}

// Close stops metrics collection and closes the cache
func (s *BigCacheStore) Close() error {
	s.stopMetricsCollection()
	return s.cache.Close()
}

// GetStats returns the configured capacity in bytes and the number of stored entries
func (s *BigCacheStore) GetStats() (capacity, entries int64) {
	return int64(s.cache.Capacity()), int64(s.cache.Len())
}

func (s *BigCacheStore) register(name string) {
	s.mu.RLock()
	_, ok := s.names[name]
	s.mu.RUnlock()
	if ok {
		return
	}

	s.mu.Lock()
	s.names[name] = struct{}{}
	s.mu.Unlock()
}

// scan returns the full bigcache keys of every entry of a region
func (s *BigCacheStore) scan(name string) []string {
	prefix := name + keySeparator
	var keys []string

	it := s.cache.Iterator()
	for it.SetNext() {
		entry, err := it.Value()
		if err != nil {
			continue
		}
		if strings.HasPrefix(entry.Key(), prefix) {
			keys = append(keys, entry.Key())
		}
	}
	return keys
}

// startMetricsCollection starts periodic metrics collection
func (s *BigCacheStore) startMetricsCollection(interval time.Duration) {
	s.metricsScheduler = scheduler.New(interval, s.updateMetrics)
	s.metricsScheduler.Start()

	// Initial collection
	s.updateMetrics()

	s.logger.Debug("Started L1 cache metrics collection")
}

// stopMetricsCollection stops periodic metrics collection
func (s *BigCacheStore) stopMetricsCollection() {
	if s.metricsScheduler != nil {
		s.metricsScheduler.Stop()
		s.logger.Debug("Stopped L1 cache metrics collection")
	}
}

// updateMetrics updates cache metrics
func (s *BigCacheStore) updateMetrics() {
	capacity, entries := s.GetStats()
	metrics.UpdateL1CacheCapacity(capacity)
	metrics.UpdateCacheKeys("l1", entries)
}

// bigCacheRegion is a view of one region inside the shared BigCache
type bigCacheRegion struct {
	store *BigCacheStore
	name  string
}

func (r *bigCacheRegion) fullKey(key string) string {
	return r.name + keySeparator + key
}

// Name returns the region name
func (r *bigCacheRegion) Name() string {
	return r.name
}

// Match retrieves a stored snapshot
func (r *bigCacheRegion) Match(_ context.Context, key string) (*models.ResponseSnapshot, bool) {
	data, err := r.store.cache.Get(r.fullKey(key))
	if err != nil {
		return nil, false
	}

	resp, err := region.DecodeSnapshot(data)
	if err != nil {
		r.store.logger.Warn("Failed to decode L1 cache entry",
			zap.String("region", r.name),
			zap.String("key", key),
			zap.Error(err))
		metrics.RecordCacheError("l1", "decode")
		_ = r.store.cache.Delete(r.fullKey(key)) // Remove corrupted entry
		return nil, false
	}

	return resp, true
}

// Put stores a snapshot, overwriting any previous entry for the key. A
// deleted region stays deleted: writes through an old handle are refused.
func (r *bigCacheRegion) Put(_ context.Context, key string, resp *models.ResponseSnapshot) error {
	data, err := region.EncodeSnapshot(resp)
	if err != nil {
		metrics.RecordCacheError("l1", "encode")
		return fmt.Errorf("failed to encode L1 cache entry: %w", err)
	}

	if r.store.maxEntryBytes > 0 && len(data) > r.store.maxEntryBytes {
		metrics.RecordCacheError("l1", "too_large")
		return fmt.Errorf("L1 cache entry of %d bytes exceeds limit of %d bytes", len(data), r.store.maxEntryBytes)
	}

	// Delete unregisters under the write lock before scanning, so a write
	// either lands before the scan or is refused here
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if _, ok := r.store.names[r.name]; !ok {
		return fmt.Errorf("%w: %s", models.ErrRegionDeleted, r.name)
	}

	if err := r.store.cache.Set(r.fullKey(key), data); err != nil {
		r.store.logger.Error("Failed to set L1 cache entry",
			zap.String("region", r.name),
			zap.String("key", key),
			zap.Error(err))
		metrics.RecordCacheError("l1", "upstream")
		return fmt.Errorf("failed to set L1 cache entry: %w", err)
	}
	return nil
}

// Delete removes one entry
func (r *bigCacheRegion) Delete(_ context.Context, key string) error {
	err := r.store.cache.Delete(r.fullKey(key))
	if err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return err
	}
	return nil
}

// Keys lists the request keys stored in the region
func (r *bigCacheRegion) Keys(_ context.Context) ([]string, error) {
	prefix := r.name + keySeparator
	full := r.store.scan(r.name)

	keys := make([]string, 0, len(full))
	for _, k := range full {
		keys = append(keys, strings.TrimPrefix(k, prefix))
	}
	sort.Strings(keys)
	return keys, nil
}
