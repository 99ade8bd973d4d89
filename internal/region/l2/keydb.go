package l2

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
	"go-offline-proxy/internal/region"
)

// Ensure KeyDBStore implements interfaces.RegionStore
var _ interfaces.RegionStore = (*KeyDBStore)(nil)

// KeyDBStore implements a shared region store using Redis/KeyDB.
// Region names live in one set; each region is a hash of request key to
// encoded snapshot.
type KeyDBStore struct {
	client interfaces.KeyDbClient
	config *config.L2Config
	logger *zap.Logger
}

// NewKeyDBStore creates a new KeyDBStore instance with provided client
func NewKeyDBStore(cfg *config.L2Config, client interfaces.KeyDbClient, logger *zap.Logger) *KeyDBStore {
	return &KeyDBStore{
		client: client,
		config: cfg,
		logger: logger,
	}
}

func (s *KeyDBStore) regionsKey() string {
	return s.config.KeyPrefix + ":regions"
}

func (s *KeyDBStore) regionKey(name string) string {
	return s.config.KeyPrefix + ":region:" + name
}

// Open registers the region name and returns a handle on it
func (s *KeyDBStore) Open(ctx context.Context, name string) (interfaces.Region, error) {
	if name == "" {
		return nil, errors.New("region name cannot be empty")
	}

	ctx, cancel := withTimeout(ctx, s.config.GetSendTimeout())
	defer cancel()

	if err := s.client.SAdd(ctx, s.regionsKey(), name).Err(); err != nil {
		metrics.RecordCacheError("l2", "upstream")
		return nil, fmt.Errorf("failed to register L2 region %s: %w", name, err)
	}

	return &keyDBRegion{store: s, name: name}, nil
}

// Names lists the registered regions in lexical order
func (s *KeyDBStore) Names(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx, s.config.GetReadTimeout())
	defer cancel()

	names, err := s.client.SMembers(ctx, s.regionsKey()).Result()
	if err != nil {
		metrics.RecordCacheError("l2", "upstream")
		return nil, fmt.Errorf("failed to list L2 regions: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete unregisters the region, then drops its hash
func (s *KeyDBStore) Delete(ctx context.Context, name string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.config.GetSendTimeout())
	defer cancel()

	unregistered, err := s.client.SRem(ctx, s.regionsKey(), name).Result()
	if err != nil {
		metrics.RecordCacheError("l2", "upstream")
		return false, fmt.Errorf("failed to unregister L2 region %s: %w", name, err)
	}

	dropped, err := s.client.Del(ctx, s.regionKey(name)).Result()
	if err != nil {
		metrics.RecordCacheError("l2", "upstream")
		return unregistered > 0, fmt.Errorf("failed to delete L2 region %s: %w", name, err)
	}

	return dropped > 0 || unregistered > 0, nil
}

// Close closes the KeyDB connection
func (s *KeyDBStore) Close() error {
	return s.client.Close()
}

// keyDBRegion is a handle on one region hash
type keyDBRegion struct {
	store *KeyDBStore
	name  string
}

// Name returns the region name
func (r *keyDBRegion) Name() string {
	return r.name
}

// Match retrieves a stored snapshot
func (r *keyDBRegion) Match(ctx context.Context, key string) (*models.ResponseSnapshot, bool) {
	ctx, cancel := withTimeout(ctx, r.store.config.GetReadTimeout())
	defer cancel()

	data, err := r.store.client.HGet(ctx, r.store.regionKey(r.name), key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.store.logger.Error("L2 cache get error",
				zap.String("region", r.name),
				zap.String("key", key),
				zap.Error(err))
			metrics.RecordCacheError("l2", "upstream")
		}
		return nil, false
	}

	resp, err := region.DecodeSnapshot([]byte(data))
	if err != nil {
		r.store.logger.Error("Failed to decode L2 cache entry",
			zap.String("region", r.name),
			zap.String("key", key),
			zap.Error(err))
		metrics.RecordCacheError("l2", "decode")
		r.store.client.HDel(ctx, r.store.regionKey(r.name), key)
		return nil, false
	}

	return resp, true
}

// Put stores a snapshot, overwriting any previous entry for the key
func (r *keyDBRegion) Put(ctx context.Context, key string, resp *models.ResponseSnapshot) error {
	data, err := region.EncodeSnapshot(resp)
	if err != nil {
		metrics.RecordCacheError("l2", "encode")
		return fmt.Errorf("failed to encode L2 cache entry: %w", err)
	}

	ctx, cancel := withTimeout(ctx, r.store.config.GetSendTimeout())
	defer cancel()

	if err := r.store.client.HSet(ctx, r.store.regionKey(r.name), key, data).Err(); err != nil {
		r.store.logger.Error("Failed to set L2 cache entry",
			zap.String("region", r.name),
			zap.String("key", key),
			zap.Error(err))
		metrics.RecordCacheError("l2", "upstream")
		return fmt.Errorf("failed to set L2 cache entry: %w", err)
	}

	// Delete unregisters before dropping the hash, so a write that no longer
	// sees the registration must remove itself
	registered, err := r.store.client.SIsMember(ctx, r.store.regionsKey(), r.name).Result()
	if err != nil {
		metrics.RecordCacheError("l2", "upstream")
		return fmt.Errorf("failed to check L2 region %s: %w", r.name, err)
	}
	if !registered {
		r.store.client.HDel(ctx, r.store.regionKey(r.name), key)
		return fmt.Errorf("%w: %s", models.ErrRegionDeleted, r.name)
	}
	return nil
}

// Delete removes one entry
func (r *keyDBRegion) Delete(ctx context.Context, key string) error {
	ctx, cancel := withTimeout(ctx, r.store.config.GetSendTimeout())
	defer cancel()

	if err := r.store.client.HDel(ctx, r.store.regionKey(r.name), key).Err(); err != nil {
		r.store.logger.Error("Failed to delete L2 cache entry",
			zap.String("region", r.name),
			zap.String("key", key),
			zap.Error(err))
		return err
	}
	return nil
}

// Keys lists the request keys stored in the region
func (r *keyDBRegion) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx, r.store.config.GetReadTimeout())
	defer cancel()

	keys, err := r.store.client.HKeys(ctx, r.store.regionKey(r.name)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list L2 region keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
