package interfaces

import (
	"context"

	"github.com/go-redis/redis/v8"
)

//go:generate mockgen -source=keydb_client.go -destination=mock/keydb_client.go -package=mock

// KeyDbClient defines the interface for KeyDB/Redis client operations
type KeyDbClient interface {
	// HGet reads one field of a hash
	HGet(ctx context.Context, key, field string) *redis.StringCmd

	// HSet writes field/value pairs of a hash
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd

	// HDel deletes fields of a hash
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd

	// HKeys lists the fields of a hash
	HKeys(ctx context.Context, key string) *redis.StringSliceCmd

	// SAdd adds members to a set
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd

	// SRem removes members from a set
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd

	// SIsMember reports whether member belongs to a set
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd

	// SMembers lists the members of a set
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) *redis.IntCmd

	// Ping tests connectivity
	Ping(ctx context.Context) *redis.StatusCmd

	// Close closes the client connection
	Close() error
}
