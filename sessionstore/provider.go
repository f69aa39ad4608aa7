// Package sessionstore provides the pluggable TTL key-value abstraction
// gridstore uses for session records, artifact metadata, and every other
// small piece of state the object store itself cannot carry efficiently.
//
// It is grounded on the teacher's Redis-backed repositories
// (db/dragonflydb.go, db/repository/redis.go, queue/redis/queue.go): the
// same go-redis/v9 client, the same "parse URL, ping once, keep the
// client" construction pattern, and the same JSON-marshal-before-SET
// convention for structured values.
package sessionstore

import (
	"context"
	"time"
)

// Provider is the TTL key-value surface every session/metadata backend
// implements. It is intentionally narrow: get/setex/delete plus a small
// set algebra (sadd/smembers/srem) used by the federation index to keep
// secondary indexes, and keys() for prefix scans used by session listing.
type Provider interface {
	// Get returns the raw bytes stored at key, or (nil, false, nil) if the
	// key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetEx stores value at key with the given TTL. A TTL of zero means
	// no expiry.
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every stored key matching the given glob-style prefix
	// pattern (e.g. "grid/sbx1/sess-*"). Intended for administrative
	// listing, not hot-path lookups.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// SAdd adds members to the set stored at key.
	SAdd(ctx context.Context, key string, members ...string) error

	// SMembers returns every member of the set stored at key.
	SMembers(ctx context.Context, key string) ([]string, error)

	// SRem removes members from the set stored at key.
	SRem(ctx context.Context, key string, members ...string) error

	// Close releases any resources (connections, goroutines) held by the
	// provider.
	Close() error
}
