// Package cache provides pluggable byte caches for expensive pipeline
// results.
//
// The only cached artifact today is the assignment: solving it (especially
// with the optimal algorithm) dominates runtime for large grids, while its
// serialized form is tiny. Cache keys are derived from the content hashes of
// both working buffers plus every parameter that influences the result, so a
// hit is always safe to reuse.
//
// Backends:
//   - [FileCache]: entries under a directory, for CLI usage.
//   - [RedisCache]: shared cache for server deployments.
//   - [NullCache]: disables caching.
package cache

import (
	"context"
	"time"
)

// Cache is the interface for cache backends.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key
	// was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with an optional TTL (0 = no expiration).
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// AssignmentKeyOpts are the parameters that shape an assignment result.
// Every field participates in the cache key.
type AssignmentKeyOpts struct {
	Resolution int     `json:"resolution"`
	Algorithm  string  `json:"algorithm"`
	Proximity  float64 `json:"proximity"`
	Seed       int64   `json:"seed"` // only meaningful for greedy
}

// AssignmentKey builds the cache key for an assignment between two buffers
// identified by their content hashes.
func AssignmentKey(srcHash, tgtHash string, opts AssignmentKeyOpts) string {
	return hashKey("assign", srcHash, tgtHash, opts)
}
