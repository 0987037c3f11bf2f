// Package cache provides caching for pipeline results.
//
// Generating parcels for a large settlement is dominated by geometry kernel
// time, so the runner caches final collections keyed by a hash of the input
// layers plus every option that influences the output. Two backends are
// provided: a file cache for CLI usage and a Redis cache for server
// deployments, plus a null cache for tests and one-shot runs.
package cache

import (
	"context"
	"time"
)

// TTL values for cached data.
const (
	// TTLResult is how long a generated parcel collection stays cached.
	// Inputs are content-addressed, so entries never go stale; the TTL
	// only bounds disk growth.
	TTLResult = 7 * 24 * time.Hour
)

// Cache is the interface for caching backends.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value. Returns (data, true, nil) on hit,
	// (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A TTL of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// ResultKeyOpts captures every option that influences a generated parcel
// collection. Two runs with equal input hashes and equal opts may share a
// cache entry.
type ResultKeyOpts struct {
	Mode                 string  `json:"mode"`
	BufferDistance       float64 `json:"buffer_distance"`
	MinArea              float64 `json:"min_area"`
	MaxArea              float64 `json:"max_area"`
	TargetFrame          string  `json:"target_frame"`
	Orthogonalize        bool    `json:"orthogonalize"`
	AngleTolerance       float64 `json:"angle_tolerance"`
	MaxIterations        int     `json:"max_iterations"`
	SnapTolerance        float64 `json:"snap_tolerance"`
	CapStyle             string  `json:"cap_style"`
	ExtentPaddingPercent float64 `json:"extent_padding_percent"`
	ClipToBlocks         bool    `json:"clip_to_blocks"`
}

// Keyer generates cache keys. Implementations can add prefixes for
// multi-tenant isolation.
type Keyer interface {
	// ResultKey generates a key for a final parcel collection from the
	// input-layer hash and the generation options.
	ResultKey(inputHash string, opts ResultKeyOpts) string
}

// DefaultKeyer generates unprefixed cache keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ResultKey generates a key for a final parcel collection.
func (k *DefaultKeyer) ResultKey(inputHash string, opts ResultKeyOpts) string {
	return hashKey("result", inputHash, opts)
}

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation, so
// server deployments can give each tenant a separate cache namespace.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ResultKey generates a prefixed key for a final parcel collection.
func (k *ScopedKeyer) ResultKey(inputHash string, opts ResultKeyOpts) string {
	return k.prefix + k.inner.ResultKey(inputHash, opts)
}
