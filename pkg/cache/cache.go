// Package cache provides caching abstractions for the busweaver pipeline.
//
// # Overview
//
// The pipeline caches three kinds of derived data, keyed by content hash:
//
//   - Built systems: manifest hash -> serialized topology
//   - Consistency reports: system hash -> report
//   - Rendered artifacts: system hash + render options -> bytes
//
// Two interfaces separate the concerns:
//
//   - [Cache]: storage backend (Get/Set/Delete with TTL)
//   - [Keyer]: key generation (content-hash based, collision-free)
//
// # Backends
//
//   - [FileCache]: file-based storage for CLI usage (~/.cache/busweaver/)
//   - [RedisCache]: Redis-backed storage for server deployments
//   - [NullCache]: no-op cache for tests or --no-cache runs
//
// # Keys
//
// Keys are derived from SHA-256 content hashes, so identical inputs share
// cache entries regardless of where they came from. Use [NewScopedKeyer]
// to namespace keys when multiple tenants share one backend.
package cache

import (
	"context"
	"time"
)

// Default TTLs per entry kind. Built systems and reports are derived
// deterministically from their inputs, so long TTLs are safe; artifacts
// are larger and expire sooner.
const (
	// TTLSystem is the time-to-live for built topology systems.
	TTLSystem = 7 * 24 * time.Hour

	// TTLReport is the time-to-live for consistency reports.
	TTLReport = 7 * 24 * time.Hour

	// TTLArtifact is the time-to-live for rendered artifacts.
	TTLArtifact = 24 * time.Hour
)

// Cache is the storage backend interface.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value by key.
	// Returns (data, true, nil) on a hit and (nil, false, nil) on a miss.
	// Errors indicate backend failures, not misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key with the given TTL.
	// A TTL of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer generates cache keys for the pipeline's entry kinds.
type Keyer interface {
	// HTTPKey generates a key for HTTP response caching.
	HTTPKey(namespace, key string) string

	// SystemKey generates a key for a built system, derived from the
	// hash of the manifest it was built from.
	SystemKey(manifestHash string) string

	// ReportKey generates a key for a consistency report, derived from
	// the hash of the system it describes.
	ReportKey(systemHash string) string

	// ArtifactKey generates a key for a rendered artifact, derived from
	// the system hash and the render options.
	ArtifactKey(systemHash string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts captures the render options that affect artifact bytes.
// Two renders with equal opts and equal system hashes produce identical
// output, so they share a cache entry.
type ArtifactKeyOpts struct {
	Format   string `json:"format"`
	Detailed bool   `json:"detailed"`
}

// DefaultKeyer is the standard Keyer implementation.
// Keys embed full SHA-256 hashes of their inputs, so distinct inputs
// cannot collide.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// HTTPKey generates a key for HTTP response caching.
// HTTP keys keep the namespace and key readable for cache inspection.
func (k *DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// SystemKey generates a key for a built system.
func (k *DefaultKeyer) SystemKey(manifestHash string) string {
	return hashKey("system", manifestHash)
}

// ReportKey generates a key for a consistency report.
func (k *DefaultKeyer) ReportKey(systemHash string) string {
	return hashKey("report", systemHash)
}

// ArtifactKey generates a key for a rendered artifact.
func (k *DefaultKeyer) ArtifactKey(systemHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", systemHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
