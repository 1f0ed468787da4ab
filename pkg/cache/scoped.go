package cache

// ScopedKeyer wraps a Keyer with a prefix for multi-tenant isolation.
// This is useful when several projects or users share one Redis backend
// and need separate cache namespaces.
//
// Example usage:
//
//	// Project-specific keys
//	projectKeyer := NewScopedKeyer(NewDefaultKeyer(), "proj:vehicle-a:")
//
//	// Global keys
//	globalKeyer := NewDefaultKeyer()
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

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// SystemKey generates a prefixed key for built system caching.
func (k *ScopedKeyer) SystemKey(manifestHash string) string {
	return k.prefix + k.inner.SystemKey(manifestHash)
}

// ReportKey generates a prefixed key for report caching.
func (k *ScopedKeyer) ReportKey(systemHash string) string {
	return k.prefix + k.inner.ReportKey(systemHash)
}

// ArtifactKey generates a prefixed key for artifact caching.
func (k *ScopedKeyer) ArtifactKey(systemHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(systemHash, opts)
}
