package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/busweaver/busweaver/pkg/cache"
	"github.com/busweaver/busweaver/pkg/observability"
	"github.com/busweaver/busweaver/pkg/report"
	"github.com/busweaver/busweaver/pkg/topology"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete load → check → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	result := &Result{
		Artifacts: make(map[string][]byte),
	}

	// Stage 1: Load
	loadStart := time.Now()
	observability.Pipeline().OnLoadStart(ctx, opts.Source())
	sys, loadHit, err := r.LoadWithCacheInfo(ctx, opts)
	observability.Pipeline().OnLoadComplete(ctx, opts.Source(), time.Since(loadStart), err)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.System = sys
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.EntityCount = sys.EntityCount()
	result.CacheInfo.LoadHit = loadHit

	// Compute system hash for cache keys and API responses
	if sysData, err := json.Marshal(sys); err == nil {
		result.SystemHash = cache.Hash(sysData)
	}

	r.Logger.Info("loaded topology",
		"system", sys.Name,
		"entities", result.Stats.EntityCount,
		"duration", result.Stats.LoadTime)

	// Stage 2: Check
	checkStart := time.Now()
	observability.Pipeline().OnCheckStart(ctx, sys.Name)
	rep, checkHit, err := r.CheckWithCacheInfo(ctx, sys, opts)
	findings := 0
	if rep != nil {
		findings = len(rep.Findings)
	}
	observability.Pipeline().OnCheckComplete(ctx, sys.Name, findings, time.Since(checkStart), err)
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	result.Report = rep
	result.Stats.CheckTime = time.Since(checkStart)
	result.Stats.FindingCount = len(rep.Findings)
	result.CacheInfo.CheckHit = checkHit

	r.Logger.Info("checked consistency",
		"findings", len(rep.Findings),
		"worst", rep.Worst(),
		"duration", result.Stats.CheckTime)

	// Stage 3: Render
	renderStart := time.Now()
	observability.Pipeline().OnRenderStart(ctx, opts.Formats)
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, sys, opts)
	observability.Pipeline().OnRenderComplete(ctx, opts.Formats, time.Since(renderStart), err)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// LoadWithCacheInfo builds the topology from a manifest with caching and
// returns cache hit info.
func (r *Runner) LoadWithCacheInfo(ctx context.Context, opts Options) (*topology.System, bool, error) {
	if err := opts.ValidateForLoad(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	data, format, err := ReadManifest(opts)
	if err != nil {
		return nil, false, err
	}

	// The cache key derives from the manifest bytes, so any edit to the
	// manifest invalidates the cached system.
	cacheKey := r.Keyer.SystemKey(cache.Hash(data))

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if cached, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var sys topology.System
			if err := json.Unmarshal(cached, &sys); err == nil {
				observability.Cache().OnCacheHit(ctx, "system")
				return &sys, true, nil // Cache hit
			}
		}
		observability.Cache().OnCacheMiss(ctx, "system")
	}

	// Build
	sys, err := BuildSystem(data, format)
	if err != nil {
		return nil, false, err
	}

	// Cache the result
	if !opts.Refresh {
		if sysData, err := json.Marshal(sys); err == nil {
			_ = r.Cache.Set(ctx, cacheKey, sysData, cache.TTLSystem)
			observability.Cache().OnCacheSet(ctx, "system", len(sysData))
		}
	}

	return sys, false, nil // Cache miss
}

// Load is a convenience wrapper that calls LoadWithCacheInfo and discards the cache hit info.
func (r *Runner) Load(ctx context.Context, opts Options) (*topology.System, error) {
	sys, _, err := r.LoadWithCacheInfo(ctx, opts)
	return sys, err
}

// CheckWithCacheInfo analyzes a system with caching and returns cache hit info.
func (r *Runner) CheckWithCacheInfo(ctx context.Context, sys *topology.System, opts Options) (*report.Report, bool, error) {
	r.applyLogger(&opts)

	// Compute cache key from the system content
	sysData, err := json.Marshal(sys)
	if err != nil {
		return nil, false, fmt.Errorf("serialize system for cache key: %w", err)
	}
	cacheKey := r.Keyer.ReportKey(cache.Hash(sysData))

	// Try cache first
	if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
		var rep report.Report
		if err := json.Unmarshal(data, &rep); err == nil {
			observability.Cache().OnCacheHit(ctx, "report")
			return &rep, true, nil // Cache hit
		}
		// If deserialization fails, fall through to recompute
	}
	observability.Cache().OnCacheMiss(ctx, "report")

	// Analyze
	rep := report.Analyze(sys)

	// Cache the result
	if data, err := json.Marshal(rep); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLReport)
		observability.Cache().OnCacheSet(ctx, "report", len(data))
	}

	return rep, false, nil // Cache miss
}

// Check is a convenience wrapper that calls CheckWithCacheInfo and discards the cache hit info.
func (r *Runner) Check(ctx context.Context, sys *topology.System, opts Options) (*report.Report, error) {
	rep, _, err := r.CheckWithCacheInfo(ctx, sys, opts)
	return rep, err
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit info.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, sys *topology.System, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	// Compute cache key from the system content
	sysData, err := json.Marshal(sys)
	if err != nil {
		return nil, false, fmt.Errorf("serialize system for cache key: %w", err)
	}
	systemHash := cache.Hash(sysData)

	// Try to get all formats from cache
	allCached := true
	artifacts := make(map[string][]byte)

	for _, format := range opts.Formats {
		cacheKey := r.Keyer.ArtifactKey(systemHash, opts.ArtifactKeyOpts(format))
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			artifacts[format] = data
		} else {
			allCached = false
			break
		}
	}

	if allCached && len(artifacts) == len(opts.Formats) {
		observability.Cache().OnCacheHit(ctx, "artifact")
		return artifacts, true, nil // All artifacts from cache
	}
	observability.Cache().OnCacheMiss(ctx, "artifact")

	// Render all formats
	rendered, err := Render(ctx, sys, opts)
	if err != nil {
		return nil, false, err
	}

	// Cache each format
	for format, data := range rendered {
		cacheKey := r.Keyer.ArtifactKey(systemHash, opts.ArtifactKeyOpts(format))
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact)
		observability.Cache().OnCacheSet(ctx, "artifact", len(data))
	}

	return rendered, false, nil // Cache miss
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, sys *topology.System, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, sys, opts)
	return artifacts, err
}

// SystemHash returns the content hash of a system. Identical systems hash
// identically because encoding/json writes map keys in sorted order.
func SystemHash(sys *topology.System) (string, error) {
	data, err := json.Marshal(sys)
	if err != nil {
		return "", err
	}
	return cache.Hash(data), nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
