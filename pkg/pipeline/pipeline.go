// Package pipeline provides the core consistency pipeline for BusWeaver.
//
// This package implements the complete load → check → render pipeline that
// can be used by CLI and API components. By centralizing this logic, we
// ensure consistent behavior across all entry points and avoid code duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: Decode a manifest file and build the topology system it declares
//  2. Check: Analyze the system and produce a consistency report
//  3. Render: Generate output in various formats (SVG, PNG, PDF, DOT, JSON)
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    ManifestPath: "vehicle.toml",
//	    Formats:      []string{"svg"},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
//
// Run individual stages:
//
//	// Load only
//	sys, err := runner.Load(ctx, opts)
//
//	// Check an existing system
//	rep, err := runner.Check(ctx, sys, opts)
//
//	// Render an existing system
//	artifacts, err := runner.Render(ctx, sys, opts)
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/busweaver/busweaver/pkg/cache"
	"github.com/busweaver/busweaver/pkg/manifest"
	"github.com/busweaver/busweaver/pkg/report"
	"github.com/busweaver/busweaver/pkg/topology"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

// Format constants for output formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatDOT  = "dot"
	FormatJSON = "json"
)

// DefaultFormat is the output format used when none is requested.
const DefaultFormat = FormatSVG

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
	FormatDOT:  true,
	FormatJSON: true,
}

// ValidManifestFormats is the set of supported inline manifest encodings.
var ValidManifestFormats = map[string]bool{
	string(manifest.FormatTOML): true,
	string(manifest.FormatJSON): true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the consistency pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Load options. A manifest is given either as a file path or inline;
	// inline manifests need an explicit encoding.
	ManifestPath   string `json:"manifest_path,omitempty"`
	Manifest       string `json:"manifest,omitempty"`
	ManifestFormat string `json:"manifest_format,omitempty"`
	Refresh        bool   `json:"refresh,omitempty"`

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// System is the topology built from the manifest.
	System *topology.System

	// SystemHash is the content hash of the built system.
	SystemHash string

	// Report is the consistency report for the system.
	Report *report.Report

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	EntityCount  int
	FindingCount int
	LoadTime     time.Duration
	CheckTime    time.Duration
	RenderTime   time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	LoadHit   bool // Whether the built system came from cache
	CheckHit  bool // Whether the report came from cache
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: svg, png, pdf, dot, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateManifestFormat checks that an inline manifest encoding is valid.
func ValidateManifestFormat(format string) error {
	if !ValidManifestFormats[format] {
		return fmt.Errorf("invalid manifest_format: %q (must be one of: toml, json)", format)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the full pipeline.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForLoad(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForLoad checks required fields for loading a manifest.
func (o *Options) ValidateForLoad() error {
	if o.ManifestPath == "" && o.Manifest == "" {
		return fmt.Errorf("manifest_path or manifest is required")
	}
	if o.Manifest != "" {
		if o.ManifestFormat == "" {
			return fmt.Errorf("manifest_format is required with an inline manifest")
		}
		if err := ValidateManifestFormat(o.ManifestFormat); err != nil {
			return err
		}
	}

	// Logger default
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	return nil
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{DefaultFormat}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateForRender validates and sets defaults for rendering.
func (o *Options) ValidateForRender() error {
	o.SetRenderDefaults()
	return ValidateFormats(o.Formats)
}

// Source returns a human-readable description of the manifest source,
// the file path or "inline" for manifests passed directly.
func (o *Options) Source() string {
	if o.ManifestPath != "" {
		return o.ManifestPath
	}
	return "inline"
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format:   format,
		Detailed: o.Detailed,
	}
}
