// Package pkg provides the core libraries for BusWeaver communication
// consistency checking.
//
// # Overview
//
// BusWeaver models automotive communication networks — CAN, LIN, FlexRay
// and Ethernet clusters with their frames, PDUs and signals — and keeps
// the derived triggering and port graph consistent while the topology is
// constructed. The pkg directory is organized into four main areas:
//
//  1. [topology] - Domain logic (entity arena, mappings, triggering propagation)
//  2. [manifest] - Declarative TOML/JSON topology descriptions
//  3. [report] / [render] - Analysis findings and diagram output
//  4. [pipeline] - Orchestration (load → check → render) with caching
//
// # Architecture
//
// The typical data flow through BusWeaver:
//
//	TOML/JSON manifest
//	         ↓
//	    [manifest] package (decode + replay construction ops)
//	         ↓
//	    [topology] package (entity arena + derived triggerings)
//	         ↓
//	    [report] package (consistency findings + bit layouts)
//	         ↓
//	    [render] package (DOT → SVG/PNG/PDF diagrams)
//
// # Quick Start
//
// Build a system from a manifest and check it:
//
//	import (
//	    "github.com/busweaver/busweaver/pkg/manifest"
//	    "github.com/busweaver/busweaver/pkg/report"
//	)
//
//	m, _ := manifest.Load("vehicle.toml")
//	sys, err := m.Build()
//	if err != nil {
//	    // a construction rule was violated (overlap, unknown ref, ...)
//	}
//	rep := report.Analyze(sys)
//	if rep.HasErrors() {
//	    for _, f := range rep.FindingsAt(report.SeverityError) {
//	        fmt.Println(f.Message)
//	    }
//	}
//
// Or drive the full pipeline with caching:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, _ := runner.Execute(ctx, pipeline.Options{
//	    ManifestPath: "vehicle.toml",
//	    Formats:      []string{"svg"},
//	})
//
// # Main Packages
//
// [topology] - The entity arena. A System holds clusters, channels, ECUs,
// frames, PDUs, signals and transformation sets in maps keyed by name;
// construction operations validate their rules and derive frame, PDU and
// signal triggerings with their ECU ports.
//
// [topology/bitlayout] - Bit-level placement validation. A CoverageMap
// tracks which bits of a buffer are occupied and rejects overlapping
// placements for both byte orders.
//
// [manifest] - Declarative topology descriptions. Decodes TOML or JSON
// and replays the declarations through the topology construction
// operations, so manifests obey exactly the rules programmatic
// construction does.
//
// [report] - Consistency analysis. Analyze walks a built system and
// produces findings (error, warning, info) plus the occupancy bitmap of
// every frame and PDU.
//
// [render] - Diagram output. ToDOT converts a system to Graphviz DOT;
// RenderSVG, RenderPNG and RenderPDF lay it out.
//
// [pipeline] - Orchestration used by the CLI and the API server. Stages
// are cached by content hash: manifests hash to systems, systems hash to
// reports and rendered artifacts.
//
// [cache] - Cache interface with file, Redis and null backends.
//
// [store] - Named topology documents for the API server, with memory and
// MongoDB backends.
//
// [client] - Typed HTTP client for the BusWeaver API.
//
// [errors] - Structured errors with stable codes shared by the engine,
// the CLI and the API.
//
// [httputil] - HTTP retry with exponential backoff.
//
// [observability] - Pipeline, cache and HTTP hooks with no-op defaults.
//
// [buildinfo] - Build-time version information set via ldflags.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                # All tests
//	go test ./pkg/topology/...       # Specific package
//	go test -run Example             # Examples only
//
// [topology]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/topology
// [topology/bitlayout]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/topology/bitlayout
// [manifest]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/manifest
// [report]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/report
// [render]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/render
// [pipeline]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/cache
// [store]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/store
// [client]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/client
// [errors]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/errors
// [httputil]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/busweaver/busweaver/pkg/buildinfo
package pkg
