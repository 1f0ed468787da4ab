package pipeline

import (
	"fmt"
	"os"

	"github.com/busweaver/busweaver/pkg/manifest"
	"github.com/busweaver/busweaver/pkg/topology"
)

// ReadManifest returns the manifest bytes and encoding described by opts,
// reading from disk when a path is given. The raw bytes feed the system
// cache key, so callers get them alongside the detected encoding.
func ReadManifest(opts Options) ([]byte, manifest.Format, error) {
	if opts.ManifestPath != "" {
		format, err := manifest.DetectFormat(opts.ManifestPath)
		if err != nil {
			return nil, "", err
		}
		data, err := os.ReadFile(opts.ManifestPath)
		if err != nil {
			return nil, "", fmt.Errorf("read manifest: %w", err)
		}
		return data, format, nil
	}
	return []byte(opts.Manifest), manifest.Format(opts.ManifestFormat), nil
}

// BuildSystem decodes manifest bytes and builds the topology they declare.
func BuildSystem(data []byte, format manifest.Format) (*topology.System, error) {
	m, err := manifest.Decode(data, format)
	if err != nil {
		return nil, err
	}
	return m.Build()
}
