package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/busweaver/busweaver/pkg/render"
	"github.com/busweaver/busweaver/pkg/topology"
)

// Render generates output artifacts in the requested formats. The DOT
// graph is generated once and shared by every graphical format. SVG, PNG
// and DOT render in-process; PDF additionally shells out to rsvg-convert.
func Render(ctx context.Context, sys *topology.System, opts Options) (map[string][]byte, error) {
	dot := render.ToDOT(sys, render.Options{Detailed: opts.Detailed})

	artifacts := make(map[string][]byte)

	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatSVG:
			data, err = render.RenderSVG(ctx, dot)
		case FormatPNG:
			data, err = render.RenderPNG(ctx, dot)
		case FormatPDF:
			data, err = render.RenderPDF(ctx, dot)
		case FormatDOT:
			data = []byte(dot)
		case FormatJSON:
			data, err = json.MarshalIndent(sys, "", "  ")
		default:
			return nil, fmt.Errorf("unsupported format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}

	return artifacts, nil
}
