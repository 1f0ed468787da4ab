package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/busweaver/busweaver/pkg/pipeline"
)

// renderCommand creates the render command for generating network diagrams.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		formatsStr string
		output     string
		noCache    bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "render [manifest]",
		Short: "Render a topology manifest as a network diagram",
		Long: `Render a topology manifest as a network diagram.

The render command builds the system described by the manifest and draws
its clusters, channels, ECUs and frame triggerings as a Graphviz diagram.
With --detailed the diagram also shows PDUs, signals and the send/receive
port edges derived from the triggerings.

Formats: svg (default), png, pdf, dot (raw Graphviz source) and json
(the built system itself). Multiple comma-separated formats write one
file each next to the manifest or under the --output base path.

Results are cached locally by content hash for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.Formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), png, pdf, dot, json (comma-separated)")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "include PDUs, signals and port edges")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "rebuild even if a cached system exists")

	return cmd
}

// runRender executes the full pipeline and writes the rendered artifacts.
func (c *CLI) runRender(ctx context.Context, input string, opts pipeline.Options, output string, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.ManifestPath = input
	opts.Logger = c.Logger

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", input))
	spinner.Start()

	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return fmt.Errorf("render: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Rendering proceeds on inconsistent topologies; the diagram is often
	// the fastest way to see what is wrong. Point at check anyway.
	if result.Report.HasErrors() {
		printWarning("Topology has %d consistency errors", result.Report.Summary.Errors)
		printNextStep("Inspect", fmt.Sprintf("%s check %s", appName, input))
		printNewline()
	}

	return writeArtifacts(artifactWriteParams{
		artifacts: result.Artifacts,
		formats:   opts.Formats,
		input:     input,
		output:    output,
		entities:  result.Stats.EntityCount,
		findings:  result.Stats.FindingCount,
		cacheHit:  result.CacheInfo.RenderHit,
	})
}

// artifactWriteParams bundles the arguments for writeArtifacts.
type artifactWriteParams struct {
	artifacts map[string][]byte
	formats   []string
	input     string
	output    string
	entities  int
	findings  int
	cacheHit  bool
}

// writeArtifacts writes each rendered format to its own file and prints
// a summary. A single format honors --output verbatim; multiple formats
// share a base path and append their extension.
func writeArtifacts(p artifactWriteParams) error {
	base := artifactBase(p.output, p.input)
	single := len(p.formats) == 1

	var written []string
	for _, format := range p.formats {
		data, ok := p.artifacts[format]
		if !ok {
			continue
		}
		path := p.output
		if !single || path == "" {
			path = base + "." + format
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}

	printSuccess("Render complete")
	for _, path := range written {
		printFile(path)
	}
	printStats(p.entities, p.findings, p.cacheHit)
	return nil
}

// artifactBase derives the base output path from the output and input paths.
// If output is empty, the manifest path without its extension is used. A
// known format extension on the output path is stripped so multiple formats
// do not stack extensions.
func artifactBase(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}
