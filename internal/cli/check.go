package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/busweaver/busweaver/pkg/client"
	"github.com/busweaver/busweaver/pkg/manifest"
	"github.com/busweaver/busweaver/pkg/pipeline"
	"github.com/busweaver/busweaver/pkg/report"
	"github.com/busweaver/busweaver/pkg/topology"
)

// Output formats for the check command.
const (
	checkFormatText = "text"
	checkFormatJSON = "json"
)

// Thresholds for the --fail-on flag.
const (
	failOnError   = "error"
	failOnWarning = "warning"
	failOnNever   = "never"
)

// checkOpts holds the command-line flags for the check command.
type checkOpts struct {
	format  string // report format: "text" or "json"
	output  string // report file path (stdout if empty, json only)
	noCache bool   // disable caching
	refresh bool   // bypass cache and rebuild
	failOn  string // severity threshold for a non-zero exit
	layouts bool   // include bit layouts in text output
	server  string // API server base URL ("" checks locally)
}

// checkCommand creates the check command for validating topology manifests.
func (c *CLI) checkCommand() *cobra.Command {
	opts := checkOpts{format: checkFormatText, failOn: failOnError}

	cmd := &cobra.Command{
		Use:   "check [manifest]",
		Short: "Check a topology manifest for communication consistency",
		Long: `Check a topology manifest for communication consistency.

The check command builds the system described by a TOML or JSON manifest,
replaying every mapping and triggering through the engine, and reports
findings: bit-layout collisions surface while building, and the analyzer
adds structural findings such as frames that are never triggered, signals
mapped into no PDU, or transformation chains that break the chain rules.

Results are cached locally by content hash for faster subsequent runs.
With --server the manifest is uploaded to a running busweaver API server
instead: the server builds, checks and stores the topology, and its
report is printed here.

The exit code reflects the report: by default the command fails when the
report contains errors. Tighten this with --fail-on warning or disable it
with --fail-on never for informational runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateCheckFormat(opts.format); err != nil {
				return err
			}
			if err := validateFailOn(opts.failOn); err != nil {
				return err
			}
			if opts.server != "" {
				return c.runCheckRemote(cmd.Context(), args[0], opts)
			}
			return c.runCheck(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "report format: text (default), json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the JSON report to a file (stdout if empty)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "rebuild even if a cached system exists")
	cmd.Flags().StringVar(&opts.failOn, "fail-on", opts.failOn, "exit non-zero at this severity: error (default), warning, never")
	cmd.Flags().BoolVar(&opts.layouts, "layouts", false, "include frame and PDU bit layouts in text output")
	cmd.Flags().StringVar(&opts.server, "server", "", "check on a running API server instead of locally (base URL)")

	return cmd
}

// validateCheckFormat checks that the report format is "text" or "json".
func validateCheckFormat(s string) error {
	if s != checkFormatText && s != checkFormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
	return nil
}

// validateFailOn checks that the fail threshold is a known severity.
func validateFailOn(s string) error {
	if s != failOnError && s != failOnWarning && s != failOnNever {
		return fmt.Errorf("invalid fail-on: %s (must be 'error', 'warning', or 'never')", s)
	}
	return nil
}

// runCheck builds the manifest, analyzes the system and reports findings.
func (c *CLI) runCheck(ctx context.Context, input string, opts checkOpts) error {
	runner, err := c.newRunner(opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	popts := pipeline.Options{ManifestPath: input, Refresh: opts.refresh, Logger: c.Logger}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Checking %s...", input))
	spinner.Start()

	sys, loadHit, err := runner.LoadWithCacheInfo(ctx, popts)
	if err != nil {
		spinner.StopWithError("Build failed")
		return err
	}
	rep, checkHit, err := runner.CheckWithCacheInfo(ctx, sys, popts)
	if err != nil {
		spinner.StopWithError("Check failed")
		return err
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if opts.format == checkFormatJSON {
		if err := writeReportJSON(rep, opts.output); err != nil {
			return err
		}
	} else {
		printReport(input, sys, rep, opts.layouts, loadHit && checkHit)
	}

	return checkVerdict(rep, opts.failOn)
}

// runCheckRemote uploads the manifest to an API server, which builds and
// stores the topology, and prints the report the server produced.
func (c *CLI) runCheckRemote(ctx context.Context, input string, opts checkOpts) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read manifest %s: %w", input, err)
	}
	format, err := manifest.DetectFormat(input)
	if err != nil {
		return err
	}

	api := client.New(opts.server)

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Checking %s on %s...", input, opts.server))
	spinner.Start()

	doc, err := api.CreateTopology(ctx, client.CreateTopologyRequest{
		Manifest:       string(data),
		ManifestFormat: string(format),
	})
	if err != nil {
		spinner.StopWithError("Check failed")
		return err
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if doc.Report == nil {
		return fmt.Errorf("server stored %s without a report", doc.ID)
	}

	if opts.format == checkFormatJSON {
		if err := writeReportJSON(doc.Report, opts.output); err != nil {
			return err
		}
	} else {
		printReport(input, doc.System, doc.Report, opts.layouts, false)
		printDetail("Stored as %q (%s)", doc.Name, doc.ID)
	}

	return checkVerdict(doc.Report, opts.failOn)
}

// printReport prints the text form of a consistency report.
func printReport(input string, sys *topology.System, rep *report.Report, layouts, cached bool) {
	switch rep.Worst() {
	case report.SeverityError:
		printError("%s has %d consistency errors", rep.System, rep.Summary.Errors)
	case report.SeverityWarning:
		printWarning("%s is consistent, with %d warnings", rep.System, rep.Summary.Warnings)
	default:
		printSuccess("%s is consistent", rep.System)
	}

	for _, f := range rep.Findings {
		printFinding(f)
	}

	if layouts && len(rep.Layouts) > 0 {
		printNewline()
		printInfo("Bit layouts")
		for _, l := range rep.Layouts {
			printDetail("%s %s: %d/%d bits used  [%s]",
				l.Kind, l.Name, l.UsedBits, l.ByteLength*8, l.Coverage)
		}
	}

	printStats(sys.EntityCount(), len(rep.Findings), cached)
	printNewline()
	printNextStep("Render", fmt.Sprintf("%s render %s", appName, input))
}

// writeReportJSON writes the report as indented JSON to output or stdout.
func writeReportJSON(rep *report.Report, output string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	if output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", output, err)
	}
	printSuccess("Report written")
	printFile(output)
	return nil
}

// checkVerdict converts report severities into the command's exit status.
func checkVerdict(rep *report.Report, failOn string) error {
	switch failOn {
	case failOnNever:
		return nil
	case failOnWarning:
		if rep.Summary.Errors > 0 || rep.Summary.Warnings > 0 {
			return fmt.Errorf("found %d errors and %d warnings", rep.Summary.Errors, rep.Summary.Warnings)
		}
	default:
		if rep.HasErrors() {
			return fmt.Errorf("found %d consistency errors", rep.Summary.Errors)
		}
	}
	return nil
}
