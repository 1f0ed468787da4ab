package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/busweaver/busweaver/pkg/pipeline"
)

// exploreCommand creates the explore command for interactive layout browsing.
func (c *CLI) exploreCommand() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "explore [manifest]",
		Short: "Browse frames and their bit layouts interactively",
		Long: `Browse frames and their bit layouts interactively.

The explore command builds the manifest and opens a terminal UI listing
every frame with its bus kind, length, triggering count and bit
occupancy. Selecting a frame shows its byte-by-byte bit grid together
with the mapped PDUs and their signal placements.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExplore(cmd.Context(), args[0], noCache)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runExplore builds the system and drives the frame browser until the
// user quits. Leaving a layout view returns to the frame list.
func (c *CLI) runExplore(ctx context.Context, input string, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := pipeline.Options{ManifestPath: input, Logger: c.Logger}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Building %s...", input))
	spinner.Start()
	sys, err := runner.Load(ctx, opts)
	if err != nil {
		spinner.StopWithError("Build failed")
		return err
	}
	rep, err := runner.Check(ctx, sys, opts)
	if err != nil {
		spinner.StopWithError("Check failed")
		return err
	}
	spinner.Stop()

	rows := buildFrameRows(sys, rep)
	if len(rows) == 0 {
		printInfo("No frames in %s", sys.Name)
		return nil
	}

	for {
		list := NewFrameListModel(sys.Name, rows)
		finalModel, err := tea.NewProgram(list).Run()
		if err != nil {
			return err
		}

		fm, ok := finalModel.(FrameListModel)
		if !ok || fm.Selected == nil {
			return nil
		}

		layoutModel, err := tea.NewProgram(NewFrameLayoutModel(*fm.Selected)).Run()
		if err != nil {
			return err
		}
		lm, ok := layoutModel.(FrameLayoutModel)
		if !ok || !lm.Back {
			return nil
		}
	}
}
