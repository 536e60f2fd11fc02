package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/mural/internal/planner"
	"github.com/dyluth/mural/internal/printer"
	"github.com/dyluth/mural/internal/session"
	"github.com/dyluth/mural/pkg/board"
)

var (
	demoPlanPath string
	demoOriginX  float64
	demoOriginY  float64
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Write a generated diagram to the board",
	Long: `Execute a declarative diagram plan against the document.

The plan is a YAML file of nodes and edges; mural lays the nodes out
on a grid, groups them under a titled frame and connects the edges.
The whole diagram lands in one atomic transaction, so every connected
participant sees it appear at once.

Example plan:
  title: release flow
  nodes:
    - key: build
      type: rectangle
      label: build
    - key: ship
      label: ship it
      color: green
  edges:
    - from: build
      to: ship

Examples:
  # Draw a plan on the configured document
  mural demo --plan release.yml

  # Place it away from existing content
  mural demo --plan release.yml --x 2000 --y 0`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVarP(&demoPlanPath, "plan", "p", "", "Path to the plan YAML file (required)")
	demoCmd.Flags().Float64Var(&demoOriginX, "x", 100, "Canvas X of the diagram's top-left corner")
	demoCmd.Flags().Float64Var(&demoOriginY, "y", 100, "Canvas Y of the diagram's top-left corner")
	_ = demoCmd.MarkFlagRequired("plan")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(demoPlanPath)
	if err != nil {
		return printer.Error(
			"failed to read plan",
			err.Error(),
			[]string{"Check the --plan path"},
		)
	}
	plan, err := planner.LoadPlan(data)
	if err != nil {
		return printer.Error("invalid plan", err.Error(), nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// headless session: no rendering engine attached, mutations only
	s := session.New(store, session.NopRenderer{}, cfg.Author)

	ids, err := planner.Execute(ctx, s, plan, demoOriginX, demoOriginY)
	if err != nil {
		return printer.Error("plan execution failed", err.Error(), nil)
	}

	count, err := store.Count(ctx)
	if err != nil {
		return err
	}
	printer.Success("created %d node(s) and %d edge(s); board now holds %d of %d objects\n",
		len(ids), len(plan.Edges), count, board.MaxObjects)
	return nil
}
