// Command nebulite is a headless driver over the engine core's §6 command
// and task-file grammar, for smoke-testing rule sets without a renderer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	poolSize      int
	batchCostGoal int
	tileWidth     float64
	tileHeight    float64
	frameCount    int
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nebulite",
		Short: "Headless runner for the Nebulite interaction engine",
	}
	root.PersistentFlags().IntVar(&poolSize, "pool-size", 4, "invoke dispatcher worker pool size")
	root.PersistentFlags().IntVar(&batchCostGoal, "batch-cost-goal", 50000, "object container per-batch cost goal")
	root.PersistentFlags().Float64Var(&tileWidth, "tile-width", 512, "object container tile width")
	root.PersistentFlags().Float64Var(&tileHeight, "tile-height", 512, "object container tile height")
	root.AddCommand(newRunCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
