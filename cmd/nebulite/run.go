package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/tidwall/match"

	"github.com/nebulite-engine/nebulite"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <task-file-or-dir>...",
		Short: "Load task files into the script queue and step the frame loop",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTasks,
	}
	cmd.Flags().IntVar(&frameCount, "frames", 1, "number of frames to step after loading tasks")
	return cmd
}

// collectTaskFiles expands path into a sorted list of task-file paths: if
// path is a directory, every entry matching "*.task" is included (the
// tidwall/match glob the CLI uses in place of filepath.Match); otherwise
// path itself is returned.
func collectTaskFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if match.Match(e.Name(), "*.task") {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func runTasks(cmd *cobra.Command, args []string) error {
	global := nebulite.NewDocument()
	cache := nebulite.NewDocumentCache(nebulite.CacheOptions{})
	disp := nebulite.NewDispatcherWithOptions(global, cache, poolSize)
	defer disp.Close()

	env := nebulite.NewEnvironmentWithBatchGoal(tileWidth, tileHeight, batchCostGoal)
	tree := nebulite.NewCommandTree()
	nebulite.RegisterCoreCommands(tree)
	loop := nebulite.NewFrameLoop(global, env, disp, tree, nil)

	for _, arg := range args {
		files, err := collectTaskFiles(arg)
		if err != nil {
			return fmt.Errorf("nebulite run: %w", err)
		}
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				return fmt.Errorf("nebulite run: reading %s: %w", f, err)
			}
			disp.ScriptQueue.PushFront(nebulite.ParseTaskFile(data))
		}
	}

	for i := 0; i < frameCount; i++ {
		loop.Step(nil)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", global.SerializePretty())
	return nil
}
