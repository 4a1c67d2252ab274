package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"ethicsengine/internal/data"
	"ethicsengine/internal/engine"
	"ethicsengine/internal/models"
	"ethicsengine/internal/profiles"
	"ethicsengine/internal/runner"
	"ethicsengine/internal/store"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an evaluation run",
}

var runScenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Run open-ended scenario simulations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeRun("scenarios")
	},
}

var runBenchmarksCmd = &cobra.Command{
	Use:   "benchmarks",
	Short: "Run graded multiple-choice benchmarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeRun("benchmarks")
	},
}

var (
	runFile        string
	runSpecies     []string
	runPatterns    []string
	runLevels      []string
	runConcurrency int
	runProvider    string
	runModel       string
	runResultsDir  string
)

func init() {
	runCmd.AddCommand(runScenariosCmd, runBenchmarksCmd)

	for _, c := range []*cobra.Command{runScenariosCmd, runBenchmarksCmd} {
		c.Flags().StringVar(&runFile, "file", "", "Items file inside the data directory (default scenarios.json / benchmarks.json)")
		c.Flags().StringSliceVar(&runSpecies, "species", nil, "Species to evaluate (default: all)")
		c.Flags().StringSliceVar(&runPatterns, "pattern", nil, "Golden patterns to evaluate (default: all)")
		c.Flags().StringSliceVar(&runLevels, "reasoning-level", nil, "Reasoning levels: low, medium, high (default: all)")
		c.Flags().IntVar(&runConcurrency, "concurrency", 0, "Max tasks in flight (default from config)")
		c.Flags().StringVar(&runProvider, "provider", "", "Backend provider: openai or anthropic (default from config)")
		c.Flags().StringVar(&runModel, "model", "", "Backend model name (default from config)")
		c.Flags().StringVar(&runResultsDir, "results-dir", "", "Directory for the run export file (default from config)")
	}
}

func executeRun(kind string) error {
	if err := loadSettings(); err != nil {
		return err
	}
	if runConcurrency > 0 {
		settings.MaxConcurrent = runConcurrency
	}
	if runProvider != "" {
		settings.Provider = runProvider
	}
	if runModel != "" {
		settings.Model = runModel
	}
	if runResultsDir != "" {
		settings.ResultsDir = runResultsDir
	}

	var items []models.WorkItem
	var err error
	switch kind {
	case "scenarios":
		file := runFile
		if file == "" {
			file = "scenarios.json"
		}
		items, err = data.LoadScenarios(filepath.Join(settings.DataDir, file))
	default:
		file := runFile
		if file == "" {
			file = "benchmarks.json"
		}
		items, err = data.LoadBenchmarks(filepath.Join(settings.DataDir, file))
	}
	if err != nil {
		return err
	}

	resolver, err := profiles.NewResolver(settings.DataDir, nil)
	if err != nil {
		return err
	}
	if len(runPatterns) == 0 {
		runPatterns = resolver.Patterns()
	}
	if len(runLevels) == 0 {
		runLevels = resolver.Levels()
	}
	if len(runSpecies) == 0 {
		runSpecies = resolver.Species()
	}
	configs, err := resolver.ResolveAll(runPatterns, runLevels, runSpecies)
	if err != nil {
		return err
	}

	client, err := engine.NewBackendClient(settings)
	if err != nil {
		return err
	}

	st, err := store.New(settings.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	eng := engine.New(runner.New(client, settings.RunnerConfig()), st, settings.SchedulerConfig())
	eng.Start()
	defer eng.Stop()

	runID, err := eng.StartRun(items, configs)
	if err != nil {
		return err
	}
	fmt.Printf("Started run %s: %d items x %d configs via %s/%s\n",
		runID, len(items), len(configs), settings.Provider, settings.Model)

	// Block until the run is terminal, showing progress.
	var m *models.RunManifest
	for {
		m, err = eng.Status(runID)
		if err != nil {
			return err
		}
		if m.Status.Terminal() {
			break
		}
		fmt.Printf("\r%d/%d done (%d failed)   ", m.Counts.Succeeded+m.Counts.Failed, m.Counts.Total, m.Counts.Failed)
		time.Sleep(500 * time.Millisecond)
	}
	fmt.Printf("\rRun %s: %s (%d succeeded, %d failed)\n", runID, m.Status, m.Counts.Succeeded, m.Counts.Failed)

	if err := printConfigSummary(st, runID); err != nil {
		return err
	}
	return exportRunFile(st, runID)
}

// exportRunFile writes the full run as JSON into the results directory.
func exportRunFile(st *store.Store, runID string) error {
	if err := os.MkdirAll(settings.ResultsDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(settings.ResultsDir, runID+".json")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := st.ExportRun(runID, f); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func printConfigSummary(st *store.Store, runID string) error {
	summaries, err := st.SummarizeByConfig(runID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONFIG\tTOTAL\tOK\tFAIL\tCORRECT\tRATE")
	for _, cs := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.0f%%\n",
			cs.ConfigID, cs.Total, cs.Succeeded, cs.Failed, cs.Correct, cs.SuccessRate*100)
	}
	return w.Flush()
}
