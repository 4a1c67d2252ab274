package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"ethicsengine/internal/store"
	"github.com/spf13/cobra"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect stored run results",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all runs",
	RunE:  runResultsList,
}

var resultsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the result records of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsShow,
}

var resultsSummaryCmd = &cobra.Command{
	Use:   "summary [run-id]",
	Short: "Show per-configuration and per-item summaries for a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsSummary,
}

var resultsExportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Export a full run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsExport,
}

var exportOut string

func init() {
	resultsCmd.AddCommand(resultsListCmd, resultsShowCmd, resultsSummaryCmd, resultsExportCmd)
	resultsExportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default: stdout)")
}

func openStore() (*store.Store, error) {
	if err := loadSettings(); err != nil {
		return nil, err
	}
	return store.New(settings.DBPath)
}

func runResultsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListManifests()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tTOTAL\tOK\tFAIL\tSTARTED")
	for _, m := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			m.RunID, m.Status, m.Counts.Total, m.Counts.Succeeded, m.Counts.Failed,
			m.CreatedAt.Local().Format(time.RFC822))
	}
	return w.Flush()
}

func runResultsShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.ResultsForRun(args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No results for run", args[0])
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tCONFIG\tOK\tOUTCOME\tERROR\tATTEMPTS")
	for _, rec := range records {
		outcome := rec.Outcome
		if len(outcome) > 48 {
			outcome = outcome[:45] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\t%d\n",
			rec.ItemID, rec.ConfigID, rec.Success, outcome, rec.ErrorKind, rec.Attempts)
	}
	return w.Flush()
}

func runResultsSummary(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := printConfigSummary(st, args[0]); err != nil {
		return err
	}

	items, err := st.SummarizeByItem(args[0])
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tOUTCOME\tCOUNT")
	for _, cell := range items {
		outcome := cell.Outcome
		if len(outcome) > 48 {
			outcome = outcome[:45] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", cell.ItemID, outcome, cell.Count)
	}
	return w.Flush()
}

func runResultsExport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	out := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if err := st.ExportRun(args[0], out); err != nil {
		return err
	}
	if exportOut != "" {
		fmt.Printf("Exported run %s to %s\n", args[0], exportOut)
	}
	return nil
}
