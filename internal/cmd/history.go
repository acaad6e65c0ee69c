package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs, or the downloads and errors of one run",
	Example: `  falconeye history -d falconeye.db
  falconeye history -d falconeye.db --run 6f1c2a90-...`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to list (0 = all)")
	historyCmd.Flags().String("run", "", "Show asset downloads and fetch errors of this run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.journal == nil {
		return errNoJournal
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()

	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		return printRunDetails(tw, a, runID)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := a.journal.ListRuns(limit)
	if err != nil {
		return err
	}

	fmt.Fprintln(tw, "ID\tSTARTED\tRULE\tSELECTOR\tSTATUS\tRESULTS\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Rule, dash(r.Selector), r.Status, r.ResultCount, r.Source)
	}
	return nil
}

func printRunDetails(tw *tabwriter.Writer, a *app, runID string) error {
	errs, err := a.journal.GetErrors(runID)
	if err != nil {
		return err
	}
	for _, e := range errs {
		fmt.Fprintf(tw, "error\t%s\t%s\t%s\n", e.ErrorType, e.Source, e.ErrorMessage)
	}

	assets, err := a.journal.GetAssets(runID)
	if err != nil {
		return err
	}
	for _, as := range assets {
		detail := fmt.Sprintf("%d bytes", as.Bytes)
		if as.ErrorType != "" {
			detail = as.ErrorType + ": " + as.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", as.Status, dash(as.FileName), as.URL, detail)
	}

	if len(errs) == 0 && len(assets) == 0 {
		fmt.Fprintf(tw, "no downloads or errors recorded for run %s\n", runID)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
