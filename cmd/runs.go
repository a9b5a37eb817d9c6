package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/NREL/COMPASS/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List ingested runs",
	Long:  "Lists provenance entries for ingested scraper runs, newest first.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.InitSchema(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunTable(os.Stdout, runs)
		return nil
	},
}

// formatRunTable writes a tabular list of provenance entries to w.
func formatRunTable(out io.Writer, runs []model.ProvenanceRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tUSERNAME\tMODEL\tHASH\tCOMMENT")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Username,
			r.Model,
			truncateHash(r.Hash),
			r.Comment,
		)
	}
	_ = w.Flush()
}

func init() {
	runsCmd.Flags().Int("limit", 50, "max number of runs to display")
	rootCmd.AddCommand(runsCmd)
}
