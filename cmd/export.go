package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/NREL/COMPASS/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all stored ordinance rows as CSV",
	Long:  "Writes every stored ordinance row, across all ingested runs, as CSV in the canonical column order.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		outPath, _ := cmd.Flags().GetString("output")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.InitSchema(ctx); err != nil {
			return err
		}

		records, err := st.Ordinances(ctx)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		out := io.Writer(os.Stdout)
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrap(err, "export: create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		return writeOrdinanceCSV(out, records)
	},
}

// exportHeader lists the canonical ordinance columns in storage order.
var exportHeader = []string{
	"county", "state", "subdivision", "jurisdiction_type", "fips", "feature",
	"value", "units", "offset", "min_dist", "max_dist", "summary",
	"ord_year", "section", "source",
}

func writeOrdinanceCSV(out io.Writer, records []model.OrdinanceRecord) error {
	w := csv.NewWriter(out)
	if err := w.Write(exportHeader); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	for _, r := range records {
		row := []string{
			r.County, r.State, r.Subdivision, r.JurisdictionType,
			strconv.FormatInt(r.FIPS, 10), r.Feature,
			formatOptFloat(r.Value), r.Units,
			formatOptFloat(r.Offset), formatOptFloat(r.MinDist), formatOptFloat(r.MaxDist),
			r.Summary, formatOptInt(r.OrdYear), r.Section, r.Source,
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}

	w.Flush()
	return eris.Wrap(w.Error(), "export: flush")
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatOptInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "write CSV to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
