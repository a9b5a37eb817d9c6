package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/NREL/COMPASS/internal/artifact"
	"github.com/NREL/COMPASS/internal/checksum"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <run-dir>",
	Short: "Verify archived source documents against the run manifest",
	Long:  "Hashes every file in the run's ordinance_files directory and cross-references the digests declared in jurisdictions.json. Never touches the database.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		root := args[0]

		outPath, _ := cmd.Flags().GetString("output")
		strict, _ := cmd.Flags().GetBool("strict-checksums")

		policy := checksum.Policy(cfg.Ingest.ChecksumPolicy)
		if strict {
			policy = checksum.PolicyFail
		}

		jurisdictions, sourceDir, err := artifact.ReadManifest(root, cfg.Ingest.MaxJSONSize)
		if err != nil {
			return eris.Wrap(err, "verify")
		}

		report, err := checksum.Verify(ctx, jurisdictions, sourceDir, cfg.Ingest.HashWorkers)
		if err != nil {
			return eris.Wrap(err, "verify")
		}

		if outPath != "" {
			data, err := yaml.Marshal(report)
			if err != nil {
				return eris.Wrap(err, "verify: encode report")
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return eris.Wrap(err, "verify: write report")
			}
		}

		formatReport(os.Stdout, report)

		if policy == checksum.PolicyFail && !report.Clean() {
			return eris.Errorf("verify: %d findings", report.Total()-len(report.Confirmed))
		}
		return nil
	},
}

// formatReport writes a tabular verification report to w, problems first.
func formatReport(out io.Writer, report *checksum.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tSTATUS\tDECLARED\tCOMPUTED")
	for _, group := range [][]checksum.Finding{report.Mismatched, report.Missing, report.Unknown, report.Confirmed} {
		for _, f := range group {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				f.Filename, f.Status, truncateHash(f.Declared), truncateHash(f.Computed))
		}
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d confirmed, %d mismatched, %d unknown, %d missing\n",
		len(report.Confirmed), len(report.Mismatched), len(report.Unknown), len(report.Missing))
}

// truncateHash keeps the algorithm tag and the first hex characters of a
// digest for compact display.
func truncateHash(sum string) string {
	const keep = len(checksum.Prefix) + 12
	if len(sum) > keep {
		return sum[:keep]
	}
	return sum
}

func init() {
	verifyCmd.Flags().StringP("output", "o", "", "write the full report as YAML to this file")
	verifyCmd.Flags().Bool("strict-checksums", false, "exit nonzero when any finding is present")
	rootCmd.AddCommand(verifyCmd)
}
