package main

import (
	"fmt"
	"os"
	"os/user"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NREL/COMPASS/internal/artifact"
	"github.com/NREL/COMPASS/internal/checksum"
	"github.com/NREL/COMPASS/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <run-dir>",
	Short: "Ingest one scraper run directory into the database",
	Long:  "Decodes and validates every artifact of a scraper run, verifies the archived source documents against the manifest, and writes all derived records in one transaction under a new provenance entry.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		root := args[0]

		username, _ := cmd.Flags().GetString("user")
		comment, _ := cmd.Flags().GetString("comment")
		skipVerify, _ := cmd.Flags().GetBool("skip-verify")
		strict, _ := cmd.Flags().GetBool("strict-checksums")

		if username == "" {
			username = currentUsername()
		}

		policy := checksum.Policy(cfg.Ingest.ChecksumPolicy)
		if strict {
			policy = checksum.PolicyFail
		}

		log := zap.L().With(
			zap.String("ingest_id", uuid.NewString()),
			zap.String("run_dir", root))
		log.Info("ingest starting", zap.String("user", username))

		set, err := artifact.Open(ctx, root, artifact.Options{MaxJSONSize: cfg.Ingest.MaxJSONSize})
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		if skipVerify {
			log.Warn("skipping source document verification")
		} else {
			report, err := checksum.Verify(ctx, set.Jurisdictions, set.SourceDir, cfg.Ingest.HashWorkers)
			if err != nil {
				return eris.Wrap(err, "ingest: verify source documents")
			}
			logFindings(log, report)
			if err := gateFindings(policy, report); err != nil {
				return err
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.InitSchema(ctx); err != nil {
			return err
		}

		id, err := st.Ingest(ctx, store.RunInfo{Username: username, Comment: comment}, set)
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		fmt.Fprintf(os.Stdout, "Ingested %s as run %d (%d jurisdictions, %d ordinance rows, %d log records).\n",
			root, id, len(set.Jurisdictions), len(set.OrdinanceRecords()), len(set.RuntimeLog.Records))
		return nil
	},
}

// gateFindings applies the checksum policy to a verification report.
func gateFindings(policy checksum.Policy, report *checksum.Report) error {
	if report.Clean() || policy != checksum.PolicyFail {
		return nil
	}
	findings := len(report.Mismatched) + len(report.Unknown) + len(report.Missing)
	return eris.Errorf("ingest: %d source document findings under the fail policy", findings)
}

func logFindings(log *zap.Logger, report *checksum.Report) {
	for _, f := range report.Mismatched {
		log.Warn("source document digest mismatch",
			zap.String("filename", f.Filename),
			zap.String("declared", f.Declared),
			zap.String("computed", f.Computed))
	}
	for _, f := range report.Unknown {
		log.Warn("source document not in manifest", zap.String("filename", f.Filename))
	}
	for _, f := range report.Missing {
		log.Warn("manifest document missing from archive", zap.String("filename", f.Filename))
	}
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func init() {
	ingestCmd.Flags().String("user", "", "attribution username for the provenance entry (default: current OS user)")
	ingestCmd.Flags().String("comment", "", "free-form comment for the provenance entry")
	ingestCmd.Flags().Bool("skip-verify", false, "skip source document checksum verification")
	ingestCmd.Flags().Bool("strict-checksums", false, "refuse to ingest on any checksum finding, overriding the configured policy")
	rootCmd.AddCommand(ingestCmd)
}
