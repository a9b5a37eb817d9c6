package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema",
	Long:  "Creates the ordinance database tables and id sequences. Safe to run against an existing database.",
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

		fmt.Fprintln(os.Stdout, "Schema ready.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
