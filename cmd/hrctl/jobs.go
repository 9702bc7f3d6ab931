package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hrpipe/internal/app"
	"github.com/JonMunkholm/hrpipe/internal/core"
	"github.com/JonMunkholm/hrpipe/internal/hr"
	"github.com/JonMunkholm/hrpipe/internal/store"
)

func newJobsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and prune import job history",
	}
	cmd.AddCommand(newJobsListCmd(root), newJobsShowCmd(root), newJobsPruneCmd(root))
	return cmd
}

func newJobsListCmd(root *rootOptions) *cobra.Command {
	var (
		kind  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent import jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.Imports.Jobs(cmd.Context(), kind, limit)
			if err != nil {
				return err
			}
			if jobs == nil {
				jobs = []hr.ImportJob{}
			}
			return printJSON(cmd.OutOrStdout(), jobs)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only jobs of this kind")
	cmd.Flags().IntVar(&limit, "limit", core.DefaultJobListLimit, fmt.Sprintf("Maximum jobs listed (at most %d)", core.MaxJobListLimit))
	return cmd
}

func newJobsShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print one import job with its row errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.Imports.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
}

// newJobsPruneCmd runs the retention pass once, outside the server's
// schedule.
func newJobsPruneCmd(root *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete completed jobs and their stored files older than N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if days <= 0 {
				days = a.Config.Retention.JobRetentionDays
			}
			if days <= 0 {
				return fmt.Errorf("retention is disabled; pass --days")
			}

			cutoff := time.Now().UTC().AddDate(0, 0, -days)
			n, err := a.Imports.PruneJobs(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			slog.Info("pruned import jobs", "count", n, "cutoff", cutoff.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Age in days (default: JOB_RETENTION_DAYS)")
	return cmd
}

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create any missing tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				_, err := fmt.Fprint(cmd.OutOrStdout(), store.Schema())
				return err
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			pool, err := app.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := store.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			slog.Info("schema up to date")
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the schema instead of applying it")
	return cmd
}
