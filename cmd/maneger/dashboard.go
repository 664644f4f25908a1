package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/maneger/config"
	"github.com/c360studio/maneger/dashboard"
)

func dashboardCmd(get func() *App) *cobra.Command {
	var (
		policy    string
		exportDir string
	)

	cmd := &cobra.Command{
		Use:     "dashboard PROJECT_ID",
		Aliases: []string{"overview"},
		Short:   "Show the project overview",
		Long: `Show task progress, status and priority breakdowns, overdue tasks and
upcoming milestones. With --export the tasks and milestones are also
written to <project>_summary.txt in the given directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			_, gate, err := app.enter(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if policy == "" {
				policy = app.cfg.Dashboard.FailurePolicy
			}
			switch policy {
			case config.FailurePolicyAll, config.FailurePolicyDegrade:
			default:
				return fmt.Errorf("unknown failure policy %q", policy)
			}

			agg := dashboard.NewAggregator(app.client, dashboard.Policy(policy), app.logger)
			snap, err := agg.Load(cmd.Context(), gate.Project.ID)
			if err != nil {
				return fmt.Errorf("load dashboard: %w", err)
			}

			sum := dashboard.ComputeWithLimit(snap, dashboard.Today(time.Now()), app.cfg.Dashboard.UpcomingLimit)
			if err := dashboard.WriteReport(app.out(), gate.Project, sum, app.cfg.Dashboard.OverdueLimit); err != nil {
				return err
			}

			if exportDir == "" {
				return nil
			}
			path := filepath.Join(exportDir, dashboard.SummaryFilename(gate.Project.Name))
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create export: %w", err)
			}
			if err := dashboard.WriteSummary(f, gate.Project, snap); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close export: %w", err)
			}
			fmt.Fprintf(app.out(), "\nSummary written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "", `Partial failure policy: "all" or "degrade" (default from config)`)
	cmd.Flags().StringVar(&exportDir, "export", "", "Directory to write the text summary to")
	return cmd
}
