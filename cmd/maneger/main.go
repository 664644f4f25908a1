// Package main provides the maneger binary entry point.
// Maneger is a command-line client for the project-management API: projects,
// membership, the overview dashboard and the per-project resource tabs.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "maneger"
)

// streams are the standard streams commands read and write.
type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd(streams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", userMessage(err))
		os.Exit(1)
	}
}

func rootCmd(s streams) *cobra.Command {
	var (
		opts globalOptions
		app  *App
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Project-management API client",
		Long: `Maneger is a command-line client for the project-management API.

It provides:
- Projects, join requests and member management
- The project overview: progress, status and priority breakdowns,
  overdue tasks and upcoming milestones
- Tasks, milestones, notes, documents, files and chat
- Questions over project documents through the research service`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			var err error
			app, err = newApp(opts, s)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.Close()
			}
		},
	}
	cmd.SetIn(s.in)
	cmd.SetOut(s.out)
	cmd.SetErr(s.errOut)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	flags.StringVar(&opts.apiURL, "api-url", "", "API base URL (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Confirm destructive actions without asking")

	get := func() *App { return app }

	cmd.AddCommand(
		loginCmd(get),
		signupCmd(get),
		logoutCmd(get),
		whoamiCmd(get),
		projectsCmd(get),
		openCmd(get),
		requestCmd(get),
		requestsCmd(get),
		membersCmd(get),
		dashboardCmd(get),
		tasksCmd(get),
		milestonesCmd(get),
		notesCmd(get),
		docsCmd(get),
		filesCmd(get),
		chatCmd(get),
		ragCmd(get),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}
