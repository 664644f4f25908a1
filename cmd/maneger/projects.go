package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/c360studio/maneger/access"
	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/membership"
	"github.com/c360studio/maneger/tabs"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func projectsCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "List and manage projects",
	}
	cmd.AddCommand(projectsListCmd(get), projectsCreateCmd(get), projectsUpdateCmd(get), projectsDeleteCmd(get))
	return cmd
}

func projectsListCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			if _, err := app.session(cmd.Context()); err != nil {
				return err
			}
			projects, err := app.client.ListProjects(cmd.Context())
			if err != nil {
				return fmt.Errorf("list projects: %w", err)
			}
			if len(projects) == 0 {
				fmt.Fprintln(app.out(), "No projects.")
				return nil
			}
			tw := newTable(app.out())
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.Description)
			}
			return tw.Flush()
		},
	}
}

func projectsCreateCmd(get func() *App) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a project you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			if _, err := app.session(cmd.Context()); err != nil {
				return err
			}
			p, err := app.client.CreateProject(cmd.Context(), apiclient.ProjectInput{Name: args[0], Description: description})
			if err != nil {
				return fmt.Errorf("create project: %w", err)
			}
			fmt.Fprintf(app.out(), "Created project %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Project description")
	return cmd
}

func projectsUpdateCmd(get func() *App) *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "update PROJECT_ID",
		Short: "Rename or describe a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			_, gate, err := app.enter(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			in := apiclient.ProjectInput{Name: gate.Project.Name, Description: gate.Project.Description}
			if cmd.Flags().Changed("name") {
				in.Name = name
			}
			if cmd.Flags().Changed("description") {
				in.Description = description
			}
			p, err := app.client.UpdateProject(cmd.Context(), gate.Project.ID, in)
			if err != nil {
				return fmt.Errorf("update project: %w", err)
			}
			fmt.Fprintf(app.out(), "Updated project %s\n", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	return cmd
}

func projectsDeleteCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete PROJECT_ID",
		Short: "Delete a project you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			_, gate, err := app.enter(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !gate.Grant.IsOwner() {
				return membership.ErrNotOwner
			}
			if !app.confirm.Confirm(fmt.Sprintf("Delete project %s?", gate.Project.Name)) {
				return fmt.Errorf("delete project: %w", tabs.ErrNotConfirmed)
			}
			if err := app.client.DeleteProject(cmd.Context(), gate.Project.ID); err != nil {
				return fmt.Errorf("delete project: %w", err)
			}
			fmt.Fprintf(app.out(), "Deleted project %s\n", gate.Project.Name)
			return nil
		},
	}
}

func openCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "open PROJECT_ID",
		Short: "Check whether you can enter a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			_, gate, err := app.enter(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out(), "%s: %s\n", gate.Project.Name, gate.Grant.Relation())
			return nil
		},
	}
}

func requestCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "request PROJECT_ID",
		Short: "Ask the owner for access to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			sess, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			project, err := app.project(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			gate := access.NewResolver(app.client, app.logger).Open(cmd.Context(), project)
			if gate.Decision == access.Enter {
				fmt.Fprintf(app.out(), "You already have access to %s\n", project.Name)
				return nil
			}

			prompt := membership.NewPrompt(gate, app.client, sess.User.Username,
				membership.WithPublisher(app.publisher), membership.WithLogger(app.logger))
			sent, err := prompt.Send(cmd.Context())
			if err != nil {
				return err
			}
			if !sent {
				fmt.Fprintf(app.out(), "Your request to join %s is pending\n", project.Name)
				return nil
			}
			fmt.Fprintf(app.out(), "Request sent to the owner of %s\n", project.Name)
			return nil
		},
	}
}
