package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/membership"
	"github.com/c360studio/maneger/tabs"
)

// manager enters the project and loads its membership.
func (a *App) manager(ctx context.Context, projectID string) (*membership.Manager, error) {
	sess, gate, err := a.enter(ctx, projectID)
	if err != nil {
		return nil, err
	}
	m := membership.NewManager(a.client, gate.Project.ID, gate.Grant, *sess.User,
		membership.WithPublisher(a.publisher), membership.WithLogger(a.logger))
	if err := m.Load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// applied treats an action whose follow-up reload failed as done, with a
// warning on stderr.
func (a *App) applied(err error) error {
	if errors.Is(err, membership.ErrStale) {
		fmt.Fprintf(a.streams.errOut, "Warning: %s\n", err)
		return nil
	}
	return err
}

func requestsCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Review join requests (project owner)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list PROJECT_ID",
		Short: "List pending join requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			m, err := app.manager(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !m.IsOwner() {
				return membership.ErrNotOwner
			}
			reqs := m.Requests()
			if len(reqs) == 0 {
				fmt.Fprintln(app.out(), "No pending requests.")
				return nil
			}
			tw := newTable(app.out())
			fmt.Fprintln(tw, "ID\tUSERNAME")
			for _, r := range reqs {
				fmt.Fprintf(tw, "%s\t%s\n", r.ID, r.Username)
			}
			return tw.Flush()
		},
	})

	decide := func(use, short, done string, act func(*membership.Manager, context.Context, apiclient.ID) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " PROJECT_ID REQUEST_ID",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := get()
				m, err := app.manager(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := app.applied(act(m, cmd.Context(), apiclient.ID(args[1]))); err != nil {
					return err
				}
				fmt.Fprintf(app.out(), "Request %s %s\n", args[1], done)
				return nil
			},
		}
	}
	cmd.AddCommand(
		decide("approve", "Approve a join request", "approved", (*membership.Manager).Approve),
		decide("reject", "Reject a join request", "rejected", (*membership.Manager).Reject),
	)
	return cmd
}

func membersCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "List and manage project members",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list PROJECT_ID",
		Short: "List project members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			m, err := app.manager(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := newTable(app.out())
			fmt.Fprintln(tw, "USER_ID\tUSERNAME\tROLE")
			for _, mem := range m.Members() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", mem.UserID, mem.Username, mem.Role)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if addable := m.Addable(); len(addable) > 0 {
				fmt.Fprintf(app.out(), "\nCan be added:")
				for _, u := range addable {
					fmt.Fprintf(app.out(), " %s", u.Username)
				}
				fmt.Fprintln(app.out())
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add PROJECT_ID USERNAME",
		Short: "Add a user to the project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			m, err := app.manager(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := app.applied(m.AddMember(cmd.Context(), args[1])); err != nil {
				return err
			}
			fmt.Fprintf(app.out(), "Added %s\n", args[1])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove PROJECT_ID USER_ID",
		Short: "Remove a member from the project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			m, err := app.manager(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !m.IsOwner() {
				return membership.ErrNotOwner
			}
			userID := apiclient.ID(args[1])
			idx := slices.IndexFunc(m.Members(), func(mem apiclient.Member) bool { return mem.UserID == userID })
			if idx < 0 {
				return fmt.Errorf("remove member %s: %w", userID, membership.ErrNoSuchMember)
			}
			member := m.Members()[idx]
			if !m.CanRemove(member) {
				return fmt.Errorf("remove member %s: %w", member.Username, membership.ErrCannotRemove)
			}
			if !app.confirm.Confirm(fmt.Sprintf("Remove %s from the project?", member.Username)) {
				return fmt.Errorf("remove member: %w", tabs.ErrNotConfirmed)
			}
			if err := app.applied(m.RemoveMember(cmd.Context(), userID)); err != nil {
				return err
			}
			fmt.Fprintf(app.out(), "Removed %s\n", args[1])
			return nil
		},
	})
	return cmd
}
