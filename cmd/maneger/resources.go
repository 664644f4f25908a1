package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/tabs"
)

// loader is any tab that can be filled from the API.
type loader interface {
	Load(ctx context.Context) error
}

// openTab enters the project, builds its tab and loads it.
func openTab[T loader](ctx context.Context, app *App, projectID string, build func(apiclient.ID) T) (T, error) {
	var zero T
	_, gate, err := app.enter(ctx, projectID)
	if err != nil {
		return zero, err
	}
	tab := build(gate.Project.ID)
	if err := tab.Load(ctx); err != nil {
		return zero, err
	}
	return tab, nil
}

// deleteCmd builds the "delete PROJECT_ID ID" subcommand shared by the tabs.
func deleteCmd[T loader](get func() *App, noun string, build func(*App, apiclient.ID) T, del func(T, context.Context, apiclient.ID, tabs.Confirmer) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete PROJECT_ID " + strings.ToUpper(noun) + "_ID",
		Short: "Delete a " + noun,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) T { return build(app, id) })
			if err != nil {
				return err
			}
			if err := del(tab, cmd.Context(), apiclient.ID(args[1]), app.confirm); err != nil {
				return err
			}
			fmt.Fprintf(app.out(), "Deleted %s %s\n", noun, args[1])
			return nil
		},
	}
}

func newTasks(app *App, id apiclient.ID) *tabs.TasksTab {
	return tabs.NewTasksTab(app.client, id, app.logger)
}

func tasksCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Work with the task board",
	}

	var query string
	list := &cobra.Command{
		Use:   "list PROJECT_ID",
		Short: "Show the board, one column per status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.TasksTab { return newTasks(app, id) })
			if err != nil {
				return err
			}
			for i, col := range tab.Columns(query) {
				if i > 0 {
					fmt.Fprintln(app.out())
				}
				fmt.Fprintf(app.out(), "%s (%d)\n", col.Status, len(col.Tasks))
				tw := newTable(app.out())
				for _, t := range col.Tasks {
					late := ""
					if tab.Overdue(t) {
						late = "overdue"
					}
					fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Priority, t.DueDate, late)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	list.Flags().StringVarP(&query, "search", "s", "", "Only tasks whose title contains this text")

	var status, priority string
	add := &cobra.Command{
		Use:   "add PROJECT_ID TITLE",
		Short: "Add a task due today",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.TasksTab { return newTasks(app, id) })
			if err != nil {
				return err
			}
			if err := tab.Add(cmd.Context(), args[1], apiclient.TaskStatus(status), apiclient.Priority(priority)); err != nil {
				return err
			}
			fmt.Fprintf(app.out(), "Added task %q\n", strings.TrimSpace(args[1]))
			return nil
		},
	}
	add.Flags().StringVar(&status, "status", "", "todo, in_progress, in_review or done (default todo)")
	add.Flags().StringVar(&priority, "priority", "", "low, medium or high (default medium)")

	move := &cobra.Command{
		Use:   "move PROJECT_ID TASK_ID STATUS",
		Short: "Move a task to another column",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.TasksTab { return newTasks(app, id) })
			if err != nil {
				return err
			}
			if err := tab.Move(cmd.Context(), apiclient.ID(args[1]), apiclient.TaskStatus(args[2])); err != nil {
				return err
			}
			fmt.Fprintf(app.out(), "Moved task %s to %s\n", args[1], args[2])
			return nil
		},
	}

	cmd.AddCommand(list, add, move, deleteCmd(get, "task", newTasks, (*tabs.TasksTab).Delete))
	return cmd
}

func newMilestones(app *App, id apiclient.ID) *tabs.MilestonesTab {
	return tabs.NewMilestonesTab(app.client, id, app.logger)
}

func milestonesCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "milestones",
		Aliases: []string{"milestone"},
		Short:   "Work with milestones",
	}

	var query, sortBy string
	list := &cobra.Command{
		Use:   "list PROJECT_ID",
		Short: "List milestones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.MilestonesTab { return newMilestones(app, id) })
			if err != nil {
				return err
			}
			items := tab.Sorted(query, tabs.SortKey(sortBy))
			if len(items) == 0 {
				fmt.Fprintln(app.out(), "No milestones.")
				return nil
			}
			tw := newTable(app.out())
			fmt.Fprintln(tw, "ID\tDONE\tTITLE\tDUE\t")
			for _, m := range items {
				done, late := "[ ]", ""
				if m.Completed() {
					done = "[x]"
				}
				if tab.Overdue(m) {
					late = "overdue"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.ID, done, m.Title, m.DueDate, late)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVarP(&query, "search", "s", "", "Only milestones whose title or description contains this text")
	list.Flags().StringVar(&sortBy, "sort", string(tabs.SortByDate), "Order by date or title")

	var due, description string
	add := &cobra.Command{
		Use:   "add PROJECT_ID TITLE",
		Short: "Add a milestone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.MilestonesTab { return newMilestones(app, id) })
			if err != nil {
				return err
			}
			if err := tab.Add(cmd.Context(), args[1], due, description); err != nil {
				return err
			}
			fmt.Fprintf(app.out(), "Added milestone %q\n", strings.TrimSpace(args[1]))
			return nil
		},
	}
	add.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	add.Flags().StringVarP(&description, "description", "d", "", "Description")

	toggle := &cobra.Command{
		Use:   "toggle PROJECT_ID MILESTONE_ID",
		Short: "Complete an open milestone or reopen a completed one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.MilestonesTab { return newMilestones(app, id) })
			if err != nil {
				return err
			}
			if err := tab.ToggleComplete(cmd.Context(), apiclient.ID(args[1])); err != nil {
				return err
			}
			state := "reopened"
			if m, ok := tab.Find(apiclient.ID(args[1])); ok && m.Completed() {
				state = "completed"
			}
			fmt.Fprintf(app.out(), "Milestone %s %s\n", args[1], state)
			return nil
		},
	}

	cmd.AddCommand(list, add, toggle, deleteCmd(get, "milestone", newMilestones, (*tabs.MilestonesTab).Delete))
	return cmd
}

func newNotes(app *App, id apiclient.ID) *tabs.NotesTab {
	return tabs.NewNotesTab(app.client, id, app.logger)
}

func notesCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notes",
		Aliases: []string{"note"},
		Short:   "Work with notes",
	}

	var query string
	list := &cobra.Command{
		Use:   "list PROJECT_ID",
		Short: "List notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.NotesTab { return newNotes(app, id) })
			if err != nil {
				return err
			}
			items := tab.Filter(query)
			if len(items) == 0 {
				fmt.Fprintln(app.out(), "No notes.")
				return nil
			}
			for _, n := range items {
				fmt.Fprintf(app.out(), "%s  %s\n", n.ID, n.Title)
				if n.Body != "" {
					fmt.Fprintf(app.out(), "    %s\n", strings.ReplaceAll(n.Body, "\n", "\n    "))
				}
			}
			return nil
		},
	}
	list.Flags().StringVarP(&query, "search", "s", "", "Only notes whose title or body contains this text")

	var title, body string
	add := &cobra.Command{
		Use:   "add PROJECT_ID",
		Short: "Add a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.NotesTab { return newNotes(app, id) })
			if err != nil {
				return err
			}
			if err := tab.Add(cmd.Context(), title, body); err != nil {
				return err
			}
			fmt.Fprintln(app.out(), "Added note")
			return nil
		},
	}
	add.Flags().StringVarP(&title, "title", "t", "", "Title (default Untitled)")
	add.Flags().StringVarP(&body, "body", "b", "", "Body")

	edit := &cobra.Command{
		Use:   "edit PROJECT_ID NOTE_ID",
		Short: "Replace a note's title and body",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.NotesTab { return newNotes(app, id) })
			if err != nil {
				return err
			}
			n, ok := tab.Find(apiclient.ID(args[1]))
			if !ok {
				return tabs.ErrNotFound
			}
			t, b := n.Title, n.Body
			if cmd.Flags().Changed("title") {
				t = title
			}
			if cmd.Flags().Changed("body") {
				b = body
			}
			if err := tab.Edit(cmd.Context(), n.ID, t, b); err != nil {
				return err
			}
			fmt.Fprintf(app.out(), "Updated note %s\n", n.ID)
			return nil
		},
	}
	edit.Flags().StringVarP(&title, "title", "t", "", "New title")
	edit.Flags().StringVarP(&body, "body", "b", "", "New body")

	cmd.AddCommand(list, add, edit, deleteCmd(get, "note", newNotes, (*tabs.NotesTab).Delete))
	return cmd
}

func newDocuments(app *App, id apiclient.ID) *tabs.DocumentsTab {
	return tabs.NewDocumentsTab(app.client, id, app.logger)
}

func docsCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   "Work with documents",
	}

	var query string
	list := &cobra.Command{
		Use:   "list PROJECT_ID",
		Short: "List documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.DocumentsTab { return newDocuments(app, id) })
			if err != nil {
				return err
			}
			items := tab.Filter(query)
			if len(items) == 0 {
				fmt.Fprintln(app.out(), "No documents.")
				return nil
			}
			tw := newTable(app.out())
			fmt.Fprintln(tw, "ID\tTITLE\tSIZE")
			for _, d := range items {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", d.ID, d.Title, len(d.Content))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVarP(&query, "search", "s", "", "Only documents whose title or content contains this text")

	var content string
	add := &cobra.Command{
		Use:   "add PROJECT_ID TITLE",
		Short: "Add a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.DocumentsTab { return newDocuments(app, id) })
			if err != nil {
				return err
			}
			if err := tab.Add(cmd.Context(), args[1], content); err != nil {
				return err
			}
			fmt.Fprintf(app.out(), "Added document %q\n", strings.TrimSpace(args[1]))
			return nil
		},
	}
	add.Flags().StringVar(&content, "content", "", "Document content")

	importCmd := &cobra.Command{
		Use:   "import PROJECT_ID FILE.html",
		Short: "Convert an HTML page to markdown and add it as a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.DocumentsTab { return newDocuments(app, id) })
			if err != nil {
				return err
			}
			if err := tab.ImportHTML(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(app.out(), "Imported %s\n", args[1])
			return nil
		},
	}

	cmd.AddCommand(list, add, importCmd, deleteCmd(get, "document", newDocuments, (*tabs.DocumentsTab).Delete))
	return cmd
}

func newFiles(app *App, id apiclient.ID) *tabs.FilesTab {
	return tabs.NewFilesTab(app.client, id, app.logger)
}

func filesCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "files",
		Aliases: []string{"file"},
		Short:   "Upload and manage project files",
	}

	list := &cobra.Command{
		Use:   "list PROJECT_ID",
		Short: "List uploaded files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.FilesTab { return newFiles(app, id) })
			if err != nil {
				return err
			}
			items := tab.Items()
			if len(items) == 0 {
				fmt.Fprintln(app.out(), "No files.")
				return nil
			}
			tw := newTable(app.out())
			fmt.Fprintln(tw, "ID\tNAME")
			for _, f := range items {
				fmt.Fprintf(tw, "%s\t%s\n", f.ID, f.OriginalName)
			}
			return tw.Flush()
		},
	}

	var pattern string
	upload := &cobra.Command{
		Use:   "upload PROJECT_ID [FILE...]",
		Short: "Upload files (" + strings.Join(tabs.UploadExtensions, " ") + ")",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pattern == "" && len(args) < 2 {
				return fmt.Errorf("give files to upload or a --glob pattern")
			}
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.FilesTab { return newFiles(app, id) })
			if err != nil {
				return err
			}
			uploaded := args[1:]
			if len(uploaded) > 0 {
				if err := tab.Upload(cmd.Context(), uploaded...); err != nil {
					return err
				}
			}
			if pattern != "" {
				matched, err := tab.UploadGlob(cmd.Context(), pattern)
				if err != nil {
					return err
				}
				uploaded = append(uploaded, matched...)
			}
			for _, p := range uploaded {
				fmt.Fprintf(app.out(), "Uploaded %s\n", p)
			}
			return nil
		},
	}
	upload.Flags().StringVar(&pattern, "glob", "", `Also upload files matching a pattern such as "docs/**/*.pdf"`)

	cmd.AddCommand(list, upload, deleteCmd(get, "file", newFiles, (*tabs.FilesTab).Delete))
	return cmd
}
