package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/tabs"
)

func newRAG(app *App, id apiclient.ID) *tabs.RAGTab {
	return tabs.NewRAGTab(app.client, id, app.logger)
}

// ragTab enters the project and returns its RAG tab. The tab holds no list,
// so nothing is loaded.
func (a *App) ragTab(cmd *cobra.Command, projectID string) (*tabs.RAGTab, error) {
	_, gate, err := a.enter(cmd.Context(), projectID)
	if err != nil {
		return nil, err
	}
	return newRAG(a, gate.Project.ID), nil
}

func ragCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Ask questions about project documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check that the research service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			if _, err := app.session(cmd.Context()); err != nil {
				return err
			}
			if newRAG(app, "").Health(cmd.Context()) {
				fmt.Fprintln(app.out(), "RAG service: connected")
			} else {
				fmt.Fprintln(app.out(), "RAG service: not connected")
			}
			return nil
		},
	})

	var (
		filename string
		save     bool
	)
	ask := &cobra.Command{
		Use:   "ask PROJECT_ID QUESTION",
		Short: "Run a research question",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := app.ragTab(cmd, args[0])
			if err != nil {
				return err
			}
			ans, err := tab.Ask(cmd.Context(), args[1], filename)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.out(), ans.Text)
			if !save {
				return nil
			}
			note, err := tab.SaveAsNote(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.out(), "\nSaved as note %q\n", note.Title)
			return nil
		},
	}
	ask.Flags().StringVarP(&filename, "file", "f", "", "Restrict the question to one uploaded file")
	ask.Flags().BoolVar(&save, "save", false, "Save the answer as a project note")

	var limit int
	search := &cobra.Command{
		Use:   "search PROJECT_ID QUERY",
		Short: "Retrieve matching passages without the research agents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := app.ragTab(cmd, args[0])
			if err != nil {
				return err
			}
			raw, err := tab.Search(cmd.Context(), args[1], filename, limit)
			if err != nil {
				return err
			}
			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				out.Reset()
				out.Write(raw)
			}
			fmt.Fprintln(app.out(), out.String())
			return nil
		},
	}
	search.Flags().StringVarP(&filename, "file", "f", "", "Restrict the search to one uploaded file")
	search.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")

	cmd.AddCommand(ask, search)
	return cmd
}
