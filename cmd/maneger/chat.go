package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/session"
	"github.com/c360studio/maneger/tabs"
)

func newChat(app *App, id apiclient.ID) *tabs.ChatTab {
	return tabs.NewChatTab(app.client, id, app.logger)
}

func printMessages(w io.Writer, msgs []apiclient.ChatMessage) {
	for _, m := range msgs {
		who := m.Username
		if who == "" {
			who = "?"
		}
		if m.CreatedAt != "" {
			fmt.Fprintf(w, "[%s] %s: %s\n", m.CreatedAt, who, m.Body)
		} else {
			fmt.Fprintf(w, "%s: %s\n", who, m.Body)
		}
	}
}

func chatCmd(get func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Read and post project chat messages",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list PROJECT_ID",
		Short: "Show the chat history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.ChatTab { return newChat(app, id) })
			if err != nil {
				return err
			}
			printMessages(app.out(), tab.Items())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "send PROJECT_ID MESSAGE...",
		Short: "Post a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			tab, err := openTab(cmd.Context(), app, args[0], func(id apiclient.ID) *tabs.ChatTab { return newChat(app, id) })
			if err != nil {
				return err
			}
			return tab.Send(cmd.Context(), strings.Join(args[1:], " "))
		},
	})

	var interval time.Duration
	watch := &cobra.Command{
		Use:   "watch PROJECT_ID",
		Short: "Follow new messages until interrupted or signed out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			tab, err := openTab(ctx, app, args[0], func(id apiclient.ID) *tabs.ChatTab { return newChat(app, id) })
			if err != nil {
				return err
			}
			return watchChat(ctx, app, tab, interval)
		},
	}
	watch.Flags().DurationVar(&interval, "interval", 5*time.Second, "Polling interval")
	cmd.AddCommand(watch)

	return cmd
}

// watchChat prints new messages every interval. It returns when ctx is done
// or the stored session is signed out by another process.
func watchChat(ctx context.Context, app *App, tab *tabs.ChatTab, interval time.Duration) error {
	w, err := session.NewWatcher(app.store, session.DefaultDebounce, app.logger)
	if err != nil {
		return err
	}
	defer w.Stop()
	w.Start(ctx)

	items := tab.Items()
	printMessages(app.out(), items)
	var last apiclient.ID
	if len(items) > 0 {
		last = items[len(items)-1].ID
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sess, ok := <-w.Events():
			if !ok {
				return nil
			}
			if !sess.Authenticated() {
				fmt.Fprintln(app.out(), "Signed out, stopping.")
				return nil
			}
		case <-ticker.C:
			if err := tab.Load(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if apiclient.IsUnauthorized(err) {
					return err
				}
				app.logger.Warn("Failed to refresh chat", "error", err)
				continue
			}
			fresh := tab.Since(last)
			printMessages(app.out(), fresh)
			if len(fresh) > 0 {
				last = fresh[len(fresh)-1].ID
			}
		}
	}
}
