package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/maneger/apiclient"
)

func loginCmd(get func() *App) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in with a username and password. Missing credentials are read
from standard input, one per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			if err := readMissing(app, map[string]*string{"Username": &username, "Password": &password}, "Username", "Password"); err != nil {
				return err
			}
			res, err := app.client.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := app.store.Set(res.AccessToken, res.User); err != nil {
				return fmt.Errorf("store session: %w", err)
			}
			fmt.Fprintf(app.out(), "Signed in as %s\n", res.User.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	return cmd
}

func signupCmd(get func() *App) *cobra.Command {
	var req apiclient.SignupRequest

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			if err := readMissing(app, map[string]*string{
				"Username": &req.Username,
				"Email":    &req.Email,
				"Password": &req.Password,
			}, "Username", "Email", "Password"); err != nil {
				return err
			}
			res, err := app.client.Signup(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("signup: %w", err)
			}
			if err := app.store.Set(res.AccessToken, res.User); err != nil {
				return fmt.Errorf("store session: %w", err)
			}
			fmt.Fprintf(app.out(), "Account created, signed in as %s\n", res.User.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Password")
	cmd.Flags().StringVar(&req.FullName, "name", "", "Full name")
	return cmd
}

func logoutCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			if err := app.store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(app.out(), "Signed out")
			return nil
		},
	}
}

func whoamiCmd(get func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := get()
			sess, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			u := sess.User
			if u.FullName != "" {
				fmt.Fprintf(app.out(), "%s (%s)\n", u.Username, u.FullName)
			} else {
				fmt.Fprintln(app.out(), u.Username)
			}
			return nil
		},
	}
}

// readMissing fills the empty fields, in order, from standard input.
func readMissing(app *App, fields map[string]*string, order ...string) error {
	r := app.confirm.in
	for _, name := range order {
		v := fields[name]
		if strings.TrimSpace(*v) != "" {
			continue
		}
		fmt.Fprintf(app.streams.errOut, "%s: ", name)
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err != nil {
				return fmt.Errorf("read %s: %w", strings.ToLower(name), err)
			}
			return fmt.Errorf("%s is required", strings.ToLower(name))
		}
		*v = line
	}
	return nil
}
