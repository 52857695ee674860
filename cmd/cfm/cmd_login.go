package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/1-kabir/cfm/internal/session"
)

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	loginCmd.Flags().StringP("username", "u", "", "backend username")
	loginCmd.Flags().StringP("password", "p", "", "backend password")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify credentials against the backend and remember them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		scanner := bufio.NewScanner(os.Stdin)
		if username == "" {
			username = prompt(scanner, "Username", cfg.Owner.Username)
		}
		if password == "" {
			password = prompt(scanner, "Password", "")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout())
		defer cancel()

		sess := newSession(cfg, newClient(cfg))
		_, err := sess.Authenticate(ctx, session.Credential{Username: username, Password: password})
		switch {
		case errors.Is(err, session.ErrInvalidCredentials):
			return errors.New("invalid credentials")
		case errors.Is(err, session.ErrConnectionFailure):
			return fmt.Errorf("connection failure, is the server running at %s?", cfg.Backend.BaseURL)
		case err != nil:
			return err
		}

		fmt.Fprintf(os.Stdout, "Logged in to %s as %s.\n", cfg.Backend.BaseURL, username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		sess := newSession(cfg, newClient(cfg))
		if err := sess.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored identity and whether the backend still accepts it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout())
		defer cancel()

		api, sess, err := restoreSession(ctx, cfg)
		if err != nil {
			return err
		}
		token, _ := sess.CurrentToken()

		status := "accepted"
		if err := api.Health(ctx, token); err != nil {
			status = "rejected: " + err.Error()
		}
		fmt.Fprintf(os.Stdout, "user:    %s\nbackend: %s\nowner:   %s (%s)\nstatus:  %s\n",
			token.Username(), cfg.Backend.BaseURL, cfg.Owner.Username, cfg.Owner.UUID, status)
		return nil
	},
}
