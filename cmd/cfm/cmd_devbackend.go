package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/1-kabir/cfm/internal/fakebackend"
)

func init() {
	rootCmd.AddCommand(devBackendCmd)
	devBackendCmd.Flags().String("listen", "127.0.0.1:8080", "address to listen on")
	devBackendCmd.Flags().String("username", "admin", "accepted username")
	devBackendCmd.Flags().String("password", "changeme", "accepted password")
	devBackendCmd.Flags().Bool("legacy", false, "reproduce the string-wrapped and unescaped bodies of older servers")
}

var devBackendCmd = &cobra.Command{
	Use:   "dev-backend",
	Short: "Run an in-memory backend for local development",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		listen, _ := cmd.Flags().GetString("listen")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		legacy, _ := cmd.Flags().GetBool("legacy")

		srv := &http.Server{
			Addr: listen,
			Handler: fakebackend.New(fakebackend.Options{
				Username: username,
				Password: password,
				Legacy:   legacy,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			slog.Info("dev backend started", "listen", listen, "username", username, "legacy", legacy)
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("dev backend: %w", err)
			}
			return nil
		case <-cmd.Context().Done():
		}

		slog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}
