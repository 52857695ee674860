package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/1-kabir/cfm/internal/chat"
	"github.com/1-kabir/cfm/internal/config"
	"github.com/1-kabir/cfm/internal/directory"
	"github.com/1-kabir/cfm/internal/session"
	"github.com/1-kabir/cfm/internal/state"
	"github.com/1-kabir/cfm/pkg/backend"
	"github.com/1-kabir/cfm/pkg/backend/httpapi"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "cfm",
	Short:        "Chat client for the build assistant",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
}

func main() {
	ctx, stop := signalContext()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(cfg *config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))
}

// setupFileLogging sends logs to <data_dir>/cfm.log so they do not draw
// over the chat screen.
func setupFileLogging(cfg *config.Config) (io.Closer, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))
	return f, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newClient(cfg *config.Config) *httpapi.Client {
	return httpapi.New(&backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Timeout(),
	})
}

func newSession(cfg *config.Config, api backend.API) *session.Session {
	return session.New(api, state.NewCredentialStore(cfg.DataDir))
}

// restoreSession loads the persisted credential and fails when there is none.
func restoreSession(ctx context.Context, cfg *config.Config) (backend.API, *session.Session, error) {
	api := newClient(cfg)
	sess := newSession(cfg, api)
	ok, err := sess.Restore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, errors.New("not logged in, run `cfm login` first")
	}
	return api, sess, nil
}

func newController(cfg *config.Config, api backend.API, sess *session.Session) *chat.Controller {
	return chat.New(api, sess, chat.Options{
		Owner:              directory.Owner{UUID: cfg.Owner.UUID, Username: cfg.Owner.Username},
		PreviewLength:      cfg.Chat.PreviewLength,
		ResolveBuildIDs:    cfg.Chat.ResolveBuildIDs,
		MaxConcurrentSyncs: int64(cfg.Chat.MaxConcurrentSyncs),
		ModeSyncAttempts:   cfg.Chat.ModeSyncAttempts,
		Artifacts:          state.NewArtifactStore(cfg.DataDir),
	})
}
