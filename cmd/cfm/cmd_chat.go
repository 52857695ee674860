package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/1-kabir/cfm/internal/state"
	"github.com/1-kabir/cfm/internal/tui"
	"github.com/1-kabir/cfm/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Int64P("conversation", "c", 0, "conversation id to open")
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat screen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		logFile, err := setupFileLogging(cfg)
		if err != nil {
			return err
		}
		defer logFile.Close()

		ctx := cmd.Context()
		api, sess, err := restoreSession(ctx, cfg)
		if err != nil {
			return err
		}
		ctrl := newController(cfg, api, sess)
		ctrl.Start(ctx)
		defer ctrl.Close(2 * time.Second)

		if id, _ := cmd.Flags().GetInt64("conversation"); id != 0 {
			if _, err := ctrl.Open(ctx, id); err != nil {
				return fmt.Errorf("open conversation %d: %w", id, err)
			}
		}

		token, _ := sess.CurrentToken()
		artifacts := state.NewArtifactStore(cfg.DataDir)
		slog.Info("chat started", "backend", cfg.Backend.BaseURL, "user", token.Username())

		return tui.Run(ctx, ctrl, tui.Options{
			Theme:      cfg.UI.Theme,
			Username:   token.Username(),
			ExportPath: func(conversationID int64, id types.ArtifactID) string { return artifacts.Path(conversationID, id) },
		})
	},
}
