package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/1-kabir/cfm/internal/types"
	"github.com/1-kabir/cfm/pkg/backend"
)

func init() {
	rootCmd.AddCommand(modeCmd)
	modeCmd.AddCommand(modeSetCmd)
}

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Change a conversation's mode",
}

var modeSetCmd = &cobra.Command{
	Use:   "set <conversation-id> <planning|building>",
	Short: "Set the mode of a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conversation id: %s", args[0])
		}
		target, err := backend.ParseMode(args[1])
		if err != nil {
			return err
		}

		cfg := loadConfig()
		setupLogging(cfg)

		ctx := cmd.Context()
		api, sess, err := restoreSession(ctx, cfg)
		if err != nil {
			return err
		}
		ctrl := newController(cfg, api, sess)
		ctrl.Start(ctx)
		defer ctrl.Close(time.Second)

		if _, err := ctrl.Open(ctx, id); err != nil {
			return fmt.Errorf("open conversation %d: %w", id, err)
		}
		t, err := ctrl.SetMode(ctx, target)
		if err != nil {
			return err
		}
		if !t.Changed() {
			fmt.Fprintf(os.Stdout, "Conversation #%d is already %s.\n", id, t.To.Label())
			return nil
		}
		if !ctrl.Mode.Wait(cfg.Timeout()) {
			return fmt.Errorf("mode sync for #%d did not finish", id)
		}

		for _, e := range ctrl.Transcript.Entries() {
			if e.Role == types.RoleSystem {
				return fmt.Errorf("%s", e.Text)
			}
		}
		fmt.Fprintf(os.Stdout, "Conversation #%d: %s -> %s\n", id, t.From.Label(), t.To.Label())
		return nil
	},
}
