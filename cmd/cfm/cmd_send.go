package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/1-kabir/cfm/internal/dispatch"
	"github.com/1-kabir/cfm/internal/state"
	"github.com/1-kabir/cfm/internal/types"
	"github.com/1-kabir/cfm/pkg/backend"
)

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().Int64P("conversation", "c", 0, "conversation id (default: start a new one)")
	sendCmd.Flags().StringP("mode", "m", "", "switch the conversation to this mode before sending")
	sendCmd.Flags().Bool("save", false, "export the reply's build artifact")
}

var sendCmd = &cobra.Command{
	Use:   "send <message...>",
	Short: "Send one message and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		convID, _ := cmd.Flags().GetInt64("conversation")
		modeName, _ := cmd.Flags().GetString("mode")
		save, _ := cmd.Flags().GetBool("save")

		ctx := cmd.Context()
		api, sess, err := restoreSession(ctx, cfg)
		if err != nil {
			return err
		}
		ctrl := newController(cfg, api, sess)
		ctrl.Start(ctx)
		defer ctrl.Close(5 * time.Second)

		if convID != 0 {
			if _, err := ctrl.Open(ctx, convID); err != nil {
				return fmt.Errorf("open conversation %d: %w", convID, err)
			}
		}
		if modeName != "" {
			target, err := backend.ParseMode(modeName)
			if err != nil {
				return err
			}
			if convID == 0 {
				return errors.New("--mode needs --conversation")
			}
			if _, err := ctrl.SetMode(ctx, target); err != nil {
				return err
			}
			// Wait so the backend sees the new mode before the message.
			ctrl.Mode.Wait(cfg.Timeout())
		}

		res, err := ctrl.Send(ctx, strings.Join(args, " "))
		var de *dispatch.Error
		if errors.As(err, &de) {
			fmt.Fprintln(os.Stdout, dispatch.FallbackReply)
			return err
		}
		if err != nil {
			return err
		}

		if res.Created {
			fmt.Fprintf(os.Stderr, "Started conversation #%d.\n", res.ConversationID)
		}
		printReply(res.Reply)
		if res.Extraction != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", res.Extraction)
		}

		if save {
			if res.Reply.Kind != types.KindArtifact {
				return errors.New("reply carries no build artifact to save")
			}
			id, conversationID, err := ctrl.Export(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Saved %s\n", state.NewArtifactStore(cfg.DataDir).Path(conversationID, id))
		}
		return nil
	},
}

func printReply(e types.Entry) {
	if e.Kind == types.KindArtifact && e.Artifact != nil {
		if e.Artifact.BuildID != 0 {
			fmt.Fprintf(os.Stderr, "Build #%d\n", e.Artifact.BuildID)
		}
		fmt.Fprintln(os.Stdout, e.Artifact.Payload)
		return
	}
	fmt.Fprintln(os.Stdout, e.Text)
}
