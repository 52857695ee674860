package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/1-kabir/cfm/internal/directory"
	"github.com/1-kabir/cfm/pkg/backend"
)

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(conversationsListCmd, conversationsShowCmd)
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Browse conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		ctx := cmd.Context()
		api, sess, err := restoreSession(ctx, cfg)
		if err != nil {
			return err
		}

		list, err := directory.New(api, sess).List(ctx, cfg.Owner.UUID)
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tMODE\tSTATUS")
		for _, c := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Title, c.EffectiveMode(), c.Status)
		}
		return w.Flush()
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation and its builds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conversation id: %s", args[0])
		}

		cfg := loadConfig()
		setupLogging(cfg)

		api, sess, err := restoreSession(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		token, err := sess.RequireToken()
		if err != nil {
			return err
		}

		var (
			conv   *backend.Conversation
			builds []backend.Build
		)
		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			var err error
			conv, err = api.GetConversation(ctx, token, id)
			return err
		})
		g.Go(func() error {
			var err error
			builds, err = api.ListBuilds(ctx, token, id)
			return err
		})
		if err := g.Wait(); err != nil {
			return fmt.Errorf("show conversation %d: %w", id, err)
		}

		fmt.Fprintf(os.Stdout, "ID:     %d\nTitle:  %s\nMode:   %s\nStatus: %s\nOwner:  %s\n",
			conv.ID, conv.Title, conv.EffectiveMode(), conv.Status, conv.UserUsername)
		if len(builds) == 0 {
			fmt.Println("\nNo builds.")
			return nil
		}
		fmt.Println()
		return printBuilds(builds)
	},
}
