package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/1-kabir/cfm/internal/types"
	"github.com/1-kabir/cfm/pkg/backend"
)

func init() {
	rootCmd.AddCommand(buildsCmd)
	buildsCmd.AddCommand(buildsListCmd, buildsShowCmd, buildsArtifactCmd)
	buildsArtifactCmd.Flags().Bool("payload", false, "print only the payload")
}

var buildsCmd = &cobra.Command{
	Use:   "builds",
	Short: "Inspect builds recorded by the backend",
}

var buildsListCmd = &cobra.Command{
	Use:   "list <conversation-id>",
	Short: "List the builds of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid conversation id: %s", args[0])
		}

		cfg := loadConfig()
		setupLogging(cfg)

		ctx := cmd.Context()
		api, sess, err := restoreSession(ctx, cfg)
		if err != nil {
			return err
		}
		token, _ := sess.CurrentToken()

		builds, err := api.ListBuilds(ctx, token, id)
		if err != nil {
			return fmt.Errorf("list builds: %w", err)
		}
		if len(builds) == 0 {
			fmt.Println("No builds found.")
			return nil
		}
		return printBuilds(builds)
	},
}

var buildsShowCmd = &cobra.Command{
	Use:   "show <build-id>",
	Short: "Show one build including its schema data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid build id: %s", args[0])
		}

		cfg := loadConfig()
		setupLogging(cfg)

		ctx := cmd.Context()
		api, sess, err := restoreSession(ctx, cfg)
		if err != nil {
			return err
		}
		token, _ := sess.CurrentToken()

		b, err := api.GetBuild(ctx, token, id)
		if err != nil {
			return fmt.Errorf("get build: %w", err)
		}

		fmt.Fprintf(os.Stdout, "ID:           %d\nConversation: %d\nIteration:    %d\nName:         %s\nStatus:       %s\nBlocks:       %d\nDimensions:   %s\nCreated:      %s\n",
			b.ID, b.ConversationID, b.IterationNumber, b.BuildName, b.Status, b.BlockCount, b.Dimensions, string(b.CreatedAt))
		if b.Prompt != "" {
			fmt.Fprintf(os.Stdout, "\nPrompt:\n%s\n", b.Prompt)
		}
		if b.SchemaData != "" {
			fmt.Fprintf(os.Stdout, "\nSchema:\n%s\n", b.SchemaData)
		}
		return nil
	},
}

var buildsArtifactCmd = &cobra.Command{
	Use:   "artifact <artifact-id>",
	Short: "Show a build artifact exported with /save or send --save",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		api := newClient(cfg)
		ctrl := newController(cfg, api, newSession(cfg, api))
		meta, artifact, err := ctrl.Artifact(cmd.Context(), types.ArtifactID(args[0]))
		if err != nil {
			return err
		}

		if payloadOnly, _ := cmd.Flags().GetBool("payload"); payloadOnly {
			fmt.Fprintln(os.Stdout, artifact.Payload)
			return nil
		}
		build := "unresolved"
		if meta.BuildID != 0 {
			build = strconv.FormatInt(meta.BuildID, 10)
		}
		fmt.Fprintf(os.Stdout, "ID:           %s\nConversation: %d\nBuild:        %s\nType:         %s\nExported:     %s\n\n%s\n",
			meta.ID, meta.ConversationID, build, meta.MimeType, meta.CreatedAt.Format("2006-01-02 15:04:05"), artifact.Payload)
		return nil
	},
}

func printBuilds(builds []backend.Build) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tITERATION\tSTATUS\tBLOCKS\tNAME")
	for _, b := range builds {
		fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%s\n", b.ID, b.IterationNumber, b.Status, b.BlockCount, b.BuildName)
	}
	return w.Flush()
}
