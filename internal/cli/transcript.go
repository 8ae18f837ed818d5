package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/nova/internal/model"
	"github.com/rcliao/nova/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Show the conversation transcript",
		Args:  cobra.NoArgs,
		Run:   runTranscript,
	}

	cmd.Flags().StringP("grep", "g", "", "Only messages containing this text")
	cmd.Flags().String("speaker", "", "Filter by speaker: user or assistant")
	cmd.Flags().IntP("limit", "n", 20, "Max messages (newest kept)")

	RootCmd.AddCommand(cmd)
}

func runTranscript(cmd *cobra.Command, args []string) {
	query, _ := cmd.Flags().GetString("grep")
	speakerStr, _ := cmd.Flags().GetString("speaker")
	limit, _ := cmd.Flags().GetInt("limit")

	var speaker model.Speaker
	if speakerStr != "" {
		var err error
		if speaker, err = model.ParseSpeaker(speakerStr); err != nil {
			exitErr("transcript", err)
		}
	}

	cfg := settings()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	messages, err := store.SearchTranscript(cmd.Context(), s, store.SearchParams{
		Query:   query,
		Speaker: speaker,
		Limit:   limit,
	})
	if err != nil {
		exitErr("transcript", err)
	}

	if jsonOutput() {
		if messages == nil {
			messages = []model.Message{}
		}
		printJSON(messages)
		return
	}
	for _, m := range messages {
		fmt.Printf("%s %s\n", dimStyle.Render(fmt.Sprintf("#%d", m.Sequence)), formatMessage(m, false))
	}
}
