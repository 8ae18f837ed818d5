package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "voice [name]",
		Short: "Show or set the voice Nova speaks with",
		Run:   runVoice,
	}

	RootCmd.AddCommand(cmd)
}

func runVoice(cmd *cobra.Command, args []string) {
	cfg := settings()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if len(args) > 0 {
		voice := strings.Join(args, " ")
		if err := s.PutVoice(cmd.Context(), voice); err != nil {
			exitErr("voice", err)
		}
	}

	voice, err := s.GetVoice(cmd.Context())
	if err != nil {
		exitErr("voice", err)
	}
	source := "saved"
	if voice == "" {
		voice, source = cfg.Speech.Voice, "default"
	}

	if jsonOutput() {
		printJSON(map[string]string{"voice": voice, "source": source})
		return
	}
	fmt.Printf("%s %s\n", voice, dimStyle.Render("("+source+")"))
}
