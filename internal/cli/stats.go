package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/nova/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show device statistics",
		Args:  cobra.NoArgs,
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := settings()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	st, err := store.GetStats(cmd.Context(), s, cfg.Device, storePath(cfg))
	if err != nil {
		exitErr("stats", err)
	}

	if jsonOutput() {
		printJSON(st)
		return
	}
	fmt.Printf("device:     %s (%s)\n", st.Device, cfg.Store.Backend)
	if st.DBPath != "" {
		fmt.Printf("store:      %s, %d bytes\n", st.DBPath, st.DBSizeBytes)
	}
	fmt.Printf("profile:    %t\n", st.HasProfile)
	fmt.Printf("messages:   %d (%d you, %d nova)\n", st.Messages, st.UserMessages, st.AssistantMessages)
	fmt.Printf("facts:      %d (%d essential)\n", st.Facts, st.EssentialFacts)
	if st.Voice != "" {
		fmt.Printf("voice:      %s\n", st.Voice)
	}
	if !st.LockedUntil.IsZero() {
		fmt.Printf("locked:     until %s\n", st.LockedUntil.Local().Format("15:04:05"))
	}
}
