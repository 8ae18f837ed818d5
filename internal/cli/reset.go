package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget everything about this device",
		Long:  "Remove the profile, memory, transcript, voice and lockout of the device. Requires --yes.",
		Args:  cobra.NoArgs,
		Run:   runReset,
	}

	cmd.Flags().Bool("yes", false, "Confirm the reset")

	RootCmd.AddCommand(cmd)
}

func runReset(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		exitErr("reset", errors.New("refusing to reset without --yes"))
	}

	cfg := settings()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.Reset(cmd.Context()); err != nil {
		exitErr("reset", err)
	}

	if jsonOutput() {
		printJSON(map[string]string{"status": "reset", "device": cfg.Device})
		return
	}
	fmt.Printf("Reset device %s.\n", cfg.Device)
}
