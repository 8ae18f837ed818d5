package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/nova/internal/model"
	"github.com/rcliao/nova/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Replace the device state from an export",
		Long:  "Replace the device state with a JSON export. Reads stdin when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var r io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open file", err)
		}
		defer f.Close()
		r = f
	}

	var snap model.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		exitErr("parse export", err)
	}

	cfg := settings()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := store.Import(cmd.Context(), s, &snap)
	if err != nil {
		exitErr("import", err)
	}

	if jsonOutput() {
		printJSON(map[string]int{"messages": n, "facts": len(snap.Memory)})
		return
	}
	fmt.Printf("Imported %d messages and %d facts into device %s.\n", n, len(snap.Memory), cfg.Device)
}
