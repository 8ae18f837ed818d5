package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/nova/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		Run:   runConfigShow,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		Run:   runConfigInit,
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	RootCmd.AddCommand(cmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg := settings()
	redacted := *cfg
	redacted.Completion.OpenAIKey = mask(cfg.Completion.OpenAIKey)
	redacted.Completion.GeminiKey = mask(cfg.Completion.GeminiKey)

	if jsonOutput() {
		printJSON(redacted)
		return
	}
	b, err := yaml.Marshal(&redacted)
	if err != nil {
		exitErr("config", err)
	}
	fmt.Print(string(b))
}

func runConfigInit(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil && !force {
		exitErr("config init", fmt.Errorf("%s exists (use --force to overwrite)", path))
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		exitErr("config init", err)
	}
	if err := config.Default().Save(path); err != nil {
		exitErr("config init", err)
	}
	fmt.Printf("Wrote %s\n", path)
}
