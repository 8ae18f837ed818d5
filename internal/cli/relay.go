package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/nova/internal/relay"
)

func init() {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve the completion relay",
		Long: "Serve POST /chat for thin clients. The relay holds the provider key " +
			"($OPENAI_API_KEY or $GEMINI_API_KEY) and picks the system prompt by tone.",
		Run: runRelay,
	}

	cmd.Flags().String("addr", "", "Listen address (default :8787)")
	cmd.Flags().String("provider", "", "Upstream provider: openai or gemini")
	cmd.Flags().String("model", "", "Upstream model")

	RootCmd.AddCommand(cmd)
}

func runRelay(cmd *cobra.Command, args []string) {
	cfg := settings()
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Relay.Addr = v
	}
	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		cfg.Relay.Provider = v
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Relay.Model = v
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := slog.Default()

	upstream, err := newUpstream(ctx, cfg, logger)
	if err != nil {
		exitErr("relay upstream", err)
	}
	logger.Info("relay upstream", "provider", cfg.Relay.Provider, "model", cfg.Relay.Model)
	if err := relay.ListenAndServe(ctx, cfg.Relay.Addr, relay.NewHandler(upstream, logger), logger); err != nil {
		exitErr("relay", err)
	}
}
