// Package cli implements the nova CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/rcliao/nova/internal/config"
	"github.com/rcliao/nova/internal/store"
)

var (
	dbPath      string
	backendFlag string
	deviceFlag  string
	configPath  string
	envPath     string
	logLevel    string
	formatFlag  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "nova",
	Short: "A companion that remembers you",
	Long: "Nova is a conversational companion. It verifies who it is talking to, " +
		"keeps a small memory of what matters and speaks through an optional speech service.",
	SilenceUsage: true,
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVarP(&dbPath, "db", "d", "", "Store path (default: $NOVA_DB or ~/.nova/nova.db)")
	pf.StringVar(&backendFlag, "backend", "", "Store backend: sqlite, badger or memory")
	pf.StringVar(&deviceFlag, "device", "", "Device namespace (default: $NOVA_DEVICE or default)")
	pf.StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.nova/config.yaml)")
	pf.StringVarP(&envPath, "env", "e", ".env", "Env file path")
	pf.StringVarP(&logLevel, "log", "l", "", "Log level: debug, info, warn or error")
	pf.StringVarP(&formatFlag, "format", "f", "text", "Output format: json or text")
}

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// settings loads configuration (defaults, file, env file, environment,
// then flags) and installs the default logger.
func settings() *config.Config {
	if err := config.LoadEnvFile(envPath); err != nil {
		exitErr("load env", err)
	}
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		exitErr("load config", err)
	}

	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	if backendFlag != "" {
		cfg.Store.Backend = backendFlag
	}
	if deviceFlag != "" {
		cfg.Device = deviceFlag
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		exitErr("config", err)
	}

	slog.SetDefault(newLogger(cfg.Log.Level))
	return cfg
}

func newLogger(level string) *slog.Logger {
	lvl, ok := logLevelMap[strings.ToLower(level)]
	if !ok {
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl}))
}

// openStore opens the configured device store.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "badger":
		dir := cfg.Store.Path
		if filepath.Ext(dir) == ".db" {
			dir = strings.TrimSuffix(dir, ".db") + ".badger"
		}
		return store.NewBadgerStore(store.BadgerOptions{Dir: dir, Device: cfg.Device, Logger: slog.Default()})
	case "memory":
		return store.NewMem(), nil
	default:
		return store.NewSQLiteStore(cfg.Store.Path, cfg.Device)
	}
}

// storePath returns the file backing the store, if any.
func storePath(cfg *config.Config) string {
	if cfg.Store.Backend == "sqlite" {
		return cfg.Store.Path
	}
	return ""
}

func jsonOutput() bool {
	return strings.EqualFold(formatFlag, "json")
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
