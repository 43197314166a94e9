// Nova is an offline-first assistant daemon. Utterances are answered by
// local rules (time, system stats, folders, app launch) when possible and
// forwarded to a remote backend otherwise.
//
// Usage:
//
//	nova serve [--config nova.yaml] [--offline] [--backend URL]
//	nova ask what time is it
//	nova chat
//	nova backend show | set <url>
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nadzzz/nova/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	backendURL string
	offline    bool
	noPrompt   bool
}

// @title			nova API
// @version		1.0
// @description	Offline-first assistant: local commands, remote backend on a miss.
// @BasePath		/
func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("nova failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "nova",
		Short:         "Offline-first assistant with a remote backend fallback",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(flags.configFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.SetupLogging(loaded.Logging)
			*cfg = *loaded
			return nil
		},
	}
	cfg = &config.Config{}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "path to config file (e.g. configs/nova.yaml)")
	pf.StringVar(&flags.backendURL, "backend", "", "backend URL to try when the configured one is unreachable")
	pf.BoolVar(&flags.offline, "offline", false, "skip backend negotiation and answer locally only")
	pf.BoolVar(&flags.noPrompt, "no-prompt", false, "never ask for a backend URL; fall back to offline mode")

	root.AddCommand(
		newServeCmd(cfg, &flags),
		newAskCmd(cfg, &flags),
		newChatCmd(cfg, &flags),
		newBackendCmd(cfg),
	)
	return root
}
