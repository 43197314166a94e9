package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nadzzz/nova/internal/bootstrap"
	"github.com/nadzzz/nova/internal/config"
	"github.com/nadzzz/nova/internal/probe"
)

func newBackendCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Inspect or change the persisted backend",
	}
	cmd.AddCommand(newBackendShowCmd(cfg), newBackendSetCmd(cfg))
	return cmd
}

func newBackendShowCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the persisted backend and whether it answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := config.NewStore(cfg.Backend.ConfigFile, cfg.Backend.DefaultURL)
			url := store.Load().URL()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "config:  %s\n", store.Path())
			if url == "" {
				fmt.Fprintln(out, "backend: none (offline)")
				return nil
			}
			state := "reachable"
			if err := probe.Check(cmd.Context(), url, cfg.Backend.ProbeTimeout); err != nil {
				state = fmt.Sprintf("unreachable (%v)", err)
			}
			fmt.Fprintf(out, "backend: %s\n", url)
			fmt.Fprintf(out, "status:  %s\n", state)
			return nil
		},
	}
}

func newBackendSetCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "set <url>",
		Short: "Probe a backend and persist it if it answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(cfg, &globalFlags{noPrompt: true}, nil, nil)
			outcome, err := a.negotiator.Reconfigure(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if outcome.Mode == bootstrap.ModeOffline {
				fmt.Fprintln(cmd.OutOrStdout(), "empty url, nothing saved")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backend set to %s (saved to %s)\n", outcome.Backend, a.store.Path())
			return nil
		},
	}
}
