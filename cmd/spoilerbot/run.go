package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"spoilerBot/internal/app/runtime"
	"spoilerBot/internal/infrastructure/config"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the chat backend and start hiding spoilers",
		Long: `Connect to the configured backend and process messages until interrupted.

Options come from the YAML file given with --config, a .env file in the
working directory and SPOILERBOT_* environment variables (highest priority).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(false); err != nil {
				return err
			}
			log := cfg.NewLogger(os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := runtime.Start(ctx, runtime.Options{Config: cfg, Logger: log})
			if err != nil {
				return err
			}
			if err := rt.Wait(); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
