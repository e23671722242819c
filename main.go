package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"secretsweep/config"
	"secretsweep/internal/logger"
	"secretsweep/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, models.ErrInterrupted) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// Carrega as configurações (env + .env) antes das flags.
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:   "secretsweep",
		Short: "GitHub Security Scanner (Code & Issues) with caching",
		Long: `Searches GitHub code or issues for keywords, filters the matching
repositories by visibility, size and last-commit year, clones the survivors
and runs trufflehog in verified-only mode against each of them.`,
		Example: `  secretsweep -k "password,api_key" --xlsx --csv
  secretsweep --keywords-file keywords.txt --min-year 2025 --json
  secretsweep -k token --issues --txt`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.ResolveFormats(cmd.Flags())
			keywords, err := cfg.Keywords()
			if err != nil {
				return err
			}
			if err := config.Validate(&cfg, keywords); err != nil {
				return err
			}

			if err := logger.Init(logger.Options{Level: cfg.LogLevel, LogPath: cfg.LogFile}); err != nil {
				return fmt.Errorf("erro fatal ao iniciar o logger: %w", err)
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return newApp(cfg, logger.GetSugaredLogger()).Execute(ctx, keywords)
		},
	}
	cfg.BindFlags(cmd.Flags())
	cmd.Flags().SortFlags = false
	return cmd
}
