package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rekrytera/signals-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "signals-cli",
	Short: "Recruitment signal ingestion and evaluation pipeline",
	Long:  "Fetches job postings and business leads from LinkedIn, Indeed, Platsbanken and Google Places, scores each against staffing-fit criteria via Claude, and persists qualified signals with extracted contacts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
