package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bangun/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "bangun",
	Short: "Construction cost estimator for Bali projects",
	Long:  "Generates bills of materials from project descriptions and prices them against Indonesian marketplace listings through a tiered cache.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Optional .env for local development; real deployments set the
		// environment directly.
		_ = godotenv.Load()

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
