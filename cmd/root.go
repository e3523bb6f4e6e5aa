package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leakwatch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leakwatch",
	Short: "Ransomware leak-site victim tracker",
	Long:  "Ingests victim postings from ransomware leak sites, identifies the companies behind them, and correlates incidents against SEC 8-K disclosures.",
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
