package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dpgf-extract",
	Short: "Extract priced line items from bill-of-quantities workbooks",
	Long:  "Finds the bid worksheet, maps its columns, identifies the lot and turns DPGF/DQE/BPU spreadsheets into a section tree of priced elements.",
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
