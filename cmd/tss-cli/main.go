package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tss-cli/internal/config"
	"tss-cli/internal/logger"
)

var (
	flagConfig  string
	flagManager string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "tss-cli",
	Short:         "Threshold key generation and signing over a rendezvous relay",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		if cfg, err = config.LoadConfig(flagConfig); err != nil {
			return err
		}
		if flagManager != "" {
			cfg.Manager = flagManager
		}
		return logger.InitLogger(cfg.Logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "configuration file (JSON, YAML or TOML)")
	rootCmd.PersistentFlags().StringVarP(&flagManager, "address", "a", "", "manager address, overrides the configuration")

	rootCmd.AddCommand(managerCmd, keygenCmd, signCmd, pubkeyCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Log.Error(err)
		os.Exit(1)
	}
}
