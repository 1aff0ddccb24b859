package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sprintboard/internal/config"
	"sprintboard/internal/storage"
)

var version = "1.0.0"

var (
	configPath string

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "sprintboard",
	Short:         "Sprint and board backend for scrum projects",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger = config.NewLogger(os.Stdout, cfg.Log)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (env SPRINTBOARD_* overrides it)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func storeOptions() storage.Options {
	return storage.Options{
		Driver:         cfg.DB.Driver,
		DSN:            cfg.DB.DSN,
		DefaultColumns: cfg.DefaultColumns,
	}
}
