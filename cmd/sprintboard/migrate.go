package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"sprintboard/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := storage.OpenWithRetry(cmd.Context(), storeOptions(), logger, cfg.DB.ConnectTimeout)
		if err != nil {
			return err
		}
		defer store.Close()

		logger.Info("schema up to date", slog.String("driver", store.Driver()))
		return nil
	},
}
