package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	coreconfig "github.com/filegate/filegate/core/config"
	coredatabase "github.com/filegate/filegate/core/database"
	"github.com/filegate/filegate/core/logger"
	"github.com/filegate/filegate/internal/app"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply history database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := coreconfig.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return fmt.Errorf("migrate: database.host is not configured")
			}
			if err := logger.Init(cfg); err != nil {
				return err
			}
			defer func() {
				if err := logger.Shutdown(); err != nil {
					log.Printf("logger shutdown error: %v", err)
				}
			}()
			return coredatabase.RunMigrations(app.HistoryDBConfig(cfg))
		},
	}
}
