package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/filegate/filegate/core/buildinfo"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:     "filegate",
		Short:   "Telegram bot that shares files to a channel through a guided upload wizard",
		Version: fmt.Sprintf("%s (commit %s, built %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults to $CONFIG_PATH, then config.yml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "config.yml"
}
