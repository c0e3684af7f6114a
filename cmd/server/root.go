package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"user_backend/internal/config"
	"user_backend/internal/logging"
)

const (
	serviceName       = "user-backend"
	defaultConfigFile = "config.yaml"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the user backend CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "user-backend",
		Short:        "User accounts and authentication service",
		Long:         `Phone and password authentication with JWT access and refresh tokens, role based access control and user management.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default config.yaml when present)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading APP__ variables")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewWorkerCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCreateAdminCmd())

	return cmd
}

// loadConfig reads the configuration for cmd and installs the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	file := configFile
	if file == "" {
		file = config.DefaultFile(defaultConfigFile)
	}

	cfg, err := config.Load(config.LoadOptions{File: file, EnvFile: envFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, nil, err
	}
	if version != "dev" {
		cfg.Run.Version = version
	}

	logger := logging.SetDefault(serviceName, cfg.Run.Version, cfg.Log.Format, cfg.Log.Level)
	logger.Debug("configuration loaded", "config", cfg.String())
	return cfg, logger, nil
}
