package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jo-hoe/cmsadmin/internal/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "CMSADMIN"
	defaultConfigPath = "config.yaml"
)

// newRootCmd builds the manage command tree. The config file comes from
// --config, then CMSADMIN_CONFIG, then ./config.yaml.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetDefault("config", defaultConfigPath)

	root := &cobra.Command{
		Use:           "manage",
		Short:         "Administrative commands for the CMS admin",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (default is ./config.yaml, can also use CMSADMIN_CONFIG env var)")
	root.PersistentFlags().String("log-level", "", "overrides the configured log level (debug, info, warn, error)")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindEnv("config")

	root.AddCommand(
		newUpdateRenditionsCmd(v),
		newCreateSuperuserCmd(v),
		newMigrateCmd(v),
	)
	return root
}

// loadCore reads the configuration and opens the core service.
func loadCore(v *viper.Viper, cmd *cobra.Command) (*core.CoreService, error) {
	configPath := v.GetString("config")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	config, err := core.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if level := v.GetString("log-level"); level != "" {
		config.LogLevel = level
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: config.SlogLevel()})))
	return core.NewCoreService(config)
}

func closeCore(service *core.CoreService) {
	if err := service.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to close core service:", err)
	}
}
