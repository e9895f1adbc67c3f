package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	commonconfig "github.com/armadaproject/jobclass/internal/common/config"
	"github.com/armadaproject/jobclass/internal/common/logging"
	"github.com/armadaproject/jobclass/internal/scheduler/configuration"
)

const (
	CustomConfigLocation string = "config"
	DefaultConfigPath    string = "./config/jobclass"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "jobclass",
		SilenceUsage: true,
		Short:        "Partitions batch jobs into scheduling equivalence classes",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return errors.WithStack(viper.BindPFlags(cmd.Flags()))
		},
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")

	cmd.AddCommand(
		runCmd(),
		classifyCmd(),
	)

	return cmd
}

func loadConfig() (configuration.Configuration, error) {
	var config configuration.Configuration
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)

	if err := commonconfig.LoadConfig(&config, DefaultConfigPath, userSpecifiedConfigs, configuration.DecodeHooks()...); err != nil {
		return config, err
	}
	if err := config.Validate(); err != nil {
		commonconfig.LogValidationErrors(err)
		return config, err
	}
	if err := logging.ConfigureLogging(config.Logging.Level, config.Logging.Format); err != nil {
		return config, err
	}
	return config, nil
}
