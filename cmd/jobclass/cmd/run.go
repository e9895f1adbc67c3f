package cmd

import (
	"github.com/spf13/cobra"

	"github.com/armadaproject/jobclass/internal/scheduler"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the classification loop and serves health and metrics endpoints",
		RunE:  runScheduler,
	}
	return cmd
}

func runScheduler(_ *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	return scheduler.Run(config)
}
