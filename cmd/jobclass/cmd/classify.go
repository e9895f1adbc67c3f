package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/armadaproject/jobclass/internal/scheduler"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classifies the jobs in a jobs file once and prints the classes",
		RunE:  classify,
	}
	cmd.Flags().String(
		"jobs",
		"",
		"Path to a YAML jobs file; defaults to the configured jobs file")
	cmd.Flags().String(
		"at",
		"",
		"Classify as if the current time were this RFC3339 time; defaults to now")
	return cmd
}

func classify(cmd *cobra.Command, _ []string) error {
	jobsFile, err := cmd.Flags().GetString("jobs")
	if err != nil {
		return errors.WithStack(err)
	}
	atFlag, err := cmd.Flags().GetString("at")
	if err != nil {
		return errors.WithStack(err)
	}
	at := time.Now()
	if atFlag != "" {
		at, err = time.Parse(time.RFC3339, atFlag)
		if err != nil {
			return errors.Wrapf(err, "invalid --at time %s", atFlag)
		}
	}

	config, err := loadConfig()
	if err != nil {
		return err
	}
	result, err := scheduler.ClassifyOnce(config, jobsFile, at)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), result.Report())
	return errors.WithStack(err)
}
