// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package checkconfig validates every configuration file without starting
// the agent.
package checkconfig

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/geotunnel/edge-agent/cmd/edge/command"
	"github.com/geotunnel/edge-agent/pkg/config"
)

// Command builds the check-config subcommand.
func Command(globalParams *command.GlobalParams) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration files and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Setup(globalParams.ConfFilePath); err != nil {
				return err
			}
			failed := false

			sources, err := config.LoadSources(config.Edge.GetString("sources_config"))
			if err != nil {
				failed = true
				fmt.Printf("%s sources: %v\n", color.RedString("FAIL"), err)
			} else {
				fmt.Printf("%s sources: %d configured\n", color.GreenString("OK"), len(sources.Sources))
			}

			thresholds, err := config.LoadThresholds(config.Edge.GetString("thresholds_config"))
			if err != nil {
				failed = true
				fmt.Printf("%s thresholds: %v\n", color.RedString("FAIL"), err)
			} else {
				fmt.Printf("%s thresholds: %d tags\n", color.GreenString("OK"), len(thresholds.Tags))
			}

			calibrations, err := config.LoadCalibrations(config.Edge.GetString("calibrations_config"))
			if err != nil {
				failed = true
				fmt.Printf("%s calibrations: %v\n", color.RedString("FAIL"), err)
			} else {
				fmt.Printf("%s calibrations: %d tags\n", color.GreenString("OK"), len(calibrations.Tags))
			}

			if _, err := config.LoadWarnings(config.Edge.GetString("warnings_config")); err != nil {
				failed = true
				fmt.Printf("%s warnings: %v\n", color.RedString("FAIL"), err)
			} else {
				fmt.Printf("%s warnings\n", color.GreenString("OK"))
			}

			if failed {
				return fmt.Errorf("configuration check failed")
			}
			return nil
		},
	}
}
