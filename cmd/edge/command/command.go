// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package command holds the root cobra command of the edge agent and the
// parameters shared by every subcommand.
package command

import (
	"github.com/spf13/cobra"

	"github.com/geotunnel/edge-agent/pkg/version"
)

// GlobalParams carries the flags every subcommand sees.
type GlobalParams struct {
	// ConfFilePath is the directory holding edge.yaml and conf.d.
	ConfFilePath string
}

// SubcommandFactory builds one subcommand from the global params.
type SubcommandFactory func(*GlobalParams) *cobra.Command

// MakeCommand assembles the root command.
func MakeCommand(factories []SubcommandFactory) *cobra.Command {
	globalParams := &GlobalParams{}

	rootCmd := &cobra.Command{
		Use:          "edge [command]",
		Short:        "Shield tunneling edge data agent",
		Long:         "Collects, qualifies and aggregates shield machine data at the tunnel face, raising warnings and work orders on anomalous rings.",
		Version:      version.Full(),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&globalParams.ConfFilePath, "cfgpath", "c", ".",
		"path to the directory containing edge.yaml")

	for _, factory := range factories {
		rootCmd.AddCommand(factory(globalParams))
	}
	return rootCmd
}
