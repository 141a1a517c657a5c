// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package version prints the build identity.
package version

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/geotunnel/edge-agent/cmd/edge/command"
	"github.com/geotunnel/edge-agent/pkg/version"
)

// Command builds the version subcommand.
func Command(_ *command.GlobalParams) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Edge agent %s - Go %s %s/%s\n",
				color.CyanString(version.Full()),
				runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
