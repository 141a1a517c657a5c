// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Main package for the edge agent binary.
package main

import (
	"os"

	"github.com/geotunnel/edge-agent/cmd/edge/command"
	"github.com/geotunnel/edge-agent/cmd/edge/subcommands"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

func main() {
	defer log.Flush()
	rootCmd := command.MakeCommand(subcommands.EdgeSubcommands())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
