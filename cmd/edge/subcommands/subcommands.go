// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package subcommands lists the subcommand factories of the edge binary.
package subcommands

import (
	"github.com/geotunnel/edge-agent/cmd/edge/command"
	"github.com/geotunnel/edge-agent/cmd/edge/subcommands/checkconfig"
	"github.com/geotunnel/edge-agent/cmd/edge/subcommands/run"
	"github.com/geotunnel/edge-agent/cmd/edge/subcommands/status"
	"github.com/geotunnel/edge-agent/cmd/edge/subcommands/version"
)

// EdgeSubcommands returns every subcommand of the edge binary.
func EdgeSubcommands() []command.SubcommandFactory {
	return []command.SubcommandFactory{
		run.Command,
		status.Command,
		version.Command,
		checkconfig.Command,
	}
}
