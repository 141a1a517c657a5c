// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package version holds the build identity, stamped via ldflags.
package version

import "fmt"

var (
	// AgentVersion is the released version string.
	AgentVersion = "1.0.0"
	// Commit is the git revision the binary was built from.
	Commit = ""
)

// Full returns the version with the commit suffix when available.
func Full() string {
	if Commit == "" {
		return AgentVersion
	}
	return fmt.Sprintf("%s (commit %s)", AgentVersion, Commit)
}
