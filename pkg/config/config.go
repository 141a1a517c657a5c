// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Edge is the global configuration handle, initialized by Setup.
var Edge *viper.Viper

func init() {
	Edge = NewConfig()
}

// NewConfig builds a viper instance with all defaults registered.
func NewConfig() *viper.Viper {
	c := viper.New()
	c.SetConfigName("edge")
	c.SetConfigType("yaml")
	c.SetEnvPrefix("EDGE")
	c.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.AutomaticEnv()

	c.SetDefault("log_level", "info")
	c.SetDefault("log_file", "logs/edge.log")

	c.SetDefault("db.path", "data/edge.db")

	c.SetDefault("api.bind_address", "0.0.0.0")
	c.SetDefault("api.port", 8000)

	c.SetDefault("sources_config", "conf.d/sources.yaml")
	c.SetDefault("thresholds_config", "conf.d/thresholds.yaml")
	c.SetDefault("calibrations_config", "conf.d/calibrations.yaml")
	c.SetDefault("warnings_config", "conf.d/warnings.yaml")

	c.SetDefault("buffer.max_size", 10000)
	c.SetDefault("buffer.flush_threshold", 500)
	c.SetDefault("buffer.flush_interval", "5s")
	c.SetDefault("buffer.overflow_policy", "drop_oldest")

	c.SetDefault("ring.width_mm", 1500.0)
	c.SetDefault("ring.match_tolerance_mm", 200.0)
	c.SetDefault("ring.fallback_duration", "45m")
	c.SetDefault("ring.detection_method", "advance")
	c.SetDefault("ring.min_duration", "10m")
	c.SetDefault("ring.max_duration", "120m")

	c.SetDefault("geological_zone", "_all")

	c.SetDefault("machine.cutterhead_diameter_m", 6.2)
	c.SetDefault("machine.ring_width_m", 1.5)

	c.SetDefault("settlement.min_lag_hours", 6.0)
	c.SetDefault("settlement.max_lag_hours", 8.0)

	c.SetDefault("scheduler.align_interval", "60s")
	c.SetDefault("scheduler.warning_interval", "60s")
	c.SetDefault("scheduler.sync_interval", "5m")
	c.SetDefault("scheduler.vacuum_schedule", "0 3 * * *")

	c.SetDefault("collection.autostart", false)

	return c
}

// Setup loads the configuration file from the given paths into Edge.
// A missing file is not an error, defaults and env vars still apply.
func Setup(confPaths ...string) error {
	for _, p := range confPaths {
		Edge.AddConfigPath(p)
	}
	if err := Edge.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "reading edge config")
	}
	return nil
}
