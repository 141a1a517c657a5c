// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package aggregator

import (
	"github.com/geotunnel/edge-agent/pkg/model"
)

// criticalFeatures drive the completeness grade of a ring summary.
var criticalFeatures = []string{
	"mean_thrust",
	"mean_torque",
	"mean_penetration_rate",
	"mean_chamber_pressure",
	"mean_pitch",
	"mean_roll",
	"settlement_value",
	"specific_energy",
}

// Completeness grades a summary by the fraction of critical features
// present: >=90% complete, >=60% partial, otherwise incomplete.
func Completeness(s *model.RingSummary) string {
	present := 0
	have := map[string]*float64{
		"mean_thrust":           s.MeanThrust,
		"mean_torque":           s.MeanTorque,
		"mean_penetration_rate": s.MeanPenetrationRate,
		"mean_chamber_pressure": s.MeanChamberPressure,
		"mean_pitch":            s.MeanPitch,
		"mean_roll":             s.MeanRoll,
		"settlement_value":      s.SettlementValue,
		"specific_energy":       s.SpecificEnergy,
	}
	for _, name := range criticalFeatures {
		if have[name] != nil {
			present++
		}
	}
	frac := float64(present) / float64(len(criticalFeatures))
	switch {
	case frac >= 0.9:
		return model.CompletenessComplete
	case frac >= 0.6:
		return model.CompletenessPartial
	default:
		return model.CompletenessIncomplete
	}
}
