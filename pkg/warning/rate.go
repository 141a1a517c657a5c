// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package warning

import (
	"math"

	"github.com/geotunnel/edge-agent/pkg/model"
)

// indicatorFieldMap maps warning indicator names to the ring summary
// feature the rate is computed over.
var indicatorFieldMap = map[string]string{
	"cumulative_settlement": "settlement_value",
	"settlement_value":      "settlement_value",
	"displacement":          "displacement_value",
	"chamber_pressure":      "mean_chamber_pressure",
	"thrust_total":          "mean_thrust",
	"torque_cutterhead":     "mean_torque",
	"groundwater_level":     "groundwater_level",
}

// SummaryStore loads recent ring summaries.
type SummaryStore interface {
	RecentRingSummaries(ring, n int) ([]model.RingSummary, error)
}

// RateDetector flags indicators whose per-ring rate of change spikes
// against their own recent history.
type RateDetector struct {
	store SummaryStore
}

// NewRateDetector builds a rate detector.
func NewRateDetector(store SummaryStore) *RateDetector {
	return &RateDetector{store: store}
}

// RateResult describes a detected rate anomaly.
type RateResult struct {
	Level          model.WarningLevel
	CurrentRate    float64
	HistoricalRate float64
	Multiplier     float64
}

// Check compares the latest per-ring rate of the indicator to the mean of
// the preceding rates in the window. Needs at least two rate pairs and a
// non-degenerate history.
func (d *RateDetector) Check(ring int, indicator string, t *model.WarningThreshold) (*RateResult, error) {
	field, known := indicatorFieldMap[indicator]
	if !known {
		return nil, nil
	}
	window := t.RateWindowSize
	if window <= 0 {
		window = 10
	}
	summaries, err := d.store.RecentRingSummaries(ring, window+1)
	if err != nil {
		return nil, err
	}
	// Newest-first from the store; chronological for the rate series.
	for i, j := 0, len(summaries)-1; i < j; i, j = i+1, j-1 {
		summaries[i], summaries[j] = summaries[j], summaries[i]
	}

	type point struct {
		ring  int
		value float64
	}
	points := make([]point, 0, len(summaries))
	for i := range summaries {
		if v := summaryField(&summaries[i], field); v != nil {
			points = append(points, point{ring: summaries[i].RingNumber, value: *v})
		}
	}
	if len(points) < 3 {
		return nil, nil
	}

	rates := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		dRing := points[i].ring - points[i-1].ring
		if dRing <= 0 {
			continue
		}
		rates = append(rates, (points[i].value-points[i-1].value)/float64(dRing))
	}
	if len(rates) < 2 {
		return nil, nil
	}

	current := rates[len(rates)-1]
	var sum float64
	for _, r := range rates[:len(rates)-1] {
		sum += r
	}
	historical := sum / float64(len(rates)-1)
	if math.Abs(historical) <= 1e-9 {
		return nil, nil
	}

	multiplier := math.Abs(current) / math.Abs(historical)
	res := &RateResult{CurrentRate: current, HistoricalRate: historical, Multiplier: multiplier}
	switch {
	case multiplier >= t.RateAlarmMultiplier:
		res.Level = model.LevelAlarm
	case multiplier >= t.RateWarningMultiplier:
		res.Level = model.LevelWarning
	case multiplier >= t.RateAttentionMultiplier:
		res.Level = model.LevelAttention
	default:
		return nil, nil
	}
	return res, nil
}

func summaryField(s *model.RingSummary, field string) *float64 {
	switch field {
	case "settlement_value":
		return s.SettlementValue
	case "displacement_value":
		return s.DisplacementValue
	case "mean_chamber_pressure":
		return s.MeanChamberPressure
	case "mean_thrust":
		return s.MeanThrust
	case "mean_torque":
		return s.MeanTorque
	case "groundwater_level":
		return s.GroundwaterLevel
	}
	return nil
}
