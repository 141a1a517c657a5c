// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package warning

import (
	"github.com/geotunnel/edge-agent/pkg/model"
)

// predictiveIndicators are the forecast indicators checked per ring.
var predictiveIndicators = []string{"settlement_value", "displacement_value"}

// PredictionStore loads the latest forecast per indicator.
type PredictionStore interface {
	LatestPrediction(ring int, indicator string) (*model.Prediction, error)
}

// PredictiveChecker raises early warnings from model forecasts before the
// measured values breach anything.
type PredictiveChecker struct {
	store PredictionStore
}

// NewPredictiveChecker builds a predictive checker.
func NewPredictiveChecker(store PredictionStore) *PredictiveChecker {
	return &PredictiveChecker{store: store}
}

// PredictiveResult describes a forecast-based violation.
type PredictiveResult struct {
	Level          model.WarningLevel
	Indicator      string
	Prediction     *model.Prediction
	ThresholdValue float64
	Basis          string // point, approaching, ci_upper
}

// Check evaluates the latest forecasts for the ring.
func (c *PredictiveChecker) Check(ring int, thresholds func(indicator string) *model.WarningThreshold) ([]PredictiveResult, error) {
	var out []PredictiveResult
	for _, indicator := range predictiveIndicators {
		t := thresholds(indicator)
		if t == nil || !t.PredictiveEnabled {
			continue
		}
		p, err := c.store.LatestPrediction(ring, indicator)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		if res := evaluatePrediction(p, t); res != nil {
			res.Indicator = indicator
			out = append(out, *res)
		}
	}
	return out, nil
}

// evaluatePrediction grades one forecast:
//  1. the point estimate breaching a tier yields that tier;
//  2. otherwise the point estimate reaching the configured fraction of a
//     tier's upper bound (least severe tier first) yields that tier;
//  3. otherwise the upper confidence bound breaching a tier yields the
//     tier one step below it, since the breach is only plausible, not
//     predicted.
func evaluatePrediction(p *model.Prediction, t *model.WarningThreshold) *PredictiveResult {
	if v := Evaluate(t, p.PredictedValue); v != nil {
		return &PredictiveResult{
			Level:          v.Level,
			Prediction:     p,
			ThresholdValue: v.ThresholdValue,
			Basis:          "point",
		}
	}

	pct := t.PredictiveThreshold
	if pct <= 0 {
		pct = 0.9
	}
	for _, level := range []model.WarningLevel{model.LevelAttention, model.LevelWarning, model.LevelAlarm} {
		_, upper := t.Bounds(level)
		if upper != nil && p.PredictedValue >= *upper*pct {
			return &PredictiveResult{
				Level:          level,
				Prediction:     p,
				ThresholdValue: *upper,
				Basis:          "approaching",
			}
		}
	}

	if v := Evaluate(t, p.CIUpper); v != nil {
		return &PredictiveResult{
			Level:          downgrade(v.Level),
			Prediction:     p,
			ThresholdValue: v.ThresholdValue,
			Basis:          "ci_upper",
		}
	}
	return nil
}

func downgrade(l model.WarningLevel) model.WarningLevel {
	switch l {
	case model.LevelAlarm:
		return model.LevelWarning
	case model.LevelWarning:
		return model.LevelAttention
	}
	return model.LevelAttention
}
