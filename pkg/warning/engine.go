// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package warning

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/database"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/telemetry"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

var warningsEmitted = telemetry.NewCounter("warning", "emitted_total",
	"Warning events emitted", "level", "type")

// Notifier delivers a warning over its configured channels.
type Notifier interface {
	Notify(w *model.WarningEvent)
}

// Sink persists a batch of warnings atomically.
type Sink interface {
	SaveWarnings(ws []*model.WarningEvent) error
}

// Engine runs the per-ring warning evaluation.
type Engine struct {
	thresholds *CachedThresholds
	rate       *RateDetector
	predictive *PredictiveChecker
	hysteresis *Hysteresis
	sink       Sink
	notifier   Notifier
}

// NewEngine wires the engine.
func NewEngine(thresholds *CachedThresholds, rate *RateDetector, predictive *PredictiveChecker, sink Sink, notifier Notifier) *Engine {
	return &Engine{
		thresholds: thresholds,
		rate:       rate,
		predictive: predictive,
		hysteresis: NewHysteresis(),
		sink:       sink,
		notifier:   notifier,
	}
}

// indicators whose co-occurrence with settlement escalates to a combined
// alarm.
var settlementCouplings = map[string]struct{}{
	"mean_thrust":           {},
	"mean_torque":           {},
	"mean_chamber_pressure": {},
}

func isSettlement(indicator string) bool {
	return indicator == "settlement_value" || indicator == "cumulative_settlement"
}

// EvaluateRing runs all checks for one ring and returns the emitted
// warnings. Evaluation order: thresholds, rates, predictions (each gated
// by hysteresis), combined rules, persistence, notification.
func (e *Engine) EvaluateRing(ring int, zone string, indicators map[string]float64) ([]*model.WarningEvent, error) {
	lookup := func(indicator string) *model.WarningThreshold {
		t, err := e.thresholds.GetThreshold(indicator, zone)
		if err != nil {
			log.Errorf("loading threshold for %s/%s: %v", indicator, zone, err) //nolint:errcheck
			return nil
		}
		return t
	}

	var emitted []*model.WarningEvent
	warnedKeys := map[string]struct{}{}

	// Threshold checks, gated by hysteresis.
	for indicator, value := range indicators {
		t := lookup(indicator)
		if t == nil || !t.Enabled {
			continue
		}
		v := Evaluate(t, value)
		if v == nil {
			continue
		}
		warnedKeys[stateKey(indicator, zone)] = struct{}{}
		if !e.hysteresis.ShouldEmit(indicator, zone, v.Level, value, &v.ThresholdValue, t.HysteresisPct) {
			log.Debugf("hysteresis suppressed %s=%.3f at %s", indicator, value, v.Level)
			continue
		}
		w := e.newEvent(ring, indicator, zone, v.Level, model.WarningTypeThreshold, t)
		w.IndicatorValue = ptrF(value)
		w.ThresholdValue = ptrF(v.ThresholdValue)
		w.ThresholdType = v.ThresholdType
		w.Message = fmt.Sprintf("%s %.3f breached %s %s bound %.3f",
			indicator, value, v.Level, v.ThresholdType, v.ThresholdValue)
		emitted = append(emitted, w)
	}

	// Rate-of-change checks.
	for indicator, value := range indicators {
		t := lookup(indicator)
		if t == nil || !t.Enabled {
			continue
		}
		res, err := e.rate.Check(ring, indicator, t)
		if err != nil {
			log.Errorf("rate check for %s: %v", indicator, err) //nolint:errcheck
			continue
		}
		if res == nil {
			continue
		}
		warnedKeys[stateKey(indicator, zone)] = struct{}{}
		if !e.hysteresis.ShouldEmit(indicator, zone, res.Level, value, nil, t.HysteresisPct) {
			log.Debugf("hysteresis suppressed rate warning for %s at %s", indicator, res.Level)
			continue
		}
		w := e.newEvent(ring, indicator, zone, res.Level, model.WarningTypeRate, t)
		w.IndicatorValue = ptrF(value)
		w.ThresholdType = model.ThresholdTypeUpper
		w.Message = fmt.Sprintf("%s changing %.1fx faster than recent history (%.4f vs %.4f per ring)",
			indicator, res.Multiplier, res.CurrentRate, res.HistoricalRate)
		emitted = append(emitted, w)
	}

	// Predictive checks.
	if e.predictive != nil {
		results, err := e.predictive.Check(ring, lookup)
		if err != nil {
			log.Errorf("predictive check: %v", err) //nolint:errcheck
		}
		for _, res := range results {
			t := lookup(res.Indicator)
			if t == nil {
				continue
			}
			warnedKeys[stateKey(res.Indicator, zone)] = struct{}{}
			// Predictive warnings carry no observed value; the forecast
			// drives the oscillation filter instead.
			if !e.hysteresis.ShouldEmit(res.Indicator, zone, res.Level,
				res.Prediction.PredictedValue, ptrF(res.ThresholdValue), t.HysteresisPct) {
				log.Debugf("hysteresis suppressed predictive warning for %s at %s", res.Indicator, res.Level)
				continue
			}
			w := e.newEvent(ring, res.Indicator, zone, res.Level, model.WarningTypePredictive, t)
			w.ThresholdValue = ptrF(res.ThresholdValue)
			w.ThresholdType = model.ThresholdTypeUpper
			w.PredictedValue = ptrF(res.Prediction.PredictedValue)
			w.Confidence = ptrF(res.Prediction.Confidence)
			horizon := res.Prediction.HorizonHours
			w.HorizonHours = &horizon
			w.Message = fmt.Sprintf("%s forecast %.3f (CI upper %.3f) against bound %.3f (%s)",
				res.Indicator, res.Prediction.PredictedValue, res.Prediction.CIUpper,
				res.ThresholdValue, res.Basis)
			emitted = append(emitted, w)
		}
	}

	// Combined rules over this cycle's warnings.
	if combined := e.combine(ring, zone, emitted); combined != nil {
		emitted = append(emitted, combined)
	}

	e.hysteresis.Cleanup(zone, warnedKeys, indicators, lookup)

	if len(emitted) == 0 {
		return nil, nil
	}
	if err := e.sink.SaveWarnings(emitted); err != nil {
		return nil, errors.Wrapf(err, "persisting warnings for ring %d", ring)
	}
	for _, w := range emitted {
		warningsEmitted.WithLabelValues(string(w.Level), w.WarningType).Inc()
		if e.notifier != nil {
			go e.notifier.Notify(w)
		}
	}
	return emitted, nil
}

// combine applies the multi-indicator escalation rules: two alarms, or
// settlement coupled with a key machine indicator, escalate to a combined
// alarm; three warnings escalate to a combined warning.
func (e *Engine) combine(ring int, zone string, ws []*model.WarningEvent) *model.WarningEvent {
	if len(ws) < 2 {
		return nil
	}
	alarms := 0
	warnings := 0
	settlementHit := map[model.WarningLevel]bool{}
	couplingHit := map[model.WarningLevel]bool{}
	for _, w := range ws {
		switch w.Level {
		case model.LevelAlarm:
			alarms++
		case model.LevelWarning:
			warnings++
		}
		if isSettlement(w.IndicatorName) {
			settlementHit[w.Level] = true
		}
		if _, coupled := settlementCouplings[w.IndicatorName]; coupled {
			couplingHit[w.Level] = true
		}
	}

	var level model.WarningLevel
	switch {
	case alarms >= 2:
		level = model.LevelAlarm
	case len(settlementHit) > 0 && len(couplingHit) > 0 &&
		(settlementHit[model.LevelAlarm] || couplingHit[model.LevelAlarm] ||
			(settlementHit[model.LevelWarning] && couplingHit[model.LevelWarning])):
		level = model.LevelAlarm
	case warnings >= 3:
		level = model.LevelWarning
	default:
		return nil
	}

	// Inherit channels from the most severe source warning.
	var worst *model.WarningEvent
	sources := make(model.ChannelList, 0, len(ws))
	for _, w := range ws {
		sources = append(sources, w.IndicatorName)
		if worst == nil || w.Level.Rank() > worst.Level.Rank() {
			worst = w
		}
	}

	now := time.Now().UTC()
	return &model.WarningEvent{
		WarningID:        uuid.NewString(),
		RingNumber:       ring,
		IndicatorName:    "combined",
		Zone:             zone,
		Level:            level,
		WarningType:      model.WarningTypeCombined,
		ThresholdType:    model.ThresholdTypeUnknown,
		Status:           model.WarningStatusActive,
		SourceIndicators: sources,
		Channels:         worst.Channels,
		Message:          fmt.Sprintf("combined %s from %d concurrent warnings", level, len(ws)),
		CreatedAt:        now,
	}
}

func (e *Engine) newEvent(ring int, indicator, zone string, level model.WarningLevel, warningType string, t *model.WarningThreshold) *model.WarningEvent {
	return &model.WarningEvent{
		WarningID:     uuid.NewString(),
		RingNumber:    ring,
		IndicatorName: indicator,
		Zone:          zone,
		Level:         level,
		WarningType:   warningType,
		ThresholdType: model.ThresholdTypeUnknown,
		Status:        model.WarningStatusActive,
		Channels:      t.Channels(level),
		CreatedAt:     time.Now().UTC(),
	}
}

func ptrF(v float64) *float64 { return &v }

// DBThresholds adapts the database manager to the engine's missing-config
// semantics: a missing row is nil, not an error.
type DBThresholds struct {
	DB *database.Manager
}

// GetThreshold implements ThresholdStore.
func (d DBThresholds) GetThreshold(indicator, zone string) (*model.WarningThreshold, error) {
	t, err := d.DB.GetThreshold(indicator, zone)
	if errors.Is(err, database.ErrThresholdConfigMissing) {
		return nil, nil
	}
	return t, err
}

// DBSink persists warning batches through the database manager.
type DBSink struct {
	DB *database.Manager
}

// SaveWarnings implements Sink.
func (d DBSink) SaveWarnings(ws []*model.WarningEvent) error {
	return d.DB.Transaction(func(tx *sqlx.Tx) error {
		for _, w := range ws {
			if err := database.InsertWarningTx(tx, w); err != nil {
				return err
			}
		}
		return nil
	})
}
