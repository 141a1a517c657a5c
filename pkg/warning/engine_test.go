// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package warning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotunnel/edge-agent/pkg/model"
)

type mapThresholds map[string]*model.WarningThreshold

func (m mapThresholds) GetThreshold(indicator, zone string) (*model.WarningThreshold, error) {
	return m[indicator], nil
}

type captureSink struct {
	batches [][]*model.WarningEvent
	err     error
}

func (s *captureSink) SaveWarnings(ws []*model.WarningEvent) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, ws)
	return nil
}

type chanNotifier struct {
	ch chan *model.WarningEvent
}

func (n *chanNotifier) Notify(w *model.WarningEvent) { n.ch <- w }

// upperThreshold builds an enabled threshold with only upper bounds set.
func upperThreshold(indicator string, attention, warn, alarm float64) *model.WarningThreshold {
	t := model.NewWarningThreshold(indicator, "_all")
	t.AttentionUpper = fp(attention)
	t.WarningUpper = fp(warn)
	t.AlarmUpper = fp(alarm)
	return t
}

func newTestEngine(store ThresholdStore, sink Sink, notifier Notifier) *Engine {
	return NewEngine(NewCachedThresholds(store), NewRateDetector(&fakeSummaryStore{}), nil, sink, notifier)
}

func eventByIndicator(ws []*model.WarningEvent, indicator string) *model.WarningEvent {
	for _, w := range ws {
		if w.IndicatorName == indicator {
			return w
		}
	}
	return nil
}

func TestEvaluateRingThresholdWarning(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(mapThresholds{
		"settlement_value": upperThreshold("settlement_value", 10, 20, 30),
	}, sink, nil)

	ws, err := e.EvaluateRing(100, "_all", map[string]float64{"settlement_value": 25})
	require.NoError(t, err)
	require.Len(t, ws, 1)

	w := ws[0]
	assert.Equal(t, model.LevelWarning, w.Level)
	assert.Equal(t, model.WarningTypeThreshold, w.WarningType)
	assert.Equal(t, 100, w.RingNumber)
	assert.Equal(t, model.WarningStatusActive, w.Status)
	require.NotNil(t, w.IndicatorValue)
	assert.InDelta(t, 25.0, *w.IndicatorValue, 1e-9)
	require.NotNil(t, w.ThresholdValue)
	assert.InDelta(t, 20.0, *w.ThresholdValue, 1e-9)
	assert.Equal(t, model.ChannelList{"mqtt", "email"}, w.Channels)
	assert.NotEmpty(t, w.WarningID)
	require.Len(t, sink.batches, 1)
}

func TestEvaluateRingSettlementCouplingEscalates(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(mapThresholds{
		"settlement_value": upperThreshold("settlement_value", 10, 20, 30),
		"mean_thrust":      upperThreshold("mean_thrust", 15000, 20000, 30000),
	}, sink, nil)

	// Both at warning level: settlement plus a coupled machine indicator
	// escalates to a combined alarm.
	ws, err := e.EvaluateRing(100, "_all", map[string]float64{
		"settlement_value": 25,
		"mean_thrust":      25000,
	})
	require.NoError(t, err)
	require.Len(t, ws, 3)

	combined := eventByIndicator(ws, "combined")
	require.NotNil(t, combined)
	assert.Equal(t, model.LevelAlarm, combined.Level)
	assert.Equal(t, model.WarningTypeCombined, combined.WarningType)
	assert.ElementsMatch(t, model.ChannelList{"settlement_value", "mean_thrust"}, combined.SourceIndicators)
	assert.Equal(t, model.ChannelList{"mqtt", "email"}, combined.Channels)
}

func TestEvaluateRingTwoAlarmsCombine(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(mapThresholds{
		"mean_thrust": upperThreshold("mean_thrust", 15000, 20000, 30000),
		"mean_torque": upperThreshold("mean_torque", 500, 800, 1200),
	}, sink, nil)

	ws, err := e.EvaluateRing(100, "_all", map[string]float64{
		"mean_thrust": 35000,
		"mean_torque": 1500,
	})
	require.NoError(t, err)
	require.Len(t, ws, 3)

	combined := eventByIndicator(ws, "combined")
	require.NotNil(t, combined)
	assert.Equal(t, model.LevelAlarm, combined.Level)
	// Inherited from an alarm-level source.
	assert.Equal(t, model.ChannelList{"mqtt", "email", "sms"}, combined.Channels)
}

func TestEvaluateRingThreeWarningsCombine(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(mapThresholds{
		"mean_penetration_rate": upperThreshold("mean_penetration_rate", 30, 45, 60),
		"mean_pitch":            upperThreshold("mean_pitch", 0.5, 1.0, 2.0),
		"grout_volume":          upperThreshold("grout_volume", 8, 10, 14),
	}, sink, nil)

	ws, err := e.EvaluateRing(100, "_all", map[string]float64{
		"mean_penetration_rate": 50,
		"mean_pitch":            1.5,
		"grout_volume":          12,
	})
	require.NoError(t, err)
	require.Len(t, ws, 4)

	combined := eventByIndicator(ws, "combined")
	require.NotNil(t, combined)
	assert.Equal(t, model.LevelWarning, combined.Level)
}

func TestEvaluateRingSingleWarningNoCombination(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(mapThresholds{
		"mean_thrust": upperThreshold("mean_thrust", 15000, 20000, 30000),
	}, sink, nil)

	ws, err := e.EvaluateRing(100, "_all", map[string]float64{"mean_thrust": 35000})
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Nil(t, eventByIndicator(ws, "combined"))
}

func TestEvaluateRingHysteresisSuppressesRepeat(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(mapThresholds{
		"settlement_value": upperThreshold("settlement_value", 10, 20, 30),
	}, sink, nil)

	ws, err := e.EvaluateRing(100, "_all", map[string]float64{"settlement_value": 25})
	require.NoError(t, err)
	require.Len(t, ws, 1)

	// Same level, value barely moved: nothing emitted, nothing persisted.
	ws, err = e.EvaluateRing(101, "_all", map[string]float64{"settlement_value": 25.1})
	require.NoError(t, err)
	assert.Empty(t, ws)
	assert.Len(t, sink.batches, 1)

	// Recovery clears the state, the next breach emits again.
	ws, err = e.EvaluateRing(102, "_all", map[string]float64{"settlement_value": 5})
	require.NoError(t, err)
	assert.Empty(t, ws)
	ws, err = e.EvaluateRing(103, "_all", map[string]float64{"settlement_value": 25})
	require.NoError(t, err)
	assert.Len(t, ws, 1)
}

func TestEvaluateRingPredictiveRepeatSuppressed(t *testing.T) {
	sink := &captureSink{}
	store := &fakePredictionStore{predictions: map[string]*model.Prediction{
		"settlement_value": {PredictedValue: 35, CIUpper: 38, Confidence: 0.95, HorizonHours: 24},
	}}
	thresholds := mapThresholds{
		"settlement_value": upperThreshold("settlement_value", 10, 20, 30),
	}
	e := NewEngine(NewCachedThresholds(thresholds), NewRateDetector(&fakeSummaryStore{}),
		NewPredictiveChecker(store), sink, nil)

	// The measured value stays inside bounds; only the forecast fires.
	ws, err := e.EvaluateRing(100, "_all", map[string]float64{"settlement_value": 5})
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, model.WarningTypePredictive, ws[0].WarningType)

	// An unchanged forecast at the same level is an oscillation, not news.
	ws, err = e.EvaluateRing(101, "_all", map[string]float64{"settlement_value": 5})
	require.NoError(t, err)
	assert.Empty(t, ws)
	assert.Len(t, sink.batches, 1)

	// 35 -> 37 moved 6.7% of the 30 bound, enough to emit again.
	store.predictions["settlement_value"].PredictedValue = 37
	ws, err = e.EvaluateRing(102, "_all", map[string]float64{"settlement_value": 5})
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Len(t, sink.batches, 2)
}

func TestEvaluateRingRateWarningTracked(t *testing.T) {
	sink := &captureSink{}
	th := model.NewWarningThreshold("settlement_value", "_all")
	e := NewEngine(NewCachedThresholds(mapThresholds{"settlement_value": th}),
		NewRateDetector(settlementSeries(1.0, 1.5, 2.0, 2.5, 7.5)), nil, sink, nil)

	ws, err := e.EvaluateRing(5, "_all", map[string]float64{"settlement_value": 7.5})
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, model.WarningTypeRate, ws[0].WarningType)
	assert.Equal(t, model.LevelAlarm, ws[0].Level)

	// Rate warnings enter the oscillation filter's state like any other.
	assert.Equal(t, 1, e.hysteresis.Len())
}

func TestEvaluateRingInsideBounds(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(mapThresholds{
		"settlement_value": upperThreshold("settlement_value", 10, 20, 30),
	}, sink, nil)

	ws, err := e.EvaluateRing(100, "_all", map[string]float64{"settlement_value": 5})
	require.NoError(t, err)
	assert.Empty(t, ws)
	assert.Empty(t, sink.batches)
}

func TestEvaluateRingDisabledThreshold(t *testing.T) {
	th := upperThreshold("settlement_value", 10, 20, 30)
	th.Enabled = false
	sink := &captureSink{}
	e := newTestEngine(mapThresholds{"settlement_value": th}, sink, nil)

	ws, err := e.EvaluateRing(100, "_all", map[string]float64{"settlement_value": 50})
	require.NoError(t, err)
	assert.Empty(t, ws)
}

func TestEvaluateRingSinkError(t *testing.T) {
	sink := &captureSink{err: assert.AnError}
	e := newTestEngine(mapThresholds{
		"settlement_value": upperThreshold("settlement_value", 10, 20, 30),
	}, sink, nil)

	_, err := e.EvaluateRing(100, "_all", map[string]float64{"settlement_value": 25})
	require.Error(t, err)
}

func TestEvaluateRingNotifies(t *testing.T) {
	notifier := &chanNotifier{ch: make(chan *model.WarningEvent, 8)}
	e := newTestEngine(mapThresholds{
		"settlement_value": upperThreshold("settlement_value", 10, 20, 30),
	}, &captureSink{}, notifier)

	ws, err := e.EvaluateRing(100, "_all", map[string]float64{"settlement_value": 25})
	require.NoError(t, err)
	require.Len(t, ws, 1)

	select {
	case w := <-notifier.ch:
		assert.Equal(t, "settlement_value", w.IndicatorName)
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called")
	}
}
