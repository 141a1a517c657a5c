// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package ring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotunnel/edge-agent/pkg/model"
)

type fakeStore struct {
	samples map[string][]model.PlcReading
}

func (s *fakeStore) PlcSamples(tag string, from, to time.Time) ([]model.PlcReading, error) {
	return s.samples[tag], nil
}

func advanceSeries(t0 time.Time, step time.Duration, values ...float64) []model.PlcReading {
	out := make([]model.PlcReading, len(values))
	for i, v := range values {
		out[i] = model.PlcReading{
			Tag:         "advance_distance",
			Value:       v,
			Timestamp:   t0.Add(time.Duration(i) * step),
			QualityFlag: model.QualityRaw,
		}
	}
	return out
}

func TestDetectAdvance(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store := &fakeStore{samples: map[string][]model.PlcReading{
		"advance_distance": advanceSeries(t0, 10*time.Minute, 10000, 10400, 10800, 11200, 11550),
	}}
	d := NewDetector(store, DefaultConfig())

	w, err := d.DetectAdvance(t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, MethodAdvance, w.Method)
	assert.Equal(t, t0, w.StartTime)
	// 11550 - 10000 = 1550mm, within 200mm of the 1500mm ring width.
	assert.Equal(t, t0.Add(40*time.Minute), w.EndTime)
}

func TestDetectAdvanceReanchorsAfterOutage(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// A jump of 4000mm between consecutive samples means data was lost in
	// mid-ring; the detector must re-anchor instead of closing a ring.
	store := &fakeStore{samples: map[string][]model.PlcReading{
		"advance_distance": advanceSeries(t0, 10*time.Minute, 10000, 14000, 14700, 15450),
	}}
	d := NewDetector(store, DefaultConfig())

	w, err := d.DetectAdvance(t0, t0.Add(time.Hour))
	require.NoError(t, err)
	// Anchor moved to the 14000 sample; ring closes at 15450.
	assert.Equal(t, t0.Add(10*time.Minute), w.StartTime)
	assert.Equal(t, t0.Add(30*time.Minute), w.EndTime)
}

func TestDetectAdvanceNoBoundary(t *testing.T) {
	t0 := time.Now().UTC().Add(-time.Hour)
	store := &fakeStore{samples: map[string][]model.PlcReading{
		"advance_distance": advanceSeries(t0, time.Minute, 10000, 10100, 10200),
	}}
	d := NewDetector(store, DefaultConfig())

	_, err := d.DetectAdvance(t0, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNoRingDetected)
}

func TestDetectAdvanceInsufficientSamples(t *testing.T) {
	store := &fakeStore{samples: map[string][]model.PlcReading{}}
	d := NewDetector(store, DefaultConfig())
	_, err := d.DetectAdvance(time.Now().Add(-time.Hour), time.Now())
	assert.ErrorIs(t, err, ErrNoRingDetected)
}

func TestDetectAssembly(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	flags := []float64{0, 0, 1, 1, 1, 0}
	samples := make([]model.PlcReading, len(flags))
	for i, v := range flags {
		samples[i] = model.PlcReading{
			Tag:       "ring_assembly_active",
			Value:     v,
			Timestamp: t0.Add(time.Duration(i) * 10 * time.Minute),
		}
	}
	store := &fakeStore{samples: map[string][]model.PlcReading{"ring_assembly_active": samples}}
	d := NewDetector(store, DefaultConfig())

	w, err := d.DetectAssembly(t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, MethodAssembly, w.Method)
	// Ring runs from the rising edge at 20min to the falling edge at 50min.
	assert.Equal(t, t0.Add(20*time.Minute), w.StartTime)
	assert.Equal(t, t0.Add(50*time.Minute), w.EndTime)
}

func TestDetectAssemblyIgnoresLeadingFallingEdge(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// The window opens mid-cycle: the first falling edge has no matching
	// rising edge and must not close a ring.
	flags := []float64{1, 0, 0, 1, 1, 1, 0}
	samples := make([]model.PlcReading, len(flags))
	for i, v := range flags {
		samples[i] = model.PlcReading{
			Tag:       "ring_assembly_active",
			Value:     v,
			Timestamp: t0.Add(time.Duration(i) * 10 * time.Minute),
		}
	}
	store := &fakeStore{samples: map[string][]model.PlcReading{"ring_assembly_active": samples}}
	d := NewDetector(store, DefaultConfig())

	w, err := d.DetectAssembly(t0, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, t0.Add(30*time.Minute), w.StartTime)
	assert.Equal(t, t0.Add(60*time.Minute), w.EndTime)
}

func TestFallbackWindow(t *testing.T) {
	d := NewDetector(&fakeStore{}, DefaultConfig())
	lastEnd := time.Now().UTC().Add(-50 * time.Minute)

	w := d.FallbackWindow(lastEnd)
	assert.Equal(t, MethodTime, w.Method)
	assert.Equal(t, lastEnd, w.StartTime)
	assert.Equal(t, lastEnd.Add(45*time.Minute), w.EndTime)
	assert.Equal(t, 2700*time.Second, w.Duration())
}

func TestInvalidWindowStillReturned(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FallbackDuration = 2 * time.Minute
	d := NewDetector(&fakeStore{}, cfg)

	// Two minutes is below the minimum ring duration; the window is
	// flagged invalid but still handed back.
	w := d.FallbackWindow(time.Now().UTC().Add(-10 * time.Minute))
	require.NotNil(t, w)
	byMethod, invalid := d.Stats()
	assert.Equal(t, int64(1), byMethod[MethodTime])
	assert.Equal(t, int64(1), invalid)
}
