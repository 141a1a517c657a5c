// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/model"
)

func TestCalibratorLinear(t *testing.T) {
	c := NewCalibrator(&config.CalibrationsFile{Tags: map[string]config.CalibrationSpec{
		"chamber_pressure": {Method: "linear", Enabled: true, Offset: -0.02, Scale: 2},
	}})
	s := sampleAt("chamber_pressure", 1.02, time.Now())
	c.Calibrate(&s)
	assert.InDelta(t, 2.0, s.Value, 1e-9)
	assert.Equal(t, model.QualityCalibrated, s.QualityFlag)
}

func TestCalibratorPolynomial(t *testing.T) {
	c := NewCalibrator(&config.CalibrationsFile{Tags: map[string]config.CalibrationSpec{
		"thrust_total": {Method: "polynomial", Enabled: true, Coeffs: []float64{1, 2, 3}},
	}})
	s := sampleAt("thrust_total", 2, time.Now())
	c.Calibrate(&s)
	// 1 + 2*2 + 3*4
	assert.InDelta(t, 17.0, s.Value, 1e-9)
}

func TestCalibratorLookupTable(t *testing.T) {
	c := NewCalibrator(&config.CalibrationsFile{Tags: map[string]config.CalibrationSpec{
		"grout_volume": {Method: "lookup_table", Enabled: true, Table: [][2]float64{
			{0, 0}, {10, 12}, {20, 26},
		}},
	}})

	cases := []struct{ in, want float64 }{
		{-5, 0},   // clamped low
		{5, 6},    // interpolated
		{10, 12},  // exact knot
		{15, 19},  // interpolated
		{30, 26},  // clamped high
	}
	for _, tc := range cases {
		s := sampleAt("grout_volume", tc.in, time.Now())
		c.Calibrate(&s)
		assert.InDelta(t, tc.want, s.Value, 1e-9, "input %v", tc.in)
	}
}

func TestCalibratorBypassesDisabledAndUnknown(t *testing.T) {
	c := NewCalibrator(&config.CalibrationsFile{Tags: map[string]config.CalibrationSpec{
		"thrust_total": {Method: "linear", Enabled: false, Offset: 100, Scale: 1},
	}})

	s := sampleAt("thrust_total", 10, time.Now())
	c.Calibrate(&s)
	assert.InDelta(t, 10.0, s.Value, 1e-9)
	assert.Equal(t, model.QualityRaw, s.QualityFlag)

	s = sampleAt("never_configured", 10, time.Now())
	c.Calibrate(&s)
	assert.Equal(t, model.QualityRaw, s.QualityFlag)
	assert.Contains(t, c.Stats().UncalibratedTags, "never_configured")
}

func TestCalibratorValidityWindow(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	c := NewCalibrator(&config.CalibrationsFile{Tags: map[string]config.CalibrationSpec{
		"chamber_pressure": {Method: "linear", Enabled: true, Offset: 1, Scale: 1,
			ValidFrom: &from, ValidUntil: &until},
	}})

	s := sampleAt("chamber_pressure", 1, from.Add(-time.Hour))
	c.Calibrate(&s)
	assert.InDelta(t, 1.0, s.Value, 1e-9)

	s = sampleAt("chamber_pressure", 1, from.Add(time.Hour))
	c.Calibrate(&s)
	assert.InDelta(t, 2.0, s.Value, 1e-9)

	s = sampleAt("chamber_pressure", 1, until.Add(time.Hour))
	c.Calibrate(&s)
	assert.InDelta(t, 1.0, s.Value, 1e-9)
}

func TestCalibratorLeavesRejectedAlone(t *testing.T) {
	c := NewCalibrator(&config.CalibrationsFile{Tags: map[string]config.CalibrationSpec{
		"chamber_pressure": {Method: "linear", Enabled: true, Offset: 1, Scale: 1},
	}})
	s := sampleAt("chamber_pressure", 1, time.Now())
	s.QualityFlag = model.QualityRejected
	c.Calibrate(&s)
	assert.InDelta(t, 1.0, s.Value, 1e-9)
	assert.Equal(t, model.QualityRejected, s.QualityFlag)
}
