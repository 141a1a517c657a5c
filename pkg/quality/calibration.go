// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package quality

import (
	"sync"
	"time"

	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/telemetry"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

var calibratedSamples = telemetry.NewCounter("quality", "calibrated_samples_total",
	"Samples passed through calibration", "result")

// Calibrator applies per-tag sensor corrections.
type Calibrator struct {
	mu   sync.RWMutex
	tags map[string]config.CalibrationSpec

	statsMu      sync.Mutex
	applied      int64
	bypassed     int64
	uncalibrated map[string]struct{}
}

// NewCalibrator builds a calibrator from a calibrations file.
func NewCalibrator(cfg *config.CalibrationsFile) *Calibrator {
	c := &Calibrator{uncalibrated: map[string]struct{}{}}
	c.Reload(cfg)
	return c
}

// Reload swaps the calibration specs at runtime.
func (c *Calibrator) Reload(cfg *config.CalibrationsFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = cfg.Tags
}

// Calibrate corrects the sample value in place when an enabled, currently
// valid calibration exists for the tag. Samples already rejected are left
// alone.
func (c *Calibrator) Calibrate(s *model.Sample) {
	if s.QualityFlag == model.QualityRejected {
		return
	}
	c.mu.RLock()
	spec, found := c.tags[s.Tag]
	c.mu.RUnlock()
	if !found || !spec.Enabled {
		c.statsMu.Lock()
		c.uncalibrated[s.Tag] = struct{}{}
		c.bypassed++
		c.statsMu.Unlock()
		calibratedSamples.WithLabelValues("bypassed").Inc()
		return
	}
	if !validAt(&spec, s.Timestamp) {
		c.statsMu.Lock()
		c.bypassed++
		c.statsMu.Unlock()
		calibratedSamples.WithLabelValues("bypassed").Inc()
		return
	}

	switch spec.Method {
	case "linear":
		s.Value = (s.Value + spec.Offset) * spec.Scale
	case "polynomial":
		s.Value = evalPolynomial(spec.Coeffs, s.Value)
	case "lookup_table":
		s.Value = lookupTable(spec.Table, s.Value)
	default:
		log.Warnf("unknown calibration method %q for tag %s", spec.Method, s.Tag) //nolint:errcheck
		return
	}
	s.QualityFlag = model.QualityCalibrated
	c.statsMu.Lock()
	c.applied++
	c.statsMu.Unlock()
	calibratedSamples.WithLabelValues("applied").Inc()
}

func validAt(spec *config.CalibrationSpec, ts time.Time) bool {
	if spec.ValidFrom != nil && ts.Before(*spec.ValidFrom) {
		return false
	}
	if spec.ValidUntil != nil && ts.After(*spec.ValidUntil) {
		return false
	}
	return true
}

func evalPolynomial(coeffs []float64, x float64) float64 {
	// Horner evaluation of sum(c_i * x^i).
	out := 0.0
	for i := len(coeffs) - 1; i >= 0; i-- {
		out = out*x + coeffs[i]
	}
	return out
}

// lookupTable maps x through sorted (raw, calibrated) pairs, clamping at
// the ends and interpolating linearly between entries.
func lookupTable(table [][2]float64, x float64) float64 {
	if len(table) == 0 {
		return x
	}
	if x <= table[0][0] {
		return table[0][1]
	}
	last := table[len(table)-1]
	if x >= last[0] {
		return last[1]
	}
	for i := 1; i < len(table); i++ {
		if x <= table[i][0] {
			x0, y0 := table[i-1][0], table[i-1][1]
			x1, y1 := table[i][0], table[i][1]
			if x1 == x0 {
				return y0
			}
			return y0 + (y1-y0)*(x-x0)/(x1-x0)
		}
	}
	return last[1]
}

// CalibratorStats is a snapshot of calibration counters.
type CalibratorStats struct {
	Applied          int64    `json:"applied"`
	Bypassed         int64    `json:"bypassed"`
	UncalibratedTags []string `json:"uncalibrated_tags"`
}

// Stats returns a snapshot of the calibration counters.
func (c *Calibrator) Stats() CalibratorStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	tags := make([]string, 0, len(c.uncalibrated))
	for t := range c.uncalibrated {
		tags = append(tags, t)
	}
	return CalibratorStats{Applied: c.applied, Bypassed: c.bypassed, UncalibratedTags: tags}
}
