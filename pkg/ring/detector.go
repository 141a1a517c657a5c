// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package ring derives ring boundaries from the raw sample stream.
package ring

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/telemetry"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

// ErrNoRingDetected is returned when no boundary was found in the window.
var ErrNoRingDetected = errors.New("no ring boundary detected")

// Detection methods.
const (
	MethodAdvance  = "advance"
	MethodAssembly = "assembly"
	MethodTime     = "time"
)

var ringDetections = telemetry.NewCounter("ring", "detections_total",
	"Ring boundary detections", "method", "result")

// Store is the slice of the database the detector reads from.
type Store interface {
	PlcSamples(tag string, from, to time.Time) ([]model.PlcReading, error)
}

// Config tunes the detector.
type Config struct {
	RingWidthMM      float64
	MatchToleranceMM float64
	FallbackDuration time.Duration
	MinDuration      time.Duration
	MaxDuration      time.Duration
}

// DefaultConfig returns the stock detector tuning.
func DefaultConfig() Config {
	return Config{
		RingWidthMM:      1500,
		MatchToleranceMM: 200,
		FallbackDuration: 45 * time.Minute,
		MinDuration:      10 * time.Minute,
		MaxDuration:      120 * time.Minute,
	}
}

// Detector finds ring excavation windows.
type Detector struct {
	store Store
	cfg   Config

	statsMu  sync.Mutex
	byMethod map[string]int64
	invalid  int64
}

// NewDetector builds a detector.
func NewDetector(store Store, cfg Config) *Detector {
	if cfg.RingWidthMM == 0 {
		cfg = DefaultConfig()
	}
	return &Detector{store: store, cfg: cfg, byMethod: map[string]int64{}}
}

// DetectAdvance scans the cumulative advance distance in [from, to) for a
// full ring of travel. The first sample anchors the ring start; a sample
// whose travel from the anchor is within tolerance of the ring width
// closes the ring. Travel far beyond one ring width re-anchors, so a data
// outage in mid-ring does not produce a bogus boundary.
func (d *Detector) DetectAdvance(from, to time.Time) (*model.RingWindow, error) {
	samples, err := d.store.PlcSamples("advance_distance", from, to)
	if err != nil {
		return nil, err
	}
	if len(samples) < 2 {
		ringDetections.WithLabelValues(MethodAdvance, "no_data").Inc()
		return nil, errors.Wrap(ErrNoRingDetected, "insufficient advance samples")
	}

	anchor := samples[0]
	for _, s := range samples[1:] {
		travel := s.Value - anchor.Value
		if math.Abs(travel-d.cfg.RingWidthMM) < d.cfg.MatchToleranceMM {
			w := &model.RingWindow{
				StartTime: anchor.Timestamp,
				EndTime:   s.Timestamp,
				Method:    MethodAdvance,
			}
			d.finish(w)
			return w, nil
		}
		if travel > d.cfg.RingWidthMM+d.cfg.MatchToleranceMM {
			anchor = s
		}
	}
	ringDetections.WithLabelValues(MethodAdvance, "none").Inc()
	return nil, ErrNoRingDetected
}

// DetectAssembly finds a window between a rising and the following
// falling edge of the ring_assembly_active flag: the rising edge marks
// the start of a ring cycle and the next falling edge closes it.
func (d *Detector) DetectAssembly(from, to time.Time) (*model.RingWindow, error) {
	samples, err := d.store.PlcSamples("ring_assembly_active", from, to)
	if err != nil {
		return nil, err
	}
	if len(samples) < 2 {
		ringDetections.WithLabelValues(MethodAssembly, "no_data").Inc()
		return nil, errors.Wrap(ErrNoRingDetected, "insufficient assembly samples")
	}

	var start *time.Time
	prev := samples[0].Value > 0.5
	for _, s := range samples[1:] {
		active := s.Value > 0.5
		if !prev && active {
			// Rising edge: ring cycle starts.
			t := s.Timestamp
			start = &t
		} else if prev && !active && start != nil {
			// Falling edge: ring cycle complete.
			w := &model.RingWindow{
				StartTime: *start,
				EndTime:   s.Timestamp,
				Method:    MethodAssembly,
			}
			d.finish(w)
			return w, nil
		}
		prev = active
	}
	ringDetections.WithLabelValues(MethodAssembly, "none").Inc()
	return nil, ErrNoRingDetected
}

// FallbackWindow builds a fixed-duration window after the last known ring
// end, used when no signal-based boundary is available.
func (d *Detector) FallbackWindow(lastEnd time.Time) *model.RingWindow {
	w := &model.RingWindow{
		StartTime: lastEnd,
		EndTime:   lastEnd.Add(d.cfg.FallbackDuration),
		Method:    MethodTime,
	}
	d.finish(w)
	return w
}

// finish validates the window and records stats. Validation failures are
// logged and counted but the window is still handed to the caller; a
// suspect ring summary beats a missing one.
func (d *Detector) finish(w *model.RingWindow) {
	valid := true
	switch {
	case !w.EndTime.After(w.StartTime):
		log.Warnf("ring window end %s not after start %s", w.EndTime, w.StartTime) //nolint:errcheck
		valid = false
	case w.EndTime.After(time.Now().Add(time.Minute)):
		log.Warnf("ring window end %s is in the future", w.EndTime) //nolint:errcheck
		valid = false
	case w.Duration() < d.cfg.MinDuration || w.Duration() > d.cfg.MaxDuration:
		log.Warnf("ring window duration %s outside [%s, %s]",
			w.Duration(), d.cfg.MinDuration, d.cfg.MaxDuration) //nolint:errcheck
		valid = false
	}

	d.statsMu.Lock()
	d.byMethod[w.Method]++
	if !valid {
		d.invalid++
	}
	d.statsMu.Unlock()
	result := "ok"
	if !valid {
		result = "invalid"
	}
	ringDetections.WithLabelValues(w.Method, result).Inc()
}

// Stats returns per-method detection counts and the invalid-window count.
func (d *Detector) Stats() (map[string]int64, int64) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	out := make(map[string]int64, len(d.byMethod))
	for k, n := range d.byMethod {
		out[k] = n
	}
	return out, d.invalid
}
