// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package quality

import (
	"sync"
	"time"

	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/telemetry"
)

var interpolatorEvents = telemetry.NewCounter("quality", "interpolation_events_total",
	"Gap handling outcomes", "outcome")

// Interpolator fills short gaps in a tag's sample stream with linearly
// interpolated points. Gaps longer than maxGap are not filled; the sample
// after the gap is flagged missing instead.
type Interpolator struct {
	expectedInterval time.Duration
	tolerance        float64
	maxGap           time.Duration

	mu       sync.Mutex
	lastSeen map[string]model.Sample // keyed source_id/tag

	statsMu            sync.Mutex
	gapsDetected       int64
	valuesInterpolated int64
	gapsTooLarge       int64
}

// NewInterpolator builds an interpolator. tolerance is the fraction of
// the expected interval a gap may exceed before it counts as a gap.
func NewInterpolator(expectedInterval time.Duration, tolerance float64, maxGap time.Duration) *Interpolator {
	if tolerance <= 0 {
		tolerance = 0.5
	}
	if maxGap <= 0 {
		maxGap = 5 * time.Second
	}
	return &Interpolator{
		expectedInterval: expectedInterval,
		tolerance:        tolerance,
		maxGap:           maxGap,
		lastSeen:         map[string]model.Sample{},
	}
}

// Process inspects the gap between s and the previous sample of the same
// tag. It returns the samples to persist: any interior interpolated
// points followed by s itself. When the gap is too large to fill, s is
// flagged missing.
func (ip *Interpolator) Process(s model.Sample) []model.Sample {
	key := s.SourceID + "/" + s.Tag

	ip.mu.Lock()
	prev, seen := ip.lastSeen[key]
	if s.QualityFlag == model.QualityRejected {
		// A rejected value cannot anchor interpolation, but its timestamp
		// still advances the stream so later fills never land on or before
		// the rejected instant.
		if seen {
			prev.Timestamp = s.Timestamp
			ip.lastSeen[key] = prev
		}
		ip.mu.Unlock()
		return []model.Sample{s}
	}
	ip.lastSeen[key] = s
	ip.mu.Unlock()

	if !seen {
		return []model.Sample{s}
	}

	gap := s.Timestamp.Sub(prev.Timestamp)
	threshold := ip.expectedInterval + time.Duration(float64(ip.expectedInterval)*ip.tolerance)
	if gap <= threshold {
		return []model.Sample{s}
	}

	ip.statsMu.Lock()
	ip.gapsDetected++
	ip.statsMu.Unlock()
	interpolatorEvents.WithLabelValues("gap_detected").Inc()

	if gap > ip.maxGap {
		s.QualityFlag = model.QualityMissing
		ip.statsMu.Lock()
		ip.gapsTooLarge++
		ip.statsMu.Unlock()
		interpolatorEvents.WithLabelValues("gap_too_large").Inc()
		// lastSeen keeps the flagged sample so the next gap is measured
		// from here.
		ip.mu.Lock()
		ip.lastSeen[key] = s
		ip.mu.Unlock()
		return []model.Sample{s}
	}

	numPoints := int(gap / ip.expectedInterval)
	out := make([]model.Sample, 0, numPoints+1)
	for i := 1; i < numPoints; i++ {
		frac := float64(i) / float64(numPoints)
		out = append(out, model.Sample{
			SourceID:    s.SourceID,
			Tag:         s.Tag,
			Value:       prev.Value + (s.Value-prev.Value)*frac,
			Timestamp:   prev.Timestamp.Add(time.Duration(float64(gap) * frac)),
			QualityFlag: model.QualityInterpolated,
		})
	}
	ip.statsMu.Lock()
	ip.valuesInterpolated += int64(len(out))
	ip.statsMu.Unlock()
	interpolatorEvents.WithLabelValues("interpolated").Add(float64(len(out)))
	return append(out, s)
}

// InterpolatorStats is a snapshot of interpolation counters.
type InterpolatorStats struct {
	GapsDetected       int64 `json:"gaps_detected"`
	ValuesInterpolated int64 `json:"values_interpolated"`
	GapsTooLarge       int64 `json:"gaps_too_large"`
}

// Stats returns a snapshot of the interpolation counters.
func (ip *Interpolator) Stats() InterpolatorStats {
	ip.statsMu.Lock()
	defer ip.statsMu.Unlock()
	return InterpolatorStats{
		GapsDetected:       ip.gapsDetected,
		ValuesInterpolated: ip.valuesInterpolated,
		GapsTooLarge:       ip.gapsTooLarge,
	}
}
