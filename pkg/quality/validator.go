// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package quality implements the sample quality pipeline: physical range
// validation, sensor calibration, gap interpolation and cross-signal
// reasonableness checks.
package quality

import (
	"math"
	"sync"

	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/telemetry"
)

var validatorSamples = telemetry.NewCounter("quality", "validated_samples_total",
	"Samples seen by the range validator", "result", "tag")

// Validator rejects samples outside the configured physical range for
// their tag. Tags without configuration pass through untouched.
type Validator struct {
	mu   sync.RWMutex
	tags map[string]config.TagRange

	statsMu  sync.Mutex
	total    int64
	passed   int64
	rejected int64
	byTag    map[string]int64
}

// NewValidator builds a validator from a thresholds file.
func NewValidator(cfg *config.ThresholdsFile) *Validator {
	v := &Validator{byTag: map[string]int64{}}
	v.Reload(cfg)
	return v
}

// Reload swaps the tag ranges at runtime.
func (v *Validator) Reload(cfg *config.ThresholdsFile) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tags = cfg.Tags
}

// Validate checks one sample in place, setting the quality flag to
// rejected with a reason when it falls outside its tag's range.
func (v *Validator) Validate(s *model.Sample) bool {
	v.statsMu.Lock()
	v.total++
	v.statsMu.Unlock()

	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return v.reject(s, "non-finite value")
	}

	v.mu.RLock()
	r, found := v.tags[s.Tag]
	v.mu.RUnlock()
	if !found {
		// No configuration for the tag is permissive.
		return v.pass(s)
	}
	if r.Min != nil && s.Value < *r.Min {
		return v.reject(s, "below configured minimum")
	}
	if r.Max != nil && s.Value > *r.Max {
		return v.reject(s, "above configured maximum")
	}
	return v.pass(s)
}

func (v *Validator) pass(s *model.Sample) bool {
	validatorSamples.WithLabelValues("passed", s.Tag).Inc()
	v.statsMu.Lock()
	v.passed++
	v.statsMu.Unlock()
	return true
}

func (v *Validator) reject(s *model.Sample, reason string) bool {
	s.QualityFlag = model.QualityRejected
	s.RejectReason = reason
	validatorSamples.WithLabelValues("rejected", s.Tag).Inc()
	v.statsMu.Lock()
	v.rejected++
	v.byTag[s.Tag]++
	v.statsMu.Unlock()
	return false
}

// ValidatorStats is a point-in-time snapshot of validator counters.
type ValidatorStats struct {
	Total         int64            `json:"total"`
	Passed        int64            `json:"passed"`
	Rejected      int64            `json:"rejected"`
	RejectedByTag map[string]int64 `json:"rejected_by_tag"`
}

// Stats returns a snapshot of the validator counters.
func (v *Validator) Stats() ValidatorStats {
	v.statsMu.Lock()
	defer v.statsMu.Unlock()
	byTag := make(map[string]int64, len(v.byTag))
	for k, n := range v.byTag {
		byTag[k] = n
	}
	return ValidatorStats{Total: v.total, Passed: v.passed, Rejected: v.rejected, RejectedByTag: byTag}
}
