// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package quality

import (
	"github.com/geotunnel/edge-agent/pkg/hook"
	"github.com/geotunnel/edge-agent/pkg/model"
)

// Pipeline chains validation, calibration and interpolation for one
// source's sample stream.
type Pipeline struct {
	validator    *Validator
	calibrator   *Calibrator
	interpolator *Interpolator

	// PostProcess runs after the pipeline with the processed batch
	// (payload type []model.Sample).
	PostProcess hook.List
}

// NewPipeline assembles a quality pipeline.
func NewPipeline(v *Validator, c *Calibrator, ip *Interpolator) *Pipeline {
	return &Pipeline{validator: v, calibrator: c, interpolator: ip}
}

// Process runs one sample through the pipeline stages in order and
// returns everything to persist, including rejected samples (they are
// stored with their flag for audit) and interpolated fill-ins.
func (p *Pipeline) Process(s model.Sample) []model.Sample {
	if s.QualityFlag == "" {
		s.QualityFlag = model.QualityRaw
	}
	p.validator.Validate(&s)
	p.calibrator.Calibrate(&s)

	out := p.interpolator.Process(s)
	p.PostProcess.Run(out)
	return out
}

// SessionMetrics aggregates the pipeline counters into the quality tree
// reported by the health endpoint.
type SessionMetrics struct {
	Validation    ValidatorStats               `json:"validation"`
	Interpolation InterpolatorStats            `json:"interpolation"`
	Calibration   CalibratorStats              `json:"calibration"`
	Reasonable    map[string]map[string]int64  `json:"reasonableness,omitempty"`
	OverallGrade  string                       `json:"overall_grade"`
}

// Metrics snapshots the pipeline counters and grades overall quality:
// high when under 1% of samples were rejected or lost, medium under 5%,
// low otherwise.
func (p *Pipeline) Metrics(checker *Checker) SessionMetrics {
	m := SessionMetrics{
		Validation:    p.validator.Stats(),
		Interpolation: p.interpolator.Stats(),
		Calibration:   p.calibrator.Stats(),
	}
	if checker != nil {
		m.Reasonable = checker.Stats()
	}
	total := m.Validation.Total
	bad := m.Validation.Rejected + m.Interpolation.GapsTooLarge
	switch {
	case total == 0 || float64(bad)/float64(total) < 0.01:
		m.OverallGrade = "high"
	case float64(bad)/float64(total) < 0.05:
		m.OverallGrade = "medium"
	default:
		m.OverallGrade = "low"
	}
	return m
}
