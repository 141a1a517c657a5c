// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package collector

import (
	"context"
	"time"

	"github.com/geotunnel/edge-agent/pkg/model"
)

// ManualCollector accepts operator-entered readings through the API and
// feeds them into the same pipeline as automatic sources.
type ManualCollector struct {
	id       string
	onSample SampleFunc
	running  bool
}

// NewManual builds a manual entry collector.
func NewManual(id string, onSample SampleFunc) *ManualCollector {
	return &ManualCollector{id: id, onSample: onSample}
}

// Name implements Collector.
func (c *ManualCollector) Name() string { return c.id }

// Start implements Collector.
func (c *ManualCollector) Start(ctx context.Context) error {
	c.running = true
	return nil
}

// Stop implements Collector.
func (c *ManualCollector) Stop() { c.running = false }

// Healthy implements Collector.
func (c *ManualCollector) Healthy() bool { return c.running }

// Ingest submits one manual reading.
func (c *ManualCollector) Ingest(tag string, value float64, ts time.Time) {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	samplesCollected.WithLabelValues(c.id, "ok").Inc()
	c.onSample(model.Sample{
		SourceID:    c.id,
		Tag:         tag,
		Value:       value,
		Timestamp:   ts,
		QualityFlag: model.QualityRaw,
	})
}
