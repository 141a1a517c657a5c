// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package collector acquires samples from field systems: the machine PLC
// over OPC UA or Modbus TCP, guidance and monitoring systems over REST,
// and operator manual entry.
package collector

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/telemetry"
)

// ErrSourceUnavailable is returned when a source cannot be reached.
var ErrSourceUnavailable = errors.New("source unavailable")

var samplesCollected = telemetry.NewCounter("collector", "samples_total",
	"Samples received from sources", "source", "result")

// SampleFunc receives each acquired sample.
type SampleFunc func(s model.Sample)

// Collector is one running data source.
type Collector interface {
	// Name returns the source id.
	Name() string
	// Start begins acquisition; it returns once the collector is running
	// and keeps reconnecting in the background until ctx is cancelled.
	Start(ctx context.Context) error
	// Stop terminates acquisition.
	Stop()
	// Healthy reports whether the source is currently connected.
	Healthy() bool
}

// reconnectDelay is the pause between connection attempts for the
// subscription and polling collectors.
const reconnectDelay = 5 * time.Second
