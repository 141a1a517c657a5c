// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package aggregator

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/geotunnel/edge-agent/pkg/model"
)

// MonitoringStore is the slice of the database the associator reads.
type MonitoringStore interface {
	MonitoringSamples(sensorType string, from, to time.Time, locations []string) ([]model.MonitoringReading, error)
}

// Associator joins ground monitoring data to rings. Surface response lags
// the excavation, so readings are taken from a window offset after the
// ring end rather than from the ring itself.
type Associator struct {
	store     MonitoringStore
	minLag    time.Duration
	maxLag    time.Duration
	locations []string
}

// NewAssociator builds an associator with the given lag window.
func NewAssociator(store MonitoringStore, minLag, maxLag time.Duration, locations []string) *Associator {
	if minLag == 0 && maxLag == 0 {
		minLag, maxLag = 6*time.Hour, 8*time.Hour
	}
	return &Associator{store: store, minLag: minLag, maxLag: maxLag, locations: locations}
}

// SettlementFeatures summarizes the lagged readings for one sensor type.
type SettlementFeatures struct {
	Value        *float64
	Max          *float64
	Min          *float64
	Std          *float64
	Median       *float64
	SensorCount  int
	ReadingCount int
}

// Associate aggregates readings of sensorType in the ring's lag window.
func (a *Associator) Associate(ringEnd time.Time, sensorType string) (SettlementFeatures, error) {
	return a.associateWindow(ringEnd.Add(a.minLag), ringEnd.Add(a.maxLag), sensorType)
}

// AssociateWithLag aggregates with an explicit lag, reading a two hour
// window starting at ringEnd+lag.
func (a *Associator) AssociateWithLag(ringEnd time.Time, sensorType string, lag time.Duration) (SettlementFeatures, error) {
	return a.associateWindow(ringEnd.Add(lag), ringEnd.Add(lag+2*time.Hour), sensorType)
}

func (a *Associator) associateWindow(from, to time.Time, sensorType string) (SettlementFeatures, error) {
	rows, err := a.store.MonitoringSamples(sensorType, from, to, a.locations)
	if err != nil {
		return SettlementFeatures{}, err
	}
	f := SettlementFeatures{ReadingCount: len(rows)}
	if len(rows) == 0 {
		return f, nil
	}
	values := make([]float64, len(rows))
	sensors := map[string]struct{}{}
	for i, r := range rows {
		values[i] = r.Value
		sensors[r.Location] = struct{}{}
	}
	f.SensorCount = len(sensors)
	f.Value = ptr(stat.Mean(values, nil))
	f.Max = ptr(maxOf(values))
	f.Min = ptr(minOf(values))
	f.Std = ptr(stdDev(values))
	if len(values) > 1 {
		f.Median = ptr(median(values))
	}
	return f, nil
}

func maxOf(values []float64) float64 {
	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

func minOf(values []float64) float64 {
	best := values[0]
	for _, v := range values[1:] {
		if v < best {
			best = v
		}
	}
	return best
}
