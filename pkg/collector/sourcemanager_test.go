// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotunnel/edge-agent/pkg/buffer"
	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/quality"
)

type recordingSink struct {
	mu         sync.Mutex
	plc        []model.PlcReading
	attitude   []model.AttitudeReading
	monitoring []model.MonitoringReading
}

func (s *recordingSink) WriteBatch(plc []model.PlcReading, attitude []model.AttitudeReading, monitoring []model.MonitoringReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plc = append(s.plc, plc...)
	s.attitude = append(s.attitude, attitude...)
	s.monitoring = append(s.monitoring, monitoring...)
	return nil
}

func manualSource(id, dataType string) config.SourceConfig {
	return config.SourceConfig{
		ID:             id,
		Type:           config.SourceManual,
		Enabled:        true,
		DataType:       dataType,
		SampleInterval: time.Second,
	}
}

func newTestManager(t *testing.T, sink *recordingSink, sources ...config.SourceConfig) (*SourceManager, *buffer.Writer) {
	t.Helper()
	v := quality.NewValidator(&config.ThresholdsFile{})
	c := quality.NewCalibrator(&config.CalibrationsFile{})
	w := buffer.NewWriter(sink, 1000, 1000, time.Hour, buffer.DropOldest)
	m, err := NewSourceManager(&config.SourcesFile{Sources: sources}, v, c, w)
	require.NoError(t, err)
	return m, w
}

func TestSourceManagerValidation(t *testing.T) {
	v := quality.NewValidator(&config.ThresholdsFile{})
	c := quality.NewCalibrator(&config.CalibrationsFile{})
	w := buffer.NewWriter(&recordingSink{}, 10, 10, time.Hour, buffer.DropOldest)

	_, err := NewSourceManager(&config.SourcesFile{Sources: []config.SourceConfig{
		manualSource("a", "plc"),
		manualSource("a", "plc"),
	}}, v, c, w)
	assert.ErrorContains(t, err, "duplicate source id")

	_, err = NewSourceManager(&config.SourcesFile{Sources: []config.SourceConfig{
		manualSource("a", "telemetry"),
	}}, v, c, w)
	assert.ErrorContains(t, err, "unknown data type")

	bad := manualSource("a", "plc")
	bad.Type = "carrier-pigeon"
	_, err = NewSourceManager(&config.SourcesFile{Sources: []config.SourceConfig{bad}}, v, c, w)
	assert.ErrorContains(t, err, "unknown type")

	// Disabled sources are skipped entirely.
	off := manualSource("off", "plc")
	off.Enabled = false
	m, err := NewSourceManager(&config.SourcesFile{Sources: []config.SourceConfig{off}}, v, c, w)
	require.NoError(t, err)
	assert.Empty(t, m.Status())
	assert.Nil(t, m.Manual())
}

func TestManualIngestRoutesToPlc(t *testing.T) {
	sink := &recordingSink{}
	m, w := newTestManager(t, sink, manualSource("operator", "plc"))
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NotNil(t, m.Manual())
	m.Manual().Ingest("thrust_total", 12000, ts)
	require.NoError(t, w.Flush())

	require.Len(t, sink.plc, 1)
	assert.Equal(t, "operator", sink.plc[0].SourceID)
	assert.Equal(t, "thrust_total", sink.plc[0].Tag)
	assert.Equal(t, model.QualityRaw, sink.plc[0].QualityFlag)
}

func TestMonitoringTagSplit(t *testing.T) {
	sensorType, location := splitMonitoringTag("settlement/DB-101")
	assert.Equal(t, "settlement", sensorType)
	assert.Equal(t, "DB-101", location)

	sensorType, location = splitMonitoringTag("groundwater_level")
	assert.Equal(t, "groundwater_level", sensorType)
	assert.Equal(t, "unknown", location)
}

func TestMonitoringRouting(t *testing.T) {
	sink := &recordingSink{}
	m, w := newTestManager(t, sink, manualSource("field", "monitoring"))
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	m.Manual().Ingest("settlement/DB-101", 4.2, time.Now().UTC())
	require.NoError(t, w.Flush())

	require.Len(t, sink.monitoring, 1)
	assert.Equal(t, "settlement", sink.monitoring[0].SensorType)
	assert.Equal(t, "DB-101", sink.monitoring[0].Location)
}

func TestAttitudeAssembly(t *testing.T) {
	a := newAttitudeAssembler()
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	sample := func(tag string, v float64) model.Sample {
		return model.Sample{SourceID: "guidance", Tag: tag, Value: v, Timestamp: ts, QualityFlag: model.QualityRaw}
	}

	assert.Nil(t, a.add(sample("pitch", 0.3)))
	assert.Nil(t, a.add(sample("roll", -0.1)))
	assert.Nil(t, a.add(sample("yaw", 45)))
	assert.Nil(t, a.add(sample("horizontal_deviation", 10)))

	reading := a.add(sample("vertical_deviation", 5))
	require.NotNil(t, reading)
	assert.Equal(t, 0.3, reading.Pitch)
	assert.Equal(t, 45.0, reading.Yaw)
	assert.Equal(t, 5.0, reading.VerticalDeviation)
	assert.Equal(t, model.QualityRaw, reading.QualityFlag)

	// The completed snapshot is gone; a new field for the same timestamp
	// starts a fresh partial.
	assert.Nil(t, a.add(sample("pitch", 0.4)))
}

func TestAttitudeAssemblyCapturesAxisDeviation(t *testing.T) {
	a := newAttitudeAssembler()
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	sample := func(tag string, v float64) model.Sample {
		return model.Sample{SourceID: "guidance", Tag: tag, Value: v, Timestamp: ts, QualityFlag: model.QualityRaw}
	}

	// Axis deviation is recorded but does not count toward completion.
	assert.Nil(t, a.add(sample("axis_deviation", 8)))
	assert.Nil(t, a.add(sample("pitch", 0.3)))
	assert.Nil(t, a.add(sample("roll", -0.1)))
	assert.Nil(t, a.add(sample("yaw", 45)))
	assert.Nil(t, a.add(sample("horizontal_deviation", 10)))

	reading := a.add(sample("vertical_deviation", 5))
	require.NotNil(t, reading)
	assert.Equal(t, 8.0, reading.AxisDeviation)

	// Without an axis sample the snapshot still completes, axis zero.
	for _, tag := range []string{"pitch", "roll", "yaw", "horizontal_deviation"} {
		assert.Nil(t, a.add(sample(tag, 1)))
	}
	reading = a.add(sample("vertical_deviation", 1))
	require.NotNil(t, reading)
	assert.Equal(t, 0.0, reading.AxisDeviation)
}

func TestAttitudeAssemblyIgnoresUnknownTags(t *testing.T) {
	a := newAttitudeAssembler()
	s := model.Sample{SourceID: "guidance", Tag: "battery_voltage", Value: 12, Timestamp: time.Now(), QualityFlag: model.QualityRaw}
	assert.Nil(t, a.add(s))
}

func TestAttitudeAssemblyDowngradesQuality(t *testing.T) {
	a := newAttitudeAssembler()
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for _, tag := range []string{"pitch", "roll", "yaw", "horizontal_deviation"} {
		a.add(model.Sample{SourceID: "guidance", Tag: tag, Value: 1, Timestamp: ts, QualityFlag: model.QualityRaw})
	}
	reading := a.add(model.Sample{SourceID: "guidance", Tag: "vertical_deviation", Value: 1, Timestamp: ts, QualityFlag: model.QualityInterpolated})
	require.NotNil(t, reading)
	assert.Equal(t, model.QualityInterpolated, reading.QualityFlag)
}

func TestAttitudeAssemblyCapsPartials(t *testing.T) {
	a := newAttitudeAssembler()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	// Leave a trail of incomplete snapshots; the oldest get dropped.
	for i := 0; i < 40; i++ {
		a.add(model.Sample{
			SourceID:    "guidance",
			Tag:         "pitch",
			Value:       0.1,
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			QualityFlag: model.QualityRaw,
		})
	}
	a.mu.Lock()
	pending := len(a.pending)
	a.mu.Unlock()
	assert.LessOrEqual(t, pending, 17)
}

func TestSourceManagerMetricsGrade(t *testing.T) {
	sink := &recordingSink{}
	m, _ := newTestManager(t, sink, manualSource("operator", "plc"))
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	for i := 0; i < 10; i++ {
		m.Manual().Ingest("thrust_total", float64(10000+i), time.Now().UTC())
	}
	metrics := m.Metrics(nil)
	assert.Equal(t, int64(10), metrics.Validation.Total)
	assert.Equal(t, "high", metrics.OverallGrade)
}

func TestSourceManagerStartStop(t *testing.T) {
	sink := &recordingSink{}
	m, _ := newTestManager(t, sink, manualSource("operator", "plc"))

	assert.False(t, m.Running())
	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.Running())

	st := m.Status()
	require.Len(t, st, 1)
	assert.Equal(t, "operator", st[0].ID)
	assert.True(t, st[0].Healthy)

	m.Stop()
	assert.False(t, m.Running())
}
