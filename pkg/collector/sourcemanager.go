// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package collector

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/buffer"
	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/quality"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

// SourceManager owns the configured collectors and routes their samples
// through the quality pipeline into the buffered writer.
type SourceManager struct {
	validator  *quality.Validator
	calibrator *quality.Calibrator
	writer     *buffer.Writer

	mu         sync.Mutex
	collectors map[string]Collector
	pipelines  map[string]*quality.Pipeline
	dataTypes  map[string]model.DataType
	assemblers map[string]*attitudeAssembler
	manual     *ManualCollector
	running    bool
	cancel     context.CancelFunc
}

// NewSourceManager builds the manager from the sources file. Disabled
// sources are skipped. Validation and calibration are shared across
// sources; each source gets its own interpolator sized to its expected
// sample interval.
func NewSourceManager(sources *config.SourcesFile, v *quality.Validator, c *quality.Calibrator, w *buffer.Writer) (*SourceManager, error) {
	m := &SourceManager{
		validator:  v,
		calibrator: c,
		writer:     w,
		collectors: map[string]Collector{},
		pipelines:  map[string]*quality.Pipeline{},
		dataTypes:  map[string]model.DataType{},
		assemblers: map[string]*attitudeAssembler{},
	}
	for _, src := range sources.Sources {
		if !src.Enabled {
			log.Infof("source %s disabled, skipping", src.ID)
			continue
		}
		if err := m.addSource(src); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *SourceManager) addSource(src config.SourceConfig) error {
	if _, dup := m.collectors[src.ID]; dup {
		return errors.Errorf("duplicate source id %q", src.ID)
	}

	dataType, err := parseDataType(src.DataType)
	if err != nil {
		return errors.Wrapf(err, "source %s", src.ID)
	}

	pipe := quality.NewPipeline(m.validator, m.calibrator,
		quality.NewInterpolator(src.SampleInterval, 0, 0))
	onSample := m.sampleFunc(src.ID, pipe)

	var coll Collector
	switch src.Type {
	case config.SourceOPCUA:
		coll = NewOPCUA(src, onSample)
	case config.SourceModbus:
		coll = NewModbus(src, onSample)
	case config.SourceREST:
		coll = NewREST(src, onSample)
	case config.SourceManual:
		manual := NewManual(src.ID, onSample)
		m.manual = manual
		coll = manual
	default:
		return errors.Errorf("source %s: unknown type %q", src.ID, src.Type)
	}

	m.collectors[src.ID] = coll
	m.pipelines[src.ID] = pipe
	m.dataTypes[src.ID] = dataType
	if dataType == model.DataTypeAttitude {
		m.assemblers[src.ID] = newAttitudeAssembler()
	}
	return nil
}

func parseDataType(s string) (model.DataType, error) {
	switch model.DataType(s) {
	case model.DataTypePLC, model.DataTypeAttitude, model.DataTypeMonitoring:
		return model.DataType(s), nil
	}
	return "", errors.Errorf("unknown data type %q", s)
}

// sampleFunc builds the callback a collector invokes per sample: run the
// quality pipeline, then buffer each resulting sample.
func (m *SourceManager) sampleFunc(sourceID string, pipe *quality.Pipeline) SampleFunc {
	return func(s model.Sample) {
		for _, processed := range pipe.Process(s) {
			m.route(sourceID, processed)
		}
	}
}

func (m *SourceManager) route(sourceID string, s model.Sample) {
	var e buffer.Entry
	switch m.dataTypes[sourceID] {
	case model.DataTypePLC:
		e = buffer.Entry{Type: model.DataTypePLC, Plc: &model.PlcReading{
			SourceID:    s.SourceID,
			Tag:         s.Tag,
			Value:       s.Value,
			Timestamp:   s.Timestamp,
			QualityFlag: s.QualityFlag,
		}}
	case model.DataTypeAttitude:
		reading := m.assemblers[sourceID].add(s)
		if reading == nil {
			return
		}
		e = buffer.Entry{Type: model.DataTypeAttitude, Attitude: reading}
	case model.DataTypeMonitoring:
		sensorType, location := splitMonitoringTag(s.Tag)
		e = buffer.Entry{Type: model.DataTypeMonitoring, Monitoring: &model.MonitoringReading{
			SourceID:    s.SourceID,
			SensorType:  sensorType,
			Location:    location,
			Value:       s.Value,
			Timestamp:   s.Timestamp,
			QualityFlag: s.QualityFlag,
		}}
	default:
		return
	}
	if err := m.writer.Write(e); err != nil {
		log.Warnf("source %s: buffering sample: %v", sourceID, err) //nolint:errcheck
	}
}

// splitMonitoringTag parses "sensor_type/location" tags; a tag without a
// slash becomes a sensor type with an unknown location.
func splitMonitoringTag(tag string) (sensorType, location string) {
	if sensorType, location, ok := strings.Cut(tag, "/"); ok {
		return sensorType, location
	}
	return tag, "unknown"
}

// Start launches every collector.
func (m *SourceManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	for id, coll := range m.collectors {
		if err := coll.Start(runCtx); err != nil {
			cancel()
			return errors.Wrapf(err, "starting source %s", id)
		}
		log.Infof("source %s started", id)
	}
	m.running = true
	return nil
}

// Stop terminates every collector.
func (m *SourceManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.cancel()
	for id, coll := range m.collectors {
		coll.Stop()
		log.Infof("source %s stopped", id)
	}
	m.running = false
}

// Running reports whether collection is active.
func (m *SourceManager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Manual returns the manual entry collector, nil when none is configured.
func (m *SourceManager) Manual() *ManualCollector {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manual
}

// SourceStatus describes one source for the health endpoint.
type SourceStatus struct {
	ID       string `json:"id"`
	DataType string `json:"data_type"`
	Healthy  bool   `json:"healthy"`
}

// Status reports per-source health.
func (m *SourceManager) Status() []SourceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SourceStatus, 0, len(m.collectors))
	for id, coll := range m.collectors {
		out = append(out, SourceStatus{
			ID:       id,
			DataType: string(m.dataTypes[id]),
			Healthy:  coll.Healthy(),
		})
	}
	return out
}

// Metrics aggregates the quality counters into one session report.
// Validation and calibration counters are shared across sources; the
// per-source interpolation counters are summed.
func (m *SourceManager) Metrics(checker *quality.Checker) quality.SessionMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg := quality.SessionMetrics{
		Validation:  m.validator.Stats(),
		Calibration: m.calibrator.Stats(),
	}
	for _, pipe := range m.pipelines {
		sm := pipe.Metrics(nil)
		agg.Interpolation.GapsDetected += sm.Interpolation.GapsDetected
		agg.Interpolation.ValuesInterpolated += sm.Interpolation.ValuesInterpolated
		agg.Interpolation.GapsTooLarge += sm.Interpolation.GapsTooLarge
	}
	if checker != nil {
		agg.Reasonable = checker.Stats()
	}
	total := agg.Validation.Total
	bad := agg.Validation.Rejected + agg.Interpolation.GapsTooLarge
	switch {
	case total == 0 || float64(bad)/float64(total) < 0.01:
		agg.OverallGrade = "high"
	case float64(bad)/float64(total) < 0.05:
		agg.OverallGrade = "medium"
	default:
		agg.OverallGrade = "low"
	}
	return agg
}

// attitudeAssembler folds per-tag angle samples into complete guidance
// snapshots. A snapshot is emitted when all fields for one timestamp have
// arrived, or when a newer timestamp displaces a partial one.
type attitudeAssembler struct {
	mu      sync.Mutex
	pending map[time.Time]*attitudePartial
}

type attitudePartial struct {
	reading model.AttitudeReading
	fields  map[string]struct{}
}

// attitudeFields must all arrive before a snapshot is emitted.
// axis_deviation is captured when the guidance system provides it but
// does not gate completion.
var attitudeFields = []string{"pitch", "roll", "yaw", "horizontal_deviation", "vertical_deviation"}

func newAttitudeAssembler() *attitudeAssembler {
	return &attitudeAssembler{pending: map[time.Time]*attitudePartial{}}
}

func (a *attitudeAssembler) add(s model.Sample) *model.AttitudeReading {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts := s.Timestamp.Truncate(time.Millisecond)
	p, ok := a.pending[ts]
	if !ok {
		p = &attitudePartial{
			reading: model.AttitudeReading{
				SourceID:    s.SourceID,
				Timestamp:   ts,
				QualityFlag: s.QualityFlag,
			},
			fields: map[string]struct{}{},
		}
		a.pending[ts] = p
	}

	switch s.Tag {
	case "pitch":
		p.reading.Pitch = s.Value
	case "roll":
		p.reading.Roll = s.Value
	case "yaw":
		p.reading.Yaw = s.Value
	case "horizontal_deviation":
		p.reading.HorizontalDeviation = s.Value
	case "vertical_deviation":
		p.reading.VerticalDeviation = s.Value
	case "axis_deviation":
		p.reading.AxisDeviation = s.Value
	default:
		return nil
	}
	if s.Tag != "axis_deviation" {
		p.fields[s.Tag] = struct{}{}
	}
	// Any non-raw sample downgrades the snapshot flag.
	if s.QualityFlag != model.QualityRaw {
		p.reading.QualityFlag = s.QualityFlag
	}

	if len(p.fields) < len(attitudeFields) {
		// Cap the number of partial snapshots kept around; drop the oldest.
		if len(a.pending) > 16 {
			var oldest time.Time
			for k := range a.pending {
				if oldest.IsZero() || k.Before(oldest) {
					oldest = k
				}
			}
			delete(a.pending, oldest)
		}
		return nil
	}
	delete(a.pending, ts)
	return &p.reading
}
