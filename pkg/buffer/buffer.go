// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package buffer decouples sample collection from sqlite writes with a
// bounded in-memory queue flushed in batches.
package buffer

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/telemetry"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

// ErrBufferFull is returned when a write is rejected by the overflow policy.
var ErrBufferFull = errors.New("buffer full")

// Overflow policies.
const (
	DropOldest = "drop_oldest"
	DropNewest = "drop_newest"
	Block      = "block"
)

var (
	bufferReceived = telemetry.NewCounter("buffer", "received_total", "Entries accepted into the buffer", "type")
	bufferWritten  = telemetry.NewCounter("buffer", "written_total", "Entries flushed to storage", "type")
	bufferDropped  = telemetry.NewCounter("buffer", "dropped_total", "Entries dropped by overflow policy", "type")
	bufferSize     = telemetry.NewGauge("buffer", "size", "Current buffered entry count")
)

// Entry is one buffered record.
type Entry struct {
	Type model.DataType
	// Exactly one of the following is set, matching Type.
	Plc        *model.PlcReading
	Attitude   *model.AttitudeReading
	Monitoring *model.MonitoringReading
}

// Sink persists grouped batches in one transaction.
type Sink interface {
	WriteBatch(plc []model.PlcReading, attitude []model.AttitudeReading, monitoring []model.MonitoringReading) error
}

// Writer is the buffering writer.
type Writer struct {
	maxSize        int
	flushThreshold int
	flushInterval  time.Duration
	policy         string
	sink           Sink
	clock          clock.Clock

	mu      sync.Mutex
	entries []Entry

	statsMu       sync.Mutex
	received      int64
	written       int64
	dropped       int64
	flushCount    int64
	lastFlushTime time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Option customizes a Writer.
type Option func(*Writer)

// WithClock substitutes the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(w *Writer) { w.clock = c }
}

// NewWriter builds a buffering writer.
func NewWriter(sink Sink, maxSize, flushThreshold int, flushInterval time.Duration, policy string, opts ...Option) *Writer {
	if policy == "" {
		policy = DropOldest
	}
	w := &Writer{
		maxSize:        maxSize,
		flushThreshold: flushThreshold,
		flushInterval:  flushInterval,
		policy:         policy,
		sink:           sink,
		clock:          clock.New(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start launches the periodic auto-flush loop.
func (w *Writer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	ticker := w.clock.Ticker(w.flushInterval)
	go func() {
		defer close(w.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.Flush(); err != nil {
					log.Errorf("periodic flush failed: %v", err) //nolint:errcheck
				}
			}
		}
	}()
}

// Stop terminates the flush loop and drains the buffer.
func (w *Writer) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	if err := w.Flush(); err != nil {
		log.Errorf("final flush failed: %v", err) //nolint:errcheck
	}
}

// Write queues one entry, applying the overflow policy when full. A flush
// is triggered asynchronously once the threshold is reached.
func (w *Writer) Write(e Entry) error {
	w.mu.Lock()
	if len(w.entries) >= w.maxSize {
		switch w.policy {
		case DropOldest:
			dropped := w.entries[0]
			w.entries = w.entries[1:]
			w.mu.Unlock()
			w.markDropped(dropped.Type)
			w.mu.Lock()
		default:
			// drop_newest and block both reject; there is no caller to
			// park for a blocking policy on this path.
			w.mu.Unlock()
			w.markDropped(e.Type)
			return errors.Wrapf(ErrBufferFull, "policy %s", w.policy)
		}
	}
	w.entries = append(w.entries, e)
	size := len(w.entries)
	w.mu.Unlock()

	bufferReceived.WithLabelValues(string(e.Type)).Inc()
	bufferSize.WithLabelValues().Set(float64(size))
	w.statsMu.Lock()
	w.received++
	w.statsMu.Unlock()

	if size >= w.flushThreshold {
		go func() {
			if err := w.Flush(); err != nil {
				log.Errorf("threshold flush failed: %v", err) //nolint:errcheck
			}
		}()
	}
	return nil
}

func (w *Writer) markDropped(t model.DataType) {
	bufferDropped.WithLabelValues(string(t)).Inc()
	w.statsMu.Lock()
	w.dropped++
	w.statsMu.Unlock()
}

// Flush groups the buffered entries by type and writes them in one
// transaction. On failure the entries are re-queued, newest dropped first
// if capacity was exceeded meanwhile.
func (w *Writer) Flush() error {
	w.mu.Lock()
	if len(w.entries) == 0 {
		w.mu.Unlock()
		return nil
	}
	batch := w.entries
	w.entries = nil
	w.mu.Unlock()

	var plc []model.PlcReading
	var attitude []model.AttitudeReading
	var monitoring []model.MonitoringReading
	for _, e := range batch {
		switch e.Type {
		case model.DataTypePLC:
			if e.Plc != nil {
				plc = append(plc, *e.Plc)
			}
		case model.DataTypeAttitude:
			if e.Attitude != nil {
				attitude = append(attitude, *e.Attitude)
			}
		case model.DataTypeMonitoring:
			if e.Monitoring != nil {
				monitoring = append(monitoring, *e.Monitoring)
			}
		}
	}

	if err := w.sink.WriteBatch(plc, attitude, monitoring); err != nil {
		w.requeue(batch)
		return errors.Wrap(err, "flushing buffer")
	}

	w.statsMu.Lock()
	w.written += int64(len(batch))
	w.flushCount++
	w.lastFlushTime = w.clock.Now()
	w.statsMu.Unlock()
	bufferWritten.WithLabelValues(string(model.DataTypePLC)).Add(float64(len(plc)))
	bufferWritten.WithLabelValues(string(model.DataTypeAttitude)).Add(float64(len(attitude)))
	bufferWritten.WithLabelValues(string(model.DataTypeMonitoring)).Add(float64(len(monitoring)))
	bufferSize.WithLabelValues().Set(float64(w.Len()))
	return nil
}

func (w *Writer) requeue(batch []Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	room := w.maxSize - len(w.entries)
	if room <= 0 {
		for _, e := range batch {
			bufferDropped.WithLabelValues(string(e.Type)).Inc()
		}
		w.statsMu.Lock()
		w.dropped += int64(len(batch))
		w.statsMu.Unlock()
		return
	}
	if len(batch) > room {
		for _, e := range batch[room:] {
			bufferDropped.WithLabelValues(string(e.Type)).Inc()
		}
		w.statsMu.Lock()
		w.dropped += int64(len(batch) - room)
		w.statsMu.Unlock()
		batch = batch[:room]
	}
	w.entries = append(batch, w.entries...)
}

// Len returns the current buffered entry count.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Stats is a snapshot of the writer counters.
type Stats struct {
	Received      int64     `json:"received"`
	Written       int64     `json:"written"`
	Dropped       int64     `json:"dropped"`
	DropRate      float64   `json:"drop_rate"`
	FlushCount    int64     `json:"flush_count"`
	LastFlushTime time.Time `json:"last_flush_time"`
	Utilization   float64   `json:"utilization"`
}

// Stats returns a snapshot of the writer counters.
func (w *Writer) Stats() Stats {
	w.statsMu.Lock()
	s := Stats{
		Received:      w.received,
		Written:       w.written,
		Dropped:       w.dropped,
		FlushCount:    w.flushCount,
		LastFlushTime: w.lastFlushTime,
	}
	w.statsMu.Unlock()
	if s.Received > 0 {
		s.DropRate = float64(s.Dropped) / float64(s.Received)
	}
	if w.maxSize > 0 {
		s.Utilization = float64(w.Len()) / float64(w.maxSize)
	}
	return s
}

// DatabaseSink adapts the database manager to the Sink interface.
type DatabaseSink struct {
	Writer TxWriter
}

// TxWriter is the slice of the database manager the sink needs.
type TxWriter interface {
	WriteSampleBatch(plc []model.PlcReading, attitude []model.AttitudeReading, monitoring []model.MonitoringReading) error
}

// WriteBatch implements Sink.
func (d DatabaseSink) WriteBatch(plc []model.PlcReading, attitude []model.AttitudeReading, monitoring []model.MonitoringReading) error {
	return d.Writer.WriteSampleBatch(plc, attitude, monitoring)
}
