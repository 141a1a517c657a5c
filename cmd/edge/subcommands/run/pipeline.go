// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package run

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/aggregator"
	"github.com/geotunnel/edge-agent/pkg/database"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/notification"
	"github.com/geotunnel/edge-agent/pkg/ring"
	"github.com/geotunnel/edge-agent/pkg/util/log"
	"github.com/geotunnel/edge-agent/pkg/warning"
	"github.com/geotunnel/edge-agent/pkg/workorder"
)

// ringPipeline chains detection, aggregation, warning evaluation and work
// order generation for each completed ring.
type ringPipeline struct {
	db       *database.Manager
	detector *ring.Detector
	aligner  *aggregator.Aligner
	engine   *warning.Engine
	orders   *workorder.Generator
	mqtt     *notification.MQTTPublisher
	method   string
	fallback time.Duration
}

// alignDue looks for a completed ring since the last known boundary and
// processes it. When the configured signal yields nothing for longer than
// the fallback duration, a fixed-length window is cut instead.
func (p *ringPipeline) alignDue(ctx context.Context) error {
	now := time.Now().UTC()
	lastEnd := now.Add(-p.fallback)
	next := 1
	latest, err := p.db.LatestRingSummary()
	switch {
	case err == nil:
		lastEnd = latest.EndTime
		next = latest.RingNumber + 1
	case !errors.Is(err, database.ErrRingNotFound):
		return err
	}

	w, err := p.detect(lastEnd, now)
	if errors.Is(err, ring.ErrNoRingDetected) {
		// Only fall back once a full fallback window has elapsed with no
		// signal-based boundary.
		if now.Sub(lastEnd) < p.fallback {
			return nil
		}
		w = p.detector.FallbackWindow(lastEnd)
	} else if err != nil {
		return err
	}
	w.RingNumber = next
	return p.process(w)
}

func (p *ringPipeline) detect(from, to time.Time) (*model.RingWindow, error) {
	switch p.method {
	case ring.MethodAssembly:
		return p.detector.DetectAssembly(from, to)
	case ring.MethodTime:
		return nil, ring.ErrNoRingDetected
	default:
		return p.detector.DetectAdvance(from, to)
	}
}

// syncUnsynced pushes ring summaries that never reached the broker, e.g.
// because it was down when the ring completed. Published rings are marked
// synced.
func (p *ringPipeline) syncUnsynced(ctx context.Context) error {
	if p.mqtt == nil {
		return nil
	}
	rings, err := p.db.UnsyncedRings(50)
	if err != nil {
		return err
	}
	for i := range rings {
		if err := p.mqtt.PublishRingSummary(&rings[i]); err != nil {
			return errors.Wrapf(err, "syncing ring %d", rings[i].RingNumber)
		}
		if err := p.db.MarkRingSynced(rings[i].RingNumber); err != nil {
			return err
		}
	}
	if len(rings) > 0 {
		log.Infof("synced %d ring summaries to the broker", len(rings))
	}
	return nil
}

func (p *ringPipeline) process(w *model.RingWindow) error {
	summary, err := p.aligner.Align(w)
	if err != nil {
		return err
	}
	if p.mqtt != nil {
		if err := p.mqtt.PublishRingSummary(summary); err != nil {
			log.Warnf("publishing ring %d summary: %v", summary.RingNumber, err) //nolint:errcheck
		} else if err := p.db.MarkRingSynced(summary.RingNumber); err != nil {
			log.Warnf("marking ring %d synced: %v", summary.RingNumber, err) //nolint:errcheck
		}
	}

	events, err := p.engine.EvaluateRing(summary.RingNumber, summary.GeologicalZone, summary.Indicators())
	if err != nil {
		return err
	}
	for _, event := range events {
		order, err := p.orders.Generate(event, false)
		switch {
		case errors.Is(err, workorder.ErrNotEligible),
			errors.Is(err, database.ErrDuplicateWorkOrder):
			continue
		case err != nil:
			log.Errorf("work order for warning %s: %v", event.WarningID, err) //nolint:errcheck
		default:
			log.Infof("work order %s created for warning %s (%s)",
				order.OrderID, event.WarningID, order.Priority)
		}
	}
	return nil
}
