// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/monitor"
	"github.com/gopcua/opcua/ua"
	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

// OPCUACollector subscribes to PLC tags on an OPC UA server. The
// connection is re-established with a fixed delay and all tags are
// resubscribed after a reconnect.
type OPCUACollector struct {
	cfg     config.SourceConfig
	onSample SampleFunc

	connected atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewOPCUA builds an OPC UA collector.
func NewOPCUA(cfg config.SourceConfig, onSample SampleFunc) *OPCUACollector {
	return &OPCUACollector{cfg: cfg, onSample: onSample}
}

// Name implements Collector.
func (c *OPCUACollector) Name() string { return c.cfg.ID }

// Healthy implements Collector.
func (c *OPCUACollector) Healthy() bool { return c.connected.Load() }

// Start implements Collector.
func (c *OPCUACollector) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.session(runCtx); err != nil && runCtx.Err() == nil {
				log.Errorf("opcua %s: session ended: %v", c.cfg.ID, err) //nolint:errcheck
			}
			c.connected.Store(false)
			select {
			case <-runCtx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()
	return nil
}

// Stop implements Collector.
func (c *OPCUACollector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// session connects, subscribes every configured tag and pumps value
// changes into the sample callback until the connection drops.
func (c *OPCUACollector) session(ctx context.Context) error {
	client, err := opcua.NewClient(c.cfg.Endpoint, opcua.SecurityMode(ua.MessageSecurityModeNone))
	if err != nil {
		return errors.Wrapf(ErrSourceUnavailable, "opcua client for %s: %v", c.cfg.Endpoint, err)
	}
	if err := client.Connect(ctx); err != nil {
		return errors.Wrapf(ErrSourceUnavailable, "connecting to %s: %v", c.cfg.Endpoint, err)
	}
	defer client.Close(ctx)

	m, err := monitor.NewNodeMonitor(client)
	if err != nil {
		return errors.Wrap(err, "creating node monitor")
	}

	nodeToTag := map[string]string{}
	nodes := make([]string, 0, len(c.cfg.NodeIDs))
	for tag, nodeID := range c.cfg.NodeIDs {
		nodeToTag[nodeID] = tag
		nodes = append(nodes, nodeID)
	}

	sub, err := m.Subscribe(ctx, &opcua.SubscriptionParameters{Interval: c.cfg.SampleInterval},
		func(_ *monitor.Subscription, msg *monitor.DataChangeMessage) {
			if msg.Error != nil {
				log.Warnf("opcua %s: data change error: %v", c.cfg.ID, msg.Error) //nolint:errcheck
				return
			}
			tag := nodeToTag[msg.NodeID.String()]
			if tag == "" {
				return
			}
			value, ok := numeric(msg.Value.Value())
			if !ok {
				samplesCollected.WithLabelValues(c.cfg.ID, "non_numeric").Inc()
				return
			}
			ts := msg.SourceTimestamp
			if ts.IsZero() {
				ts = time.Now().UTC()
			}
			samplesCollected.WithLabelValues(c.cfg.ID, "ok").Inc()
			c.onSample(model.Sample{
				SourceID:    c.cfg.ID,
				Tag:         tag,
				Value:       value,
				Timestamp:   ts,
				QualityFlag: model.QualityRaw,
			})
		}, nodes...)
	if err != nil {
		return errors.Wrap(err, "subscribing")
	}
	defer sub.Unsubscribe(ctx)

	c.connected.Store(true)
	log.Infof("opcua %s: subscribed %d tags on %s", c.cfg.ID, len(nodes), c.cfg.Endpoint)
	<-ctx.Done()
	return ctx.Err()
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int16:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint16:
		return float64(n), true
	case int:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
