// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

// restMaxRetries bounds the backoff per poll cycle.
const restMaxRetries = 3

// RESTCollector polls JSON endpoints of auxiliary site systems (guidance,
// monitoring gateways). Each endpoint runs its own poll task.
type RESTCollector struct {
	cfg      config.SourceConfig
	onSample SampleFunc
	client   *http.Client

	healthy atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewREST builds a REST polling collector.
func NewREST(cfg config.SourceConfig, onSample SampleFunc) *RESTCollector {
	return &RESTCollector{
		cfg:      cfg,
		onSample: onSample,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Name implements Collector.
func (c *RESTCollector) Name() string { return c.cfg.ID }

// Healthy implements Collector.
func (c *RESTCollector) Healthy() bool { return c.healthy.Load() }

// Start implements Collector.
func (c *RESTCollector) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	for _, ep := range c.cfg.Endpoints {
		ep := ep
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.pollEndpoint(runCtx, ep)
		}()
	}
	return nil
}

// Stop implements Collector.
func (c *RESTCollector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *RESTCollector) pollEndpoint(ctx context.Context, ep config.EndpointSpec) {
	interval := ep.Interval
	if interval <= 0 {
		interval = c.cfg.SampleInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.fetchWithRetry(ctx, ep); err != nil {
				c.healthy.Store(false)
				log.Warnf("rest %s/%s: poll failed: %v", c.cfg.ID, ep.Name, err) //nolint:errcheck
			} else {
				c.healthy.Store(true)
			}
		}
	}
}

func (c *RESTCollector) fetchWithRetry(ctx context.Context, ep config.EndpointSpec) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), restMaxRetries), ctx)
	return backoff.Retry(func() error {
		return c.fetchOnce(ctx, ep)
	}, policy)
}

func (c *RESTCollector) fetchOnce(ctx context.Context, ep config.EndpointSpec) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+ep.Path, nil)
	if err != nil {
		return backoff.Permanent(errors.Wrap(err, "building request"))
	}
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(ErrSourceUnavailable, "%s: %v", ep.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrSourceUnavailable, "%s returned %s", ep.Path, resp.Status)
	}

	// The endpoint returns a flat tag->value object, with an optional
	// timestamp field.
	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return backoff.Permanent(errors.Wrapf(err, "decoding %s", ep.Path))
	}

	ts := time.Now().UTC()
	if raw, found := payload["timestamp"]; found {
		if str, ok := raw.(string); ok {
			if parsed, err := time.Parse(time.RFC3339, str); err == nil {
				ts = parsed
			}
		}
	}

	wanted := map[string]struct{}{}
	for _, tag := range ep.Tags {
		wanted[tag] = struct{}{}
	}
	for key, raw := range payload {
		if len(wanted) > 0 {
			if _, ok := wanted[key]; !ok {
				continue
			}
		} else if key == "timestamp" {
			continue
		}
		value, ok := raw.(float64)
		if !ok {
			continue
		}
		samplesCollected.WithLabelValues(c.cfg.ID, "ok").Inc()
		c.onSample(model.Sample{
			SourceID:    c.cfg.ID,
			Tag:         key,
			Value:       value,
			Timestamp:   ts,
			QualityFlag: model.QualityRaw,
		})
	}
	return nil
}
