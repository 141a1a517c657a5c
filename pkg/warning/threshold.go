// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package warning evaluates ring indicators against graded thresholds,
// rate-of-change limits and model forecasts, and emits warning events.
package warning

import (
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/geotunnel/edge-agent/pkg/model"
)

// Violation describes how a value breached a threshold tier.
type Violation struct {
	Level          model.WarningLevel
	ThresholdValue float64
	ThresholdType  string
}

// Evaluate checks a value against the tiers of a threshold config, most
// severe first, the lower bound of each tier before its upper bound.
// A nil result means the value is inside every configured bound.
func Evaluate(t *model.WarningThreshold, value float64) *Violation {
	for _, level := range []model.WarningLevel{model.LevelAlarm, model.LevelWarning, model.LevelAttention} {
		lower, upper := t.Bounds(level)
		if lower != nil && value < *lower {
			return &Violation{Level: level, ThresholdValue: *lower, ThresholdType: model.ThresholdTypeLower}
		}
		if upper != nil && value > *upper {
			return &Violation{Level: level, ThresholdValue: *upper, ThresholdType: model.ThresholdTypeUpper}
		}
	}
	return nil
}

// ThresholdStore loads threshold rows.
type ThresholdStore interface {
	GetThreshold(indicator, zone string) (*model.WarningThreshold, error)
}

// CachedThresholds wraps a ThresholdStore with a short-lived cache so the
// engine does not hit sqlite once per indicator per ring.
type CachedThresholds struct {
	store ThresholdStore
	cache *cache.Cache
}

// NewCachedThresholds builds the caching wrapper.
func NewCachedThresholds(store ThresholdStore) *CachedThresholds {
	return &CachedThresholds{
		store: store,
		cache: cache.New(time.Minute, 5*time.Minute),
	}
}

// GetThreshold implements ThresholdStore with caching. Misses are cached
// too, as a nil entry.
func (c *CachedThresholds) GetThreshold(indicator, zone string) (*model.WarningThreshold, error) {
	key := indicator + "|" + zone
	if v, found := c.cache.Get(key); found {
		if v == nil {
			return nil, nil
		}
		return v.(*model.WarningThreshold), nil
	}
	t, err := c.store.GetThreshold(indicator, zone)
	if err != nil {
		return nil, err
	}
	if t == nil {
		c.cache.Set(key, nil, cache.DefaultExpiration)
		return nil, nil
	}
	c.cache.Set(key, t, cache.DefaultExpiration)
	return t, nil
}

// Invalidate clears the cache, e.g. after a threshold update through the
// API.
func (c *CachedThresholds) Invalidate() {
	c.cache.Flush()
}
