// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package warning

import (
	"math"
	"sync"
	"time"

	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

// hysteresisState remembers the last emitted warning per indicator/zone.
type hysteresisState struct {
	Level     model.WarningLevel
	Value     float64
	Threshold float64
	Timestamp time.Time
	Indicator string
	Zone      string
}

// Hysteresis suppresses repeat warnings for values oscillating around a
// threshold. State is in-memory only; a restart starts clean.
type Hysteresis struct {
	mu    sync.Mutex
	state map[string]hysteresisState
}

// NewHysteresis builds an empty filter.
func NewHysteresis() *Hysteresis {
	return &Hysteresis{state: map[string]hysteresisState{}}
}

func stateKey(indicator, zone string) string { return indicator + "_" + zone }

// ShouldEmit decides whether a candidate warning passes the filter:
// first occurrence, escalation and de-escalation always pass; a repeat at
// the same level passes only when the value moved at least the hysteresis
// fraction of the previous threshold. Candidates without threshold
// information pass unfiltered but still record state.
func (h *Hysteresis) ShouldEmit(indicator, zone string, level model.WarningLevel, value float64, threshold *float64, hysteresisPct float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := stateKey(indicator, zone)
	prev, seen := h.state[key]
	emit := true
	if seen && prev.Level == level && threshold != nil && prev.Threshold != 0 {
		emit = math.Abs(value-prev.Value)/math.Abs(prev.Threshold) >= hysteresisPct
	}
	if emit {
		st := hysteresisState{
			Level:     level,
			Value:     value,
			Timestamp: time.Now(),
			Indicator: indicator,
			Zone:      zone,
		}
		if threshold != nil {
			st.Threshold = *threshold
		}
		h.state[key] = st
	}
	return emit
}

// Cleanup reconciles stored state with the current cycle. warnedKeys are
// the indicator/zone pairs with a candidate warning this cycle, whether
// or not the filter let it through; currentIndicators is
// the full indicator envelope; lookup resolves the active threshold
// config for an indicator (nil when missing or disabled); evaluate grades
// a current value.
func (h *Hysteresis) Cleanup(
	zone string,
	warnedKeys map[string]struct{},
	currentIndicators map[string]float64,
	lookup func(indicator string) *model.WarningThreshold,
) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key, st := range h.state {
		if _, warned := warnedKeys[key]; warned {
			continue
		}
		if st.Zone != zone {
			continue
		}
		value, present := currentIndicators[st.Indicator]
		if !present {
			// Indicator absent this cycle: keep state, it may return.
			continue
		}
		t := lookup(st.Indicator)
		if t == nil || !t.Enabled {
			delete(h.state, key)
			continue
		}
		if Evaluate(t, value) == nil {
			// Back inside every bound: clear so the next breach emits.
			delete(h.state, key)
			continue
		}
		// Still violating but the filter suppressed the repeat.
		log.Debugf("hysteresis holding %s in zone %s at level %s", st.Indicator, st.Zone, st.Level)
	}
}

// Len returns the number of tracked states.
func (h *Hysteresis) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.state)
}
