// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package quality

import (
	"sync"

	"github.com/geotunnel/edge-agent/pkg/telemetry"
)

var reasonablenessChecks = telemetry.NewCounter("quality", "reasonableness_checks_total",
	"Cross-signal consistency check outcomes", "rule", "result")

// Snapshot is one synchronized view of related process values used by
// cross-signal checks. Absent signals are nil.
type Snapshot struct {
	ThrustTotal       *float64 // kN
	PenetrationRate   *float64 // mm/min
	AdvanceRate       *float64 // mm/min
	TorqueCutterhead  *float64 // kNm
	ChamberPressure   *float64 // bar
	TunnelDepth       *float64 // m
	CutterheadPower   *float64 // kW
	TotalPower        *float64 // kW
	GroutVolume       *float64 // m3
	ExpectedGroutVol  *float64 // m3
}

// RuleResult is the outcome of one reasonableness rule.
type RuleResult struct {
	Rule   string `json:"rule"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Checker runs cross-signal consistency rules over snapshots.
type Checker struct {
	statsMu sync.Mutex
	byRule  map[string]*ruleStats
}

type ruleStats struct {
	Checked int64 `json:"checked"`
	Passed  int64 `json:"passed"`
	Failed  int64 `json:"failed"`
}

// NewChecker builds a checker with the stock rule set.
func NewChecker() *Checker {
	return &Checker{byRule: map[string]*ruleStats{}}
}

// Check runs every applicable rule against the snapshot.
func (c *Checker) Check(s Snapshot) []RuleResult {
	results := []RuleResult{}
	add := func(rule string, passed bool, detail string) {
		results = append(results, RuleResult{Rule: rule, Passed: passed, Detail: detail})
		c.record(rule, passed)
	}

	// Thrust per unit of penetration should stay within machine limits.
	if s.ThrustTotal != nil && s.PenetrationRate != nil {
		if *s.PenetrationRate > 0.01 {
			ratio := *s.ThrustTotal / *s.PenetrationRate
			if ratio >= 100 && ratio <= 2000 {
				add("thrust_penetration", true, "")
			} else {
				add("thrust_penetration", false, "thrust/penetration ratio outside [100, 2000]")
			}
		}
	}

	// Cutterhead torque tracks thrust.
	if s.TorqueCutterhead != nil && s.ThrustTotal != nil {
		if *s.ThrustTotal <= 0 {
			add("torque_thrust", false, "non-positive thrust with torque present")
		} else {
			ratio := *s.TorqueCutterhead / *s.ThrustTotal
			if ratio >= 0.01 && ratio <= 0.15 {
				add("torque_thrust", true, "")
			} else {
				add("torque_thrust", false, "torque/thrust ratio outside [0.01, 0.15]")
			}
		}
	}

	// Chamber pressure should roughly match overburden: 0.08-0.15 bar
	// per metre of depth.
	if s.ChamberPressure != nil && s.TunnelDepth != nil && *s.TunnelDepth > 0 {
		perMetre := *s.ChamberPressure / *s.TunnelDepth
		if perMetre >= 0.08 && perMetre <= 0.15 {
			add("chamber_pressure_depth", true, "")
		} else {
			add("chamber_pressure_depth", false, "chamber pressure inconsistent with depth")
		}
	}

	// Cutterhead power cannot exceed total power draw.
	if s.CutterheadPower != nil && s.TotalPower != nil && *s.TotalPower > 0 {
		if *s.CutterheadPower <= *s.TotalPower {
			add("power_consistency", true, "")
		} else {
			add("power_consistency", false, "cutterhead power exceeds total power")
		}
	}

	// Injected grout should be near the theoretical annulus volume.
	if s.GroutVolume != nil && s.ExpectedGroutVol != nil && *s.ExpectedGroutVol > 0 {
		ratio := *s.GroutVolume / *s.ExpectedGroutVol
		if ratio >= 0.7 && ratio <= 2.0 {
			add("grout_volume", true, "")
		} else {
			add("grout_volume", false, "grout volume far from theoretical annulus")
		}
	}

	return results
}

func (c *Checker) record(rule string, passed bool) {
	result := "failed"
	if passed {
		result = "passed"
	}
	reasonablenessChecks.WithLabelValues(rule, result).Inc()
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	st := c.byRule[rule]
	if st == nil {
		st = &ruleStats{}
		c.byRule[rule] = st
	}
	st.Checked++
	if passed {
		st.Passed++
	} else {
		st.Failed++
	}
}

// Stats returns per-rule counters.
func (c *Checker) Stats() map[string]map[string]int64 {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	out := map[string]map[string]int64{}
	for rule, st := range c.byRule {
		out[rule] = map[string]int64{"checked": st.Checked, "passed": st.Passed, "failed": st.Failed}
	}
	return out
}
