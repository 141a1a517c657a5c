// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultFor(results []RuleResult, rule string) *RuleResult {
	for i := range results {
		if results[i].Rule == rule {
			return &results[i]
		}
	}
	return nil
}

func TestCheckerThrustPenetration(t *testing.T) {
	c := NewChecker()

	res := resultFor(c.Check(Snapshot{ThrustTotal: f(12000), PenetrationRate: f(20)}), "thrust_penetration")
	require.NotNil(t, res)
	assert.True(t, res.Passed) // ratio 600

	res = resultFor(c.Check(Snapshot{ThrustTotal: f(12000), PenetrationRate: f(1)}), "thrust_penetration")
	require.NotNil(t, res)
	assert.False(t, res.Passed) // ratio 12000

	// Near-zero penetration skips the rule rather than dividing by noise.
	res = resultFor(c.Check(Snapshot{ThrustTotal: f(12000), PenetrationRate: f(0.001)}), "thrust_penetration")
	assert.Nil(t, res)
}

func TestCheckerTorqueThrust(t *testing.T) {
	c := NewChecker()

	res := resultFor(c.Check(Snapshot{TorqueCutterhead: f(600), ThrustTotal: f(12000)}), "torque_thrust")
	require.NotNil(t, res)
	assert.True(t, res.Passed) // ratio 0.05

	res = resultFor(c.Check(Snapshot{TorqueCutterhead: f(600), ThrustTotal: f(0)}), "torque_thrust")
	require.NotNil(t, res)
	assert.False(t, res.Passed)
}

func TestCheckerChamberPressureDepth(t *testing.T) {
	c := NewChecker()

	res := resultFor(c.Check(Snapshot{ChamberPressure: f(2.0), TunnelDepth: f(20)}), "chamber_pressure_depth")
	require.NotNil(t, res)
	assert.True(t, res.Passed) // 0.1 bar/m

	res = resultFor(c.Check(Snapshot{ChamberPressure: f(5.0), TunnelDepth: f(20)}), "chamber_pressure_depth")
	require.NotNil(t, res)
	assert.False(t, res.Passed)
}

func TestCheckerPowerAndGrout(t *testing.T) {
	c := NewChecker()

	res := resultFor(c.Check(Snapshot{CutterheadPower: f(900), TotalPower: f(800)}), "power_consistency")
	require.NotNil(t, res)
	assert.False(t, res.Passed)

	res = resultFor(c.Check(Snapshot{GroutVolume: f(6), ExpectedGroutVol: f(5)}), "grout_volume")
	require.NotNil(t, res)
	assert.True(t, res.Passed) // ratio 1.2

	stats := c.Stats()
	assert.Equal(t, int64(1), stats["grout_volume"]["passed"])
	assert.Equal(t, int64(1), stats["power_consistency"]["failed"])
}
