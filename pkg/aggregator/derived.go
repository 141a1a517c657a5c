// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package aggregator

import (
	"math"
	"time"
)

// Machine holds the TBM geometry used by derived indicators.
type Machine struct {
	CutterheadDiameterM float64
	RingWidthM          float64
}

// DefaultMachine is a 6.2m EPB shield driving 1.5m rings.
func DefaultMachine() Machine {
	return Machine{CutterheadDiameterM: 6.2, RingWidthM: 1.5}
}

// ExcavationVolume returns the theoretical excavated volume per ring, m3.
func (m Machine) ExcavationVolume() float64 {
	r := m.CutterheadDiameterM / 2
	return math.Pi * r * r * m.RingWidthM
}

// tailVoidVolume estimates the annulus between the cut bore and the
// segment extrados over one ring.
func (m Machine) tailVoidVolume() float64 {
	overcutR := (m.CutterheadDiameterM + 0.1) / 2
	shieldR := (m.CutterheadDiameterM - 0.05) / 2
	return math.Pi * (overcutR*overcutR - shieldR*shieldR) * m.RingWidthM
}

// SpecificEnergy returns MJ/m3 from mean power (kW) over the ring
// duration, or nil when inputs are missing or non-positive.
func (m Machine) SpecificEnergy(meanPowerKW *float64, duration time.Duration) *float64 {
	if meanPowerKW == nil || *meanPowerKW <= 0 || duration <= 0 {
		return nil
	}
	volume := m.ExcavationVolume()
	if volume <= 0 {
		return nil
	}
	energyMJ := *meanPowerKW * duration.Hours() * 3.6
	v := energyMJ / volume
	return &v
}

// GroundLoss returns the grout volume in excess of the theoretical tail
// void, m3. Negative values mean under-grouting.
func (m Machine) GroundLoss(groutVolume *float64) *float64 {
	if groutVolume == nil || *groutVolume < 0 {
		return nil
	}
	v := *groutVolume - m.tailVoidVolume()
	return &v
}

// VolumeLossRatio returns ground loss as a percentage of the excavated
// volume, clamped at zero.
func (m Machine) VolumeLossRatio(groundLoss *float64) *float64 {
	if groundLoss == nil {
		return nil
	}
	volume := m.ExcavationVolume()
	if volume <= 0 {
		return nil
	}
	v := math.Max(*groundLoss, 0) / volume * 100
	return &v
}

// penetrationEfficiency returns advance per unit of thrust and power,
// scaled to a readable magnitude.
func penetrationEfficiency(advanceRate, thrust, power *float64) *float64 {
	if advanceRate == nil || thrust == nil || power == nil || *thrust <= 0 || *power <= 0 {
		return nil
	}
	v := (*advanceRate / 1000) / (*thrust * *power) * 1e6
	return &v
}

// torqueThrustRatio returns torque per unit thrust, nil on non-positive
// thrust.
func torqueThrustRatio(torque, thrust *float64) *float64 {
	if torque == nil || thrust == nil || *thrust <= 0 {
		return nil
	}
	v := *torque / *thrust
	return &v
}

// powerEfficiency returns the cutterhead share of total power draw.
func powerEfficiency(cutterheadPower, totalPower *float64) *float64 {
	if cutterheadPower == nil || totalPower == nil || *totalPower <= 0 {
		return nil
	}
	v := *cutterheadPower / *totalPower
	return &v
}
