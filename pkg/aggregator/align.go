// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package aggregator

import (
	"time"

	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/hook"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/telemetry"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

var ringsAligned = telemetry.NewCounter("aggregator", "rings_aligned_total",
	"Ring summaries produced", "completeness")

// Store is the database surface the aligner needs.
type Store interface {
	MonitoringStore
	PlcSamplesInWindow(from, to time.Time) (map[string][]model.PlcReading, error)
	AttitudeSamples(from, to time.Time) ([]model.AttitudeReading, error)
	UpsertRingSummary(s *model.RingSummary) error
}

// Aligner builds and persists one ring summary per detected window.
type Aligner struct {
	store      Store
	associator *Associator
	machine    Machine
	zone       string

	// PostAlign runs with the finished *model.RingSummary after upsert.
	PostAlign hook.List
}

// NewAligner builds an aligner.
func NewAligner(store Store, associator *Associator, machine Machine, zone string) *Aligner {
	return &Aligner{store: store, associator: associator, machine: machine, zone: zone}
}

// Align aggregates everything inside the window into a ring summary and
// upserts it.
func (a *Aligner) Align(w *model.RingWindow) (*model.RingSummary, error) {
	s := &model.RingSummary{
		RingNumber:     w.RingNumber,
		StartTime:      w.StartTime,
		EndTime:        w.EndTime,
		GeologicalZone: a.zone,
	}

	byTag, err := a.store.PlcSamplesInWindow(w.StartTime, w.EndTime)
	if err != nil {
		return nil, errors.Wrapf(err, "loading plc window for ring %d", w.RingNumber)
	}
	features := AggregatePlc(byTag)
	applyPlcFeatures(s, features)

	attRows, err := a.store.AttitudeSamples(w.StartTime, w.EndTime)
	if err != nil {
		return nil, errors.Wrapf(err, "loading attitude window for ring %d", w.RingNumber)
	}
	att := AggregateAttitude(attRows)
	s.MeanPitch = att.MeanPitch
	s.MeanRoll = att.MeanRoll
	s.MeanYaw = att.MeanYaw
	s.MaxPitch = att.MaxPitch
	s.MaxRoll = att.MaxRoll
	s.HorizontalDeviationMax = att.HorizontalDeviationMax
	s.VerticalDeviationMax = att.VerticalDeviationMax

	power := featurePtr(features, "mean_cutterhead_power")
	s.SpecificEnergy = a.machine.SpecificEnergy(power, w.Duration())
	groundLoss := a.machine.GroundLoss(s.MeanGroutVolume)
	s.GroundLossRate = groundLoss
	s.VolumeLossRatio = a.machine.VolumeLossRatio(groundLoss)
	s.TorqueThrustRatio = torqueThrustRatio(s.MeanTorque, s.MeanThrust)

	for sensorType, apply := range map[string]func(*model.RingSummary, *float64){
		"settlement":   func(s *model.RingSummary, v *float64) { s.SettlementValue = v },
		"displacement": func(s *model.RingSummary, v *float64) { s.DisplacementValue = v },
		"groundwater":  func(s *model.RingSummary, v *float64) { s.GroundwaterLevel = v },
	} {
		f, err := a.associator.Associate(w.EndTime, sensorType)
		if err != nil {
			log.Warnf("ring %d: associating %s failed: %v", w.RingNumber, sensorType, err) //nolint:errcheck
			continue
		}
		apply(s, f.Value)
	}

	s.DataCompletenessFlag = Completeness(s)

	if err := a.store.UpsertRingSummary(s); err != nil {
		return nil, errors.Wrapf(err, "persisting ring %d", w.RingNumber)
	}
	ringsAligned.WithLabelValues(s.DataCompletenessFlag).Inc()
	log.Infof("ring %d aligned: completeness=%s window=%s..%s",
		s.RingNumber, s.DataCompletenessFlag, w.StartTime.Format(time.RFC3339), w.EndTime.Format(time.RFC3339))
	a.PostAlign.Run(s)
	return s, nil
}

func featurePtr(features map[string]float64, name string) *float64 {
	if v, found := features[name]; found {
		return &v
	}
	return nil
}

func applyPlcFeatures(s *model.RingSummary, f map[string]float64) {
	assign := map[string]**float64{
		"mean_thrust_total":          &s.MeanThrust,
		"max_thrust_total":           &s.MaxThrust,
		"min_thrust_total":           &s.MinThrust,
		"std_thrust_total":           &s.StdThrust,
		"mean_torque_cutterhead":     &s.MeanTorque,
		"max_torque_cutterhead":      &s.MaxTorque,
		"min_torque_cutterhead":      &s.MinTorque,
		"std_torque_cutterhead":      &s.StdTorque,
		"mean_chamber_pressure":      &s.MeanChamberPressure,
		"max_chamber_pressure":       &s.MaxChamberPressure,
		"min_chamber_pressure":       &s.MinChamberPressure,
		"std_chamber_pressure":       &s.StdChamberPressure,
		"mean_advance_rate":          &s.MeanAdvanceRate,
		"max_advance_rate":           &s.MaxAdvanceRate,
		"min_advance_rate":           &s.MinAdvanceRate,
		"std_advance_rate":           &s.StdAdvanceRate,
		"mean_grout_pressure":        &s.MeanGroutPressure,
		"max_grout_pressure":         &s.MaxGroutPressure,
		"min_grout_pressure":         &s.MinGroutPressure,
		"std_grout_pressure":         &s.StdGroutPressure,
		"mean_grout_volume":          &s.MeanGroutVolume,
		"max_grout_volume":           &s.MaxGroutVolume,
		"min_grout_volume":           &s.MinGroutVolume,
		"std_grout_volume":           &s.StdGroutVolume,
		"mean_penetration_rate":      &s.MeanPenetrationRate,
	}
	for name, dst := range assign {
		if v, found := f[name]; found {
			value := v
			*dst = &value
		}
	}
}
