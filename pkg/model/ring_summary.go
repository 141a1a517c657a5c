// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package model

import "time"

// Completeness flags for a ring summary.
const (
	CompletenessComplete   = "complete"
	CompletenessPartial    = "partial"
	CompletenessIncomplete = "incomplete"
)

// RingWindow is a detected ring boundary pair.
type RingWindow struct {
	RingNumber int       `json:"ring_number"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Method     string    `json:"method"` // advance, assembly, time
}

// Duration returns the excavation duration of the window.
func (w RingWindow) Duration() time.Duration {
	return w.EndTime.Sub(w.StartTime)
}

// RingSummary holds per-ring aggregated features. Nullable columns use
// pointers so a missing feature stays NULL rather than zero.
type RingSummary struct {
	RingNumber int       `db:"ring_number" json:"ring_number"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	EndTime    time.Time `db:"end_time" json:"end_time"`

	MeanThrust          *float64 `db:"mean_thrust" json:"mean_thrust,omitempty"`
	MaxThrust           *float64 `db:"max_thrust" json:"max_thrust,omitempty"`
	MinThrust           *float64 `db:"min_thrust" json:"min_thrust,omitempty"`
	StdThrust           *float64 `db:"std_thrust" json:"std_thrust,omitempty"`
	MeanTorque          *float64 `db:"mean_torque" json:"mean_torque,omitempty"`
	MaxTorque           *float64 `db:"max_torque" json:"max_torque,omitempty"`
	MinTorque           *float64 `db:"min_torque" json:"min_torque,omitempty"`
	StdTorque           *float64 `db:"std_torque" json:"std_torque,omitempty"`
	MeanChamberPressure *float64 `db:"mean_chamber_pressure" json:"mean_chamber_pressure,omitempty"`
	MaxChamberPressure  *float64 `db:"max_chamber_pressure" json:"max_chamber_pressure,omitempty"`
	MinChamberPressure  *float64 `db:"min_chamber_pressure" json:"min_chamber_pressure,omitempty"`
	StdChamberPressure  *float64 `db:"std_chamber_pressure" json:"std_chamber_pressure,omitempty"`
	MeanAdvanceRate     *float64 `db:"mean_advance_rate" json:"mean_advance_rate,omitempty"`
	MaxAdvanceRate      *float64 `db:"max_advance_rate" json:"max_advance_rate,omitempty"`
	MinAdvanceRate      *float64 `db:"min_advance_rate" json:"min_advance_rate,omitempty"`
	StdAdvanceRate      *float64 `db:"std_advance_rate" json:"std_advance_rate,omitempty"`
	MeanGroutPressure   *float64 `db:"mean_grout_pressure" json:"mean_grout_pressure,omitempty"`
	MaxGroutPressure    *float64 `db:"max_grout_pressure" json:"max_grout_pressure,omitempty"`
	MinGroutPressure    *float64 `db:"min_grout_pressure" json:"min_grout_pressure,omitempty"`
	StdGroutPressure    *float64 `db:"std_grout_pressure" json:"std_grout_pressure,omitempty"`
	MeanGroutVolume     *float64 `db:"mean_grout_volume" json:"mean_grout_volume,omitempty"`
	MaxGroutVolume      *float64 `db:"max_grout_volume" json:"max_grout_volume,omitempty"`
	MinGroutVolume      *float64 `db:"min_grout_volume" json:"min_grout_volume,omitempty"`
	StdGroutVolume      *float64 `db:"std_grout_volume" json:"std_grout_volume,omitempty"`
	MeanPenetrationRate *float64 `db:"mean_penetration_rate" json:"mean_penetration_rate,omitempty"`

	MeanPitch              *float64 `db:"mean_pitch" json:"mean_pitch,omitempty"`
	MeanRoll               *float64 `db:"mean_roll" json:"mean_roll,omitempty"`
	MeanYaw                *float64 `db:"mean_yaw" json:"mean_yaw,omitempty"`
	MaxPitch               *float64 `db:"max_pitch" json:"max_pitch,omitempty"`
	MaxRoll                *float64 `db:"max_roll" json:"max_roll,omitempty"`
	HorizontalDeviationMax *float64 `db:"horizontal_deviation_max" json:"horizontal_deviation_max,omitempty"`
	VerticalDeviationMax   *float64 `db:"vertical_deviation_max" json:"vertical_deviation_max,omitempty"`

	SpecificEnergy    *float64 `db:"specific_energy" json:"specific_energy,omitempty"`
	GroundLossRate    *float64 `db:"ground_loss_rate" json:"ground_loss_rate,omitempty"`
	VolumeLossRatio   *float64 `db:"volume_loss_ratio" json:"volume_loss_ratio,omitempty"`
	TorqueThrustRatio *float64 `db:"torque_thrust_ratio" json:"torque_thrust_ratio,omitempty"`

	SettlementValue   *float64 `db:"settlement_value" json:"settlement_value,omitempty"`
	DisplacementValue *float64 `db:"displacement_value" json:"displacement_value,omitempty"`
	GroundwaterLevel  *float64 `db:"groundwater_level" json:"groundwater_level,omitempty"`

	DataCompletenessFlag string     `db:"data_completeness_flag" json:"data_completeness_flag"`
	GeologicalZone       string     `db:"geological_zone" json:"geological_zone"`
	SyncedToCloud        bool       `db:"synced_to_cloud" json:"synced_to_cloud"`
	CloudSyncAt          *time.Time `db:"cloud_sync_at" json:"cloud_sync_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// Indicators flattens the summary into the warning engine envelope.
// Only non-nil features are present.
func (r *RingSummary) Indicators() map[string]float64 {
	out := map[string]float64{}
	put := func(name string, v *float64) {
		if v != nil {
			out[name] = *v
		}
	}
	put("mean_thrust", r.MeanThrust)
	put("mean_torque", r.MeanTorque)
	put("mean_chamber_pressure", r.MeanChamberPressure)
	put("mean_advance_rate", r.MeanAdvanceRate)
	put("mean_grout_pressure", r.MeanGroutPressure)
	put("mean_grout_volume", r.MeanGroutVolume)
	put("mean_penetration_rate", r.MeanPenetrationRate)
	put("settlement_value", r.SettlementValue)
	put("displacement_value", r.DisplacementValue)
	put("groundwater_level", r.GroundwaterLevel)
	put("horizontal_deviation_max", r.HorizontalDeviationMax)
	put("vertical_deviation_max", r.VerticalDeviationMax)
	put("specific_energy", r.SpecificEnergy)
	put("volume_loss_ratio", r.VolumeLossRatio)
	put("torque_thrust_ratio", r.TorqueThrustRatio)
	return out
}

// Prediction is a model forecast for an indicator at a future ring.
type Prediction struct {
	ID             int64     `db:"id" json:"id"`
	RingNumber     int       `db:"ring_number" json:"ring_number"`
	Indicator      string    `db:"indicator" json:"indicator"`
	PredictedValue float64   `db:"predicted_value" json:"predicted_value"`
	CILower        float64   `db:"ci_lower" json:"ci_lower"`
	CIUpper        float64   `db:"ci_upper" json:"ci_upper"`
	Confidence     float64   `db:"confidence" json:"confidence"`
	HorizonHours   int       `db:"horizon_hours" json:"horizon_hours"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
