// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package model

import (
	"time"
)

// WarningLevel is the severity tier of a warning event.
type WarningLevel string

const (
	LevelAttention WarningLevel = "ATTENTION"
	LevelWarning   WarningLevel = "WARNING"
	LevelAlarm     WarningLevel = "ALARM"
)

var levelRank = map[WarningLevel]int{
	LevelAttention: 1,
	LevelWarning:   2,
	LevelAlarm:     3,
}

// Rank returns the numeric severity of the level, higher is worse.
// Unknown levels rank 0.
func (l WarningLevel) Rank() int { return levelRank[l] }

// Warning types.
const (
	WarningTypeThreshold  = "threshold"
	WarningTypeRate       = "rate"
	WarningTypePredictive = "predictive"
	WarningTypeCombined   = "combined"
)

// Warning statuses. Resolved and false_positive are terminal.
const (
	WarningStatusActive        = "active"
	WarningStatusAcknowledged  = "acknowledged"
	WarningStatusResolved      = "resolved"
	WarningStatusFalsePositive = "false_positive"
)

// Threshold violation kinds.
const (
	ThresholdTypeLower   = "lower"
	ThresholdTypeUpper   = "upper"
	ThresholdTypeRange   = "range"
	ThresholdTypeUnknown = "unknown"
)

// WarningThreshold is the per-indicator warning configuration, optionally
// scoped to a geological zone. Zone "_all" applies everywhere.
type WarningThreshold struct {
	ID        int64  `db:"id" json:"id"`
	Indicator string `db:"indicator" json:"indicator"`
	Zone      string `db:"zone" json:"zone"`
	Enabled   bool   `db:"enabled" json:"enabled"`

	AttentionLower *float64 `db:"attention_lower" json:"attention_lower,omitempty"`
	AttentionUpper *float64 `db:"attention_upper" json:"attention_upper,omitempty"`
	WarningLower   *float64 `db:"warning_lower" json:"warning_lower,omitempty"`
	WarningUpper   *float64 `db:"warning_upper" json:"warning_upper,omitempty"`
	AlarmLower     *float64 `db:"alarm_lower" json:"alarm_lower,omitempty"`
	AlarmUpper     *float64 `db:"alarm_upper" json:"alarm_upper,omitempty"`

	RateWindowSize          int     `db:"rate_window_size" json:"rate_window_size"`
	RateAttentionMultiplier float64 `db:"rate_attention_multiplier" json:"rate_attention_multiplier"`
	RateWarningMultiplier   float64 `db:"rate_warning_multiplier" json:"rate_warning_multiplier"`
	RateAlarmMultiplier     float64 `db:"rate_alarm_multiplier" json:"rate_alarm_multiplier"`

	PredictiveEnabled   bool    `db:"predictive_enabled" json:"predictive_enabled"`
	PredictiveHorizonH  int     `db:"predictive_horizon_hours" json:"predictive_horizon_hours"`
	PredictiveThreshold float64 `db:"predictive_threshold_pct" json:"predictive_threshold_pct"`

	HysteresisPct      float64 `db:"hysteresis_pct" json:"hysteresis_pct"`
	MinDurationSeconds int     `db:"min_duration_seconds" json:"min_duration_seconds"`

	AttentionChannels ChannelList `db:"attention_channels" json:"attention_channels"`
	WarningChannels   ChannelList `db:"warning_channels" json:"warning_channels"`
	AlarmChannels     ChannelList `db:"alarm_channels" json:"alarm_channels"`
}

// NewWarningThreshold returns a threshold with the stock defaults.
func NewWarningThreshold(indicator, zone string) *WarningThreshold {
	return &WarningThreshold{
		Indicator:               indicator,
		Zone:                    zone,
		Enabled:                 true,
		RateWindowSize:          10,
		RateAttentionMultiplier: 2,
		RateWarningMultiplier:   3,
		RateAlarmMultiplier:     5,
		PredictiveEnabled:       true,
		PredictiveHorizonH:      24,
		PredictiveThreshold:     0.9,
		HysteresisPct:           0.05,
		MinDurationSeconds:      60,
		AttentionChannels:       ChannelList{"mqtt"},
		WarningChannels:         ChannelList{"mqtt", "email"},
		AlarmChannels:           ChannelList{"mqtt", "email", "sms"},
	}
}

// Bounds returns the lower and upper bound for a level.
func (t *WarningThreshold) Bounds(level WarningLevel) (lower, upper *float64) {
	switch level {
	case LevelAttention:
		return t.AttentionLower, t.AttentionUpper
	case LevelWarning:
		return t.WarningLower, t.WarningUpper
	case LevelAlarm:
		return t.AlarmLower, t.AlarmUpper
	}
	return nil, nil
}

// Channels returns the notification channels configured for a level.
func (t *WarningThreshold) Channels(level WarningLevel) ChannelList {
	switch level {
	case LevelAttention:
		return t.AttentionChannels
	case LevelWarning:
		return t.WarningChannels
	case LevelAlarm:
		return t.AlarmChannels
	}
	return nil
}

// WarningEvent is a persisted warning occurrence.
type WarningEvent struct {
	WarningID      string       `db:"warning_id" json:"warning_id"`
	RingNumber     int          `db:"ring_number" json:"ring_number"`
	IndicatorName  string       `db:"indicator_name" json:"indicator_name"`
	IndicatorValue *float64     `db:"indicator_value" json:"indicator_value,omitempty"`
	Zone           string       `db:"zone" json:"zone"`
	Level          WarningLevel `db:"level" json:"level"`
	WarningType    string       `db:"warning_type" json:"warning_type"`
	ThresholdValue *float64     `db:"threshold_value" json:"threshold_value,omitempty"`
	ThresholdType  string       `db:"threshold_type" json:"threshold_type"`
	Message        string       `db:"message" json:"message"`
	Status         string       `db:"status" json:"status"`

	PredictedValue *float64 `db:"predicted_value" json:"predicted_value,omitempty"`
	Confidence     *float64 `db:"confidence" json:"confidence,omitempty"`
	HorizonHours   *int     `db:"horizon_hours" json:"horizon_hours,omitempty"`

	SourceIndicators ChannelList `db:"source_indicators" json:"source_indicators,omitempty"`
	Channels         ChannelList `db:"channels" json:"channels"`

	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `db:"acknowledged_by" json:"acknowledged_by"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy     string     `db:"resolved_by" json:"resolved_by"`
	ResolutionNote string     `db:"resolution_note" json:"resolution_note"`
}
