// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package model

import "time"

// QualityFlag marks the provenance of a sample after the quality pipeline.
type QualityFlag string

// Quality flags, in pipeline order.
const (
	QualityRaw          QualityFlag = "raw"
	QualityCalibrated   QualityFlag = "calibrated"
	QualityInterpolated QualityFlag = "interpolated"
	QualityMissing      QualityFlag = "missing"
	QualityRejected     QualityFlag = "rejected"
)

// Usable reports whether a sample with this flag may enter ring aggregation.
func (f QualityFlag) Usable() bool {
	return f == QualityRaw || f == QualityCalibrated || f == QualityInterpolated
}

// Sample is a single tagged value read from a data source.
type Sample struct {
	SourceID     string      `db:"source_id" json:"source_id"`
	Tag          string      `db:"tag" json:"tag"`
	Value        float64     `db:"value" json:"value"`
	Timestamp    time.Time   `db:"timestamp" json:"timestamp"`
	QualityFlag  QualityFlag `db:"quality_flag" json:"quality_flag"`
	RejectReason string      `db:"reject_reason" json:"reject_reason,omitempty"`
}

// DataType routes buffered entries to their persistence table.
type DataType string

const (
	DataTypePLC        DataType = "plc"
	DataTypeAttitude   DataType = "attitude"
	DataTypeMonitoring DataType = "monitoring"
)

// PlcReading is a persisted PLC sample.
type PlcReading struct {
	ID          int64       `db:"id" json:"id"`
	SourceID    string      `db:"source_id" json:"source_id"`
	Tag         string      `db:"tag" json:"tag"`
	Value       float64     `db:"value" json:"value"`
	Timestamp   time.Time   `db:"timestamp" json:"timestamp"`
	QualityFlag QualityFlag `db:"quality_flag" json:"quality_flag"`
}

// AttitudeReading is a guidance system snapshot.
type AttitudeReading struct {
	ID                  int64     `db:"id" json:"id"`
	SourceID            string    `db:"source_id" json:"source_id"`
	Timestamp           time.Time `db:"timestamp" json:"timestamp"`
	Pitch               float64   `db:"pitch" json:"pitch"`
	Roll                float64   `db:"roll" json:"roll"`
	Yaw                 float64   `db:"yaw" json:"yaw"`
	HorizontalDeviation float64   `db:"horizontal_deviation" json:"horizontal_deviation"`
	VerticalDeviation   float64   `db:"vertical_deviation" json:"vertical_deviation"`
	AxisDeviation       float64   `db:"axis_deviation" json:"axis_deviation"`
	QualityFlag         QualityFlag `db:"quality_flag" json:"quality_flag"`
}

// MonitoringReading is a field instrumentation measurement, e.g. a
// settlement point, displacement gauge or groundwater level sensor.
type MonitoringReading struct {
	ID         int64     `db:"id" json:"id"`
	SourceID   string    `db:"source_id" json:"source_id"`
	SensorType string    `db:"sensor_type" json:"sensor_type"`
	Location   string    `db:"location" json:"location"`
	Value      float64   `db:"value" json:"value"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
	QualityFlag QualityFlag `db:"quality_flag" json:"quality_flag"`
}

// ManualLog is an operator-entered record.
type ManualLog struct {
	ID         int64     `db:"id" json:"id"`
	RingNumber *int      `db:"ring_number" json:"ring_number,omitempty"`
	Category   string    `db:"category" json:"category"`
	Content    string    `db:"content" json:"content"`
	Operator   string    `db:"operator" json:"operator"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
