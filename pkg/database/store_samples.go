// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package database

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/model"
)

// InsertPlcBatch inserts PLC samples inside tx.
func InsertPlcBatch(tx *sqlx.Tx, rows []model.PlcReading) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := tx.NamedExec(`INSERT INTO plc_logs (source_id, tag, value, timestamp, quality_flag)
		VALUES (:source_id, :tag, :value, :timestamp, :quality_flag)`, rows)
	return errors.Wrap(err, "inserting plc batch")
}

// InsertAttitudeBatch inserts attitude samples inside tx.
func InsertAttitudeBatch(tx *sqlx.Tx, rows []model.AttitudeReading) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := tx.NamedExec(`INSERT INTO attitude_logs
		(source_id, timestamp, pitch, roll, yaw, horizontal_deviation, vertical_deviation, axis_deviation, quality_flag)
		VALUES (:source_id, :timestamp, :pitch, :roll, :yaw, :horizontal_deviation, :vertical_deviation, :axis_deviation, :quality_flag)`, rows)
	return errors.Wrap(err, "inserting attitude batch")
}

// InsertMonitoringBatch inserts monitoring samples inside tx.
func InsertMonitoringBatch(tx *sqlx.Tx, rows []model.MonitoringReading) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := tx.NamedExec(`INSERT INTO monitoring_logs
		(source_id, sensor_type, location, value, timestamp, quality_flag)
		VALUES (:source_id, :sensor_type, :location, :value, :timestamp, :quality_flag)`, rows)
	return errors.Wrap(err, "inserting monitoring batch")
}

// PlcSamples returns usable PLC samples for one tag in [from, to),
// ordered by timestamp.
func (m *Manager) PlcSamples(tag string, from, to time.Time) ([]model.PlcReading, error) {
	var rows []model.PlcReading
	err := m.db.Select(&rows, `SELECT id, source_id, tag, value, timestamp, quality_flag
		FROM plc_logs
		WHERE tag = ? AND timestamp >= ? AND timestamp < ?
		  AND quality_flag IN ('raw', 'interpolated', 'calibrated')
		ORDER BY timestamp`, tag, from, to)
	return rows, errors.Wrapf(err, "querying plc samples for %s", tag)
}

// PlcSamplesInWindow returns all usable PLC samples in [from, to) keyed by tag.
func (m *Manager) PlcSamplesInWindow(from, to time.Time) (map[string][]model.PlcReading, error) {
	var rows []model.PlcReading
	err := m.db.Select(&rows, `SELECT id, source_id, tag, value, timestamp, quality_flag
		FROM plc_logs
		WHERE timestamp >= ? AND timestamp < ?
		  AND quality_flag IN ('raw', 'interpolated', 'calibrated')
		ORDER BY timestamp`, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "querying plc window")
	}
	out := map[string][]model.PlcReading{}
	for _, r := range rows {
		out[r.Tag] = append(out[r.Tag], r)
	}
	return out, nil
}

// AttitudeSamples returns usable attitude rows in [from, to).
func (m *Manager) AttitudeSamples(from, to time.Time) ([]model.AttitudeReading, error) {
	var rows []model.AttitudeReading
	err := m.db.Select(&rows, `SELECT id, source_id, timestamp, pitch, roll, yaw,
			horizontal_deviation, vertical_deviation, axis_deviation, quality_flag
		FROM attitude_logs
		WHERE timestamp >= ? AND timestamp < ?
		  AND quality_flag IN ('raw', 'interpolated', 'calibrated')
		ORDER BY timestamp`, from, to)
	return rows, errors.Wrap(err, "querying attitude window")
}

// MonitoringSamples returns monitoring rows for a sensor type in [from, to),
// optionally restricted to locations.
func (m *Manager) MonitoringSamples(sensorType string, from, to time.Time, locations []string) ([]model.MonitoringReading, error) {
	query := `SELECT id, source_id, sensor_type, location, value, timestamp, quality_flag
		FROM monitoring_logs
		WHERE sensor_type = ? AND timestamp >= ? AND timestamp < ?`
	args := []interface{}{sensorType, from, to}
	if len(locations) > 0 {
		q, inArgs, err := sqlx.In(query+` AND location IN (?)`, sensorType, from, to, locations)
		if err != nil {
			return nil, errors.Wrap(err, "building monitoring query")
		}
		query, args = q, inArgs
	}
	query += ` ORDER BY timestamp`
	var rows []model.MonitoringReading
	err := m.db.Select(&rows, m.db.Rebind(query), args...)
	return rows, errors.Wrapf(err, "querying monitoring samples for %s", sensorType)
}

// RawCounts returns the number of stored rows per data type in [from, to).
func (m *Manager) RawCounts(from, to time.Time) (map[string]int, error) {
	out := map[string]int{}
	for table, key := range map[string]string{
		"plc_logs":        "plc",
		"attitude_logs":   "attitude",
		"monitoring_logs": "monitoring",
	} {
		var n int
		err := m.db.Get(&n, `SELECT COUNT(*) FROM `+table+` WHERE timestamp >= ? AND timestamp < ?`, from, to)
		if err != nil {
			return nil, errors.Wrapf(err, "counting %s", table)
		}
		out[key] = n
	}
	return out, nil
}
