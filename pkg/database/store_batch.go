// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package database

import (
	"github.com/jmoiron/sqlx"

	"github.com/geotunnel/edge-agent/pkg/model"
)

// WriteSampleBatch persists one flush worth of samples in a single
// transaction.
func (m *Manager) WriteSampleBatch(plc []model.PlcReading, attitude []model.AttitudeReading, monitoring []model.MonitoringReading) error {
	return m.Transaction(func(tx *sqlx.Tx) error {
		if err := InsertPlcBatch(tx, plc); err != nil {
			return err
		}
		if err := InsertAttitudeBatch(tx, attitude); err != nil {
			return err
		}
		return InsertMonitoringBatch(tx, monitoring)
	})
}
