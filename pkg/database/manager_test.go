// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package database

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotunnel/edge-agent/pkg/model"
)

func newTestDB(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func fp(v float64) *float64 { return &v }

func TestOpenAppliesSchema(t *testing.T) {
	m := newTestDB(t)
	require.NoError(t, m.Ping())

	// Migrations are idempotent, re-running them must not fail.
	require.NoError(t, m.migrate())
	require.NoError(t, m.Vacuum())
}

func TestThresholdZoneFallback(t *testing.T) {
	m := newTestDB(t)

	def := model.NewWarningThreshold("settlement_value", "_all")
	def.WarningUpper = fp(20)
	require.NoError(t, m.SaveThreshold(def))

	clay := model.NewWarningThreshold("settlement_value", "soft-clay")
	clay.WarningUpper = fp(12)
	require.NoError(t, m.SaveThreshold(clay))

	got, err := m.GetThreshold("settlement_value", "soft-clay")
	require.NoError(t, err)
	require.NotNil(t, got.WarningUpper)
	assert.InDelta(t, 12.0, *got.WarningUpper, 1e-9)

	// Unknown zone falls back to the catch-all row.
	got, err = m.GetThreshold("settlement_value", "sand")
	require.NoError(t, err)
	require.NotNil(t, got.WarningUpper)
	assert.InDelta(t, 20.0, *got.WarningUpper, 1e-9)
	assert.Equal(t, model.ChannelList{"mqtt", "email"}, got.WarningChannels)

	_, err = m.GetThreshold("unknown_indicator", "_all")
	assert.True(t, errors.Is(err, ErrThresholdConfigMissing))
}

func TestSaveThresholdUpserts(t *testing.T) {
	m := newTestDB(t)

	th := model.NewWarningThreshold("mean_thrust", "_all")
	th.AlarmUpper = fp(30000)
	require.NoError(t, m.SaveThreshold(th))
	th.AlarmUpper = fp(32000)
	require.NoError(t, m.SaveThreshold(th))

	rows, err := m.ListThresholds()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 32000.0, *rows[0].AlarmUpper, 1e-9)
}

func ringFixture(n int) *model.RingSummary {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Hour)
	return &model.RingSummary{
		RingNumber:           n,
		StartTime:            start,
		EndTime:              start.Add(45 * time.Minute),
		MeanThrust:           fp(12000 + float64(n)),
		SettlementValue:      fp(float64(n)),
		DataCompletenessFlag: model.CompletenessComplete,
		GeologicalZone:       "_all",
	}
}

func TestRingSummaryUpsertAndGet(t *testing.T) {
	m := newTestDB(t)

	s := ringFixture(100)
	require.NoError(t, m.UpsertRingSummary(s))

	got, err := m.GetRingSummary(100)
	require.NoError(t, err)
	assert.InDelta(t, 12100.0, *got.MeanThrust, 1e-9)

	// Second write with the same ring number updates in place.
	s.MeanThrust = fp(13000)
	require.NoError(t, m.UpsertRingSummary(s))
	got, err = m.GetRingSummary(100)
	require.NoError(t, err)
	assert.InDelta(t, 13000.0, *got.MeanThrust, 1e-9)

	_, err = m.GetRingSummary(999)
	assert.True(t, errors.Is(err, ErrRingNotFound))
}

func TestLatestAndRecentRingSummaries(t *testing.T) {
	m := newTestDB(t)

	_, err := m.LatestRingSummary()
	assert.True(t, errors.Is(err, ErrRingNotFound))

	for n := 100; n <= 104; n++ {
		require.NoError(t, m.UpsertRingSummary(ringFixture(n)))
	}

	latest, err := m.LatestRingSummary()
	require.NoError(t, err)
	assert.Equal(t, 104, latest.RingNumber)

	recent, err := m.RecentRingSummaries(103, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	// Newest first, bounded by the requested ring.
	assert.Equal(t, 103, recent[0].RingNumber)
	assert.Equal(t, 101, recent[2].RingNumber)
}

func TestListRingSummariesPagination(t *testing.T) {
	m := newTestDB(t)
	for n := 1; n <= 25; n++ {
		require.NoError(t, m.UpsertRingSummary(ringFixture(n)))
	}

	rows, total, err := m.ListRingSummaries(RingListFilter{Page: 2, PageSize: 10, SortDesc: true})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, rows, 10)
	assert.Equal(t, 15, rows[0].RingNumber)

	start := 5
	rows, total, err = m.ListRingSummaries(RingListFilter{StartRing: &start})
	require.NoError(t, err)
	assert.Equal(t, 21, total)
	assert.Equal(t, 5, rows[0].RingNumber)
}

func TestRingSyncFlags(t *testing.T) {
	m := newTestDB(t)
	require.NoError(t, m.UpsertRingSummary(ringFixture(100)))
	require.NoError(t, m.UpsertRingSummary(ringFixture(101)))

	unsynced, err := m.UnsyncedRings(10)
	require.NoError(t, err)
	assert.Len(t, unsynced, 2)

	require.NoError(t, m.MarkRingSynced(100))
	unsynced, err = m.UnsyncedRings(10)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, 101, unsynced[0].RingNumber)

	assert.True(t, errors.Is(m.MarkRingSynced(999), ErrRingNotFound))
}

func insertWarning(t *testing.T, m *Manager, id string, level model.WarningLevel) {
	t.Helper()
	w := &model.WarningEvent{
		WarningID:     id,
		RingNumber:    100,
		IndicatorName: "settlement_value",
		Zone:          "_all",
		Level:         level,
		WarningType:   model.WarningTypeThreshold,
		ThresholdType: model.ThresholdTypeUpper,
		Message:       "test",
		Status:        model.WarningStatusActive,
		Channels:      model.ChannelList{"mqtt"},
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, m.Transaction(func(tx *sqlx.Tx) error {
		return InsertWarningTx(tx, w)
	}))
}

func TestWarningLifecycle(t *testing.T) {
	m := newTestDB(t)
	insertWarning(t, m, "w-1", model.LevelAlarm)

	got, err := m.GetWarning("w-1")
	require.NoError(t, err)
	assert.Equal(t, model.WarningStatusActive, got.Status)
	assert.Equal(t, model.ChannelList{"mqtt"}, got.Channels)

	require.NoError(t, m.AcknowledgeWarning("w-1", "operator-zhang"))
	got, err = m.GetWarning("w-1")
	require.NoError(t, err)
	assert.Equal(t, model.WarningStatusAcknowledged, got.Status)
	assert.Equal(t, "operator-zhang", got.AcknowledgedBy)
	require.NotNil(t, got.AcknowledgedAt)

	// Only active warnings can be acknowledged.
	assert.Error(t, m.AcknowledgeWarning("w-1", "someone-else"))

	require.NoError(t, m.ResolveWarning("w-1", "engineer-li", "grout injection adjusted", false))
	got, err = m.GetWarning("w-1")
	require.NoError(t, err)
	assert.Equal(t, model.WarningStatusResolved, got.Status)
	assert.Equal(t, "grout injection adjusted", got.ResolutionNote)

	// Resolved is terminal.
	assert.Error(t, m.ResolveWarning("w-1", "again", "", false))
	assert.Error(t, m.ResolveWarning("w-1", "again", "", true))
}

func TestWarningFalsePositive(t *testing.T) {
	m := newTestDB(t)
	insertWarning(t, m, "w-1", model.LevelWarning)

	require.NoError(t, m.ResolveWarning("w-1", "engineer-li", "sensor drift, recalibrated", true))
	got, err := m.GetWarning("w-1")
	require.NoError(t, err)
	assert.Equal(t, model.WarningStatusFalsePositive, got.Status)
	assert.Equal(t, "engineer-li", got.ResolvedBy)
	require.NotNil(t, got.ResolvedAt)

	// False positive is terminal: no resolve, no acknowledge.
	assert.Error(t, m.ResolveWarning("w-1", "again", "", false))
	assert.Error(t, m.AcknowledgeWarning("w-1", "op"))
}

func TestWarningListAndStats(t *testing.T) {
	m := newTestDB(t)
	insertWarning(t, m, "w-1", model.LevelAlarm)
	insertWarning(t, m, "w-2", model.LevelWarning)
	insertWarning(t, m, "w-3", model.LevelWarning)
	require.NoError(t, m.AcknowledgeWarning("w-3", "op"))

	rows, total, err := m.ListWarnings(WarningListFilter{Level: string(model.LevelWarning)})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, rows, 2)

	rows, total, err = m.ListWarnings(WarningListFilter{Status: model.WarningStatusActive})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	byLevel, byStatus, err := m.WarningStats()
	require.NoError(t, err)
	assert.Equal(t, 1, byLevel[string(model.LevelAlarm)])
	assert.Equal(t, 2, byLevel[string(model.LevelWarning)])
	assert.Equal(t, 1, byStatus[model.WarningStatusAcknowledged])
}

func TestWorkOrders(t *testing.T) {
	m := newTestDB(t)
	insertWarning(t, m, "w-1", model.LevelAlarm)

	now := time.Now().UTC()
	o := &model.WorkOrder{
		OrderID:    "o-1",
		WarningID:  "w-1",
		RingNumber: 100,
		Category:   "settlement",
		Priority:   model.PriorityCritical,
		Status:     model.WorkOrderOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, m.InsertWorkOrder(o))

	exists, err := m.WorkOrderExistsForWarning("w-1")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = m.WorkOrderExistsForWarning("w-none")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, m.UpdateWorkOrderStatus("o-1", model.WorkOrderInProgress, "crew-a"))
	got, err := m.GetWorkOrder("o-1")
	require.NoError(t, err)
	assert.Equal(t, model.WorkOrderInProgress, got.Status)
	assert.Equal(t, "crew-a", got.AssignedTo)

	// Empty assignee keeps the previous one.
	require.NoError(t, m.UpdateWorkOrderStatus("o-1", model.WorkOrderDone, ""))
	got, err = m.GetWorkOrder("o-1")
	require.NoError(t, err)
	assert.Equal(t, "crew-a", got.AssignedTo)

	rows, err := m.ListWorkOrders(model.WorkOrderDone, "", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	assert.Error(t, m.UpdateWorkOrderStatus("o-missing", model.WorkOrderOpen, ""))
}

func TestManualLogsNewestFirst(t *testing.T) {
	m := newTestDB(t)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.InsertManualLog(&model.ManualLog{
			Category:  "shift",
			Content:   string(rune('a' + i)),
			Operator:  "op",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	rows, err := m.ListManualLogs(2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0].Content)
	assert.Equal(t, "b", rows[1].Content)
	assert.NotZero(t, rows[0].ID)
}

func TestPredictions(t *testing.T) {
	m := newTestDB(t)

	p, err := m.LatestPrediction(100, "settlement_value")
	require.NoError(t, err)
	assert.Nil(t, p)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, m.InsertPrediction(&model.Prediction{
		RingNumber: 100, Indicator: "settlement_value",
		PredictedValue: 12, CILower: 10, CIUpper: 14, Confidence: 0.9, HorizonHours: 24,
		CreatedAt: base,
	}))
	require.NoError(t, m.InsertPrediction(&model.Prediction{
		RingNumber: 100, Indicator: "settlement_value",
		PredictedValue: 15, CILower: 12, CIUpper: 18, Confidence: 0.85, HorizonHours: 24,
		CreatedAt: base.Add(time.Hour),
	}))

	p, err = m.LatestPrediction(100, "settlement_value")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.InDelta(t, 15.0, p.PredictedValue, 1e-9)
}

func TestSampleBatchesAndQueries(t *testing.T) {
	m := newTestDB(t)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	err := m.Transaction(func(tx *sqlx.Tx) error {
		if err := InsertPlcBatch(tx, []model.PlcReading{
			{SourceID: "plc-main", Tag: "thrust_total", Value: 12000, Timestamp: base, QualityFlag: model.QualityRaw},
			{SourceID: "plc-main", Tag: "thrust_total", Value: 12100, Timestamp: base.Add(time.Second), QualityFlag: model.QualityInterpolated},
			{SourceID: "plc-main", Tag: "thrust_total", Value: -1, Timestamp: base.Add(2 * time.Second), QualityFlag: model.QualityRejected},
			{SourceID: "plc-main", Tag: "torque_cutterhead", Value: 600, Timestamp: base, QualityFlag: model.QualityRaw},
		}); err != nil {
			return err
		}
		if err := InsertAttitudeBatch(tx, []model.AttitudeReading{
			{SourceID: "guidance", Timestamp: base, Pitch: 0.3, Roll: -0.1, Yaw: 45, HorizontalDeviation: 10, VerticalDeviation: 5, QualityFlag: model.QualityRaw},
		}); err != nil {
			return err
		}
		return InsertMonitoringBatch(tx, []model.MonitoringReading{
			{SourceID: "monitoring-gw", SensorType: "settlement", Location: "DB-101", Value: 4.2, Timestamp: base, QualityFlag: model.QualityRaw},
			{SourceID: "monitoring-gw", SensorType: "settlement", Location: "DB-102", Value: 3.8, Timestamp: base, QualityFlag: model.QualityRaw},
		})
	})
	require.NoError(t, err)

	// Rejected samples are excluded from reads.
	plc, err := m.PlcSamples("thrust_total", base, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, plc, 2)
	assert.Equal(t, model.QualityInterpolated, plc[1].QualityFlag)

	byTag, err := m.PlcSamplesInWindow(base, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, byTag["thrust_total"], 2)
	assert.Len(t, byTag["torque_cutterhead"], 1)

	att, err := m.AttitudeSamples(base, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, att, 1)

	mon, err := m.MonitoringSamples("settlement", base, base.Add(time.Minute), []string{"DB-101"})
	require.NoError(t, err)
	require.Len(t, mon, 1)
	assert.Equal(t, "DB-101", mon[0].Location)

	counts, err := m.RawCounts(base, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 4, counts["plc"])
	assert.Equal(t, 1, counts["attitude"])
	assert.Equal(t, 2, counts["monitoring"])
}
