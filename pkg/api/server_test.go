// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotunnel/edge-agent/pkg/buffer"
	"github.com/geotunnel/edge-agent/pkg/collector"
	"github.com/geotunnel/edge-agent/pkg/config"
	"github.com/geotunnel/edge-agent/pkg/database"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/quality"
	"github.com/geotunnel/edge-agent/pkg/scheduler"
	"github.com/geotunnel/edge-agent/pkg/warning"
	"github.com/geotunnel/edge-agent/pkg/workorder"
)

type nopSink struct{}

func (nopSink) WriteBatch([]model.PlcReading, []model.AttitudeReading, []model.MonitoringReading) error {
	return nil
}

func newTestServer(t *testing.T) (*Server, *database.Manager) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	v := quality.NewValidator(&config.ThresholdsFile{})
	c := quality.NewCalibrator(&config.CalibrationsFile{})
	w := buffer.NewWriter(nopSink{}, 100, 100, time.Hour, buffer.DropOldest)
	sources, err := collector.NewSourceManager(&config.SourcesFile{Sources: []config.SourceConfig{{
		ID:             "operator",
		Type:           config.SourceManual,
		Enabled:        true,
		DataType:       "plc",
		SampleInterval: time.Second,
	}}}, v, c, w)
	require.NoError(t, err)

	s := NewServer("127.0.0.1:0", Deps{
		DB:         db,
		Sources:    sources,
		Buffer:     w,
		Scheduler:  scheduler.New(),
		Thresholds: warning.NewCachedThresholds(warning.DBThresholds{DB: db}),
		Orders:     workorder.NewGenerator(db),
		Version:    "test",
	})
	return s, db
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func insertTestWarning(t *testing.T, db *database.Manager, id string, level model.WarningLevel) {
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
	require.NoError(t, db.Transaction(func(tx *sqlx.Tx) error {
		return database.InsertWarningTx(tx, w)
	}))
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Contains(t, body, "buffer")
	assert.Contains(t, body, "quality")
}

func TestThresholdRoundtrip(t *testing.T) {
	s, _ := newTestServer(t)

	upper := 20.0
	th := model.NewWarningThreshold("settlement_value", "")
	th.WarningUpper = &upper
	rec := doRequest(t, s, http.MethodPut, "/api/v1/thresholds", th)
	require.Equal(t, http.StatusOK, rec.Code)

	var saved model.WarningThreshold
	decode(t, rec, &saved)
	assert.Equal(t, "_all", saved.Zone)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/thresholds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Thresholds []model.WarningThreshold `json:"thresholds"`
	}
	decode(t, rec, &listed)
	require.Len(t, listed.Thresholds, 1)
	assert.InDelta(t, 20.0, *listed.Thresholds[0].WarningUpper, 1e-9)

	rec = doRequest(t, s, http.MethodPut, "/api/v1/thresholds", map[string]string{"zone": "_all"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRingEndpoints(t *testing.T) {
	s, db := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/rings/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	thrust := 12000.0
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, db.UpsertRingSummary(&model.RingSummary{
		RingNumber:           100,
		StartTime:            start,
		EndTime:              start.Add(45 * time.Minute),
		MeanThrust:           &thrust,
		DataCompletenessFlag: model.CompletenessComplete,
		GeologicalZone:       "_all",
	}))

	rec = doRequest(t, s, http.MethodGet, "/api/v1/rings/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var latest model.RingSummary
	decode(t, rec, &latest)
	assert.Equal(t, 100, latest.RingNumber)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/rings/100", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, s, http.MethodGet, "/api/v1/rings/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/rings?completeness=complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Rings []model.RingSummary `json:"rings"`
		Total int                 `json:"total"`
	}
	decode(t, rec, &listed)
	assert.Equal(t, 1, listed.Total)
}

func TestWarningLifecycleOverHTTP(t *testing.T) {
	s, db := newTestServer(t)
	insertTestWarning(t, db, "w-1", model.LevelAlarm)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/warnings/w-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/warnings/w-1/acknowledge", map[string]string{"by": "op"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Already acknowledged.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/warnings/w-1/acknowledge", map[string]string{"by": "op"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/warnings/w-1/acknowledge", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/warnings/w-1/resolve",
		map[string]string{"by": "engineer", "note": "grouting adjusted"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Resolved is terminal, even for a false-positive request.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/warnings/w-1/resolve",
		map[string]interface{}{"by": "engineer", "mark_as_false_positive": true})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/warnings/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		ByStatus map[string]int `json:"by_status"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.ByStatus[model.WarningStatusResolved])
}

func TestWarningFalsePositiveOverHTTP(t *testing.T) {
	s, db := newTestServer(t)
	insertTestWarning(t, db, "w-1", model.LevelWarning)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/warnings/w-1/resolve",
		map[string]interface{}{"by": "engineer", "note": "sensor drift", "mark_as_false_positive": true})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	decode(t, rec, &resp)
	assert.Equal(t, model.WarningStatusFalsePositive, resp["status"])

	got, err := db.GetWarning("w-1")
	require.NoError(t, err)
	assert.Equal(t, model.WarningStatusFalsePositive, got.Status)

	// Terminal in both directions.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/warnings/w-1/resolve",
		map[string]string{"by": "engineer"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = doRequest(t, s, http.MethodPost, "/api/v1/warnings/w-1/acknowledge",
		map[string]string{"by": "op"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWorkOrderFromWarning(t *testing.T) {
	s, db := newTestServer(t)
	insertTestWarning(t, db, "w-1", model.LevelAlarm)
	insertTestWarning(t, db, "w-2", model.LevelAttention)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/work-orders/from-warning/w-1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var order model.WorkOrder
	decode(t, rec, &order)
	assert.Equal(t, "settlement", order.Category)

	// Second attempt is deduplicated.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/work-orders/from-warning/w-1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Attention-level warnings are not eligible without force.
	rec = doRequest(t, s, http.MethodPost, "/api/v1/work-orders/from-warning/w-2", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = doRequest(t, s, http.MethodPost, "/api/v1/work-orders/from-warning/w-2?force=true", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/work-orders/from-warning/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodPatch, "/api/v1/work-orders/"+order.OrderID+"/status",
		map[string]string{"status": model.WorkOrderInProgress, "assigned_to": "crew-a"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodPatch, "/api/v1/work-orders/"+order.OrderID+"/status",
		map[string]string{"status": "paused"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/manual-logs", map[string]string{
		"category": "shift", "content": "cutterhead inspection done", "operator": "op",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/manual-logs", map[string]string{"category": "shift"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/manual-logs?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Logs []model.ManualLog `json:"logs"`
	}
	decode(t, rec, &logs)
	assert.Len(t, logs.Logs, 1)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/manual-readings",
		map[string]interface{}{"tag": "thrust_total", "value": 12000})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/manual-readings", map[string]interface{}{"value": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCollectionControl(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/control/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Collecting bool `json:"collecting"`
	}
	decode(t, rec, &status)
	assert.False(t, status.Collecting)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/control/collection/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, s, http.MethodPost, "/api/v1/control/collection/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/control/status", nil)
	decode(t, rec, &status)
	assert.True(t, status.Collecting)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/control/collection/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
