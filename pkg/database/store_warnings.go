// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package database

import (
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/model"
)

// ErrThresholdConfigMissing is returned when no threshold row exists for
// an indicator in any applicable zone.
var ErrThresholdConfigMissing = errors.New("threshold config missing")

const thresholdColumns = `id, indicator, zone, enabled,
	attention_lower, attention_upper, warning_lower, warning_upper, alarm_lower, alarm_upper,
	rate_window_size, rate_attention_multiplier, rate_warning_multiplier, rate_alarm_multiplier,
	predictive_enabled, predictive_horizon_hours, predictive_threshold_pct,
	hysteresis_pct, min_duration_seconds,
	attention_channels, warning_channels, alarm_channels`

// GetThreshold returns the threshold config for an indicator, preferring
// an exact zone match and falling back to the "_all" zone.
func (m *Manager) GetThreshold(indicator, zone string) (*model.WarningThreshold, error) {
	var t model.WarningThreshold
	if zone != "" && zone != "_all" {
		err := m.db.Get(&t, `SELECT `+thresholdColumns+`
			FROM warning_thresholds WHERE indicator = ? AND zone = ?`, indicator, zone)
		if err == nil {
			return &t, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(err, "querying threshold %s/%s", indicator, zone)
		}
	}
	err := m.db.Get(&t, `SELECT `+thresholdColumns+`
		FROM warning_thresholds WHERE indicator = ? AND zone = '_all'`, indicator)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrThresholdConfigMissing, "indicator %s", indicator)
	}
	return &t, errors.Wrapf(err, "querying threshold %s/_all", indicator)
}

// ListThresholds returns every threshold row.
func (m *Manager) ListThresholds() ([]model.WarningThreshold, error) {
	var rows []model.WarningThreshold
	err := m.db.Select(&rows, `SELECT `+thresholdColumns+` FROM warning_thresholds ORDER BY indicator, zone`)
	return rows, errors.Wrap(err, "listing thresholds")
}

// SaveThreshold inserts or replaces a threshold row.
func (m *Manager) SaveThreshold(t *model.WarningThreshold) error {
	_, err := m.db.NamedExec(`INSERT INTO warning_thresholds
		(indicator, zone, enabled,
		 attention_lower, attention_upper, warning_lower, warning_upper, alarm_lower, alarm_upper,
		 rate_window_size, rate_attention_multiplier, rate_warning_multiplier, rate_alarm_multiplier,
		 predictive_enabled, predictive_horizon_hours, predictive_threshold_pct,
		 hysteresis_pct, min_duration_seconds,
		 attention_channels, warning_channels, alarm_channels)
		VALUES (:indicator, :zone, :enabled,
		 :attention_lower, :attention_upper, :warning_lower, :warning_upper, :alarm_lower, :alarm_upper,
		 :rate_window_size, :rate_attention_multiplier, :rate_warning_multiplier, :rate_alarm_multiplier,
		 :predictive_enabled, :predictive_horizon_hours, :predictive_threshold_pct,
		 :hysteresis_pct, :min_duration_seconds,
		 :attention_channels, :warning_channels, :alarm_channels)
		ON CONFLICT(indicator, zone) DO UPDATE SET
		 enabled = excluded.enabled,
		 attention_lower = excluded.attention_lower, attention_upper = excluded.attention_upper,
		 warning_lower = excluded.warning_lower, warning_upper = excluded.warning_upper,
		 alarm_lower = excluded.alarm_lower, alarm_upper = excluded.alarm_upper,
		 rate_window_size = excluded.rate_window_size,
		 rate_attention_multiplier = excluded.rate_attention_multiplier,
		 rate_warning_multiplier = excluded.rate_warning_multiplier,
		 rate_alarm_multiplier = excluded.rate_alarm_multiplier,
		 predictive_enabled = excluded.predictive_enabled,
		 predictive_horizon_hours = excluded.predictive_horizon_hours,
		 predictive_threshold_pct = excluded.predictive_threshold_pct,
		 hysteresis_pct = excluded.hysteresis_pct,
		 min_duration_seconds = excluded.min_duration_seconds,
		 attention_channels = excluded.attention_channels,
		 warning_channels = excluded.warning_channels,
		 alarm_channels = excluded.alarm_channels`, t)
	return errors.Wrapf(err, "saving threshold %s/%s", t.Indicator, t.Zone)
}

const warningColumns = `warning_id, ring_number, indicator_name, indicator_value, zone,
	level, warning_type, threshold_value, threshold_type, message, status,
	predicted_value, confidence, horizon_hours, source_indicators, channels,
	created_at, acknowledged_at, acknowledged_by, resolved_at, resolved_by, resolution_note`

// InsertWarningTx inserts a warning event inside tx.
func InsertWarningTx(tx *sqlx.Tx, w *model.WarningEvent) error {
	_, err := tx.NamedExec(`INSERT INTO warning_events (`+warningColumns+`)
		VALUES (:warning_id, :ring_number, :indicator_name, :indicator_value, :zone,
		 :level, :warning_type, :threshold_value, :threshold_type, :message, :status,
		 :predicted_value, :confidence, :horizon_hours, :source_indicators, :channels,
		 :created_at, :acknowledged_at, :acknowledged_by, :resolved_at, :resolved_by, :resolution_note)`, w)
	return errors.Wrapf(err, "inserting warning %s", w.WarningID)
}

// GetWarning returns one warning event.
func (m *Manager) GetWarning(id string) (*model.WarningEvent, error) {
	var w model.WarningEvent
	err := m.db.Get(&w, `SELECT `+warningColumns+` FROM warning_events WHERE warning_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Errorf("warning %s not found", id)
	}
	return &w, errors.Wrapf(err, "querying warning %s", id)
}

// WarningListFilter narrows ListWarnings.
type WarningListFilter struct {
	Ring      *int
	Level     string
	Status    string
	Indicator string
	Limit     int
	Offset    int
}

// ListWarnings returns warnings matching the filter, newest first.
func (m *Manager) ListWarnings(f WarningListFilter) ([]model.WarningEvent, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if f.Ring != nil {
		where = append(where, "ring_number = ?")
		args = append(args, *f.Ring)
	}
	if f.Level != "" {
		where = append(where, "level = ?")
		args = append(args, f.Level)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Indicator != "" {
		where = append(where, "indicator_name = ?")
		args = append(args, f.Indicator)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := m.db.Get(&total, `SELECT COUNT(*) FROM warning_events WHERE `+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting warnings")
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	args = append(args, f.Limit, f.Offset)
	var rows []model.WarningEvent
	err := m.db.Select(&rows, `SELECT `+warningColumns+` FROM warning_events
		WHERE `+cond+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	return rows, total, errors.Wrap(err, "listing warnings")
}

// AcknowledgeWarning marks an active warning as acknowledged.
func (m *Manager) AcknowledgeWarning(id, by string) error {
	res, err := m.db.Exec(`UPDATE warning_events
		SET status = ?, acknowledged_at = ?, acknowledged_by = ?
		WHERE warning_id = ? AND status = ?`,
		model.WarningStatusAcknowledged, time.Now().UTC(), by, id, model.WarningStatusActive)
	if err != nil {
		return errors.Wrapf(err, "acknowledging warning %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Errorf("warning %s not found or not active", id)
	}
	return nil
}

// ResolveWarning closes a warning as resolved or, when falsePositive is
// set, as a false positive. Both outcomes are terminal; a warning
// already in either state rejects the transition.
func (m *Manager) ResolveWarning(id, by, note string, falsePositive bool) error {
	status := model.WarningStatusResolved
	if falsePositive {
		status = model.WarningStatusFalsePositive
	}
	res, err := m.db.Exec(`UPDATE warning_events
		SET status = ?, resolved_at = ?, resolved_by = ?, resolution_note = ?
		WHERE warning_id = ? AND status NOT IN (?, ?)`,
		status, time.Now().UTC(), by, note, id,
		model.WarningStatusResolved, model.WarningStatusFalsePositive)
	if err != nil {
		return errors.Wrapf(err, "resolving warning %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Errorf("warning %s not found or already closed", id)
	}
	return nil
}

// WarningStats returns counts grouped by level and by status.
func (m *Manager) WarningStats() (map[string]int, map[string]int, error) {
	type bucket struct {
		Key string `db:"key"`
		N   int    `db:"n"`
	}
	byLevel := map[string]int{}
	var rows []bucket
	if err := m.db.Select(&rows, `SELECT level AS key, COUNT(*) AS n FROM warning_events GROUP BY level`); err != nil {
		return nil, nil, errors.Wrap(err, "warning stats by level")
	}
	for _, r := range rows {
		byLevel[r.Key] = r.N
	}
	byStatus := map[string]int{}
	rows = rows[:0]
	if err := m.db.Select(&rows, `SELECT status AS key, COUNT(*) AS n FROM warning_events GROUP BY status`); err != nil {
		return nil, nil, errors.Wrap(err, "warning stats by status")
	}
	for _, r := range rows {
		byStatus[r.Key] = r.N
	}
	return byLevel, byStatus, nil
}

// InsertPrediction stores a model forecast.
func (m *Manager) InsertPrediction(p *model.Prediction) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := m.db.NamedExec(`INSERT INTO predictions
		(ring_number, indicator, predicted_value, ci_lower, ci_upper, confidence, horizon_hours, created_at)
		VALUES (:ring_number, :indicator, :predicted_value, :ci_lower, :ci_upper, :confidence, :horizon_hours, :created_at)`, p)
	return errors.Wrap(err, "inserting prediction")
}

// LatestPrediction returns the most recent forecast for an indicator at a ring.
func (m *Manager) LatestPrediction(ring int, indicator string) (*model.Prediction, error) {
	var p model.Prediction
	err := m.db.Get(&p, `SELECT id, ring_number, indicator, predicted_value, ci_lower, ci_upper,
			confidence, horizon_hours, created_at
		FROM predictions WHERE ring_number = ? AND indicator = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, ring, indicator)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &p, errors.Wrapf(err, "querying prediction %s@%d", indicator, ring)
}
