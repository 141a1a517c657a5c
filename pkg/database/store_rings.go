// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/model"
)

// ErrRingNotFound is returned when a ring summary does not exist.
var ErrRingNotFound = errors.New("ring not found")

const ringSummaryColumns = `ring_number, start_time, end_time,
	mean_thrust, max_thrust, min_thrust, std_thrust,
	mean_torque, max_torque, min_torque, std_torque,
	mean_chamber_pressure, max_chamber_pressure, min_chamber_pressure, std_chamber_pressure,
	mean_advance_rate, max_advance_rate, min_advance_rate, std_advance_rate,
	mean_grout_pressure, max_grout_pressure, min_grout_pressure, std_grout_pressure,
	mean_grout_volume, max_grout_volume, min_grout_volume, std_grout_volume,
	mean_penetration_rate, mean_pitch, mean_roll, mean_yaw, max_pitch, max_roll,
	horizontal_deviation_max, vertical_deviation_max,
	specific_energy, ground_loss_rate, volume_loss_ratio, torque_thrust_ratio,
	settlement_value, displacement_value, groundwater_level,
	data_completeness_flag, geological_zone, synced_to_cloud, cloud_sync_at,
	created_at, updated_at`

// UpsertRingSummary inserts the summary, or updates it when the ring
// already exists.
func (m *Manager) UpsertRingSummary(s *model.RingSummary) error {
	now := time.Now().UTC()
	s.UpdatedAt = now
	var exists int
	if err := m.db.Get(&exists, `SELECT COUNT(*) FROM ring_summaries WHERE ring_number = ?`, s.RingNumber); err != nil {
		return errors.Wrap(err, "checking ring summary existence")
	}
	if exists == 0 {
		s.CreatedAt = now
		cols := strings.ReplaceAll(ringSummaryColumns, "\n", " ")
		named := ":" + strings.Join(splitColumns(cols), ", :")
		_, err := m.db.NamedExec(fmt.Sprintf(
			`INSERT INTO ring_summaries (%s) VALUES (%s)`, cols, named), s)
		return errors.Wrapf(err, "inserting ring summary %d", s.RingNumber)
	}
	sets := make([]string, 0, 48)
	for _, c := range splitColumns(ringSummaryColumns) {
		if c == "ring_number" || c == "created_at" {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = :%s", c, c))
	}
	_, err := m.db.NamedExec(fmt.Sprintf(
		`UPDATE ring_summaries SET %s WHERE ring_number = :ring_number`,
		strings.Join(sets, ", ")), s)
	return errors.Wrapf(err, "updating ring summary %d", s.RingNumber)
}

func splitColumns(cols string) []string {
	parts := strings.Split(cols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// GetRingSummary returns one ring summary.
func (m *Manager) GetRingSummary(ring int) (*model.RingSummary, error) {
	var s model.RingSummary
	err := m.db.Get(&s, `SELECT `+ringSummaryColumns+` FROM ring_summaries WHERE ring_number = ?`, ring)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrRingNotFound, "ring %d", ring)
	}
	return &s, errors.Wrapf(err, "querying ring summary %d", ring)
}

// LatestRingSummary returns the summary with the highest ring number.
func (m *Manager) LatestRingSummary() (*model.RingSummary, error) {
	var s model.RingSummary
	err := m.db.Get(&s, `SELECT `+ringSummaryColumns+` FROM ring_summaries ORDER BY ring_number DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(ErrRingNotFound, "no rings yet")
	}
	return &s, errors.Wrap(err, "querying latest ring summary")
}

// RingListFilter narrows ListRingSummaries.
type RingListFilter struct {
	Completeness   string
	GeologicalZone string
	StartRing      *int
	EndRing        *int
	SortBy         string // ring_number or start_time
	SortDesc       bool
	Page           int
	PageSize       int
}

// ListRingSummaries returns a page of summaries plus the total count.
func (m *Manager) ListRingSummaries(f RingListFilter) ([]model.RingSummary, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if f.Completeness != "" {
		where = append(where, "data_completeness_flag = ?")
		args = append(args, f.Completeness)
	}
	if f.GeologicalZone != "" {
		where = append(where, "geological_zone = ?")
		args = append(args, f.GeologicalZone)
	}
	if f.StartRing != nil {
		where = append(where, "ring_number >= ?")
		args = append(args, *f.StartRing)
	}
	if f.EndRing != nil {
		where = append(where, "ring_number <= ?")
		args = append(args, *f.EndRing)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := m.db.Get(&total, `SELECT COUNT(*) FROM ring_summaries WHERE `+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting ring summaries")
	}

	sortBy := "ring_number"
	if f.SortBy == "start_time" {
		sortBy = "start_time"
	}
	order := "ASC"
	if f.SortDesc {
		order = "DESC"
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)

	var rows []model.RingSummary
	err := m.db.Select(&rows, fmt.Sprintf(
		`SELECT %s FROM ring_summaries WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?`,
		ringSummaryColumns, cond, sortBy, order), args...)
	return rows, total, errors.Wrap(err, "listing ring summaries")
}

// RecentRingSummaries returns up to n summaries with ring_number <= ring,
// newest first.
func (m *Manager) RecentRingSummaries(ring, n int) ([]model.RingSummary, error) {
	var rows []model.RingSummary
	err := m.db.Select(&rows, `SELECT `+ringSummaryColumns+`
		FROM ring_summaries WHERE ring_number <= ?
		ORDER BY ring_number DESC LIMIT ?`, ring, n)
	return rows, errors.Wrap(err, "querying recent ring summaries")
}

// UnsyncedRings returns summaries not yet pushed to the cloud.
func (m *Manager) UnsyncedRings(limit int) ([]model.RingSummary, error) {
	var rows []model.RingSummary
	err := m.db.Select(&rows, `SELECT `+ringSummaryColumns+`
		FROM ring_summaries WHERE synced_to_cloud = 0
		ORDER BY ring_number LIMIT ?`, limit)
	return rows, errors.Wrap(err, "querying unsynced rings")
}

// MarkRingSynced flags a ring summary as pushed to the cloud.
func (m *Manager) MarkRingSynced(ring int) error {
	now := time.Now().UTC()
	res, err := m.db.Exec(`UPDATE ring_summaries
		SET synced_to_cloud = 1, cloud_sync_at = ?, updated_at = ? WHERE ring_number = ?`,
		now, now, ring)
	if err != nil {
		return errors.Wrapf(err, "marking ring %d synced", ring)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrRingNotFound, "ring %d", ring)
	}
	return nil
}
