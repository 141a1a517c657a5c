// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package database

import (
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/model"
)

// ErrDuplicateWorkOrder is returned when a warning already has an order.
var ErrDuplicateWorkOrder = errors.New("work order already exists for warning")

const workOrderColumns = `order_id, warning_id, ring_number, category, priority,
	description, status, verification_required, verification_ring_count,
	assigned_to, created_at, updated_at`

// InsertWorkOrder stores a new work order. Duplicate warning ids are
// rejected unless force was used upstream.
func (m *Manager) InsertWorkOrder(o *model.WorkOrder) error {
	_, err := m.db.NamedExec(`INSERT INTO work_orders (`+workOrderColumns+`)
		VALUES (:order_id, :warning_id, :ring_number, :category, :priority,
		 :description, :status, :verification_required, :verification_ring_count,
		 :assigned_to, :created_at, :updated_at)`, o)
	return errors.Wrapf(err, "inserting work order %s", o.OrderID)
}

// WorkOrderExistsForWarning reports whether a warning already generated
// an order.
func (m *Manager) WorkOrderExistsForWarning(warningID string) (bool, error) {
	var n int
	err := m.db.Get(&n, `SELECT COUNT(*) FROM work_orders WHERE warning_id = ?`, warningID)
	return n > 0, errors.Wrap(err, "checking work order existence")
}

// GetWorkOrder returns one order.
func (m *Manager) GetWorkOrder(id string) (*model.WorkOrder, error) {
	var o model.WorkOrder
	err := m.db.Get(&o, `SELECT `+workOrderColumns+` FROM work_orders WHERE order_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Errorf("work order %s not found", id)
	}
	return &o, errors.Wrapf(err, "querying work order %s", id)
}

// ListWorkOrders returns orders, newest first, optionally filtered by
// status and category.
func (m *Manager) ListWorkOrders(status, category string, limit int) ([]model.WorkOrder, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if status != "" {
		where = append(where, "status = ?")
		args = append(args, status)
	}
	if category != "" {
		where = append(where, "category = ?")
		args = append(args, category)
	}
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	var rows []model.WorkOrder
	err := m.db.Select(&rows, `SELECT `+workOrderColumns+` FROM work_orders
		WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at DESC LIMIT ?`, args...)
	return rows, errors.Wrap(err, "listing work orders")
}

// UpdateWorkOrderStatus transitions an order's status.
func (m *Manager) UpdateWorkOrderStatus(id, status, assignedTo string) error {
	res, err := m.db.Exec(`UPDATE work_orders
		SET status = ?, assigned_to = CASE WHEN ? != '' THEN ? ELSE assigned_to END, updated_at = ?
		WHERE order_id = ?`, status, assignedTo, assignedTo, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrapf(err, "updating work order %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Errorf("work order %s not found", id)
	}
	return nil
}

// InsertManualLog stores an operator-entered record.
func (m *Manager) InsertManualLog(l *model.ManualLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	res, err := m.db.NamedExec(`INSERT INTO manual_logs (ring_number, category, content, operator, created_at)
		VALUES (:ring_number, :category, :content, :operator, :created_at)`, l)
	if err != nil {
		return errors.Wrap(err, "inserting manual log")
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

// ListManualLogs returns the most recent n manual records.
func (m *Manager) ListManualLogs(n int) ([]model.ManualLog, error) {
	if n <= 0 {
		n = 50
	}
	var rows []model.ManualLog
	err := m.db.Select(&rows, `SELECT id, ring_number, category, content, operator, created_at
		FROM manual_logs ORDER BY created_at DESC LIMIT ?`, n)
	return rows, errors.Wrap(err, "listing manual logs")
}
