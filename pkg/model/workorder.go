// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package model

import "time"

// Work order priorities.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
)

// Work order statuses.
const (
	WorkOrderOpen       = "open"
	WorkOrderInProgress = "in_progress"
	WorkOrderDone       = "done"
	WorkOrderCancelled  = "cancelled"
)

// WorkOrder is a remediation task generated from a warning event.
type WorkOrder struct {
	OrderID               string    `db:"order_id" json:"order_id"`
	WarningID             string    `db:"warning_id" json:"warning_id"`
	RingNumber            int       `db:"ring_number" json:"ring_number"`
	Category              string    `db:"category" json:"category"`
	Priority              string    `db:"priority" json:"priority"`
	Description           string    `db:"description" json:"description"`
	Status                string    `db:"status" json:"status"`
	VerificationRequired  bool      `db:"verification_required" json:"verification_required"`
	VerificationRingCount int       `db:"verification_ring_count" json:"verification_ring_count"`
	AssignedTo            string    `db:"assigned_to" json:"assigned_to"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}
