// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package workorder turns warning events into remediation work orders.
package workorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/telemetry"
	"github.com/geotunnel/edge-agent/pkg/util/log"
)

var ordersGenerated = telemetry.NewCounter("workorder", "generated_total",
	"Work orders generated", "category", "priority")

// Rule controls whether warnings on an indicator generate orders.
type Rule struct {
	Category             string
	GenerateOnWarning    bool
	GenerateOnAttention  bool
	VerificationRequired bool
	VerificationRings    int
}

// DefaultRules maps indicators to their generation rules.
var DefaultRules = map[string]Rule{
	"settlement_value":         {Category: "settlement", GenerateOnWarning: true, VerificationRequired: true, VerificationRings: 3},
	"cumulative_settlement":    {Category: "settlement", GenerateOnWarning: true, VerificationRequired: true, VerificationRings: 3},
	"mean_chamber_pressure":    {Category: "chamber_pressure", GenerateOnWarning: true, VerificationRequired: true, VerificationRings: 2},
	"mean_torque":              {Category: "torque", GenerateOnWarning: true, VerificationRequired: false, VerificationRings: 0},
	"horizontal_deviation_max": {Category: "alignment", GenerateOnWarning: true, VerificationRequired: true, VerificationRings: 2},
	"vertical_deviation_max":   {Category: "alignment", GenerateOnWarning: true, VerificationRequired: true, VerificationRings: 2},
}

var priorityMap = map[model.WarningLevel]string{
	model.LevelAlarm:     model.PriorityCritical,
	model.LevelWarning:   model.PriorityHigh,
	model.LevelAttention: model.PriorityMedium,
}

// Store is the persistence surface the generator needs.
type Store interface {
	InsertWorkOrder(o *model.WorkOrder) error
	WorkOrderExistsForWarning(warningID string) (bool, error)
}

// Generator creates work orders from warnings.
type Generator struct {
	store Store
	rules map[string]Rule

	mu        sync.Mutex
	generated map[string]struct{} // warning ids handled this process
}

// NewGenerator builds a generator with the default rules.
func NewGenerator(store Store) *Generator {
	return &Generator{store: store, rules: DefaultRules, generated: map[string]struct{}{}}
}

// ErrNotEligible is returned when the rules skip the warning.
var ErrNotEligible = errors.New("warning not eligible for work order")

// Generate creates a work order for the warning if the rules allow it.
// Alarms always generate. force bypasses both rules and deduplication.
func (g *Generator) Generate(w *model.WarningEvent, force bool) (*model.WorkOrder, error) {
	rule, hasRule := g.rules[w.IndicatorName]

	if !force {
		eligible := w.Level == model.LevelAlarm
		if !eligible && hasRule {
			switch w.Level {
			case model.LevelWarning:
				eligible = rule.GenerateOnWarning
			case model.LevelAttention:
				eligible = rule.GenerateOnAttention
			}
		}
		if !eligible {
			return nil, errors.Wrapf(ErrNotEligible, "indicator %s at %s", w.IndicatorName, w.Level)
		}

		g.mu.Lock()
		_, seen := g.generated[w.WarningID]
		g.mu.Unlock()
		if seen {
			return nil, errors.Wrapf(ErrNotEligible, "warning %s already handled", w.WarningID)
		}
		exists, err := g.store.WorkOrderExistsForWarning(w.WarningID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, errors.Wrapf(ErrNotEligible, "warning %s already has an order", w.WarningID)
		}
	}

	category := "general"
	verificationRequired := false
	verificationRings := 0
	if hasRule {
		category = rule.Category
		verificationRequired = rule.VerificationRequired
		verificationRings = rule.VerificationRings
	}
	priority := priorityMap[w.Level]
	if priority == "" {
		priority = model.PriorityMedium
	}

	now := time.Now().UTC()
	order := &model.WorkOrder{
		OrderID:               uuid.NewString(),
		WarningID:             w.WarningID,
		RingNumber:            w.RingNumber,
		Category:              category,
		Priority:              priority,
		Description:           describe(w, category),
		Status:                model.WorkOrderOpen,
		VerificationRequired:  verificationRequired,
		VerificationRingCount: verificationRings,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := g.store.InsertWorkOrder(order); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.generated[w.WarningID] = struct{}{}
	g.mu.Unlock()
	ordersGenerated.WithLabelValues(category, priority).Inc()
	log.Infof("work order %s (%s/%s) generated from warning %s",
		order.OrderID, category, priority, w.WarningID)
	return order, nil
}

func describe(w *model.WarningEvent, category string) string {
	d := fmt.Sprintf("Investigate %s condition at ring %d: %s", category, w.RingNumber, w.Message)
	if w.IndicatorValue != nil {
		d += fmt.Sprintf(" (measured %.3f)", *w.IndicatorValue)
	}
	return d
}
