// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/database"
	"github.com/geotunnel/edge-agent/pkg/model"
	"github.com/geotunnel/edge-agent/pkg/workorder"
)

func (s *Server) listWorkOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	orders, err := s.deps.DB.ListWorkOrders(q.Get("status"), q.Get("category"), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"work_orders": orders})
}

func (s *Server) getWorkOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.deps.DB.GetWorkOrder(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, order)
}

var workOrderStatuses = map[string]struct{}{
	model.WorkOrderOpen:       {},
	model.WorkOrderInProgress: {},
	model.WorkOrderDone:       {},
	model.WorkOrderCancelled:  {},
}

func (s *Server) updateWorkOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status     string `json:"status"`
		AssignedTo string `json:"assigned_to"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := workOrderStatuses[body.Status]; !ok {
		respondError(w, http.StatusBadRequest, "unknown status "+body.Status)
		return
	}
	if err := s.deps.DB.UpdateWorkOrderStatus(mux.Vars(r)["id"], body.Status, body.AssignedTo); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": body.Status})
}

// createWorkOrder generates an order from an existing warning. force=true
// bypasses eligibility and deduplication.
func (s *Server) createWorkOrder(w http.ResponseWriter, r *http.Request) {
	warning, err := s.deps.DB.GetWarning(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	force := r.URL.Query().Get("force") == "true"
	order, err := s.deps.Orders.Generate(warning, force)
	if errors.Is(err, workorder.ErrNotEligible) {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if errors.Is(err, database.ErrDuplicateWorkOrder) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, order)
}
