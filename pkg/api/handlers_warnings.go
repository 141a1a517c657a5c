// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/geotunnel/edge-agent/pkg/database"
	"github.com/geotunnel/edge-agent/pkg/model"
)

func (s *Server) listWarnings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := database.WarningListFilter{
		Level:     q.Get("level"),
		Status:    q.Get("status"),
		Indicator: q.Get("indicator"),
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	if v := q.Get("ring"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Ring = &n
		}
	}

	warnings, total, err := s.deps.DB.ListWarnings(f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"warnings": warnings,
		"total":    total,
	})
}

func (s *Server) warningStats(w http.ResponseWriter, r *http.Request) {
	byLevel, byStatus, err := s.deps.DB.WarningStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"by_level":  byLevel,
		"by_status": byStatus,
	})
}

func (s *Server) getWarning(w http.ResponseWriter, r *http.Request) {
	warning, err := s.deps.DB.GetWarning(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, warning)
}

func (s *Server) acknowledgeWarning(w http.ResponseWriter, r *http.Request) {
	var body struct {
		By string `json:"by"`
	}
	if err := decodeBody(r, &body); err != nil || body.By == "" {
		respondError(w, http.StatusBadRequest, "body must carry a non-empty 'by' field")
		return
	}
	if err := s.deps.DB.AcknowledgeWarning(mux.Vars(r)["id"], body.By); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(model.WarningStatusAcknowledged)})
}

func (s *Server) resolveWarning(w http.ResponseWriter, r *http.Request) {
	var body struct {
		By                  string `json:"by"`
		Note                string `json:"note"`
		MarkAsFalsePositive bool   `json:"mark_as_false_positive"`
	}
	if err := decodeBody(r, &body); err != nil || body.By == "" {
		respondError(w, http.StatusBadRequest, "body must carry a non-empty 'by' field")
		return
	}
	if err := s.deps.DB.ResolveWarning(mux.Vars(r)["id"], body.By, body.Note, body.MarkAsFalsePositive); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	status := model.WarningStatusResolved
	if body.MarkAsFalsePositive {
		status = model.WarningStatusFalsePositive
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) listThresholds(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.DB.ListThresholds()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"thresholds": rows})
}

func (s *Server) saveThreshold(w http.ResponseWriter, r *http.Request) {
	var t model.WarningThreshold
	if err := decodeBody(r, &t); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if t.Indicator == "" {
		respondError(w, http.StatusBadRequest, "indicator is required")
		return
	}
	if t.Zone == "" {
		t.Zone = "_all"
	}
	if err := s.deps.DB.SaveThreshold(&t); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.deps.Thresholds != nil {
		s.deps.Thresholds.Invalidate()
	}
	respondJSON(w, http.StatusOK, &t)
}
