// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/geotunnel/edge-agent/pkg/model"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"

	dbOK := s.deps.DB.Ping() == nil
	if !dbOK {
		status = "degraded"
	}

	sources := s.deps.Sources.Status()
	for _, src := range sources {
		if !src.Healthy && s.deps.Sources.Running() {
			status = "degraded"
			break
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"version":   s.deps.Version,
		"uptime":    time.Since(s.started).String(),
		"database":  map[string]bool{"reachable": dbOK},
		"sources":   sources,
		"buffer":    s.deps.Buffer.Stats(),
		"scheduler": s.deps.Scheduler.Status(),
		"quality":   s.deps.Sources.Metrics(s.deps.Checker),
	})
}

func (s *Server) startCollection(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sources.Running() {
		respondJSON(w, http.StatusOK, map[string]string{"collection": "already running"})
		return
	}
	if err := s.deps.Sources.Start(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"collection": "started"})
}

func (s *Server) stopCollection(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Sources.Running() {
		respondJSON(w, http.StatusOK, map[string]string{"collection": "already stopped"})
		return
	}
	s.deps.Sources.Stop()
	respondJSON(w, http.StatusOK, map[string]string{"collection": "stopped"})
}

func (s *Server) controlStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"collecting": s.deps.Sources.Running(),
		"sources":    s.deps.Sources.Status(),
	})
}

func (s *Server) createManualLog(w http.ResponseWriter, r *http.Request) {
	var l model.ManualLog
	if err := decodeBody(r, &l); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if l.Category == "" || l.Content == "" || l.Operator == "" {
		respondError(w, http.StatusBadRequest, "category, content and operator are required")
		return
	}
	if err := s.deps.DB.InsertManualLog(&l); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, &l)
}

func (s *Server) listManualLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := s.deps.DB.ListManualLogs(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}

// createManualReading feeds an operator measurement into the manual
// source, passing through the quality pipeline like any other sample.
func (s *Server) createManualReading(w http.ResponseWriter, r *http.Request) {
	manual := s.deps.Sources.Manual()
	if manual == nil {
		respondError(w, http.StatusServiceUnavailable, "no manual source configured")
		return
	}
	var body struct {
		Tag       string    `json:"tag"`
		Value     float64   `json:"value"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Tag == "" {
		respondError(w, http.StatusBadRequest, "tag is required")
		return
	}
	manual.Ingest(body.Tag, body.Value, body.Timestamp)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
