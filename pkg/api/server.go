// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package api exposes the local REST surface: ring summaries, warnings,
// work orders, manual logs, health and collection control.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/geotunnel/edge-agent/pkg/buffer"
	"github.com/geotunnel/edge-agent/pkg/collector"
	"github.com/geotunnel/edge-agent/pkg/database"
	"github.com/geotunnel/edge-agent/pkg/quality"
	"github.com/geotunnel/edge-agent/pkg/scheduler"
	"github.com/geotunnel/edge-agent/pkg/telemetry"
	"github.com/geotunnel/edge-agent/pkg/util/log"
	"github.com/geotunnel/edge-agent/pkg/warning"
	"github.com/geotunnel/edge-agent/pkg/workorder"
)

// Deps collects everything the handlers touch.
type Deps struct {
	DB         *database.Manager
	Sources    *collector.SourceManager
	Buffer     *buffer.Writer
	Scheduler  *scheduler.Scheduler
	Checker    *quality.Checker
	Thresholds *warning.CachedThresholds
	Orders     *workorder.Generator
	Version    string
}

// Server is the HTTP API server.
type Server struct {
	deps    Deps
	srv     *http.Server
	started time.Time
}

// NewServer builds the server and its routes.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{deps: deps, started: time.Now()}

	r := mux.NewRouter()
	r.Use(recoverMiddleware, logMiddleware)
	r.Handle("/metrics", telemetry.Handler())

	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/rings", s.listRings).Methods(http.MethodGet)
	v1.HandleFunc("/rings/latest", s.latestRing).Methods(http.MethodGet)
	v1.HandleFunc("/rings/{ring:[0-9]+}", s.getRing).Methods(http.MethodGet)
	v1.HandleFunc("/rings/{ring:[0-9]+}/raw-data", s.ringRawData).Methods(http.MethodGet)

	v1.HandleFunc("/warnings", s.listWarnings).Methods(http.MethodGet)
	v1.HandleFunc("/warnings/stats", s.warningStats).Methods(http.MethodGet)
	v1.HandleFunc("/warnings/{id}", s.getWarning).Methods(http.MethodGet)
	v1.HandleFunc("/warnings/{id}/acknowledge", s.acknowledgeWarning).Methods(http.MethodPost)
	v1.HandleFunc("/warnings/{id}/resolve", s.resolveWarning).Methods(http.MethodPost)

	v1.HandleFunc("/thresholds", s.listThresholds).Methods(http.MethodGet)
	v1.HandleFunc("/thresholds", s.saveThreshold).Methods(http.MethodPut)

	v1.HandleFunc("/work-orders", s.listWorkOrders).Methods(http.MethodGet)
	v1.HandleFunc("/work-orders/{id}", s.getWorkOrder).Methods(http.MethodGet)
	v1.HandleFunc("/work-orders/{id}/status", s.updateWorkOrderStatus).Methods(http.MethodPatch)
	v1.HandleFunc("/work-orders/from-warning/{id}", s.createWorkOrder).Methods(http.MethodPost)

	v1.HandleFunc("/manual-logs", s.createManualLog).Methods(http.MethodPost)
	v1.HandleFunc("/manual-logs", s.listManualLogs).Methods(http.MethodGet)
	v1.HandleFunc("/manual-readings", s.createManualReading).Methods(http.MethodPost)

	v1.HandleFunc("/health", s.health).Methods(http.MethodGet)
	v1.HandleFunc("/control/collection/start", s.startCollection).Methods(http.MethodPost)
	v1.HandleFunc("/control/collection/stop", s.stopCollection).Methods(http.MethodPost)
	v1.HandleFunc("/control/status", s.controlStatus).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Infof("api: listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("api: server stopped: %v", err) //nolint:errcheck
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				log.Errorf("api: panic serving %s %s: %v", r.Method, r.URL.Path, p) //nolint:errcheck
				respondError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", p))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debugf("api: %s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Warnf("api: encoding response: %v", err) //nolint:errcheck
		}
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, into interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(into)
}
