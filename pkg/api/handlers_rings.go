// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/geotunnel/edge-agent/pkg/database"
)

func (s *Server) listRings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := database.RingListFilter{
		Completeness:   q.Get("completeness"),
		GeologicalZone: q.Get("zone"),
		SortBy:         q.Get("sort_by"),
		SortDesc:       q.Get("order") == "desc",
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if v := q.Get("start_ring"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.StartRing = &n
		}
	}
	if v := q.Get("end_ring"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.EndRing = &n
		}
	}

	rings, total, err := s.deps.DB.ListRingSummaries(f)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rings": rings,
		"total": total,
	})
}

func (s *Server) latestRing(w http.ResponseWriter, r *http.Request) {
	ring, err := s.deps.DB.LatestRingSummary()
	if errors.Is(err, database.ErrRingNotFound) {
		respondError(w, http.StatusNotFound, "no rings recorded yet")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ring)
}

func (s *Server) getRing(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(mux.Vars(r)["ring"])
	ring, err := s.deps.DB.GetRingSummary(n)
	if errors.Is(err, database.ErrRingNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ring)
}

// ringRawData returns the samples recorded during a ring's excavation
// window. type selects the stream (plc, attitude, monitoring); plc
// accepts an optional tag filter.
func (s *Server) ringRawData(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(mux.Vars(r)["ring"])
	ring, err := s.deps.DB.GetRingSummary(n)
	if errors.Is(err, database.ErrRingNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	q := r.URL.Query()
	switch q.Get("type") {
	case "", "plc":
		if tag := q.Get("tag"); tag != "" {
			rows, err := s.deps.DB.PlcSamples(tag, ring.StartTime, ring.EndTime)
			if err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			respondJSON(w, http.StatusOK, map[string]interface{}{"ring": n, "tag": tag, "samples": rows})
			return
		}
		byTag, err := s.deps.DB.PlcSamplesInWindow(ring.StartTime, ring.EndTime)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"ring": n, "samples": byTag})
	case "attitude":
		rows, err := s.deps.DB.AttitudeSamples(ring.StartTime, ring.EndTime)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"ring": n, "samples": rows})
	case "monitoring":
		var locations []string
		if v := q.Get("locations"); v != "" {
			locations = strings.Split(v, ",")
		}
		rows, err := s.deps.DB.MonitoringSamples(q.Get("sensor_type"), ring.StartTime, ring.EndTime, locations)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"ring": n, "samples": rows})
	default:
		respondError(w, http.StatusBadRequest, "type must be plc, attitude or monitoring")
	}
}
