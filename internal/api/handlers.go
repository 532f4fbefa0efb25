package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"cloudboost-metrics/internal/cache"
	"cloudboost-metrics/internal/domain"
	"cloudboost-metrics/internal/observability"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status       string                             `json:"status"`
	Uptime       string                             `json:"uptime"`
	Computations int64                              `json:"computations"`
	Subscribers  int                                `json:"subscribers"`
	Cache        cache.Stats                        `json:"cache"`
	Latency      map[string]observability.Quantiles `json:"latency"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:       "running",
		Uptime:       time.Since(s.started).Round(time.Second).String(),
		Computations: s.svc.Computations(),
		Subscribers:  s.svc.Subscribers(),
		Cache:        s.svc.CacheStats(),
		Latency:      observability.DefaultLatency.Snapshot(),
	})
}

func (s *Server) listMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"metrics": s.svc.ListMetrics()})
}

func (s *Server) getMetric(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := parseWindow(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter, err := parseFilter(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.GetMetric(r.Context(), mux.Vars(r)["id"], filter, window)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	windows, err := parseSeriesWindows(q, s.svc.Config().MaxSeriesWindows)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter, err := parseFilter(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	series, err := s.svc.GetSeries(r.Context(), mux.Vars(r)["id"], filter, windows)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"series": series})
}

func (s *Server) getRollup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dimension := q.Get("dimension")
	if dimension == "" {
		s.writeError(w, r, badRequest("dimension is required"))
		return
	}
	window, err := parseWindow(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter, err := parseFilter(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	groups, err := s.svc.GetRollup(r.Context(), mux.Vars(r)["id"], filter, window, dimension)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dimension": dimension, "groups": groups})
}

// appendRecords accepts a single record object or an array appended
// atomically.
func (s *Server) appendRecords(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		s.writeError(w, r, badRequest("read body: %v", err))
		return
	}
	body = bytes.TrimSpace(body)

	var records []*domain.Record
	if len(body) > 0 && body[0] == '[' {
		err = json.Unmarshal(body, &records)
	} else {
		var rec domain.Record
		err = json.Unmarshal(body, &rec)
		records = []*domain.Record{&rec}
	}
	if err != nil {
		s.writeError(w, r, badRequest("decode record: %v", err))
		return
	}
	if len(records) == 0 {
		s.writeError(w, r, badRequest("no records"))
		return
	}

	if err := s.svc.AppendBatch(r.Context(), "api", records); err != nil {
		s.writeError(w, r, err)
		return
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ids": ids, "count": len(ids)})
}
