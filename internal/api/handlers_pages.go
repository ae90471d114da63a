package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lox/worldstrat/internal/metadata"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	in, err := s.inputs(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data := IndexData{Inputs: in}
	page, err := s.builder.Build(r.Context(), in)
	if err != nil {
		var le *metadata.LoadError
		if !errors.As(err, &le) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Error = le.Error()
	}
	data.Page = page

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("template error: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	sessions, err := s.store.CountSessions()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
		return
	}

	health := HealthStatus{
		Status:       "ok",
		Sessions:     sessions,
		CachedTables: s.cache.Len(),
	}

	if v, err := s.store.MigrationVersion(); err != nil {
		health.Errors = append(health.Errors, "schema version: "+err.Error())
	} else {
		health.Schema = v
	}

	summaries, err := s.store.GetLoadHealth(24 * time.Hour)
	if err != nil {
		health.Errors = append(health.Errors, "load health: "+err.Error())
	}
	for _, h := range summaries {
		lh := LoadHealth{
			Path:        h.Path,
			Format:      h.Format,
			TotalRuns:   h.TotalRuns,
			SuccessRuns: h.SuccessRuns,
			FailedRuns:  h.FailedRuns,
		}
		if h.LastRows.Valid {
			rows := h.LastRows.Int64
			lh.LastRows = &rows
		}
		if h.SuccessRuns == 0 {
			health.Status = "degraded"
		}
		health.Loads = append(health.Loads, lh)
	}

	recent, err := s.store.GetRecentLoadErrors(10)
	if err != nil {
		health.Errors = append(health.Errors, "load errors: "+err.Error())
	}
	for _, run := range recent {
		health.RecentErrors = append(health.RecentErrors, LoadFailure{
			Path:  run.Path,
			At:    run.StartedAt,
			Error: run.Error.String,
		})
	}

	if len(health.Errors) > 0 {
		health.Status = "error"
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(health)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
