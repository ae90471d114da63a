package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/lox/worldstrat/internal/dashboard"
	"github.com/lox/worldstrat/internal/export"
	"github.com/lox/worldstrat/internal/metadata"
)

// writeJSON encodes v before writing the status so an encoding failure
// becomes a 500 rather than a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// buildPage runs one render pass for an API request, writing the error
// response itself when the pass fails.
func (s *Server) buildPage(w http.ResponseWriter, r *http.Request) (*dashboard.Page, bool) {
	in, err := s.inputs(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return nil, false
	}
	page, err := s.builder.Build(r.Context(), in)
	if err != nil {
		status := http.StatusInternalServerError
		var le *metadata.LoadError
		if errors.As(err, &le) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return nil, false
	}
	return page, true
}

func (s *Server) handleAPIPage(w http.ResponseWriter, r *http.Request) {
	page, ok := s.buildPage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleAPIPoints(w http.ResponseWriter, r *http.Request) {
	page, ok := s.buildPage(w, r)
	if !ok {
		return
	}
	fc := page.Points
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data)
}

// handleAPIExport streams the cloud-filtered view in the format named by
// the path extension.
func (s *Server) handleAPIExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(strings.TrimPrefix(r.URL.Path, "/api/view."))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	page, ok := s.buildPage(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, page.View, format); err != nil {
		log.Printf("api: export %s: %v", format, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="view`+format.Ext()+`"`)
	w.Write(buf.Bytes())
}
