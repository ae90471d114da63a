package api

import (
	"time"

	"github.com/lox/worldstrat/internal/dashboard"
	"github.com/lox/worldstrat/internal/models"
)

// IndexData is the dashboard page template input.
type IndexData struct {
	Inputs models.Inputs
	Page   *dashboard.Page
	Error  string
}

// CloudMaxValue is the threshold shown in the filter control.
func (d IndexData) CloudMaxValue() string {
	if d.Inputs.CloudMax.Valid {
		return formatFloat(d.Inputs.CloudMax.Float64)
	}
	if d.Page != nil && d.Page.Cloud.Applied {
		return formatFloat(d.Page.Cloud.Max)
	}
	return ""
}

type HealthStatus struct {
	Status       string        `json:"status"`
	Schema       int           `json:"schema_version"`
	Sessions     int           `json:"sessions"`
	CachedTables int           `json:"cached_tables"`
	Loads        []LoadHealth  `json:"loads,omitempty"`
	RecentErrors []LoadFailure `json:"recent_errors,omitempty"`
	Errors       []string      `json:"errors,omitempty"`
}

type LoadHealth struct {
	Path        string `json:"path"`
	Format      string `json:"format"`
	TotalRuns   int    `json:"total_runs"`
	SuccessRuns int    `json:"success_runs"`
	FailedRuns  int    `json:"failed_runs"`
	LastRows    *int64 `json:"last_rows,omitempty"`
}

type LoadFailure struct {
	Path  string    `json:"path"`
	At    time.Time `json:"at"`
	Error string    `json:"error"`
}

// errorResponse is the JSON body of a failed API call.
type errorResponse struct {
	Error string `json:"error"`
}
