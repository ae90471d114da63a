package store

import (
	"database/sql"
	"log"
	"time"

	"github.com/lox/worldstrat/internal/metadata"
	"github.com/lox/worldstrat/internal/models"
	"github.com/lox/worldstrat/internal/table"
)

// Loaded records a metadata file read. It satisfies metadata.Observer.
func (s *Store) Loaded(path string, format metadata.Format, t *table.Table, err error) {
	run, serr := s.StartLoadRun(path, string(format))
	if serr != nil {
		log.Printf("store: start load run for %s: %v", path, serr)
		return
	}
	if err != nil {
		run.Error = sql.NullString{String: err.Error(), Valid: true}
	} else {
		run.Success = true
		run.Rows = sql.NullInt64{Int64: int64(t.Len()), Valid: true}
		run.Columns = sql.NullInt64{Int64: int64(len(t.Columns())), Valid: true}
	}
	if serr := s.CompleteLoadRun(run); serr != nil {
		log.Printf("store: complete load run for %s: %v", path, serr)
	}
}

// StartLoadRun creates a new load run record and returns it.
func (s *Store) StartLoadRun(path, format string) (*models.LoadRun, error) {
	run := &models.LoadRun{
		StartedAt: time.Now().UTC(),
		Path:      path,
		Format:    format,
	}

	result, err := s.db.Exec(`
		INSERT INTO load_runs (started_at, path, format, success)
		VALUES (?, ?, ?, FALSE)
	`, run.StartedAt, run.Path, run.Format)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return run, nil
}

// CompleteLoadRun updates the load run with results.
func (s *Store) CompleteLoadRun(run *models.LoadRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE load_runs SET
			finished_at = ?,
			row_count = ?,
			column_count = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.Rows, run.Columns, run.Success, run.Error, run.ID)
	return err
}

// LoadHealthSummary is a per-path summary of recent load runs.
type LoadHealthSummary struct {
	Path        string
	Format      string
	TotalRuns   int
	SuccessRuns int
	FailedRuns  int
	LastRows    sql.NullInt64
}

// GetLoadHealth summarises load runs started within the last window.
func (s *Store) GetLoadHealth(window time.Duration) ([]LoadHealthSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			path,
			format,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_runs,
			(SELECT r2.row_count FROM load_runs r2
			 WHERE r2.path = load_runs.path AND r2.success
			 ORDER BY r2.id DESC LIMIT 1) as last_rows
		FROM load_runs
		WHERE SUBSTR(started_at, 1, 19) >= ?
		GROUP BY path, format
		ORDER BY path, format
	`, time.Now().UTC().Add(-window).Format(sqliteTime))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LoadHealthSummary
	for rows.Next() {
		var h LoadHealthSummary
		if err := rows.Scan(&h.Path, &h.Format, &h.TotalRuns, &h.SuccessRuns, &h.FailedRuns, &h.LastRows); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// GetRecentLoadErrors returns recent failed load runs.
func (s *Store) GetRecentLoadErrors(limit int) ([]models.LoadRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, path, format, row_count, column_count, success, error_message
		FROM load_runs
		WHERE success = FALSE
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.LoadRun
	for rows.Next() {
		var r models.LoadRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Path, &r.Format,
			&r.Rows, &r.Columns, &r.Success, &r.Error); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
