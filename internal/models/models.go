package models

import (
	"database/sql"
	"time"
)

// Inputs are the user-controlled values of one dashboard render pass.
type Inputs struct {
	Path      string
	SplitPath string
	CloudMax  sql.NullFloat64 // unset means the observed maximum
	Tile      string
	LatCol    string
	LonCol    string
	IDCol     string
	Compare   string // image id looked up in both HR and LR
}

// Merge fills every unset field of in from fallback.
func (in Inputs) Merge(fallback Inputs) Inputs {
	if in.Path == "" {
		in.Path = fallback.Path
	}
	if in.SplitPath == "" {
		in.SplitPath = fallback.SplitPath
	}
	if !in.CloudMax.Valid {
		in.CloudMax = fallback.CloudMax
	}
	if in.Tile == "" {
		in.Tile = fallback.Tile
	}
	if in.LatCol == "" {
		in.LatCol = fallback.LatCol
	}
	if in.LonCol == "" {
		in.LonCol = fallback.LonCol
	}
	if in.IDCol == "" {
		in.IDCol = fallback.IDCol
	}
	if in.Compare == "" {
		in.Compare = fallback.Compare
	}
	return in
}

// Session is a browser session's stored inputs.
type Session struct {
	ID        string
	Inputs    Inputs
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LoadRun records one metadata file read for auditing.
type LoadRun struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Path       string
	Format     string
	Rows       sql.NullInt64
	Columns    sql.NullInt64
	Success    bool
	Error      sql.NullString
}
