package api

import (
	"database/sql"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/lox/worldstrat/internal/models"
)

// parseInputs reads the dashboard controls from query parameters.
func parseInputs(q url.Values) (models.Inputs, error) {
	in := models.Inputs{
		Path:      strings.TrimSpace(q.Get("path")),
		SplitPath: strings.TrimSpace(q.Get("split")),
		Tile:      strings.TrimSpace(q.Get("tile")),
		LatCol:    q.Get("lat_col"),
		LonCol:    q.Get("lon_col"),
		IDCol:     q.Get("id_col"),
		Compare:   strings.TrimSpace(q.Get("compare")),
	}
	if v := strings.TrimSpace(q.Get("cloud_max")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return models.Inputs{}, fmt.Errorf("invalid cloud_max %q", v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > 100 {
			return models.Inputs{}, fmt.Errorf("cloud_max %g out of range [0, 100]", f)
		}
		in.CloudMax = sql.NullFloat64{Float64: f, Valid: true}
	}
	return in, nil
}

// overlay takes each control from parsed when its query parameter is present,
// even when empty, and from stored otherwise. An empty value clears the
// stored one.
func overlay(q url.Values, parsed, stored models.Inputs) models.Inputs {
	out := stored
	if q.Has("path") {
		out.Path = parsed.Path
	}
	if q.Has("split") {
		out.SplitPath = parsed.SplitPath
	}
	if q.Has("cloud_max") {
		out.CloudMax = parsed.CloudMax
	}
	if q.Has("tile") {
		out.Tile = parsed.Tile
	}
	if q.Has("lat_col") {
		out.LatCol = parsed.LatCol
	}
	if q.Has("lon_col") {
		out.LonCol = parsed.LonCol
	}
	if q.Has("id_col") {
		out.IDCol = parsed.IDCol
	}
	if q.Has("compare") {
		out.Compare = parsed.Compare
	}
	return out
}
