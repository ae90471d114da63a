// Package columns resolves which table columns play the latitude, longitude
// and identifier roles, tolerating the naming conventions found across
// WorldStrat metadata exports.
package columns

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lox/worldstrat/internal/table"
)

// ErrUnresolved is returned when no candidate column for a role exists.
var ErrUnresolved = errors.New("column unresolved")

// Role is a logical column role.
type Role string

const (
	Latitude   Role = "latitude"
	Longitude  Role = "longitude"
	Identifier Role = "identifier"
)

// Roles lists every role in resolution order.
var Roles = []Role{Latitude, Longitude, Identifier}

// unnamedIndex stands for "the table's positional/unnamed index column" in
// a candidate list.
const unnamedIndex = "\x00index"

// candidates holds the ordered column names tried for each role. First
// present wins.
var candidates = map[Role][]string{
	Latitude:   {"lat", "latitude"},
	Longitude:  {"lon", "longitude"},
	Identifier: {"tile_id", "id", unnamedIndex},
}

// Candidates returns the ordered candidate names for a role, with the
// unnamed index column shown as "Unnamed: 0".
func Candidates(role Role) []string {
	out := make([]string, 0, len(candidates[role]))
	for _, c := range candidates[role] {
		if c == unnamedIndex {
			c = "Unnamed: 0"
		}
		out = append(out, c)
	}
	return out
}

// UnresolvedError reports the role that could not be resolved.
type UnresolvedError struct {
	Role Role
}

func (e *UnresolvedError) Error() string {
	names := Candidates(e.Role)
	return fmt.Sprintf("%s %s: none of %s present", e.Role, ErrUnresolved, strings.Join(quoteAll(names), ", "))
}

func (e *UnresolvedError) Unwrap() error { return ErrUnresolved }

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}

// Resolve returns the column playing role in t.
func Resolve(t *table.Table, role Role) (string, error) {
	for _, name := range candidates[role] {
		if name == unnamedIndex {
			if idx, ok := IndexColumn(t); ok {
				return idx, nil
			}
			continue
		}
		if t.Has(name) {
			return name, nil
		}
	}
	return "", &UnresolvedError{Role: role}
}

// IndexColumn finds the column pandas writes for an unnamed index:
// "Unnamed: 0" if present, else the first empty or "Unnamed: N" header.
func IndexColumn(t *table.Table) (string, bool) {
	if t.Has("Unnamed: 0") {
		return "Unnamed: 0", true
	}
	for _, name := range t.Columns() {
		if name == "" || strings.HasPrefix(name, "Unnamed: ") {
			return name, true
		}
	}
	return "", false
}

// Overrides are user-chosen column names, one per role. Empty means auto.
type Overrides map[Role]string

// Resolution is the result of resolving every role once for a table.
type Resolution struct {
	Lat      string   `json:"lat,omitempty"`
	Lon      string   `json:"lon,omitempty"`
	ID       string   `json:"id,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	errs map[Role]error
}

// Column returns the resolved column for role, or the unresolved error.
func (r Resolution) Column(role Role) (string, error) {
	if err := r.errs[role]; err != nil {
		return "", err
	}
	switch role {
	case Latitude:
		return r.Lat, nil
	case Longitude:
		return r.Lon, nil
	case Identifier:
		return r.ID, nil
	}
	return "", &UnresolvedError{Role: role}
}

// HasGeo reports whether both latitude and longitude resolved.
func (r Resolution) HasGeo() bool {
	return r.errs[Latitude] == nil && r.errs[Longitude] == nil && r.Lat != "" && r.Lon != ""
}

// ResolveAll resolves every role. An override naming an existing column
// wins; an override naming a missing column is ignored with a warning.
func ResolveAll(t *table.Table, overrides Overrides) Resolution {
	res := Resolution{errs: make(map[Role]error)}
	for _, role := range Roles {
		name := ""
		if o := overrides[role]; o != "" {
			if t.Has(o) {
				name = o
			} else {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s column %q not found, using automatic selection", role, o))
			}
		}
		if name == "" {
			resolved, err := Resolve(t, role)
			if err != nil {
				res.errs[role] = err
				res.Warnings = append(res.Warnings, err.Error())
				continue
			}
			name = resolved
		}
		switch role {
		case Latitude:
			res.Lat = name
		case Longitude:
			res.Lon = name
		case Identifier:
			res.ID = name
		}
	}
	return res
}
