package table

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Max returns the observed maximum of a numeric column. ok is false when the
// column has no non-null values.
func (t *Table) Max(column string) (max float64, ok bool, err error) {
	c, err := t.Column(column)
	if err != nil {
		return 0, false, err
	}
	if c.Kind != KindNumeric {
		return 0, false, fmt.Errorf("%w: %q", ErrNotNumeric, column)
	}
	for i := 0; i < c.Len(); i++ {
		v, valid := c.Float(i)
		if !valid {
			continue
		}
		if !ok || v > max {
			max = v
			ok = true
		}
	}
	return max, ok, nil
}

// FilterByMax returns the rows whose value in column is <= max. Rows with a
// null value are excluded. t is not modified.
func FilterByMax(t *Table, column string, max float64) (*Table, error) {
	c, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	if c.Kind != KindNumeric {
		return nil, fmt.Errorf("%w: %q", ErrNotNumeric, column)
	}
	rows := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if v, ok := c.Float(i); ok && v <= max {
			rows = append(rows, i)
		}
	}
	return t.take(rows), nil
}

// FilterByKey returns the rows whose id cell equals key, in original order.
// No match yields an empty table, not an error.
func FilterByKey(t *Table, idColumn, key string) (*Table, error) {
	c, err := t.Column(idColumn)
	if err != nil {
		return nil, err
	}
	var rows []int
	for i := 0; i < t.Len(); i++ {
		if v, ok := c.Text(i); ok && v == key {
			rows = append(rows, i)
		}
	}
	return t.take(rows), nil
}

// DropNull returns the rows that are non-null in every named column.
func DropNull(t *Table, columns ...string) (*Table, error) {
	cols := make([]*Column, len(columns))
	for i, name := range columns {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	rows := make([]int, 0, t.Len())
next:
	for i := 0; i < t.Len(); i++ {
		for _, c := range cols {
			if c.IsNull(i) {
				continue next
			}
		}
		rows = append(rows, i)
	}
	return t.take(rows), nil
}

// Unique returns the distinct non-null values of a column as text, in order
// of first appearance.
func Unique(t *Table, column string) ([]string, error) {
	c, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < c.Len(); i++ {
		v, ok := c.Text(i)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

// Center returns the mean latitude/longitude of the table as an orb.Point
// (X = lon, Y = lat). Each mean is taken over that column's non-null values.
// ok is false when the table is empty or either column is entirely null.
func Center(t *Table, latColumn, lonColumn string) (orb.Point, bool) {
	if t.Len() == 0 {
		return orb.Point{}, false
	}
	lat, err := t.Column(latColumn)
	if err != nil {
		return orb.Point{}, false
	}
	lon, err := t.Column(lonColumn)
	if err != nil {
		return orb.Point{}, false
	}
	latMean, ok := mean(lat.NonNullFloats())
	if !ok {
		return orb.Point{}, false
	}
	lonMean, ok := mean(lon.NonNullFloats())
	if !ok {
		return orb.Point{}, false
	}
	return orb.Point{lonMean, latMean}, true
}

func mean(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true
}
