// Package table holds the in-memory metadata table and the pure view
// operations (filters, centre, statistics) computed over it.
package table

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrColumnNotFound = errors.New("column not found")
	ErrNotNumeric     = errors.New("column is not numeric")
	ErrLengthMismatch = errors.New("column length mismatch")
)

// Kind is the inferred type of a column.
type Kind int

const (
	KindText Kind = iota
	KindNumeric
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// nullTokens are the cell values read as missing, a subset of the pandas
// default NA set.
var nullTokens = map[string]bool{
	"":     true,
	"NaN":  true,
	"nan":  true,
	"-NaN": true,
	"-nan": true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"<NA>": true,
	"null": true,
	"NULL": true,
	"None": true,
}

// IsNullToken reports whether a raw cell value is read as missing.
func IsNullToken(s string) bool {
	return nullTokens[strings.TrimSpace(s)]
}

// Column is one named, typed column. Exactly one of nums/strs is populated,
// depending on Kind.
type Column struct {
	Name string
	Kind Kind
	nums []sql.NullFloat64
	strs []sql.NullString
}

// NewNumericColumn builds a numeric column. The slice is copied and
// non-finite values (NaN, ±Inf) are stored as null.
func NewNumericColumn(name string, vals []sql.NullFloat64) *Column {
	cp := make([]sql.NullFloat64, len(vals))
	for i, v := range vals {
		if v.Valid {
			cp[i] = finite(v.Float64)
		}
	}
	return &Column{Name: name, Kind: KindNumeric, nums: cp}
}

func finite(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// NewTextColumn builds a text column. The slice is copied.
func NewTextColumn(name string, vals []sql.NullString) *Column {
	cp := make([]sql.NullString, len(vals))
	copy(cp, vals)
	return &Column{Name: name, Kind: KindText, strs: cp}
}

func (c *Column) Len() int {
	if c.Kind == KindNumeric {
		return len(c.nums)
	}
	return len(c.strs)
}

// IsNull reports whether row i is missing.
func (c *Column) IsNull(i int) bool {
	if c.Kind == KindNumeric {
		return !c.nums[i].Valid
	}
	return !c.strs[i].Valid
}

// Float returns the numeric value of row i. Text columns always return false.
func (c *Column) Float(i int) (float64, bool) {
	if c.Kind != KindNumeric || !c.nums[i].Valid {
		return 0, false
	}
	return c.nums[i].Float64, true
}

// Text returns the value of row i rendered as text. Numeric values are
// formatted without a trailing ".0" so that integer ids compare naturally.
func (c *Column) Text(i int) (string, bool) {
	if c.Kind == KindNumeric {
		if !c.nums[i].Valid {
			return "", false
		}
		return FormatFloat(c.nums[i].Float64), true
	}
	if !c.strs[i].Valid {
		return "", false
	}
	return c.strs[i].String, true
}

// NonNullFloats returns every non-null numeric value in row order.
func (c *Column) NonNullFloats() []float64 {
	if c.Kind != KindNumeric {
		return nil
	}
	out := make([]float64, 0, len(c.nums))
	for _, v := range c.nums {
		if v.Valid {
			out = append(out, v.Float64)
		}
	}
	return out
}

func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == KindNumeric {
		out.nums = make([]sql.NullFloat64, len(rows))
		for i, r := range rows {
			out.nums[i] = c.nums[r]
		}
		return out
	}
	out.strs = make([]sql.NullString, len(rows))
	for i, r := range rows {
		out.strs[i] = c.strs[r]
	}
	return out
}

// FormatFloat renders a float the way the dashboard shows numbers.
func FormatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	if math.IsInf(v, -1) {
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Table is an immutable, column-oriented metadata table. Every row keeps the
// index of the source row it came from.
type Table struct {
	cols   []*Column
	index  map[string]int
	source []int
}

// New assembles a table from columns of equal length. Source indices are
// 0..n-1.
func New(cols ...*Column) (*Table, error) {
	n := 0
	if len(cols) > 0 {
		n = cols[0].Len()
	}
	source := make([]int, n)
	for i := range source {
		source[i] = i
	}
	return newWithSource(cols, source)
}

func newWithSource(cols []*Column, source []int) (*Table, error) {
	t := &Table{
		cols:   cols,
		index:  make(map[string]int, len(cols)),
		source: source,
	}
	for i, c := range cols {
		if c.Len() != len(source) {
			return nil, fmt.Errorf("%w: %q has %d rows, want %d", ErrLengthMismatch, c.Name, c.Len(), len(source))
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		t.index[c.Name] = i
	}
	return t, nil
}

// Infer builds a table from a header and raw text records. A column is
// numeric when every non-null cell parses as a float, text otherwise.
// Cells such as "inf" keep the column numeric but are read as null.
func Infer(header []string, records [][]string) (*Table, error) {
	cols := make([]*Column, len(header))
	for j, name := range header {
		numeric := true
		for _, rec := range records {
			if j >= len(rec) {
				return nil, fmt.Errorf("record has %d fields, want %d", len(rec), len(header))
			}
			cell := strings.TrimSpace(rec[j])
			if nullTokens[cell] {
				continue
			}
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
				break
			}
		}

		if numeric {
			vals := make([]sql.NullFloat64, len(records))
			for i, rec := range records {
				cell := strings.TrimSpace(rec[j])
				if nullTokens[cell] {
					continue
				}
				v, _ := strconv.ParseFloat(cell, 64)
				vals[i] = finite(v)
			}
			cols[j] = &Column{Name: name, Kind: KindNumeric, nums: vals}
			continue
		}

		vals := make([]sql.NullString, len(records))
		for i, rec := range records {
			if nullTokens[strings.TrimSpace(rec[j])] {
				continue
			}
			vals[i] = sql.NullString{String: rec[j], Valid: true}
		}
		cols[j] = &Column{Name: name, Kind: KindText, strs: vals}
	}
	return New(cols...)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.source) }

// Columns returns the column names in source order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the table has a column with exactly this name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return t.cols[i], nil
}

// SourceIndex returns the source row index of row i.
func (t *Table) SourceIndex(i int) int { return t.source[i] }

// Record returns row i as display text, with "" for nulls.
func (t *Table) Record(i int) []string {
	rec := make([]string, len(t.cols))
	for j, c := range t.cols {
		rec[j], _ = c.Text(i)
	}
	return rec
}

// Head returns the first n rows as a new table.
func (t *Table) Head(n int) *Table {
	if n > t.Len() {
		n = t.Len()
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.take(rows)
}

// take derives a table holding the given rows (positions in t) in order.
func (t *Table) take(rows []int) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.take(rows)
	}
	source := make([]int, len(rows))
	for i, r := range rows {
		source[i] = t.source[r]
	}
	out, err := newWithSource(cols, source)
	if err != nil {
		// take preserves lengths and names; reaching here is a bug.
		panic(err)
	}
	return out
}

// Equal reports whether two tables hold the same columns, values and source
// indices.
func Equal(a, b *Table) bool {
	if a.Len() != b.Len() || len(a.cols) != len(b.cols) {
		return false
	}
	for i := range a.source {
		if a.source[i] != b.source[i] {
			return false
		}
	}
	for j, ca := range a.cols {
		cb := b.cols[j]
		if ca.Name != cb.Name || ca.Kind != cb.Kind {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if ca.IsNull(i) != cb.IsNull(i) {
				return false
			}
			ta, _ := ca.Text(i)
			tb, _ := cb.Text(i)
			if ta != tb {
				return false
			}
		}
	}
	return true
}
