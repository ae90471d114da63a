// Package eda computes the optional analysis sections of the dashboard.
// Each section fails on its own: a missing or unusable column sets the
// section's Err and leaves the others untouched.
package eda

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lox/worldstrat/internal/table"
)

const (
	HeadRows      = 5
	HistogramBins = 50
	LCCSTopN      = 10
)

// Column names used by the analysis sections.
const (
	LowresDate  = "lowres_date"
	HighresDate = "highres_date"
	CloudCover  = "cloud_cover"
	Delta       = "delta"
	IPCCClass   = "IPCC Class"
	LCCSClass   = "LCCS class"
	SMODClass   = "SMOD Class"
)

// Section is the common envelope of one analysis section.
type Section struct {
	Title string `json:"title"`
	Err   string `json:"error,omitempty"`
}

func (s *Section) fail(err error) {
	s.Err = err.Error()
}

// OK reports whether the section computed.
func (s Section) OK() bool { return s.Err == "" }

// Overview is the data overview: the first rows and per-column statistics.
type Overview struct {
	Section
	Rows     int             `json:"rows"`
	Columns  []string        `json:"columns"`
	Head     [][]string      `json:"head"`
	Describe []table.Summary `json:"describe"`
}

// NewOverview summarises t.
func NewOverview(t *table.Table) Overview {
	o := Overview{
		Section:  Section{Title: "Data overview"},
		Rows:     t.Len(),
		Columns:  t.Columns(),
		Describe: table.Describe(t),
	}
	head := t.Head(HeadRows)
	for i := 0; i < head.Len(); i++ {
		o.Head = append(o.Head, head.Record(i))
	}
	return o
}

// YearCount is the number of scenes captured in one year.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// DateYears holds per-year capture counts for the low and high resolution
// acquisitions.
type DateYears struct {
	Section
	Lowres      []YearCount `json:"lowres"`
	Highres     []YearCount `json:"highres"`
	Unparseable int         `json:"unparseable"`
}

// NewDateYears counts capture years. Cells that do not parse as a date are
// treated as null.
func NewDateYears(t *table.Table) DateYears {
	d := DateYears{Section: Section{Title: "Image date distribution"}}
	var err error
	var bad int
	if d.Lowres, bad, err = yearCounts(t, LowresDate); err != nil {
		d.fail(err)
		return d
	}
	d.Unparseable += bad
	if d.Highres, bad, err = yearCounts(t, HighresDate); err != nil {
		d.fail(err)
		return d
	}
	d.Unparseable += bad
	return d
}

func yearCounts(t *table.Table, column string) ([]YearCount, int, error) {
	c, err := t.Column(column)
	if err != nil {
		return nil, 0, err
	}
	counts := make(map[int]int)
	bad := 0
	for i := 0; i < c.Len(); i++ {
		s, ok := c.Text(i)
		if !ok {
			continue
		}
		ts, ok := ParseDate(s)
		if !ok {
			bad++
			continue
		}
		counts[ts.Year()]++
	}
	out := make([]YearCount, 0, len(counts))
	for y, n := range counts {
		out = append(out, YearCount{Year: y, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, bad, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
}

// ParseDate parses the date formats seen in metadata exports.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if ts, err := time.Parse(l, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Distribution is a histogram over one numeric column.
type Distribution struct {
	Section
	Column string      `json:"column"`
	Count  int         `json:"count"`
	Bins   []table.Bin `json:"bins"`
}

// NewDistribution bins the non-null values of column.
func NewDistribution(t *table.Table, title, column string, bins int) Distribution {
	d := Distribution{Section: Section{Title: title}, Column: column}
	c, err := t.Column(column)
	if err != nil {
		d.fail(err)
		return d
	}
	if c.Kind != table.KindNumeric {
		d.fail(fmt.Errorf("column %q: %w", column, table.ErrNotNumeric))
		return d
	}
	vals := c.NonNullFloats()
	d.Count = len(vals)
	d.Bins = table.Histogram(vals, bins)
	return d
}

// NewCloudHistogram is the cloud cover distribution.
func NewCloudHistogram(t *table.Table) Distribution {
	return NewDistribution(t, "Cloud cover distribution", CloudCover, HistogramBins)
}

// NewDeltaHistogram is the distribution of the resolution delta.
func NewDeltaHistogram(t *table.Table) Distribution {
	return NewDistribution(t, "Resolution delta distribution", Delta, HistogramBins)
}

// ClassCount is the value counts of one categorical column.
type ClassCount struct {
	Section
	Column string             `json:"column"`
	Counts []table.ValueCount `json:"counts"`
}

// NewClassCount counts the values of column, keeping the top n when n > 0.
func NewClassCount(t *table.Table, title, column string, n int) ClassCount {
	cc := ClassCount{Section: Section{Title: title}, Column: column}
	counts, err := table.ValueCounts(t, column)
	if err != nil {
		cc.fail(err)
		return cc
	}
	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	cc.Counts = counts
	return cc
}

// NewClassCounts returns the land cover and settlement type sections.
func NewClassCounts(t *table.Table) []ClassCount {
	return []ClassCount{
		NewClassCount(t, "IPCC Class", IPCCClass, 0),
		NewClassCount(t, fmt.Sprintf("LCCS Class (top %d)", LCCSTopN), LCCSClass, LCCSTopN),
		NewClassCount(t, "SMOD Class", SMODClass, 0),
	}
}

// Report bundles every analysis section for one table.
type Report struct {
	Overview Overview     `json:"overview"`
	Dates    DateYears    `json:"dates"`
	Cloud    Distribution `json:"cloud"`
	Classes  []ClassCount `json:"classes"`
	Delta    Distribution `json:"delta"`
}

// Analyze computes every section of t.
func Analyze(t *table.Table) Report {
	return Report{
		Overview: NewOverview(t),
		Dates:    NewDateYears(t),
		Cloud:    NewCloudHistogram(t),
		Classes:  NewClassCounts(t),
		Delta:    NewDeltaHistogram(t),
	}
}

// Failed returns the sections that did not compute.
func (r Report) Failed() []Section {
	var out []Section
	for _, s := range []Section{r.Overview.Section, r.Dates.Section, r.Cloud.Section, r.Delta.Section} {
		if !s.OK() {
			out = append(out, s)
		}
	}
	for _, c := range r.Classes {
		if !c.OK() {
			out = append(out, c.Section)
		}
	}
	return out
}
