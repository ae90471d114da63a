package table

import (
	"fmt"
	"math"
	"sort"
)

// ValueCount is one entry of a value-count summary.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts counts the non-null values of a column, highest count first,
// ties broken by value.
func ValueCounts(t *Table, column string) ([]ValueCount, error) {
	c, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for i := 0; i < c.Len(); i++ {
		if v, ok := c.Text(i); ok {
			counts[v]++
		}
	}
	out := make([]ValueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, ValueCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

// Bin is one histogram bucket covering [Lo, Hi); the last bucket is closed.
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Histogram buckets vals into n equal-width bins between their min and max.
// A constant input gets one bin of width 1 centred on the value. Non-finite
// values are skipped.
func Histogram(vals []float64, n int) []Bin {
	vals = finiteOnly(vals)
	if len(vals) == 0 || n <= 0 {
		return nil
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []Bin{{Lo: lo - 0.5, Hi: hi + 0.5, Count: len(vals)}}
	}
	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*width
		bins[i].Hi = lo + float64(i+1)*width
	}
	bins[n-1].Hi = hi
	for _, v := range vals {
		i := int((v - lo) / width)
		if i >= n {
			i = n - 1
		}
		bins[i].Count++
	}
	return bins
}

func finiteOnly(vals []float64) []float64 {
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out := append([]float64(nil), vals[:i]...)
			for _, w := range vals[i+1:] {
				if !math.IsNaN(w) && !math.IsInf(w, 0) {
					out = append(out, w)
				}
			}
			return out
		}
	}
	return vals
}

// Quantile returns the q-quantile of sorted values using linear
// interpolation between closest ranks.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Summary describes one column. Numeric fields are set for numeric
// columns, Unique/Top/Freq for text columns.
type Summary struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Count  int      `json:"count"`
	Null   int      `json:"null"`
	Unique int      `json:"unique,omitempty"`
	Top    string   `json:"top,omitempty"`
	Freq   int      `json:"freq,omitempty"`
	Mean   *float64 `json:"mean,omitempty"`
	Std    *float64 `json:"std,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	P25    *float64 `json:"p25,omitempty"`
	P50    *float64 `json:"p50,omitempty"`
	P75    *float64 `json:"p75,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// Describe summarises every column of t in source order.
func Describe(t *Table) []Summary {
	out := make([]Summary, 0, len(t.cols))
	for _, c := range t.cols {
		out = append(out, describeColumn(t, c))
	}
	return out
}

func describeColumn(t *Table, c *Column) Summary {
	s := Summary{Name: c.Name, Kind: c.Kind.String()}
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			s.Null++
		} else {
			s.Count++
		}
	}

	if c.Kind == KindNumeric {
		vals := finiteOnly(c.NonNullFloats())
		if len(vals) == 0 {
			return s
		}
		sorted := make([]float64, len(vals))
		copy(sorted, vals)
		sort.Float64s(sorted)
		m, _ := mean(vals)
		s.Mean = ptr(m)
		if len(vals) > 1 {
			ss := 0.0
			for _, v := range vals {
				ss += (v - m) * (v - m)
			}
			s.Std = ptr(math.Sqrt(ss / float64(len(vals)-1)))
		}
		s.Min = ptr(sorted[0])
		s.P25 = ptr(Quantile(sorted, 0.25))
		s.P50 = ptr(Quantile(sorted, 0.5))
		s.P75 = ptr(Quantile(sorted, 0.75))
		s.Max = ptr(sorted[len(sorted)-1])
		return s
	}

	counts, err := ValueCounts(t, c.Name)
	if err != nil || len(counts) == 0 {
		return s
	}
	s.Unique = len(counts)
	s.Top = counts[0].Value
	s.Freq = counts[0].Count
	return s
}

func ptr(v float64) *float64 { return &v }

// String renders a summary on one line for the CLI.
func (s Summary) String() string {
	if s.Kind == KindNumeric.String() && s.Mean != nil {
		std := math.NaN()
		if s.Std != nil {
			std = *s.Std
		}
		return fmt.Sprintf("%-16s %-8s count=%d mean=%.4g std=%.4g min=%.4g 25%%=%.4g 50%%=%.4g 75%%=%.4g max=%.4g",
			s.Name, s.Kind, s.Count, *s.Mean, std, *s.Min, *s.P25, *s.P50, *s.P75, *s.Max)
	}
	return fmt.Sprintf("%-16s %-8s count=%d unique=%d top=%q freq=%d", s.Name, s.Kind, s.Count, s.Unique, s.Top, s.Freq)
}
