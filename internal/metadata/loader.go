// Package metadata loads WorldStrat metadata tables from disk and memoises
// them by path.
package metadata

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lox/worldstrat/internal/metrics"
	"github.com/lox/worldstrat/internal/table"
)

var (
	ErrEmptyFile   = errors.New("file has no header row")
	ErrUnsupported = errors.New("unsupported file layout")
)

// LoadError is the fatal load failure for a metadata or split file. The
// caller must stop processing that file; no partial table exists.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Format is a supported metadata file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// DetectFormat picks the format from the file extension. Anything that is
// not Parquet is read as delimited text.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return FormatParquet
	}
	return FormatCSV
}

// Load reads the file at path into a table. Every failure is a *LoadError.
func Load(path string) (*table.Table, error) {
	format := DetectFormat(path)
	start := time.Now()

	var (
		t   *table.Table
		err error
	)
	switch format {
	case FormatParquet:
		t, err = loadParquet(path)
	default:
		t, err = loadDelimited(path)
	}
	metrics.MetadataLoadLatency.WithLabelValues(string(format)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.MetadataLoadsTotal.WithLabelValues(string(format), "error").Inc()
		var le *LoadError
		if !errors.As(err, &le) {
			err = &LoadError{Path: path, Reason: "parse", Err: err}
		}
		return nil, err
	}
	metrics.MetadataLoadsTotal.WithLabelValues(string(format), "ok").Inc()
	return t, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func loadDelimited(path string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "read", Err: err}
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = 0

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LoadError{Path: path, Reason: "parse", Err: ErrEmptyFile}
	}
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "parse header", Err: err}
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "parse rows", Err: err}
	}

	t, err := table.Infer(normalizeHeader(header), records)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "build table", Err: err}
	}
	return t, nil
}

// sniffDelimiter picks the most frequent of , ; tab | in the first line,
// defaulting to comma.
func sniffDelimiter(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	if !sc.Scan() {
		return ','
	}
	line := sc.Text()

	best, bestCount := ',', 0
	for _, sep := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(line, string(sep)); n > bestCount {
			best, bestCount = sep, n
		}
	}
	return best
}

// normalizeHeader names empty headers "Unnamed: <i>" and de-duplicates
// repeats as name, name.1, name.2, matching how pandas reads the same file.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			candidate := fmt.Sprintf("%s.%d", name, n+1)
			for {
				if _, taken := seen[candidate]; !taken {
					break
				}
				seen[name]++
				candidate = fmt.Sprintf("%s.%d", name, seen[name])
			}
			name = candidate
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}
