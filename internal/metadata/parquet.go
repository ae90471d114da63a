package metadata

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/lox/worldstrat/internal/table"
)

// parquetColumn accumulates one leaf column while rows are read.
type parquetColumn struct {
	name    string
	numeric bool
	nums    []sql.NullFloat64
	strs    []sql.NullString
}

func loadParquet(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "open", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "stat", Err: err}
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "open parquet", Err: err}
	}

	schema := pf.Schema()
	leaves := schema.Columns()
	cols := make([]*parquetColumn, len(leaves))
	for i, leafPath := range leaves {
		leaf, ok := schema.Lookup(leafPath...)
		if !ok {
			return nil, &LoadError{Path: path, Reason: "schema", Err: fmt.Errorf("leaf column %v not found", leafPath)}
		}
		if isRepeated(schema, leafPath) {
			return nil, &LoadError{Path: path, Reason: "schema", Err: fmt.Errorf("%w: repeated column %q", ErrUnsupported, strings.Join(leafPath, "."))}
		}
		cols[i] = &parquetColumn{
			name:    strings.Join(leafPath, "."),
			numeric: isNumericKind(leaf.Node.Type().Kind()),
		}
	}

	log.Printf("metadata: reading parquet %s (%d rows, %d row groups)", path, pf.NumRows(), len(pf.RowGroups()))

	buf := make([]parquet.Row, 128)
	for _, rg := range pf.RowGroups() {
		if err := readRowGroup(rg, buf, cols); err != nil {
			return nil, &LoadError{Path: path, Reason: "read rows", Err: err}
		}
	}

	built := make([]*table.Column, len(cols))
	for i, c := range cols {
		if c.numeric {
			built[i] = table.NewNumericColumn(c.name, c.nums)
		} else {
			built[i] = table.NewTextColumn(c.name, c.strs)
		}
	}
	t, err := table.New(built...)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "build table", Err: err}
	}
	return t, nil
}

// isRepeated reports whether any field on path below the root is a repeated
// node. The root's own repetition is ignored: Arrow writers mark the root
// group repeated, which raises MaxRepetitionLevel on every flat leaf.
func isRepeated(root parquet.Node, path []string) bool {
	node := root
	for _, name := range path {
		var next parquet.Node
		for _, f := range node.Fields() {
			if f.Name() == name {
				next = f
				break
			}
		}
		if next == nil {
			return false
		}
		if next.Repeated() {
			return true
		}
		node = next
	}
	return false
}

func readRowGroup(rg parquet.RowGroup, buf []parquet.Row, cols []*parquetColumn) error {
	rows := rg.Rows()
	defer rows.Close()

	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			if len(row) != len(cols) {
				return fmt.Errorf("row has %d values, want %d", len(row), len(cols))
			}
			for _, v := range row {
				appendValue(cols[v.Column()], v)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func isNumericKind(k parquet.Kind) bool {
	switch k {
	case parquet.Int32, parquet.Int64, parquet.Float, parquet.Double:
		return true
	}
	return false
}

func appendValue(c *parquetColumn, v parquet.Value) {
	if c.numeric {
		if v.IsNull() {
			c.nums = append(c.nums, sql.NullFloat64{})
			return
		}
		var f float64
		switch v.Kind() {
		case parquet.Int32:
			f = float64(v.Int32())
		case parquet.Int64:
			f = float64(v.Int64())
		case parquet.Float:
			f = float64(v.Float())
		default:
			f = v.Double()
		}
		c.nums = append(c.nums, sql.NullFloat64{Float64: f, Valid: true})
		return
	}

	if v.IsNull() {
		c.strs = append(c.strs, sql.NullString{})
		return
	}
	var s string
	switch v.Kind() {
	case parquet.Boolean:
		s = strconv.FormatBool(v.Boolean())
	case parquet.ByteArray, parquet.FixedLenByteArray:
		s = string(v.ByteArray())
	default:
		s = v.String()
	}
	c.strs = append(c.strs, sql.NullString{String: s, Valid: true})
}
