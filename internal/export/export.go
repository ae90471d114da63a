// Package export writes a table as an Arrow IPC stream or a Parquet file.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/lox/worldstrat/internal/table"
)

// SourceIndexField carries each row's position in the source file.
const SourceIndexField = "source_index"

// Format is an export file format.
type Format string

const (
	FormatArrow   Format = "arrow"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatArrow, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (want arrow or parquet)", s)
}

// ContentType is the HTTP media type of the format.
func (f Format) ContentType() string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "application/vnd.apache.arrow.stream"
}

// Ext is the conventional file extension of the format.
func (f Format) Ext() string {
	if f == FormatParquet {
		return ".parquet"
	}
	return ".arrow"
}

// Schema maps table columns to Arrow fields: numeric columns become
// nullable float64, text columns nullable utf8. The source index is
// appended as a non-null int64 field.
func Schema(t *table.Table) (*arrow.Schema, error) {
	names := t.Columns()
	fields := make([]arrow.Field, 0, len(names)+1)
	for _, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		typ := arrow.DataType(arrow.BinaryTypes.String)
		if c.Kind == table.KindNumeric {
			typ = arrow.PrimitiveTypes.Float64
		}
		fields = append(fields, arrow.Field{Name: name, Type: typ, Nullable: true})
	}
	if t.Has(SourceIndexField) {
		return nil, fmt.Errorf("column %q clashes with the source index field", SourceIndexField)
	}
	fields = append(fields, arrow.Field{Name: SourceIndexField, Type: arrow.PrimitiveTypes.Int64})
	return arrow.NewSchema(fields, nil), nil
}

// Record builds one Arrow record holding every row of t. The caller must
// Release it.
func Record(t *table.Table, mem memory.Allocator) (arrow.Record, error) {
	schema, err := Schema(t)
	if err != nil {
		return nil, err
	}
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for i, name := range t.Columns() {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		switch fb := b.Field(i).(type) {
		case *array.Float64Builder:
			fb.Reserve(t.Len())
			for row := 0; row < t.Len(); row++ {
				if v, ok := c.Float(row); ok {
					fb.Append(v)
				} else {
					fb.AppendNull()
				}
			}
		case *array.StringBuilder:
			fb.Reserve(t.Len())
			for row := 0; row < t.Len(); row++ {
				if v, ok := c.Text(row); ok {
					fb.Append(v)
				} else {
					fb.AppendNull()
				}
			}
		default:
			return nil, fmt.Errorf("column %q: unexpected builder %T", name, fb)
		}
	}

	idx := b.Field(len(t.Columns())).(*array.Int64Builder)
	idx.Reserve(t.Len())
	for row := 0; row < t.Len(); row++ {
		idx.Append(int64(t.SourceIndex(row)))
	}
	return b.NewRecord(), nil
}

// Write encodes t to w in the given format.
func Write(w io.Writer, t *table.Table, format Format) error {
	switch format {
	case FormatArrow:
		return WriteArrow(w, t)
	case FormatParquet:
		return WriteParquet(w, t)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// WriteArrow writes t as an Arrow IPC stream.
func WriteArrow(w io.Writer, t *table.Table) error {
	mem := memory.NewGoAllocator()
	rec, err := Record(t, mem)
	if err != nil {
		return err
	}
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := iw.Write(rec); err != nil {
		iw.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("close arrow stream: %w", err)
	}
	return nil
}

// WriteParquet writes t as a Snappy-compressed Parquet file.
func WriteParquet(w io.Writer, t *table.Table) error {
	mem := memory.NewGoAllocator()
	rec, err := Record(t, mem)
	if err != nil {
		return err
	}
	defer rec.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write parquet record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}
