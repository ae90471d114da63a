package metadata

import (
	"fmt"

	"github.com/lox/worldstrat/internal/table"
)

// SplitColumn is the categorical column of a *_split.csv file.
const SplitColumn = "split"

// SplitCounts loads a split file through the cache and counts its
// train/val/test labels.
func (c *Cache) SplitCounts(path string) ([]table.ValueCount, error) {
	e, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	if !e.Table.Has(SplitColumn) {
		return nil, &LoadError{Path: path, Reason: "schema", Err: fmt.Errorf("%w: no %q column", table.ErrColumnNotFound, SplitColumn)}
	}
	return table.ValueCounts(e.Table, SplitColumn)
}
