// Package dataset combines per-object record sets into the single table
// the persisters consume, and selects the output format for it.
package dataset

import "github.com/eleveniq/sfexport/pkg/models"

// Merge concatenates record sets into one uniform table. Inputs arrive
// in configured object order and each set's internal order is kept; no
// sorting happens here. The column set is the source-object column
// followed by the union of all labels in first-seen order. Cells absent
// from a row's originating object hold the explicit null value.
func Merge(sets []*models.RecordSet) *models.MergedDataset {
	columns := []string{models.SourceColumn}
	seen := map[string]struct{}{models.SourceColumn: {}}
	total := 0

	for _, set := range sets {
		if set == nil {
			continue
		}
		total += set.Len()
		for _, c := range set.Columns {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			columns = append(columns, c)
		}
	}

	merged := &models.MergedDataset{
		Columns: columns,
		Rows:    make([][]models.Value, 0, total),
	}

	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}

	for _, set := range sets {
		if set == nil {
			continue
		}
		source := models.String(set.Object)
		for _, rec := range set.Records {
			row := make([]models.Value, len(columns))
			for i := range row {
				row[i] = models.Null()
			}
			row[index[models.SourceColumn]] = source
			for label, val := range rec {
				row[index[label]] = val
			}
			merged.Rows = append(merged.Rows, row)
		}
	}

	return merged
}
