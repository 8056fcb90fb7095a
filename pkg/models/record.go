// Package models provides the data model shared by the pipeline stages:
// tagged cell values, per-object record sets, and the merged dataset
// consumed by the persisters.
package models

// SourceColumn is the column added to every merged row naming the
// Salesforce object the row was extracted from.
const SourceColumn = "source_object"

// Record is one extracted row, keyed by field label.
type Record map[string]Value

// RecordSet holds the label-mapped records for one Salesforce object.
// Columns preserves first-seen label order; Records preserves source
// order. A RecordSet is not mutated after extraction completes.
type RecordSet struct {
	Object  string
	Columns []string
	Records []Record

	seen map[string]struct{}
}

// NewRecordSet creates an empty record set for the given object.
func NewRecordSet(object string, columns []string) *RecordSet {
	rs := &RecordSet{
		Object: object,
		seen:   make(map[string]struct{}, len(columns)),
	}
	for _, c := range columns {
		rs.addColumn(c)
	}
	return rs
}

func (rs *RecordSet) addColumn(label string) {
	if _, ok := rs.seen[label]; ok {
		return
	}
	rs.seen[label] = struct{}{}
	rs.Columns = append(rs.Columns, label)
}

// Append adds a record, registering any labels not seen before.
func (rs *RecordSet) Append(r Record) {
	for label := range r {
		rs.addColumn(label)
	}
	rs.Records = append(rs.Records, r)
}

// Len returns the number of records in the set.
func (rs *RecordSet) Len() int {
	return len(rs.Records)
}

// MergedDataset is the concatenation of all record sets into one uniform
// table. Rows are aligned to Columns; absent cells hold the null value.
// Built once per run and never mutated afterwards.
type MergedDataset struct {
	Columns []string
	Rows    [][]Value
}

// RowCount returns the number of data rows.
func (d *MergedDataset) RowCount() int {
	return len(d.Rows)
}

// ColumnCount returns the number of columns.
func (d *MergedDataset) ColumnCount() int {
	return len(d.Columns)
}
