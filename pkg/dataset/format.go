package dataset

// Format is the persisted output format.
type Format int

const (
	// FormatExcel is the rich-spreadsheet format
	FormatExcel Format = iota
	// FormatCSV is the flat-delimited format used beyond spreadsheet limits
	FormatCSV
)

// String returns the format name.
func (f Format) String() string {
	if f == FormatCSV {
		return "csv"
	}
	return "excel"
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	if f == FormatCSV {
		return ".csv"
	}
	return ".xlsx"
}

// Limits are the spreadsheet ceilings that force the flat format.
// MaxRows is the first row count persisted as CSV; a data row count of
// MaxRows would no longer fit a sheet once the header row is added.
type Limits struct {
	MaxRows    int
	MaxColumns int
}

// Select chooses the output format for a dataset of the given shape.
// Pure function: identical inputs always select the same format.
func Select(rows, cols int, limits Limits) Format {
	if rows >= limits.MaxRows || cols > limits.MaxColumns {
		return FormatCSV
	}
	return FormatExcel
}
