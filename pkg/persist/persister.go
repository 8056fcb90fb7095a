// Package persist writes the merged dataset to the local output
// directory in the selected format.
package persist

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/eleveniq/sfexport/pkg/dataset"
	"github.com/eleveniq/sfexport/pkg/errors"
	"github.com/eleveniq/sfexport/pkg/models"
)

// sheetName is the single data sheet in the Excel output.
const sheetName = "Sheet1"

// Persister writes one data file per run. A second run with the same
// configuration overwrites the prior file.
type Persister struct {
	dir    string
	base   string
	logger *zap.Logger
}

// New creates a persister for the given output directory and file base
// name (extension is appended per format).
func New(dir, base string, logger *zap.Logger) *Persister {
	return &Persister{dir: dir, base: base, logger: logger}
}

// Write persists the dataset in the given format, creating the output
// directory if absent, and returns the file path.
func (p *Persister) Write(data *models.MergedDataset, format dataset.Format) (string, error) {
	path := filepath.Join(p.dir, p.base+format.Extension())

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", errors.NewPersistenceError(path, err)
	}

	var err error
	switch format {
	case dataset.FormatCSV:
		err = p.writeCSV(path, data)
	default:
		err = p.writeExcel(path, data)
	}
	if err != nil {
		return "", err
	}

	p.logger.Info("dataset persisted",
		zap.String("path", path),
		zap.String("format", format.String()),
		zap.Int("rows", data.RowCount()),
		zap.Int("columns", data.ColumnCount()))

	return path, nil
}

func (p *Persister) writeCSV(path string, data *models.MergedDataset) (err error) {
	file, createErr := os.Create(path)
	if createErr != nil {
		return errors.NewPersistenceError(path, createErr)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = errors.NewPersistenceError(path, closeErr)
		}
	}()

	writer := csv.NewWriter(file)

	if err := writer.Write(data.Columns); err != nil {
		return errors.NewPersistenceError(path, err)
	}

	row := make([]string, len(data.Columns))
	for _, cells := range data.Rows {
		for i, v := range cells {
			row[i] = v.String()
		}
		if err := writer.Write(row); err != nil {
			return errors.NewPersistenceError(path, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.NewPersistenceError(path, err)
	}
	return nil
}

func (p *Persister) writeExcel(path string, data *models.MergedDataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return errors.NewPersistenceError(path, err)
	}

	header := make([]interface{}, len(data.Columns))
	for i, c := range data.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return errors.NewPersistenceError(path, err)
	}

	row := make([]interface{}, len(data.Columns))
	for i, cells := range data.Rows {
		for j, v := range cells {
			row[j] = v.Raw()
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.NewPersistenceError(path, err)
		}
		if err := sw.SetRow(cell, row); err != nil {
			return errors.NewPersistenceError(path, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return errors.NewPersistenceError(path, err)
	}
	if err := f.SaveAs(path); err != nil {
		return errors.NewPersistenceError(path, err)
	}
	return nil
}
