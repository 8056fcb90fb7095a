// Package stats accumulates per-object and per-stage run statistics and
// flushes them to an append-only CSV log at the end of the run.
package stats

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/eleveniq/sfexport/pkg/errors"
)

// Status marks the outcome of one statistics entry.
type Status string

const (
	// StatusSuccess marks a completed operation
	StatusSuccess Status = "success"
	// StatusFailed marks a failed operation
	StatusFailed Status = "failed"
)

// Entry is one accumulated statistic: an object extraction, a file
// upload, or a pipeline stage outcome.
type Entry struct {
	Timestamp time.Time
	Object    string
	Stage     string
	Records   int
	Retries   int
	Duration  time.Duration
	Status    Status
	Message   string
}

// Collector accumulates entries across the run. Concurrent extraction
// goroutines append under a mutex; each entry is written exactly once.
type Collector struct {
	mu          sync.Mutex
	runStart    time.Time
	refreshDate string
	entries     []Entry
}

// NewCollector starts a collector for one run.
func NewCollector(now time.Time) *Collector {
	return &Collector{
		runStart:    now,
		refreshDate: now.Format("2006-01-02"),
	}
}

// Record appends one entry, stamping it if the caller did not.
func (c *Collector) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

// Entries returns a copy of the accumulated entries.
func (c *Collector) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// TotalRecords sums record counts across successful entries.
func (c *Collector) TotalRecords() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, e := range c.entries {
		if e.Status == StatusSuccess {
			total += e.Records
		}
	}
	return total
}

// Failures counts failed entries.
func (c *Collector) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.Status == StatusFailed {
			n++
		}
	}
	return n
}

// RunDuration returns the elapsed time since the run started.
func (c *Collector) RunDuration() time.Duration {
	return time.Since(c.runStart)
}

var logHeader = []string{
	"timestamp", "object", "stage", "records", "retries",
	"duration_seconds", "status", "message", "refresh_date",
}

// WriteLog appends one row per entry to the log file, creating it with a
// header first. The log is append-only and never overwritten.
func (c *Collector) WriteLog(path string) (err error) {
	c.mu.Lock()
	entries := make([]Entry, len(c.entries))
	copy(entries, c.entries)
	c.mu.Unlock()

	info, statErr := os.Stat(path)
	writeHeader := statErr != nil || info.Size() == 0

	file, openErr := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path from validated config
	if openErr != nil {
		return errors.NewPersistenceError(path, openErr)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = errors.NewPersistenceError(path, closeErr)
		}
	}()

	writer := csv.NewWriter(file)

	if writeHeader {
		if err := writer.Write(logHeader); err != nil {
			return errors.NewPersistenceError(path, err)
		}
	}

	for _, e := range entries {
		row := []string{
			e.Timestamp.Format(time.RFC3339),
			e.Object,
			e.Stage,
			strconv.Itoa(e.Records),
			strconv.Itoa(e.Retries),
			strconv.FormatFloat(e.Duration.Seconds(), 'f', 3, 64),
			string(e.Status),
			e.Message,
			c.refreshDate,
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
