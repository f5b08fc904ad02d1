package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/blockedby/channel-history/internal/collector"
	"github.com/blockedby/channel-history/internal/record"
)

// CSV writes a run to a CSV file with a header row, replacing the file.
type CSV struct {
	path string
}

// NewCSV creates a CSV sink writing to path.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// Name implements Sink.
func (c *CSV) Name() string { return "csv" }

// Write implements Sink. The file is written to a temp file first and
// renamed, so readers never see a partial export.
func (c *CSV) Write(_ context.Context, run *collector.RunResult) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".harvest-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, run.Records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("move csv into place: %w", err)
	}
	return nil
}

// WriteCSV writes a header and one row per record to w.
func WriteCSV(out io.Writer, records []record.MessageRecord) error {
	w := csv.NewWriter(out)
	if err := w.Write(record.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(r.Strings()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
