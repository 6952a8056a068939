package store

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/i474232898/renewables-etl/internal/common"
	"github.com/i474232898/renewables-etl/internal/logging"
	"github.com/i474232898/renewables-etl/internal/renewables"
)

// DefaultColumns is the output column order of every data file.
var DefaultColumns = []string{"timestamp_utc", "variable", "value", "last_modified_utc"}

// ErrMissingColumn is returned when no record carries one of the requested columns.
var ErrMissingColumn = errors.New("missing column")

// WriteCSV writes a header row followed by one row per record. Record keys are
// matched against columns after NormalizeColumn. A column that no record
// carries is an error; a record missing a column gets an empty cell.
func WriteCSV(w io.Writer, records []renewables.Record, columns []string) error {
	rows := make([]map[string]string, 0, len(records))
	present := make(map[string]bool)

	for _, rec := range records {
		// Sorted so that colliding keys resolve the same way every run.
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		row := make(map[string]string, len(rec))
		for _, k := range keys {
			col := common.NormalizeColumn(k)
			if _, dup := row[col]; dup {
				continue
			}
			row[col] = FormatValue(rec[k])
			present[col] = true
		}
		rows = append(rows, row)
	}

	if len(records) > 0 {
		for _, col := range columns {
			if !present[col] {
				return fmt.Errorf("%w: %s", ErrMissingColumn, col)
			}
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	line := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			line[i] = row[col]
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders a decoded value as a CSV cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(renewables.TimestampLayout) + " UTC"
	default:
		return fmt.Sprint(x)
	}
}

// CSVSink writes record batches to files under a fixed directory.
type CSVSink struct {
	dir     string
	columns []string
	logger  *slog.Logger
}

// NewCSVSink creates a sink writing DefaultColumns under dir.
func NewCSVSink(dir string, logger *slog.Logger) *CSVSink {
	if logger == nil {
		logger = logging.Discard()
	}
	return &CSVSink{dir: dir, columns: DefaultColumns, logger: logger}
}

// Dir returns the output directory.
func (s *CSVSink) Dir() string { return s.dir }

// WriteRecords replaces dir/filename with the given records. The file is
// written to a temporary name first so a failed write leaves the previous
// file in place.
func (s *CSVSink) WriteRecords(filename string, records []renewables.Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, filename)

	tmp, err := os.CreateTemp(s.dir, filename+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := WriteCSV(tmp, records, s.columns); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save data to %s: %w", path, err)
	}
	// CreateTemp opens files 0600; data files are meant to be shared.
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}

	s.logger.Info("[PERSIST_OK] data saved", "path", path, "rows", len(records))
	return nil
}
