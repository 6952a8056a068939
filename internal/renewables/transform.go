package renewables

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	errUnsupportedTimestamp = errors.New("unsupported timestamp type")
	errEmptyTimestamp       = errors.New("empty timestamp")
	errUnknownSource        = errors.New("unknown source")
	errTimestampRange       = errors.New("timestamp out of range")
)

// TransformStats counts what Transform did to a batch.
type TransformStats struct {
	Transformed int
	Skipped     int // no raw timestamp field
	Failed      int // raw timestamp present but not decodable
}

// Transform replaces the raw naive timestamp of every record with a canonical
// Timestamp_UTC string, in place. Records without the raw field are left as
// they are; records whose value cannot be decoded are logged and left untouched.
func Transform(records []Record, source Source, logger *slog.Logger) TransformStats {
	var stats TransformStats
	for _, rec := range records {
		raw, ok := rec[RawTimestampKey]
		if !ok {
			stats.Skipped++
			continue
		}

		ts, err := CanonicalTimestamp(raw, source)
		if err != nil {
			stats.Failed++
			if logger != nil {
				logger.Warn("[TRANSFORM_FAILED] failed to transform record timestamp",
					"source", source.String(), "value", fmt.Sprint(raw), "error", err)
			}
			continue
		}

		rec[TimestampKey] = ts
		delete(rec, RawTimestampKey)
		stats.Transformed++
	}
	return stats
}

// CanonicalTimestamp decodes raw using the rule of source and formats it as
// "YYYY-MM-DD HH:MM:SS UTC".
func CanonicalTimestamp(raw any, source Source) (string, error) {
	var (
		t   time.Time
		err error
	)
	switch source {
	case SourceSolar:
		t, err = decodeEpochMillis(raw)
	case SourceWind:
		t, err = decodeDateTime(raw)
	default:
		return "", fmt.Errorf("%w: %q", errUnknownSource, source)
	}
	if err != nil {
		return "", err
	}
	t = t.UTC()
	// The layout only has room for four-digit years.
	if y := t.Year(); y < 1 || y > 9999 {
		return "", fmt.Errorf("%w: year %d", errTimestampRange, y)
	}
	return t.Format(TimestampLayout) + " UTC", nil
}

// decodeEpochMillis interprets raw as a Unix epoch in milliseconds.
func decodeEpochMillis(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case json.Number:
		if ms, err := v.Int64(); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid epoch milliseconds %q: %w", v.String(), err)
		}
		return millisFromFloat(f)
	case float64:
		return millisFromFloat(v)
	case float32:
		return millisFromFloat(float64(v))
	case int:
		return time.UnixMilli(int64(v)).UTC(), nil
	case int64:
		return time.UnixMilli(v).UTC(), nil
	case int32:
		return time.UnixMilli(int64(v)).UTC(), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, errEmptyTimestamp
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid epoch milliseconds %q: %w", v, err)
		}
		return millisFromFloat(f)
	default:
		return time.Time{}, fmt.Errorf("%w: %T", errUnsupportedTimestamp, raw)
	}
}

func millisFromFloat(f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("invalid epoch milliseconds %v", f)
	}
	secs := f / 1000
	if secs >= math.MaxInt64 || secs < math.MinInt64 {
		return time.Time{}, fmt.Errorf("%w: %v ms", errTimestampRange, f)
	}
	sec, frac := math.Modf(secs)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

// zonedLayouts are tried before falling back to dateparse. Layouts without a
// zone parse as UTC.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// decodeDateTime parses a free-form date/time string. Strings without an
// offset are taken as UTC.
func decodeDateTime(raw any) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %T", errUnsupportedTimestamp, raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyTimestamp
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q: %w", s, err)
	}
	return t.UTC(), nil
}
