package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/i474232898/renewables-etl/internal/renewables"
)

func transformedRecord(ts, variable, value, modified any) renewables.Record {
	return renewables.Record{
		renewables.TimestampKey: ts,
		" Variable":             variable,
		"value":                 value,
		"Last Modified utc":     modified,
	}
}

func TestWriteCSV(t *testing.T) {
	records := []renewables.Record{
		transformedRecord("2024-06-23 00:00:00 UTC", json.Number("973"), json.Number("-33.9277882476"), json.Number("1719100800000")),
		transformedRecord("2024-06-23 01:00:00 UTC", "282", "13.25", "2024-06-23 00:00:00+00:00"),
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records, DefaultColumns); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "timestamp_utc,variable,value,last_modified_utc\n" +
		"2024-06-23 00:00:00 UTC,973,-33.9277882476,1719100800000\n" +
		"2024-06-23 01:00:00 UTC,282,13.25,2024-06-23 00:00:00+00:00\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteCSV_EmptyBatchWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil, DefaultColumns); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "timestamp_utc,variable,value,last_modified_utc\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestWriteCSV_MissingColumn(t *testing.T) {
	records := []renewables.Record{{"hello": "world"}}

	var buf bytes.Buffer
	err := WriteCSV(&buf, records, DefaultColumns)
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written on error, got %q", buf.String())
	}
}

func TestWriteCSV_RecordWithoutColumnGetsEmptyCell(t *testing.T) {
	records := []renewables.Record{
		transformedRecord("2024-06-23 00:00:00 UTC", "1", "2", "3"),
		{renewables.RawTimestampKey: "###", "variable": "1", "value": "2", "last_modified_utc": "3"},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records, DefaultColumns); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "timestamp_utc,variable,value,last_modified_utc\n" +
		"2024-06-23 00:00:00 UTC,1,2,3\n" +
		",1,2,3\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{json.Number("1719100800000"), "1719100800000"},
		{float64(1.5), "1.5"},
		{float64(1719100800000), "1719100800000"},
		{float32(0.25), "0.25"},
		{true, "true"},
		{42, "42"},
		{time.Date(2024, 6, 23, 2, 0, 0, 0, time.FixedZone("", 2*3600)), "2024-06-23 00:00:00 UTC"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCSVSink_WriteRecords(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	sink := NewCSVSink(dir, nil)

	records := []renewables.Record{transformedRecord("2024-06-23 00:00:00 UTC", "973", "1.0", "x")}
	if err := sink.WriteRecords("solar_data.csv", records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "solar_data.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "timestamp_utc,variable,value,last_modified_utc\n2024-06-23 00:00:00 UTC,973,1.0,x\n"
	if string(data) != want {
		t.Fatalf("unexpected file contents: %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}

	info, err := os.Stat(filepath.Join(dir, "solar_data.csv"))
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if perm := info.Mode().Perm(); perm&0o044 != 0o044 {
		t.Fatalf("output should be group and world readable, got %v", perm)
	}
}

func TestCSVSink_OverwritesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	sink := NewCSVSink(dir, nil)

	first := []renewables.Record{
		transformedRecord("a", "1", "1", "1"),
		transformedRecord("b", "2", "2", "2"),
	}
	if err := sink.WriteRecords("wind_data.csv", first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := sink.WriteRecords("wind_data.csv", nil); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "wind_data.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "timestamp_utc,variable,value,last_modified_utc\n" {
		t.Fatalf("file not replaced: %q", data)
	}
}

func TestCSVSink_FailedWriteKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	sink := NewCSVSink(dir, nil)

	good := []renewables.Record{transformedRecord("a", "1", "1", "1")}
	if err := sink.WriteRecords("solar_data.csv", good); err != nil {
		t.Fatalf("first write: %v", err)
	}
	err := sink.WriteRecords("solar_data.csv", []renewables.Record{{"hello": "world"}})
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "solar_data.csv"))
	if string(data) != "timestamp_utc,variable,value,last_modified_utc\na,1,1,1\n" {
		t.Fatalf("previous file clobbered: %q", data)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
