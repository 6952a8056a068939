package renewables

import (
	"encoding/json"
	"reflect"
	"testing"
)

func solarRecord() Record {
	return Record{
		RawTimestampKey:     json.Number("1719100800000"),
		" Variable":         json.Number("973"),
		"value":             json.Number("-33.9277882476"),
		"Last Modified utc": json.Number("1719100800000"),
	}
}

func windRecord() Record {
	return Record{
		RawTimestampKey:     "2024-06-23 00:00:00+00:00",
		" Variable":         "282",
		"value":             "13.251143780434838",
		"Last Modified utc": "2024-06-23 00:00:00+00:00",
	}
}

func TestTransform_Solar(t *testing.T) {
	records := []Record{solarRecord()}
	stats := Transform(records, SourceSolar, nil)

	if stats.Transformed != 1 || stats.Failed != 0 || stats.Skipped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got := records[0][TimestampKey]; got != "2024-06-23 00:00:00 UTC" {
		t.Fatalf("Timestamp_UTC = %v, want 2024-06-23 00:00:00 UTC", got)
	}
	if _, ok := records[0][RawTimestampKey]; ok {
		t.Fatal("raw timestamp key should be removed")
	}
	if records[0]["value"] != json.Number("-33.9277882476") {
		t.Fatalf("other fields must be untouched, value = %v", records[0]["value"])
	}
}

func TestTransform_Wind(t *testing.T) {
	records := []Record{windRecord()}
	stats := Transform(records, SourceWind, nil)

	if stats.Transformed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if got := records[0][TimestampKey]; got != "2024-06-23 00:00:00 UTC" {
		t.Fatalf("Timestamp_UTC = %v, want 2024-06-23 00:00:00 UTC", got)
	}
	if _, ok := records[0][RawTimestampKey]; ok {
		t.Fatal("raw timestamp key should be removed")
	}
}

func TestTransform_MissingKeyPassesThrough(t *testing.T) {
	for _, src := range Sources() {
		records := []Record{{"hello": "world"}}
		stats := Transform(records, src, nil)

		if stats.Skipped != 1 || stats.Transformed != 0 || stats.Failed != 0 {
			t.Fatalf("%s: unexpected stats: %+v", src, stats)
		}
		if !reflect.DeepEqual(records[0], Record{"hello": "world"}) {
			t.Fatalf("%s: record changed: %v", src, records[0])
		}
	}
}

func TestTransform_MixedBatch(t *testing.T) {
	records := []Record{{"hello": "world"}, windRecord()}
	stats := Transform(records, SourceWind, nil)

	if stats.Skipped != 1 || stats.Transformed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if _, ok := records[0][TimestampKey]; ok {
		t.Fatal("record without raw key must not gain Timestamp_UTC")
	}
	if records[1][TimestampKey] != "2024-06-23 00:00:00 UTC" {
		t.Fatalf("unexpected timestamp: %v", records[1][TimestampKey])
	}
}

func TestTransform_Empty(t *testing.T) {
	stats := Transform(nil, SourceSolar, nil)
	if stats != (TransformStats{}) {
		t.Fatalf("unexpected stats for empty batch: %+v", stats)
	}
}

func TestTransform_MalformedIsIsolated(t *testing.T) {
	bad := Record{RawTimestampKey: "###", "value": "1"}
	records := []Record{bad, windRecord()}
	stats := Transform(records, SourceWind, nil)

	if stats.Failed != 1 || stats.Transformed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if records[0][RawTimestampKey] != "###" {
		t.Fatal("malformed record must keep its raw field")
	}
	if _, ok := records[0][TimestampKey]; ok {
		t.Fatal("malformed record must not gain Timestamp_UTC")
	}
	if records[1][TimestampKey] != "2024-06-23 00:00:00 UTC" {
		t.Fatalf("valid record not transformed: %v", records[1])
	}
}

func TestTransform_OutOfRangeEpochIsIsolated(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"max int64", json.Number("9223372036854775807")},
		{"exponent", json.Number("1e20")},
		{"huge float", float64(1e25)},
		{"negative string", "-99999999999999999"},
		{"year 10000", int64(253402300800000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []Record{{RawTimestampKey: tt.raw}, solarRecord()}
			stats := Transform(records, SourceSolar, nil)

			if stats.Failed != 1 || stats.Transformed != 1 {
				t.Fatalf("unexpected stats: %+v", stats)
			}
			if _, ok := records[0][TimestampKey]; ok {
				t.Fatalf("out-of-range epoch must not gain Timestamp_UTC: %v", records[0])
			}
			if records[0][RawTimestampKey] != tt.raw {
				t.Fatal("out-of-range record must keep its raw field")
			}
		})
	}
}

func TestCanonicalTimestamp_YearBounds(t *testing.T) {
	got, err := CanonicalTimestamp(int64(253402300799000), SourceSolar)
	if err != nil || got != "9999-12-31 23:59:59 UTC" {
		t.Fatalf("last representable second: %q, %v", got, err)
	}
	if _, err := CanonicalTimestamp(int64(-62135596801000), SourceSolar); err == nil {
		t.Fatal("expected error for year 0")
	}
}

func TestTransform_Idempotent(t *testing.T) {
	records := []Record{solarRecord()}
	Transform(records, SourceSolar, nil)

	snapshot := Record{}
	for k, v := range records[0] {
		snapshot[k] = v
	}

	stats := Transform(records, SourceSolar, nil)
	if stats.Transformed != 0 || stats.Skipped != 1 {
		t.Fatalf("second pass should be a no-op, got %+v", stats)
	}
	if !reflect.DeepEqual(records[0], snapshot) {
		t.Fatalf("second pass changed record: %v vs %v", records[0], snapshot)
	}
}

func TestCanonicalTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		source  Source
		want    string
		wantErr bool
	}{
		{name: "solar json number", raw: json.Number("1719100800000"), source: SourceSolar, want: "2024-06-23 00:00:00 UTC"},
		{name: "solar float64", raw: float64(1719100800000), source: SourceSolar, want: "2024-06-23 00:00:00 UTC"},
		{name: "solar int64", raw: int64(1719104400000), source: SourceSolar, want: "2024-06-23 01:00:00 UTC"},
		{name: "solar fractional json number", raw: json.Number("1719100800500.0"), source: SourceSolar, want: "2024-06-23 00:00:00 UTC"},
		{name: "solar numeric string", raw: "1719100800000", source: SourceSolar, want: "2024-06-23 00:00:00 UTC"},
		{name: "solar garbage string", raw: "yesterday", source: SourceSolar, wantErr: true},
		{name: "solar nil", raw: nil, source: SourceSolar, wantErr: true},
		{name: "solar bool", raw: true, source: SourceSolar, wantErr: true},
		{name: "wind offset", raw: "2024-06-23 00:00:00+00:00", source: SourceWind, want: "2024-06-23 00:00:00 UTC"},
		{name: "wind rfc3339 zulu", raw: "2023-06-01T12:00:00Z", source: SourceWind, want: "2023-06-01 12:00:00 UTC"},
		{name: "wind non-utc offset", raw: "2024-06-23 02:00:00+02:00", source: SourceWind, want: "2024-06-23 00:00:00 UTC"},
		{name: "wind naive is utc", raw: "2024-06-23 05:30:00", source: SourceWind, want: "2024-06-23 05:30:00 UTC"},
		{name: "wind date only", raw: "2024-06-23", source: SourceWind, want: "2024-06-23 00:00:00 UTC"},
		{name: "wind empty", raw: "  ", source: SourceWind, wantErr: true},
		{name: "wind garbage", raw: "###", source: SourceWind, wantErr: true},
		{name: "wind number", raw: json.Number("1719100800000"), source: SourceWind, wantErr: true},
		{name: "unknown source", raw: "2024-06-23", source: Source("tidal"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalTimestamp(tt.raw, tt.source)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("CanonicalTimestamp(%v) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
