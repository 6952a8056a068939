package renewables

import (
	"time"

	"github.com/google/uuid"
)

// Source selects the upstream dataset, its decoding rules and its output file.
type Source string

const (
	SourceSolar Source = "solar"
	SourceWind  Source = "wind"
)

// Sources returns every known source in a stable order.
func Sources() []Source {
	return []Source{SourceSolar, SourceWind}
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	return s == SourceSolar || s == SourceWind
}

func (s Source) String() string {
	return string(s)
}

const (
	// RawTimestampKey is the upstream naive timestamp field. The trailing
	// space is part of the key as delivered by the API.
	RawTimestampKey = "Naive_Timestamp "
	// TimestampKey replaces RawTimestampKey once a record is normalized.
	TimestampKey = "Timestamp_UTC"
	// TimestampLayout formats TimestampKey values, e.g. "2024-06-23 00:00:00 UTC".
	TimestampLayout = "2006-01-02 15:04:05"

	// DateLayout formats the dates of a DateWindow.
	DateLayout = "2006-01-02"
)

// Record is one observation as decoded from the upstream payload.
// Keys are the upstream field names, verbatim.
type Record map[string]any

// SourceReport summarizes one source pipeline of a run.
type SourceReport struct {
	Source            Source   `json:"source"`
	Records           int      `json:"records"`
	FailedDates       []string `json:"failedDates,omitempty"`
	TransformFailures int      `json:"transformFailures"`
	Persisted         bool     `json:"persisted"`
	Error             string   `json:"error,omitempty"`
}

// RunReport describes one execution of the weekly ETL.
type RunReport struct {
	ID         uuid.UUID               `json:"id"`
	StartedAt  time.Time               `json:"startedAt"` // always UTC
	FinishedAt time.Time               `json:"finishedAt"`
	Window     DateWindow              `json:"window"`
	Sources    map[Source]SourceReport `json:"sources"`
}

// Succeeded reports whether at least one source was persisted.
func (r RunReport) Succeeded() bool {
	for _, sr := range r.Sources {
		if sr.Persisted {
			return true
		}
	}
	return false
}
