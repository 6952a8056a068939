package renewables

import (
	"context"
	"time"
)

// Repository binds a Source to its upstream endpoint and its output file.
type Repository interface {
	Source() Source
	FetchForDate(ctx context.Context, date string) ([]Record, error)
	Persist(ctx context.Context, records []Record) error
}

// RunStore keeps the history of run reports.
type RunStore interface {
	Save(report RunReport)
	Latest() (RunReport, error)
	Range(from, to time.Time) ([]RunReport, error)
}

// Recorder receives pipeline metrics. Stage is "fetched" or "persisted".
type Recorder interface {
	ObserveRecords(source Source, stage string, n int)
	ObserveTransformFailures(source Source, n int)
	ObservePersistError(source Source)
	ObserveRun(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRecords(Source, string, int) {}
func (nopRecorder) ObserveTransformFailures(Source, int) {}
func (nopRecorder) ObservePersistError(Source) {}
func (nopRecorder) ObserveRun(time.Duration) {}
