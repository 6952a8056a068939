package renewables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/renewables-etl/internal/logging"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// Service orchestrates the weekly fetch, transform and persist cycle for every source.
type Service struct {
	repos    map[Source]Repository
	store    RunStore
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source used to compute the date window.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService creates a new Service. Repositories are keyed by their Source;
// store may be nil when run history is not needed.
func NewService(store RunStore, repos []Repository, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Service{
		repos:    make(map[Source]Repository, len(repos)),
		store:    store,
		recorder: nopRecorder{},
		logger:   logger,
		now:      time.Now,
	}
	for _, r := range repos {
		s.repos[r.Source()] = r
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs one full ETL cycle and blocks until both source pipelines have
// persisted their output or failed. Per-source failures are reported in the
// RunReport; the returned error is non-nil only when the run could not start
// or ctx was cancelled.
func (s *Service) Execute(ctx context.Context) (RunReport, error) {
	if !s.tryStart() {
		return RunReport{}, ErrRunInProgress
	}
	defer s.finish()

	report := s.run(ctx, uuid.New())
	return report, ctx.Err()
}

// Trigger starts a run in the background and returns its id immediately.
func (s *Service) Trigger(ctx context.Context) (uuid.UUID, error) {
	if !s.tryStart() {
		return uuid.Nil, ErrRunInProgress
	}
	id := uuid.New()
	go func() {
		defer s.finish()
		s.run(ctx, id)
	}()
	return id, nil
}

// Running reports whether a run is in progress.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Service) finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Service) run(ctx context.Context, id uuid.UUID) RunReport {
	started := s.now().UTC()
	window := ComputeWeekWindow(started)
	logger := s.logger.With("run_id", id.String())

	logger.Info("[RUN_START] starting weekly renewables ETL",
		"window_start", window.Start(), "window_end", window.End())

	sources := Sources()
	results := make([]SourceReport, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		i, src := i, src
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.runPipeline(ctx, logger, window, src)
		}()
	}
	wg.Wait()

	report := RunReport{
		ID:         id,
		StartedAt:  started,
		FinishedAt: s.now().UTC(),
		Window:     window,
		Sources:    make(map[Source]SourceReport, len(results)),
	}
	for _, r := range results {
		report.Sources[r.Source] = r
	}

	s.recorder.ObserveRun(report.FinishedAt.Sub(report.StartedAt))
	if s.store != nil {
		s.store.Save(report)
	}

	logger.Info("[RUN_COMPLETE] weekly renewables ETL finished",
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
		"succeeded", report.Succeeded())
	return report
}

// runPipeline fetches, transforms and persists a single source. It never
// panics on upstream data and always attempts to persist.
func (s *Service) runPipeline(ctx context.Context, logger *slog.Logger, window DateWindow, src Source) SourceReport {
	report := SourceReport{Source: src}
	logger = logger.With("source", src.String())

	repo, ok := s.repos[src]
	if !ok {
		report.Error = fmt.Sprintf("no repository configured for %s", src)
		logger.Error("[PIPELINE_FAILED] no repository configured")
		return report
	}

	records, failed := s.fetchForWindow(ctx, logger, repo, window[:])
	report.Records = len(records)
	report.FailedDates = failed
	s.recorder.ObserveRecords(src, "fetched", len(records))

	stats := Transform(records, src, logger)
	report.TransformFailures = stats.Failed
	if stats.Failed > 0 {
		s.recorder.ObserveTransformFailures(src, stats.Failed)
	}
	logger.Info("[TRANSFORM_COMPLETE] timestamps normalized",
		"transformed", stats.Transformed, "skipped", stats.Skipped, "failed", stats.Failed)

	if err := repo.Persist(ctx, records); err != nil {
		report.Error = err.Error()
		s.recorder.ObservePersistError(src)
		logger.Error("[PERSIST_FAILED] failed to persist records", "records", len(records), "error", err)
		return report
	}
	report.Persisted = true
	s.recorder.ObserveRecords(src, "persisted", len(records))
	return report
}

// FetchForWindow fetches every date in order for source and concatenates the
// records. Dates that fail are logged and omitted; they are returned as the
// second value.
func (s *Service) FetchForWindow(ctx context.Context, dates []string, source Source) ([]Record, []string) {
	repo, ok := s.repos[source]
	if !ok {
		s.logger.Error("[FETCH_WINDOW_FAILED] no repository configured", "source", source.String())
		return nil, append([]string(nil), dates...)
	}
	return s.fetchForWindow(ctx, s.logger.With("source", source.String()), repo, dates)
}

func (s *Service) fetchForWindow(ctx context.Context, logger *slog.Logger, repo Repository, dates []string) ([]Record, []string) {
	var (
		results []Record
		failed  []string
	)
	for _, date := range dates {
		records, err := repo.FetchForDate(ctx, date)
		if err != nil {
			// Log and continue; a bad day must not sink the week.
			logger.Error("[FETCH_DATE_FAILED] exception when fetching data", "date", date, "error", err)
			failed = append(failed, date)
			continue
		}
		results = append(results, records...)
		logger.Debug("[FETCH_DATE_OK] fetched records", "date", date, "records", len(records))
	}
	return results, failed
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest() (RunReport, error) {
	if s.store == nil {
		return RunReport{}, errors.New("run history not configured")
	}
	return s.store.Latest()
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(from, to time.Time) ([]RunReport, error) {
	if s.store == nil {
		return nil, errors.New("run history not configured")
	}
	return s.store.Range(from, to)
}
