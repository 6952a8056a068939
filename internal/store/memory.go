package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/renewables-etl/internal/renewables"
)

var (
	// ErrNotFound is returned when no run matches the query.
	ErrNotFound = errors.New("no run history")
)

// MemoryStore is a concurrency-safe in-memory history of ETL runs.
type MemoryStore struct {
	mu sync.RWMutex

	// ordered by StartedAt
	runs []renewables.RunReport

	// retention configuration
	maxHistory int           // max number of runs kept
	maxAge     time.Duration // optional max age for runs
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory or maxAge is <= 0, that limit is disabled.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save records a finished run and enforces retention.
func (s *MemoryStore) Save(report renewables.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep ordering when a slow run finishes after a later one.
	i := len(s.runs)
	for i > 0 && s.runs[i-1].StartedAt.After(report.StartedAt) {
		i--
	}
	s.runs = append(s.runs, renewables.RunReport{})
	copy(s.runs[i+1:], s.runs[i:])
	s.runs[i] = report

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.runs) > s.maxHistory {
		over := len(s.runs) - s.maxHistory
		s.runs = s.runs[over:]
	}

	// Enforce retention by age. The newest run always survives.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.runs)-1; i++ {
			if !s.runs[i].StartedAt.Before(cutoff) {
				break
			}
		}
		s.runs = s.runs[i:]
	}
}

// Latest returns the most recently started run.
func (s *MemoryStore) Latest() (renewables.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return renewables.RunReport{}, ErrNotFound
	}
	return s.runs[len(s.runs)-1], nil
}

// Range returns all runs started between from and to (inclusive).
func (s *MemoryStore) Range(from, to time.Time) ([]renewables.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []renewables.RunReport
	for _, run := range s.runs {
		if !run.StartedAt.Before(from) && !run.StartedAt.After(to) {
			result = append(result, run)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Len returns the number of runs currently retained.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
