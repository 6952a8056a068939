package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/i474232898/renewables-etl/internal/renewables"
)

// SolarRepository reads the daily solar dataset, a JSON array of objects.
type SolarRepository struct {
	repository
}

// NewSolarRepository creates the solar repository.
func NewSolarRepository(endpoint Endpoint, fetcher Fetcher, writer Writer) *SolarRepository {
	return &SolarRepository{repository{
		source:   renewables.SourceSolar,
		endpoint: endpoint,
		fetcher:  fetcher,
		writer:   writer,
		filename: SolarFilename,
	}}
}

// FetchForDate fetches and decodes the solar records for date.
func (r *SolarRepository) FetchForDate(ctx context.Context, date string) ([]renewables.Record, error) {
	body, err := r.fetchBody(ctx, date)
	if err != nil {
		return nil, err
	}
	records, err := DecodeSolar(body)
	if err != nil {
		return nil, fmt.Errorf("solar data for %s: %w", date, err)
	}
	return records, nil
}

// DecodeSolar parses a JSON array of objects. Numbers are kept as
// json.Number so that epoch milliseconds survive without float rounding.
// A null body yields no records.
func DecodeSolar(body string) ([]renewables.Record, error) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()

	var raw []renewables.Record
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON array", ErrDecode)
	}

	records := make([]renewables.Record, 0, len(raw))
	for _, rec := range raw {
		// [null] decodes to a nil map
		if rec == nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
