package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/i474232898/renewables-etl/internal/renewables"
)

// WindRepository reads the daily wind dataset, CSV text with a header row.
type WindRepository struct {
	repository
}

// NewWindRepository creates the wind repository.
func NewWindRepository(endpoint Endpoint, fetcher Fetcher, writer Writer) *WindRepository {
	return &WindRepository{repository{
		source:   renewables.SourceWind,
		endpoint: endpoint,
		fetcher:  fetcher,
		writer:   writer,
		filename: WindFilename,
	}}
}

// FetchForDate fetches and decodes the wind records for date.
func (r *WindRepository) FetchForDate(ctx context.Context, date string) ([]renewables.Record, error) {
	body, err := r.fetchBody(ctx, date)
	if err != nil {
		return nil, err
	}
	records, err := DecodeWind(body)
	if err != nil {
		return nil, fmt.Errorf("wind data for %s: %w", date, err)
	}
	return records, nil
}

// DecodeWind parses CSV text into one Record per data row, keyed by the
// header names verbatim. Cells stay strings.
func DecodeWind(body string) ([]renewables.Record, error) {
	r := csv.NewReader(strings.NewReader(body))

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty CSV body", ErrDecode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	var records []renewables.Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		rec := make(renewables.Record, len(header))
		for i, name := range header {
			rec[name] = row[i]
		}
		records = append(records, rec)
	}
	if records == nil {
		records = []renewables.Record{}
	}
	return records, nil
}
