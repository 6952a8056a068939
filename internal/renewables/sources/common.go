package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/i474232898/renewables-etl/internal/renewables"
)

const (
	SolarFilename = "solar_data.csv"
	WindFilename  = "wind_data.csv"
)

// ErrDecode is returned when an upstream payload cannot be decoded.
var ErrDecode = errors.New("decode upstream payload")

var errEmptyDate = errors.New("date is required")

// Fetcher performs a GET and returns the response body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Writer persists a batch of records under a file name.
type Writer interface {
	WriteRecords(filename string, records []renewables.Record) error
}

// Endpoint locates one dataset on the upstream API.
type Endpoint struct {
	BaseURL string
	APIKey  string
	Path    string
}

// URLForDate builds {base}{date}/{path}?api_key={key}. BaseURL is expected to
// end with a slash.
func (e Endpoint) URLForDate(date string) string {
	return fmt.Sprintf("%s%s/%s?api_key=%s",
		e.BaseURL, date, strings.TrimPrefix(e.Path, "/"), url.QueryEscape(e.APIKey))
}

// repository holds what the solar and wind repositories share.
type repository struct {
	source   renewables.Source
	endpoint Endpoint
	fetcher  Fetcher
	writer   Writer
	filename string
}

func (r *repository) Source() renewables.Source {
	return r.source
}

func (r *repository) fetchBody(ctx context.Context, date string) (string, error) {
	if date == "" {
		return "", errEmptyDate
	}
	body, err := r.fetcher.Fetch(ctx, r.endpoint.URLForDate(date))
	if err != nil {
		return "", fmt.Errorf("fetch %s data for %s: %w", r.source, date, err)
	}
	return body, nil
}

// Persist writes records to the source's output file, replacing the previous run.
func (r *repository) Persist(ctx context.Context, records []renewables.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.writer.WriteRecords(r.filename, records)
}
