package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/econolens/econolens/backend/internal/models"
	"github.com/econolens/econolens/backend/internal/refdata"
)

// DefaultMacroBaseURL is the World Bank open data API.
const DefaultMacroBaseURL = "https://api.worldbank.org/v2"

// macroYears is how far back the indicator queries reach.
const macroYears = 15

// MacroAdapter fetches the catalog's indicator time series for one country
// from a World Bank style API.
type MacroAdapter struct {
	fetcher *Fetcher
	baseURL string
	ref     *refdata.Store
	log     *slog.Logger
}

// NewMacroAdapter wires the adapter; empty baseURL selects the World Bank
// API.
func NewMacroAdapter(fetcher *Fetcher, ref *refdata.Store, baseURL string, log *slog.Logger) *MacroAdapter {
	if baseURL == "" {
		baseURL = DefaultMacroBaseURL
	}
	return &MacroAdapter{fetcher: fetcher, baseURL: baseURL, ref: ref, log: log}
}

// observation is one row of the API's [metadata, data] response pair. The
// value is null for years without a reading.
type observation struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Fetch returns indicator code -> series for the country. An indicator the
// upstream has no data for is skipped; if every indicator comes back empty
// the country is NotFound. Any transport failure makes the whole section a
// FetchError, since a partially fetched indicator set would not be
// internally consistent.
func (m *MacroAdapter) Fetch(ctx context.Context, country refdata.Country) (map[string]models.TimeSeries, error) {
	to := time.Now().Year()
	from := to - macroYears

	out := make(map[string]models.TimeSeries)
	for _, ind := range m.ref.Indicators() {
		series, err := m.fetchIndicator(ctx, country.Code, ind.Code, from, to)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if len(series) > 0 {
			out[ind.Code] = series
		}
	}

	if len(out) == 0 {
		return nil, NotFound(fmt.Sprintf("no indicator data for %s", country.Code))
	}
	return out, nil
}

func (m *MacroAdapter) fetchIndicator(ctx context.Context, countryCode, indicatorCode string, from, to int) (models.TimeSeries, error) {
	u := fmt.Sprintf("%s/country/%s/indicator/%s?format=json&per_page=%d&date=%d:%d",
		m.baseURL, countryCode, indicatorCode, macroYears+1, from, to)

	body, err := m.fetcher.Get(ctx, u)
	if err != nil {
		return nil, err
	}

	// Response shape: [pageMetadata, [observation, ...]]
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, FetchFailed(fmt.Sprintf("decode %s/%s", countryCode, indicatorCode), err)
	}
	if len(envelope) < 2 {
		return nil, NotFound(fmt.Sprintf("%s has no %s observations", countryCode, indicatorCode))
	}

	var rows []observation
	if err := json.Unmarshal(envelope[1], &rows); err != nil {
		return nil, FetchFailed(fmt.Sprintf("decode %s/%s observations", countryCode, indicatorCode), err)
	}

	series := make(models.TimeSeries, 0, len(rows))
	seen := make(map[int]struct{}, len(rows))
	for _, row := range rows {
		if row.Value == nil {
			// a sparse series stays sparse
			continue
		}
		year, err := strconv.Atoi(row.Date)
		if err != nil {
			m.log.Debug("skipping non-annual period",
				slog.String("indicator", indicatorCode), slog.String("date", row.Date))
			continue
		}
		if _, dup := seen[year]; dup {
			continue
		}
		seen[year] = struct{}{}
		series = append(series, models.Point{Year: year, Value: *row.Value})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Year < series[j].Year })

	if len(series) == 0 {
		return nil, NotFound(fmt.Sprintf("%s has no %s observations", countryCode, indicatorCode))
	}
	return series, nil
}
