package aggregator_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/econolens/econolens/backend/internal/aggregator"
	"github.com/econolens/econolens/backend/internal/cache"
	"github.com/econolens/econolens/backend/internal/models"
	"github.com/econolens/econolens/backend/internal/refdata"
	"github.com/econolens/econolens/backend/internal/sources"
)

const testRefdata = `
countries:
  - { name: Nigeria, code: NG, demonym: Nigerian, region: sub-saharan-africa }
indicators:
  - code: NY.GDP.MKTP.CD
    category: economy
    description: GDP (current US$)
    baselines:
      sub-saharan-africa: 450
  - code: FP.CPI.TOTL.ZG
    category: prices
    description: Inflation (annual %)
    baselines: {}
`

type stubCompany struct {
	mu    sync.Mutex
	calls int
	facts models.CompanyFacts
	err   error
}

func (s *stubCompany) Fetch(ctx context.Context, name string) (models.CompanyFacts, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if ctx.Err() != nil {
		return models.CompanyFacts{}, sources.FetchFailed("company", ctx.Err())
	}
	return s.facts, s.err
}

func (s *stubCompany) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubNews struct {
	mu    sync.Mutex
	calls int
	items []models.NewsItem
	err   error
}

func (s *stubNews) Fetch(ctx context.Context, query string) ([]models.NewsItem, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.items, s.err
}

func (s *stubNews) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubMacro struct {
	mu     sync.Mutex
	calls  int
	series map[string]models.TimeSeries
	err    error
}

func (s *stubMacro) Fetch(ctx context.Context, country refdata.Country) (map[string]models.TimeSeries, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.series, s.err
}

type stubStore struct {
	mu   sync.Mutex
	docs map[string]models.AggregatedDocument
}

func newStubStore() *stubStore {
	return &stubStore{docs: make(map[string]models.AggregatedDocument)}
}

func (s *stubStore) Get(_ context.Context, key string) (*models.AggregatedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[key]; ok {
		return &doc, nil
	}
	return nil, nil
}

func (s *stubStore) Put(_ context.Context, doc models.AggregatedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Key] = doc
	return nil
}

func (s *stubStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRef(t *testing.T) *refdata.Store {
	t.Helper()
	ref, err := refdata.Parse([]byte(testRefdata))
	require.NoError(t, err)
	return ref
}

func companyFacts() models.CompanyFacts {
	return models.CompanyFacts{
		Name:        "Andela",
		Description: "Talent marketplace.",
		Country:     "Nigeria",
		Info:        map[string]string{"industry": "Technology"},
		InfoFixed:   map[string]string{"investors": "53"},
	}
}

type fixture struct {
	agg     *aggregator.Aggregator
	cache   *cache.Cache
	company *stubCompany
	news    *stubNews
	macro   *stubMacro
	store   *stubStore
}

func newFixture(t *testing.T, cacheTTL time.Duration, store *stubStore) *fixture {
	t.Helper()
	f := &fixture{
		cache:   cache.New(100, cacheTTL),
		company: &stubCompany{facts: companyFacts()},
		news:    &stubNews{items: []models.NewsItem{{ID: "a1", Title: "Andela raises"}}},
		macro:   &stubMacro{},
		store:   store,
	}
	var ds aggregator.DocumentStore
	if store != nil {
		ds = store
	}
	f.agg = aggregator.New(f.cache, ds, f.company, f.macro, f.news, testRef(t), aggregator.Options{}, discard())
	return f
}

func TestCompanyDocumentMergesSections(t *testing.T) {
	f := newFixture(t, time.Minute, nil)

	doc, err := f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)

	require.Equal(t, "company:andela", doc.Key)
	require.Equal(t, "Andela", doc.Company)
	require.Equal(t, "Nigeria", doc.Country)
	require.Len(t, doc.Articles, 1)
	require.Equal(t, models.SectionOK, doc.Sections[models.SectionCompany].Status)
	require.Equal(t, models.SectionOK, doc.Sections[models.SectionNews].Status)
}

func TestSecondCallWithinTTLHitsCache(t *testing.T) {
	f := newFixture(t, time.Minute, nil)

	_, err := f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)
	_, err = f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)

	require.Equal(t, 1, f.company.callCount())
	require.Equal(t, 1, f.news.callCount())
}

func TestKeysDifferingInCaseAndWhitespaceShareSlot(t *testing.T) {
	f := newFixture(t, time.Minute, nil)

	first, err := f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)
	second, err := f.agg.CompanyDocument(context.Background(), "  ANDELA ")
	require.NoError(t, err)

	require.Equal(t, first.Key, second.Key)
	require.Equal(t, 1, f.company.callCount())
}

func TestTTLExpiryTriggersFreshFetch(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond, nil)

	_, err := f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	_, err = f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)
	require.Equal(t, 2, f.company.callCount())
}

func TestNewsFailureDegradesSectionOnly(t *testing.T) {
	f := newFixture(t, time.Minute, nil)
	f.news.err = sources.FetchFailed("feed down", io.ErrUnexpectedEOF)

	doc, err := f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)

	require.Equal(t, "Andela", doc.Company)
	require.Empty(t, doc.Articles)
	require.Equal(t, models.SectionFailed, doc.Sections[models.SectionNews].Status)
	require.Equal(t, string(sources.KindFetchError), doc.Sections[models.SectionNews].Kind)
}

func TestAllSectionsNotFoundIsNotFoundAndCached(t *testing.T) {
	f := newFixture(t, time.Minute, nil)
	f.company.err = sources.NotFound("no article")
	f.news.err = sources.NotFound("no articles")

	doc, err := f.agg.CompanyDocument(context.Background(), "ghost")
	require.ErrorIs(t, err, aggregator.ErrNotFound)
	require.Equal(t, models.SectionEmpty, doc.Sections[models.SectionCompany].Status)

	// negative outcome is cached: no second round of adapter calls
	_, err = f.agg.CompanyDocument(context.Background(), "ghost")
	require.ErrorIs(t, err, aggregator.ErrNotFound)
	require.Equal(t, 1, f.company.callCount())
}

func TestAllSectionsTransientIsUnavailableAndNotCached(t *testing.T) {
	f := newFixture(t, time.Minute, nil)
	f.company.err = sources.FetchFailed("timeout", context.DeadlineExceeded)
	f.news.err = sources.FetchFailed("feed down", io.ErrUnexpectedEOF)

	_, err := f.agg.CompanyDocument(context.Background(), "Andela")
	require.ErrorIs(t, err, aggregator.ErrUnavailable)

	_, err = f.agg.CompanyDocument(context.Background(), "Andela")
	require.ErrorIs(t, err, aggregator.ErrUnavailable)

	// transient failures must not be memoized
	require.Equal(t, 2, f.company.callCount())
}

func TestBlankEntityIsNotFound(t *testing.T) {
	f := newFixture(t, time.Minute, nil)
	_, err := f.agg.CompanyDocument(context.Background(), "   ")
	require.ErrorIs(t, err, aggregator.ErrNotFound)
	require.Zero(t, f.company.callCount())
}

func TestCancelledRequestStillWarmsCache(t *testing.T) {
	f := newFixture(t, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the stubs fail on a live cancelled context, so success here proves
	// the fetch ran detached from the request
	doc, err := f.agg.CompanyDocument(ctx, "Andela")
	require.NoError(t, err)
	require.Equal(t, "Andela", doc.Company)

	_, err = f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)
	require.Equal(t, 1, f.company.callCount())
}

func TestCountryDocumentDerivesMetrics(t *testing.T) {
	f := newFixture(t, time.Minute, nil)
	f.macro.series = map[string]models.TimeSeries{
		"NY.GDP.MKTP.CD": {
			{Year: 2020, Value: 480},
			{Year: 2021, Value: 490},
			{Year: 2022, Value: 495},
			{Year: 2023, Value: 498},
			{Year: 2024, Value: 500},
		},
		"FP.CPI.TOTL.ZG": {
			{Year: 2023, Value: 18.8},
			{Year: 2024, Value: 24.7},
		},
	}

	doc, err := f.agg.CountryDocument(context.Background(), "NG")
	require.NoError(t, err)
	require.Equal(t, "country:ng", doc.Key)
	require.Equal(t, "Nigeria", doc.Country)

	gdp := doc.MacroDetails["economy"]["NY.GDP.MKTP.CD"]
	require.Equal(t, 500.0, gdp.CurrentValue)
	require.Equal(t, []int{2020, 2021, 2022, 2023, 2024}, gdp.Trend.Year)
	require.NotNil(t, gdp.Comparison.RegionalAverage)
	require.Equal(t, 450.0, *gdp.Comparison.RegionalAverage)
	require.NotNil(t, gdp.PercentageDifference)
	require.InDelta(t, 0.111, *gdp.PercentageDifference, 0.001)
	require.Equal(t, "Stable", gdp.VolatilityLabel)

	// no baseline on record: comparison undefined, not zero-by-stealth
	cpi := doc.MacroDetails["prices"]["FP.CPI.TOTL.ZG"]
	require.Nil(t, cpi.PercentageDifference)
	require.Nil(t, cpi.Comparison.RegionalAverage)
	require.Equal(t, 24.7, cpi.CurrentValue)
}

func TestCountryNotCoveredIsNotFound(t *testing.T) {
	f := newFixture(t, time.Minute, nil)

	doc, err := f.agg.CountryDocument(context.Background(), "France")
	require.ErrorIs(t, err, aggregator.ErrNotFound)
	require.Equal(t, models.SectionEmpty, doc.Sections[models.SectionMacro].Status)
}

func TestCountryCodeAndNameShareSlotViaRefdata(t *testing.T) {
	f := newFixture(t, time.Minute, nil)
	f.macro.series = map[string]models.TimeSeries{
		"NY.GDP.MKTP.CD": {{Year: 2024, Value: 500}},
	}

	first, err := f.agg.CountryDocument(context.Background(), "Nigeria")
	require.NoError(t, err)
	second, err := f.agg.CountryDocument(context.Background(), " NG ")
	require.NoError(t, err)
	require.Equal(t, "country:ng", first.Key)
	require.Equal(t, first.Key, second.Key)

	f.macro.mu.Lock()
	defer f.macro.mu.Unlock()
	require.Equal(t, 1, f.macro.calls)
}

func TestFreshStoreDocumentSkipsAdapters(t *testing.T) {
	store := newStubStore()
	store.docs["company:andela"] = models.AggregatedDocument{
		Key:       "company:andela",
		Company:   "Andela",
		Sections:  map[string]models.SectionStatus{models.SectionCompany: {Status: models.SectionOK}},
		UpdatedAt: time.Now().UTC(),
	}

	f := newFixture(t, time.Minute, store)

	doc, err := f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)
	require.Equal(t, "Andela", doc.Company)
	require.Zero(t, f.company.callCount())
}

func TestStaleStoreDocumentTriggersRebuildAndRewrite(t *testing.T) {
	store := newStubStore()
	store.docs["company:andela"] = models.AggregatedDocument{
		Key:       "company:andela",
		Company:   "Old Andela",
		Sections:  map[string]models.SectionStatus{models.SectionCompany: {Status: models.SectionOK}},
		UpdatedAt: time.Now().UTC().Add(-30 * 24 * time.Hour),
	}

	f := newFixture(t, time.Minute, store)

	doc, err := f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)
	require.Equal(t, "Andela", doc.Company)
	require.Equal(t, 1, f.company.callCount())
	require.Equal(t, "Andela", store.docs["company:andela"].Company)
}

func TestRefreshBypassesCaches(t *testing.T) {
	f := newFixture(t, time.Minute, newStubStore())

	_, err := f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)

	_, err = f.agg.Refresh(context.Background(), "company:Andela")
	require.NoError(t, err)

	require.Equal(t, 2, f.company.callCount())
	require.Contains(t, f.store.docs, "company:andela")
}

func TestInvalidateDropsBothTiers(t *testing.T) {
	f := newFixture(t, time.Minute, newStubStore())

	_, err := f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)

	require.NoError(t, f.agg.Invalidate(context.Background(), models.KindCompany, "Andela"))
	require.NotContains(t, f.store.docs, "company:andela")

	_, err = f.agg.CompanyDocument(context.Background(), "Andela")
	require.NoError(t, err)
	require.Equal(t, 2, f.company.callCount())
}
