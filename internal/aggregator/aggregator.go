// Package aggregator orchestrates the source adapters, derives metrics,
// and merges everything into one cached document per entity.
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/econolens/econolens/backend/internal/cache"
	"github.com/econolens/econolens/backend/internal/metrics"
	"github.com/econolens/econolens/backend/internal/models"
	"github.com/econolens/econolens/backend/internal/refdata"
	"github.com/econolens/econolens/backend/internal/sources"
)

var (
	// ErrNotFound means every requested section genuinely has no data.
	ErrNotFound = errors.New("entity not found")

	// ErrUnavailable means no section produced data and at least one
	// failed transiently; the outcome is not cached.
	ErrUnavailable = errors.New("upstream sources unavailable")
)

// Narrow source contracts, declared here where they are consumed.

// CompanySource resolves a company name into normalized facts.
type CompanySource interface {
	Fetch(ctx context.Context, name string) (models.CompanyFacts, error)
}

// MacroSource fetches indicator time series for a covered country.
type MacroSource interface {
	Fetch(ctx context.Context, country refdata.Country) (map[string]models.TimeSeries, error)
}

// NewsSource fetches scored articles for a query term.
type NewsSource interface {
	Fetch(ctx context.Context, query string) ([]models.NewsItem, error)
}

// DocumentStore is the persistent pass-through cache tier. Optional.
type DocumentStore interface {
	Get(ctx context.Context, key string) (*models.AggregatedDocument, error)
	Put(ctx context.Context, doc models.AggregatedDocument) error
	Delete(ctx context.Context, key string) error
}

// Options tune the derivation and the persistent tier.
type Options struct {
	TrendWindow int
	Thresholds  metrics.Thresholds

	// DocumentTTL bounds how old a persisted document may be before the
	// store tier counts as a miss.
	DocumentTTL time.Duration
}

// DefaultDocumentTTL keeps persisted documents serveable for a week;
// retention prunes them separately.
const DefaultDocumentTTL = 7 * 24 * time.Hour

// Aggregator owns the pipeline. The entity cache is the only shared
// mutable state; all of it is behind the cache's own locking.
type Aggregator struct {
	opts    Options
	cache   *cache.Cache
	store   DocumentStore
	company CompanySource
	macro   MacroSource
	news    NewsSource
	ref     *refdata.Store
	log     *slog.Logger
}

// New wires the aggregator. store may be nil to run memory-only.
func New(c *cache.Cache, store DocumentStore, company CompanySource, macro MacroSource, news NewsSource, ref *refdata.Store, opts Options, log *slog.Logger) *Aggregator {
	if opts.TrendWindow <= 0 {
		opts.TrendWindow = metrics.DefaultTrendWindow
	}
	if opts.Thresholds == (metrics.Thresholds{}) {
		opts.Thresholds = metrics.DefaultThresholds()
	}
	if opts.DocumentTTL <= 0 {
		opts.DocumentTTL = DefaultDocumentTTL
	}
	return &Aggregator{
		opts:    opts,
		cache:   c,
		store:   store,
		company: company,
		macro:   macro,
		news:    news,
		ref:     ref,
		log:     log,
	}
}

// CompanyDocument returns the aggregated document for a company name.
// Partial documents are success; ErrNotFound and ErrUnavailable are the
// only failure outcomes.
func (a *Aggregator) CompanyDocument(ctx context.Context, raw string) (models.AggregatedDocument, error) {
	return a.document(ctx, models.KindCompany, raw)
}

// CountryDocument returns the macro document for a country code or name.
func (a *Aggregator) CountryDocument(ctx context.Context, raw string) (models.AggregatedDocument, error) {
	return a.document(ctx, models.KindCountry, raw)
}

// Refresh rebuilds an entity bypassing both cache tiers, then repopulates
// them. Keys look like "company:andela" or "country:ng"; a bare name is a
// company.
func (a *Aggregator) Refresh(ctx context.Context, rawKey string) (models.AggregatedDocument, error) {
	kind, name := models.ParseKey(rawKey)
	if name == "" {
		return models.AggregatedDocument{}, ErrNotFound
	}
	key := models.EntityKey(kind, a.canonical(kind, name))
	return a.cache.Do(key, func() (models.AggregatedDocument, error) {
		return a.build(ctx, kind, key, name)
	})
}

// canonical maps covered countries to their ISO code so a name and its
// code share one cache slot. Companies and unknown countries pass through.
func (a *Aggregator) canonical(kind, raw string) string {
	if kind == models.KindCountry {
		if country, ok := a.ref.Country(raw); ok {
			return country.Code
		}
	}
	return raw
}

// Invalidate drops an entity from both cache tiers.
func (a *Aggregator) Invalidate(ctx context.Context, kind, name string) error {
	key := models.EntityKey(kind, a.canonical(kind, name))
	a.cache.Invalidate(key)
	if a.store == nil {
		return nil
	}
	return a.store.Delete(ctx, key)
}

func (a *Aggregator) document(ctx context.Context, kind, raw string) (models.AggregatedDocument, error) {
	key := models.EntityKey(kind, a.canonical(kind, raw))
	if key == kind+":" {
		return models.AggregatedDocument{}, ErrNotFound
	}

	if doc, ok := a.cache.Get(key); ok {
		return outcome(doc)
	}

	return a.cache.Do(key, func() (models.AggregatedDocument, error) {
		// a concurrent flight may have landed while this caller queued
		if doc, ok := a.cache.Get(key); ok {
			return outcome(doc)
		}

		if doc, ok := a.fromStore(ctx, key); ok {
			a.cache.Put(key, doc)
			return outcome(doc)
		}

		return a.build(ctx, kind, key, raw)
	})
}

func (a *Aggregator) fromStore(ctx context.Context, key string) (models.AggregatedDocument, bool) {
	if a.store == nil {
		return models.AggregatedDocument{}, false
	}
	stored, err := a.store.Get(ctx, key)
	if err != nil {
		a.log.Warn("document store read failed", slog.String("key", key), slog.Any("err", err))
		return models.AggregatedDocument{}, false
	}
	if stored == nil || time.Since(stored.UpdatedAt) > a.opts.DocumentTTL {
		return models.AggregatedDocument{}, false
	}
	return *stored, true
}

func (a *Aggregator) build(ctx context.Context, kind, key, name string) (models.AggregatedDocument, error) {
	// Detached from the request: a disconnected caller still warms the
	// cache for the next one.
	base := context.WithoutCancel(ctx)

	var doc models.AggregatedDocument
	switch kind {
	case models.KindCountry:
		doc = a.buildCountry(base, key, name)
	default:
		doc = a.buildCompany(base, key, name)
	}

	var okCount, failedCount int
	for _, s := range doc.Sections {
		switch s.Status {
		case models.SectionOK:
			okCount++
		case models.SectionFailed:
			failedCount++
		}
	}

	if okCount == 0 && failedCount > 0 {
		// transient: never cached, would poison the TTL window
		return doc, ErrUnavailable
	}

	a.cache.Put(key, doc)
	if a.store != nil && okCount > 0 {
		if err := a.store.Put(base, doc); err != nil {
			a.log.Warn("document store write failed", slog.String("key", key), slog.Any("err", err))
		}
	}

	return outcome(doc)
}

func (a *Aggregator) buildCompany(ctx context.Context, key, name string) models.AggregatedDocument {
	now := time.Now().UTC()
	doc := models.AggregatedDocument{
		Key:       key,
		Sections:  make(map[string]models.SectionStatus, 2),
		CreatedAt: now,
		UpdatedAt: now,
	}

	var (
		facts    models.CompanyFacts
		factsErr error
		articles []models.NewsItem
		newsErr  error
	)

	// unrelated upstreams, fetched in parallel
	var g errgroup.Group
	g.Go(func() error {
		facts, factsErr = a.company.Fetch(ctx, name)
		return nil
	})
	g.Go(func() error {
		articles, newsErr = a.news.Fetch(ctx, name)
		return nil
	})
	_ = g.Wait()

	doc.Sections[models.SectionCompany] = sectionStatus(factsErr)
	if factsErr == nil {
		doc.Company = facts.Name
		doc.CompanyInfo = facts.Info
		doc.CompanyInfoFixed = facts.InfoFixed
		doc.Description = facts.Description
		doc.Country = facts.Country
		doc.Competitors = facts.Competitors
		doc.Funding = facts.Funding
	} else {
		a.log.Info("company section unavailable", slog.String("key", key), slog.Any("err", factsErr))
	}

	doc.Sections[models.SectionNews] = sectionStatus(newsErr)
	if newsErr == nil {
		doc.Articles = articles
	} else {
		a.log.Info("news section unavailable", slog.String("key", key), slog.Any("err", newsErr))
	}

	return doc
}

func (a *Aggregator) buildCountry(ctx context.Context, key, name string) models.AggregatedDocument {
	now := time.Now().UTC()
	doc := models.AggregatedDocument{
		Key:       key,
		Sections:  make(map[string]models.SectionStatus, 1),
		CreatedAt: now,
		UpdatedAt: now,
	}

	country, ok := a.ref.Country(name)
	if !ok {
		doc.Sections[models.SectionMacro] = models.SectionStatus{
			Status: models.SectionEmpty,
			Kind:   string(sources.KindNotFound),
			Detail: "country not covered",
		}
		return doc
	}
	doc.Country = country.Name

	series, err := a.macro.Fetch(ctx, country)
	doc.Sections[models.SectionMacro] = sectionStatus(err)
	if err != nil {
		a.log.Info("macro section unavailable", slog.String("key", key), slog.Any("err", err))
		return doc
	}

	doc.MacroDetails = a.deriveMacro(country, series)
	return doc
}

// deriveMacro attaches trend, baseline comparison, and volatility to every
// fetched indicator series.
func (a *Aggregator) deriveMacro(country refdata.Country, series map[string]models.TimeSeries) models.MacroDetails {
	details := make(models.MacroDetails)

	for code, s := range series {
		ind, ok := a.ref.Indicator(code)
		if !ok {
			continue
		}
		current, ok := s.Current()
		if !ok {
			continue
		}

		trend := metrics.Trend(s, a.opts.TrendWindow)
		baseline, hasBaseline := a.ref.Baseline(code, country.Region)

		var pct, regional *float64
		if hasBaseline {
			pct = metrics.PercentageDiff(current.Value, baseline)
			regional = &baseline
		}

		if details[ind.Category] == nil {
			details[ind.Category] = make(map[string]models.IndicatorDetail)
		}
		details[ind.Category][code] = models.IndicatorDetail{
			CurrentValue: current.Value,
			Description:  ind.Description,
			Trend: models.TrendWindow{
				Year:  trend.Years(),
				Value: trend.Values(),
			},
			Comparison: models.Comparison{
				National:        current.Value,
				RegionalAverage: regional,
			},
			PercentageDifference: pct,
			VolatilityLabel:      string(metrics.Volatility(trend.Values(), a.opts.Thresholds)),
		}
	}

	return details
}

// sectionStatus converts an adapter outcome into the section marker kept
// in the document.
func sectionStatus(err error) models.SectionStatus {
	if err == nil {
		return models.SectionStatus{Status: models.SectionOK}
	}
	if f, ok := sources.As(err); ok {
		if f.Kind == sources.KindNotFound {
			return models.SectionStatus{Status: models.SectionEmpty, Kind: string(f.Kind), Detail: f.Detail}
		}
		return models.SectionStatus{Status: models.SectionFailed, Kind: string(f.Kind), Detail: f.Detail}
	}
	return models.SectionStatus{Status: models.SectionFailed, Kind: string(sources.KindFetchError), Detail: err.Error()}
}

// outcome maps a document to the aggregate result: data means success, an
// all-empty document is the cached NotFound answer.
func outcome(doc models.AggregatedDocument) (models.AggregatedDocument, error) {
	if doc.HasData() {
		return doc, nil
	}
	return doc, ErrNotFound
}
