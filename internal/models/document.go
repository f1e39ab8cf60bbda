package models

import "time"

// Section names used in the diagnostics map of an AggregatedDocument.
const (
	SectionCompany = "company_info"
	SectionMacro   = "macro_details"
	SectionNews    = "articles"
)

// Section states. A failed section was requested but could not be fetched;
// an empty section was fetched and genuinely has no data.
const (
	SectionOK     = "ok"
	SectionEmpty  = "empty"
	SectionFailed = "failed"
)

// SectionStatus records the outcome of one top-level section so that a
// missing section is distinguishable from a section with no upstream data.
type SectionStatus struct {
	Status string `json:"status"`
	Kind   string `json:"kind,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// NewsItem is one scored article.
type NewsItem struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Link           string  `json:"link"`
	Source         string  `json:"source"`
	SourceLink     string  `json:"source_link"`
	Published      string  `json:"published"`
	SentimentScore float64 `json:"sentiment_score"`
}

// TrendWindow carries the windowed tail of a time series in the wire shape
// expected by the frontend: parallel year/value arrays.
type TrendWindow struct {
	Year  []int     `json:"year"`
	Value []float64 `json:"value"`
}

// Comparison pairs the latest national value with the regional baseline it
// is measured against. RegionalAverage is nil when no baseline exists for
// the indicator, so absence is never mistaken for a zero baseline.
type Comparison struct {
	National        float64  `json:"national"`
	RegionalAverage *float64 `json:"regional_average,omitempty"`
}

// IndicatorDetail is the per-indicator block inside macro_details.
// PercentageDifference is nil when the baseline is zero or unavailable.
type IndicatorDetail struct {
	CurrentValue         float64     `json:"current_value"`
	Description          string      `json:"description"`
	Trend                TrendWindow `json:"trend"`
	Comparison           Comparison  `json:"comparison"`
	PercentageDifference *float64    `json:"percentage_difference"`
	VolatilityLabel      string      `json:"volatility_label"`
}

// MacroDetails maps category -> indicator code -> detail.
type MacroDetails map[string]map[string]IndicatorDetail

// AggregatedDocument is the canonical answer for one entity. It is returned
// by the API and stored as-is in the document store. Every top-level data
// key is omitted when its section produced nothing; the sections map says
// why.
type AggregatedDocument struct {
	Key              string                   `json:"key"`
	Company          string                   `json:"company,omitempty"`
	CompanyInfo      map[string]string        `json:"company_info,omitempty"`
	CompanyInfoFixed map[string]string        `json:"company_info_fixed,omitempty"`
	Description      string                   `json:"description,omitempty"`
	Country          string                   `json:"country,omitempty"`
	Competitors      map[string][]string      `json:"competitors,omitempty"`
	Funding          map[string][]string      `json:"funding,omitempty"`
	MacroDetails     MacroDetails             `json:"macro_details,omitempty"`
	Articles         []NewsItem               `json:"articles,omitempty"`
	Sections         map[string]SectionStatus `json:"sections,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// HasData reports whether at least one section carries real content.
func (d AggregatedDocument) HasData() bool {
	for _, s := range d.Sections {
		if s.Status == SectionOK {
			return true
		}
	}
	return false
}
