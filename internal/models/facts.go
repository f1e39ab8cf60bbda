package models

// CompanyFacts is the company-facts adapter output after normalization:
// Wikipedia-derived identity fields plus the fixed Growjo stat set.
type CompanyFacts struct {
	Name        string
	Description string
	Country     string
	Info        map[string]string
	InfoFixed   map[string]string
	Competitors map[string][]string
	Funding     map[string][]string
}

// Point is one (period, value) observation. Periods are calendar years.
type Point struct {
	Year  int
	Value float64
}

// TimeSeries is an ascending sequence of observations. Periods are strictly
// increasing; sparse upstream data stays sparse, it is never padded.
type TimeSeries []Point

// Values returns the value column.
func (s TimeSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Years returns the period column.
func (s TimeSeries) Years() []int {
	out := make([]int, len(s))
	for i, p := range s {
		out[i] = p.Year
	}
	return out
}

// Current returns the most recent observation, false on an empty series.
func (s TimeSeries) Current() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}
