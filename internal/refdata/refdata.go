// Package refdata holds the immutable reference tables the adapters need:
// the covered countries with demonyms and regions, and the macro indicator
// catalog with regional baselines. Loaded once at startup from an embedded
// YAML resource and passed explicitly to consumers.
package refdata

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed refdata.yaml
var raw []byte

// Country is one covered country.
type Country struct {
	Name    string `yaml:"name"`
	Code    string `yaml:"code"`
	Demonym string `yaml:"demonym"`
	Region  string `yaml:"region"`
}

// Indicator is one macro indicator in the catalog. Baselines are regional
// averages computed out-of-band, keyed by region slug.
type Indicator struct {
	Code        string             `yaml:"code"`
	Category    string             `yaml:"category"`
	Description string             `yaml:"description"`
	Baselines   map[string]float64 `yaml:"baselines"`
}

type file struct {
	Countries  []Country   `yaml:"countries"`
	Indicators []Indicator `yaml:"indicators"`
}

// Store is the parsed, read-only reference data.
type Store struct {
	countries  []Country
	byCode     map[string]Country
	byName     map[string]Country
	indicators []Indicator
	byIndCode  map[string]Indicator

	namePatterns    map[string]*regexp.Regexp
	demonymPatterns map[string]*regexp.Regexp
}

// Load parses the embedded reference data.
func Load() (*Store, error) {
	return Parse(raw)
}

// Parse builds a Store from YAML bytes.
func Parse(data []byte) (*Store, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse refdata: %w", err)
	}
	if len(f.Countries) == 0 {
		return nil, fmt.Errorf("refdata contains no countries")
	}
	if len(f.Indicators) == 0 {
		return nil, fmt.Errorf("refdata contains no indicators")
	}

	s := &Store{
		countries:       f.Countries,
		byCode:          make(map[string]Country, len(f.Countries)),
		byName:          make(map[string]Country, len(f.Countries)),
		indicators:      f.Indicators,
		byIndCode:       make(map[string]Indicator, len(f.Indicators)),
		namePatterns:    make(map[string]*regexp.Regexp, len(f.Countries)),
		demonymPatterns: make(map[string]*regexp.Regexp, len(f.Countries)),
	}

	for _, c := range f.Countries {
		if c.Name == "" || c.Code == "" || c.Region == "" {
			return nil, fmt.Errorf("refdata country %q is missing a field", c.Name)
		}
		s.byCode[strings.ToLower(c.Code)] = c
		s.byName[strings.ToLower(c.Name)] = c
		s.namePatterns[c.Code] = wordPattern(c.Name)
		if c.Demonym != "" {
			s.demonymPatterns[c.Code] = wordPattern(c.Demonym)
		}
	}

	for _, ind := range f.Indicators {
		if ind.Code == "" || ind.Category == "" {
			return nil, fmt.Errorf("refdata indicator %q is missing a field", ind.Code)
		}
		s.byIndCode[ind.Code] = ind
	}

	return s, nil
}

func wordPattern(word string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(word)) + `\b`)
}

// Countries returns the covered country list.
func (s *Store) Countries() []Country { return s.countries }

// Indicators returns the macro indicator catalog.
func (s *Store) Indicators() []Indicator { return s.indicators }

// Country resolves an ISO code or a country name.
func (s *Store) Country(key string) (Country, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if c, ok := s.byCode[key]; ok {
		return c, true
	}
	c, ok := s.byName[key]
	return c, ok
}

// Indicator resolves an indicator code.
func (s *Store) Indicator(code string) (Indicator, bool) {
	ind, ok := s.byIndCode[code]
	return ind, ok
}

// Baseline returns the regional average for an indicator, false when the
// catalog has no baseline for that region.
func (s *Store) Baseline(indicatorCode, region string) (float64, bool) {
	ind, ok := s.byIndCode[indicatorCode]
	if !ok {
		return 0, false
	}
	v, ok := ind.Baselines[region]
	return v, ok
}

// MostMentioned returns the covered country mentioned most often in the
// text, matching country names and demonyms on word boundaries. A demonym
// hit counts like a name hit.
func (s *Store) MostMentioned(text string) (Country, bool) {
	lowered := strings.ToLower(text)

	var best Country
	bestCount := 0
	for _, c := range s.countries {
		count := len(s.namePatterns[c.Code].FindAllStringIndex(lowered, -1))
		if p, ok := s.demonymPatterns[c.Code]; ok {
			count += len(p.FindAllStringIndex(lowered, -1))
		}
		if count > bestCount {
			best, bestCount = c, count
		}
	}

	return best, bestCount > 0
}
