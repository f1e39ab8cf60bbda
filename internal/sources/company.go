package sources

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/econolens/econolens/backend/internal/models"
	"github.com/econolens/econolens/backend/internal/refdata"
)

var (
	citationPattern = regexp.MustCompile(`\[\d*\]`)
	rankPattern     = regexp.MustCompile(`#\d+`)
	moneyPattern    = regexp.MustCompile(`US\$\d+\.?\d* \w+`)
	amountPattern   = regexp.MustCompile(`[\$€£]?\s?\d{1,3}(?:[,\d]*)(?:\.\d+)?\s?[kmbKMB]?`)

	investorPatterns = regexp.MustCompile(strings.Join([]string{
		`has\s+(\d+)\s+investors`,
		`from\s+(\d+)\s+investors`,
		`total\s+of\s+(\d+)\s+investors`,
		`backed\s+by\s+(\d+)\s+investors`,
		`(\d+)\s+investors\s+participated`,
		`(\d+)\s+institutional\s+investors`,
		`(\d+)\s+investors`,
	}, "|"))
)

// magnitude words marking an infobox value as monetary
var magnitudeUnits = []string{"hundred", "thousand", "million", "billion", "trillion"}

// a Wikipedia article about an organization mentions at least one of these
var companyKeywords = []string{
	"company", "startup", "corporation", "firm",
	"organization", "business", "enterprise", "subsidiary",
}

// fixed field names extracted from the stats page
var statsSections = []string{
	"annual revenue", "venture funding", "revenue per employee",
	"total funding", "current valuation", "employees", "employee count",
}

// CompanyAdapter resolves a company name into normalized facts by scraping
// its Wikipedia article and its Growjo stats page, both discovered through
// web search.
type CompanyAdapter struct {
	fetcher *Fetcher
	search  *searcher
	ref     *refdata.Store
	log     *slog.Logger
}

// NewCompanyAdapter wires the adapter. searchBaseURL is overridable for
// tests; empty selects the default search endpoint.
func NewCompanyAdapter(fetcher *Fetcher, ref *refdata.Store, searchBaseURL string, log *slog.Logger) *CompanyAdapter {
	return &CompanyAdapter{
		fetcher: fetcher,
		search:  newSearcher(fetcher, searchBaseURL),
		ref:     ref,
		log:     log,
	}
}

// Fetch implements the company-facts contract. A missing Wikipedia result
// or an article that is not about a company is NotFound; transport and
// parse failures of the article itself are FetchError. The stats page and
// the country resolution are best-effort enrichment: their failures degrade
// the corresponding fields, never the whole fact set.
func (a *CompanyAdapter) Fetch(ctx context.Context, name string) (models.CompanyFacts, error) {
	wikiURL, err := a.search.findLink(ctx, name+" company wikipedia", "en.wikipedia.org")
	if err != nil {
		return models.CompanyFacts{}, err
	}

	page, err := a.fetcher.Document(ctx, wikiURL)
	if err != nil {
		return models.CompanyFacts{}, err
	}

	facts, err := parseWikipedia(page, name)
	if err != nil {
		return models.CompanyFacts{}, err
	}

	facts.Country = a.resolveCountry(ctx, name, facts.Info)
	a.enrichStats(ctx, facts.Name, &facts)

	return facts, nil
}

// parseWikipedia extracts the article title, the infobox key/value pairs,
// and the first body paragraph.
func parseWikipedia(doc *goquery.Document, fallbackName string) (models.CompanyFacts, error) {
	facts := models.CompanyFacts{
		Name: fallbackName,
		Info: make(map[string]string),
	}

	if title := strings.TrimSpace(doc.Find("span.mw-page-title-main").First().Text()); title != "" {
		facts.Name = title
	}

	body := doc.Find("div.mw-body-content").First()
	bodyText := strings.ToLower(body.Text())
	if !containsAny(bodyText, companyKeywords) {
		return models.CompanyFacts{}, NotFound(fmt.Sprintf("%q does not look like a company article", fallbackName))
	}

	if p := body.Find("p").First(); p.Length() > 0 {
		facts.Description = citationPattern.ReplaceAllString(strings.TrimSpace(p.Text()), "")
	}

	infobox := doc.Find("table.infobox").First()
	infobox.Find("tr").Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find("th").First().Text())
		data := row.Find("td").First()
		if label == "" || data.Length() == 0 {
			return
		}
		facts.Info[strings.ToLower(label)] = cleanInfoboxValue(data.Text())
	})

	if href, ok := infobox.Find("a[href]").First().Attr("href"); ok && strings.Contains(href, "http") {
		facts.Info["website"] = href
	}

	return facts, nil
}

// cleanInfoboxValue strips citations and prefers the normalized monetary
// form for money-like values.
func cleanInfoboxValue(raw string) string {
	value := strings.TrimSpace(raw)
	if containsAny(strings.ToLower(value), magnitudeUnits) {
		if m := moneyPattern.FindString(value); m != "" {
			return m
		}
	}
	value = strings.ReplaceAll(value, "\n", ", ")
	value = strings.ReplaceAll(value, ",,", ",")
	return citationPattern.ReplaceAllString(value, "")
}

// resolveCountry determines the covered country of origin: infobox fields
// first, then a search-results sweep counting country and demonym
// mentions. Unresolvable stays empty rather than failing the fact set.
func (a *CompanyAdapter) resolveCountry(ctx context.Context, name string, info map[string]string) string {
	for _, marker := range []string{"headquarters", "country"} {
		if v, ok := info[marker]; ok {
			if c, found := a.ref.MostMentioned(v); found {
				return c.Name
			}
		}
	}

	text, err := a.search.resultText(ctx, name+" company founded in what country?")
	if err != nil {
		a.log.Warn("country search failed", slog.String("company", name), slog.Any("err", err))
		return ""
	}
	if c, found := a.ref.MostMentioned(text); found {
		return c.Name
	}
	return ""
}

// enrichStats pulls competitors, funding rounds, and the fixed stat set
// from the company's Growjo page plus an investor-count sweep. Best
// effort: every failure leaves the affected fields empty.
func (a *CompanyAdapter) enrichStats(ctx context.Context, name string, facts *models.CompanyFacts) {
	facts.InfoFixed = make(map[string]string)
	facts.Competitors = map[string][]string{}
	facts.Funding = map[string][]string{}

	statsURL, err := a.search.findLink(ctx, name+" growjo.com company", "growjo.com")
	if err != nil {
		a.log.Warn("stats page not found", slog.String("company", name), slog.Any("err", err))
	} else if page, err := a.fetcher.Document(ctx, statsURL); err != nil {
		a.log.Warn("stats page fetch failed", slog.String("company", name), slog.Any("err", err))
	} else {
		a.parseStatsPage(page, facts)
	}

	if n, err := a.investorCount(ctx, name); err != nil {
		a.log.Warn("investor sweep failed", slog.String("company", name), slog.Any("err", err))
		facts.InfoFixed["investors"] = "0"
	} else {
		facts.InfoFixed["investors"] = strconv.Itoa(n)
	}
}

func (a *CompanyAdapter) parseStatsPage(doc *goquery.Document, facts *models.CompanyFacts) {
	doc.Find("div#revenue-financials a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if strings.Contains(href, "/industry/") {
			facts.InfoFixed["industry"] = strings.TrimSpace(sel.Text())
			return false
		}
		return true
	})

	doc.Find("table.cstm-table").Each(func(_ int, table *goquery.Selection) {
		headers := tableHeaders(table)
		switch {
		case containsHeader(headers, "competitor name"):
			facts.Competitors = tableData(table, headers)
		case containsHeader(headers, "lead investors"):
			facts.Funding = tableData(table, headers)
		}
	})

	var lines []string
	doc.Find("div.col-md-5 li").Each(func(_ int, li *goquery.Selection) {
		lines = append(lines, strings.TrimSpace(li.Text()))
	})
	for k, v := range extractStatDetails(lines) {
		facts.InfoFixed[k] = v
	}
}

func tableHeaders(table *goquery.Selection) []string {
	var headers []string
	head := table.Find("thead th")
	if head.Length() == 0 {
		head = table.Find("tr").First().Find("th, td")
	}
	head.Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})
	return headers
}

func containsHeader(headers []string, want string) bool {
	for _, h := range headers {
		if strings.EqualFold(h, want) {
			return true
		}
	}
	return false
}

// tableData maps each column header to its cell values, row rank markers
// stripped.
func tableData(table *goquery.Selection, headers []string) map[string][]string {
	data := make(map[string][]string, len(headers))
	for _, h := range headers {
		data[h] = []string{}
	}

	rows := table.Find("tbody tr")
	if rows.Length() == 0 {
		rows = table.Find("tr").Slice(1, goquery.ToEnd)
	}

	rows.Each(func(_ int, row *goquery.Selection) {
		row.Find("td").EachWithBreak(func(i int, cell *goquery.Selection) bool {
			if i >= len(headers) {
				return false
			}
			text := strings.TrimSpace(rankPattern.ReplaceAllString(cell.Text(), ""))
			data[headers[i]] = append(data[headers[i]], text)
			return true
		})
	})

	return data
}

// extractStatDetails scans free-form stat lines for the fixed sections,
// keeping the first numeric match per section.
func extractStatDetails(lines []string) map[string]string {
	details := make(map[string]string)
	for _, line := range lines {
		lowered := strings.ToLower(line)
		for _, section := range statsSections {
			if _, done := details[section]; done {
				continue
			}
			if !strings.Contains(lowered, section) {
				continue
			}
			if m := amountPattern.FindString(line); strings.TrimSpace(m) != "" {
				details[section] = strings.TrimSpace(m)
			} else {
				details[section] = strings.TrimSpace(line)
			}
			break
		}
	}
	return details
}

// investorCount mines search snippets for "N investors" phrasings and
// returns the most frequently quoted figure.
func (a *CompanyAdapter) investorCount(ctx context.Context, name string) (int, error) {
	text, err := a.search.resultText(ctx, fmt.Sprintf("how many investors does %s have?", name))
	if err != nil {
		return 0, err
	}

	counts := make(map[int]int)
	for _, match := range investorPatterns.FindAllStringSubmatch(strings.ToLower(text), -1) {
		for _, group := range match[1:] {
			if group == "" {
				continue
			}
			if n, err := strconv.Atoi(group); err == nil {
				counts[n]++
			}
		}
	}

	best, bestCount := 0, 0
	for n, c := range counts {
		if c > bestCount {
			best, bestCount = n, c
		}
	}
	return best, nil
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
