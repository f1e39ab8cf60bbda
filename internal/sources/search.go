package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSearchBaseURL is the HTML-only DuckDuckGo endpoint used for link
// discovery. The HTML variant is parseable without a browser.
const DefaultSearchBaseURL = "https://html.duckduckgo.com/html/"

// searcher turns free-text queries into result links and result text.
type searcher struct {
	fetcher *Fetcher
	baseURL string
}

func newSearcher(fetcher *Fetcher, baseURL string) *searcher {
	if baseURL == "" {
		baseURL = DefaultSearchBaseURL
	}
	return &searcher{fetcher: fetcher, baseURL: baseURL}
}

func (s *searcher) page(ctx context.Context, query string) (*goquery.Document, error) {
	u := s.baseURL + "?q=" + url.QueryEscape(query)
	return s.fetcher.Document(ctx, u)
}

// findLink returns the first result link whose cleaned URL contains domain.
// Only the top results are considered; beyond them relevance drops off.
func (s *searcher) findLink(ctx context.Context, query, domain string) (string, error) {
	doc, err := s.page(ctx, query)
	if err != nil {
		return "", err
	}

	var found string
	doc.Find("a.result__url, a.result__a").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= 4 {
			return false
		}
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		cleaned := cleanRedirect(href)
		if cleaned != "" && strings.Contains(cleaned, domain) {
			found = cleaned
			return false
		}
		return true
	})

	if found == "" {
		return "", NotFound(fmt.Sprintf("no %s result for %q", domain, query))
	}
	return found, nil
}

// resultText concatenates the visible text of the result snippets.
func (s *searcher) resultText(ctx context.Context, query string) (string, error) {
	doc, err := s.page(ctx, query)
	if err != nil {
		return "", err
	}

	seen := make(map[string]struct{})
	var parts []string
	doc.Find("div.result").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		parts = append(parts, text)
	})

	return strings.Join(parts, " "), nil
}

// cleanRedirect unwraps the uddg redirect parameter search results carry,
// returning the destination URL.
func cleanRedirect(href string) string {
	if href == "" {
		return ""
	}
	if !strings.Contains(href, "uddg=") {
		return href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	dest := parsed.Query().Get("uddg")
	if dest == "" {
		return ""
	}
	return dest
}
