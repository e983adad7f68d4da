package search

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const duckDuckGoBase = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the HTML-only DuckDuckGo endpoint.
type DuckDuckGo struct {
	baseURL string
	getter  *Getter
}

// NewDuckDuckGo constructs the provider against the public endpoint.
func NewDuckDuckGo(getter *Getter) *DuckDuckGo {
	return &DuckDuckGo{baseURL: duckDuckGoBase, getter: getter}
}

// Name implements Provider.
func (d *DuckDuckGo) Name() string {
	return EngineDuckDuckGo
}

// Search fetches one results page and extracts candidate URLs.
func (d *DuckDuckGo) Search(ctx context.Context, query string, page int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	if page > 0 {
		// The HTML endpoint pages by absolute result offset.
		params.Set("s", strconv.Itoa(page*30))
	}

	body, err := d.getter.Get(ctx, d.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo results: %w", err)
	}

	var results []Result
	doc.Find("a.result__a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		results = append(results, Result{URL: unwrapDuckDuckGo(href), Engine: EngineDuckDuckGo})
	})
	return results, nil
}

// unwrapDuckDuckGo strips the uddg tracking wrapper to recover the final
// destination URL.
func unwrapDuckDuckGo(href string) string {
	if !strings.HasPrefix(href, "/l/?") && !strings.HasPrefix(href, "//duckduckgo.com/l/?") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
