package search

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

const bingBase = "https://www.bing.com/search"

// Bing scrapes the Bing web search results page.
type Bing struct {
	baseURL string
	getter  *Getter
}

// NewBing constructs the provider against the public endpoint.
func NewBing(getter *Getter) *Bing {
	return &Bing{baseURL: bingBase, getter: getter}
}

// Name implements Provider.
func (b *Bing) Name() string {
	return EngineBing
}

// Search fetches one results page and extracts candidate URLs.
func (b *Bing) Search(ctx context.Context, query string, page int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	if page > 0 {
		// Bing pages with a 1-based first-result index.
		params.Set("first", strconv.Itoa(page*10+1))
	}

	body, err := b.getter.Get(ctx, b.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse bing results: %w", err)
	}

	var results []Result
	doc.Find("li.b_algo h2 a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		results = append(results, Result{URL: href, Engine: EngineBing})
	})
	return results, nil
}
