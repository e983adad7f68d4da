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

const googleBase = "https://www.google.com/search"

// Google scrapes the Google web search results page.
type Google struct {
	baseURL string
	getter  *Getter
}

// NewGoogle constructs the provider against the public endpoint.
func NewGoogle(getter *Getter) *Google {
	return &Google{baseURL: googleBase, getter: getter}
}

// Name implements Provider.
func (g *Google) Name() string {
	return EngineGoogle
}

// Search fetches one results page and extracts candidate URLs.
func (g *Google) Search(ctx context.Context, query string, page int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("num", "10")
	if page > 0 {
		params.Set("start", strconv.Itoa(page*10))
	}

	body, err := g.getter.Get(ctx, g.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse google results: %w", err)
	}

	// Only the first anchor per result block is the organic hit; the rest
	// are sitelinks and cached-copy links.
	var results []Result
	doc.Find("div.g").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find("a[href]").First().Attr("href")
		if !ok || href == "" {
			return
		}
		target, ok := unwrapGoogle(href)
		if !ok {
			return
		}
		results = append(results, Result{URL: target, Engine: EngineGoogle})
	})
	return results, nil
}

// unwrapGoogle recovers the destination from /url?q= redirect wrappers and
// drops other google-internal links.
func unwrapGoogle(href string) (string, bool) {
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return "", false
		}
		if target := u.Query().Get("q"); strings.HasPrefix(target, "http") {
			return target, true
		}
		return "", false
	}
	if strings.HasPrefix(href, "/") {
		return "", false
	}
	return href, true
}
