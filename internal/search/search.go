// Package search resolves candidate document URLs from web search engines.
package search

import (
	"context"
	"errors"
	"fmt"
)

// Engine names selectable at session start.
const (
	EngineDuckDuckGo = "duckduckgo"
	EngineBing       = "bing"
	EngineGoogle     = "google"
)

// Engines returns every known engine name in default fallback order.
func Engines() []string {
	return []string{EngineDuckDuckGo, EngineBing, EngineGoogle}
}

// ValidEngine reports whether name identifies a known engine.
func ValidEngine(name string) bool {
	for _, e := range Engines() {
		if e == name {
			return true
		}
	}
	return false
}

// Result is a single candidate URL produced by a search backend.
type Result struct {
	URL    string
	Engine string
}

// ErrExhausted is returned by Stream.Next once every query is spent.
var ErrExhausted = errors.New("search: result stream exhausted")

// ErrNoResults is returned instead of ErrExhausted when no engine ever
// produced a single candidate; callers treat it as session fatal.
var ErrNoResults = errors.New("search: no results from any engine")

// Provider queries one search backend for a single results page. Page
// numbering starts at 0.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, page int) ([]Result, error)
}

// Chain builds all providers over the shared getter, ordered with the named
// primary engine first so fallback tries the remaining engines in turn.
func Chain(primary string, getter *Getter) ([]Provider, error) {
	all := []Provider{NewDuckDuckGo(getter), NewBing(getter), NewGoogle(getter)}
	ordered := make([]Provider, 0, len(all))
	for _, p := range all {
		if p.Name() == primary {
			ordered = append(ordered, p)
		}
	}
	if len(ordered) == 0 {
		return nil, fmt.Errorf("unknown search engine %q", primary)
	}
	for _, p := range all {
		if p.Name() != primary {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}
