package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docfetch/docfetch/internal/doctype"
	"github.com/docfetch/docfetch/internal/metrics"
	"github.com/docfetch/docfetch/internal/retry"
)

// Options tune Stream behavior.
type Options struct {
	// MaxPages caps result pages fetched per (engine, query), independent
	// of how many documents the session wants.
	MaxPages int
	// Pause is the delay inserted between backend requests to avoid
	// rate limiting.
	Pause time.Duration
	// Sleep overrides the pause implementation, mainly for tests.
	Sleep retry.SleepFunc
}

// Stream lazily yields deduplicated candidate URLs for a subject. It issues
// one filetype: query per requested document type, tries fallback engines
// when the primary yields nothing, and fetches a page only when its buffered
// results have been consumed. A Stream is finite and not restartable.
type Stream struct {
	providers []Provider
	queries   []string
	maxPages  int
	pause     time.Duration
	sleep     retry.SleepFunc
	logger    *zap.Logger

	queryIdx int
	provIdx  int
	provider Provider
	page     int
	requests int
	buffered []Result
	seen     map[string]struct{}
	yielded  int
	done     bool
}

// NewStream builds a stream over the given providers, primary engine first.
// An empty allow set queries every supported document type.
func NewStream(subject string, allowed []doctype.Type, providers []Provider, opts Options, logger *zap.Logger) *Stream {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 3
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
	return &Stream{
		providers: providers,
		queries:   buildQueries(subject, allowed),
		maxPages:  opts.MaxPages,
		pause:     opts.Pause,
		sleep:     sleep,
		logger:    logger,
		seen:      make(map[string]struct{}),
	}
}

func buildQueries(subject string, allowed []doctype.Type) []string {
	types := allowed
	if len(types) == 0 {
		types = doctype.All()
	}
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, fmt.Sprintf("%s filetype:%s", subject, t.QueryHint()))
	}
	return out
}

// Next returns the next candidate URL. It returns ErrExhausted once every
// query is spent, or ErrNoResults if no engine ever produced a candidate.
func (s *Stream) Next(ctx context.Context) (Result, error) {
	for {
		if len(s.buffered) > 0 {
			res := s.buffered[0]
			s.buffered = s.buffered[1:]
			s.yielded++
			metrics.SearchResults.WithLabelValues(res.Engine).Inc()
			return res, nil
		}
		if s.done {
			if s.yielded == 0 {
				return Result{}, ErrNoResults
			}
			return Result{}, ErrExhausted
		}
		if err := s.fill(ctx); err != nil {
			return Result{}, err
		}
	}
}

// fill performs at most one backend request and buffers its results.
func (s *Stream) fill(ctx context.Context) error {
	if s.queryIdx >= len(s.queries) {
		s.done = true
		return nil
	}
	query := s.queries[s.queryIdx]

	if s.provider == nil {
		// Still probing engines for this query, in fallback order.
		if s.provIdx >= len(s.providers) {
			s.advanceQuery()
			return nil
		}
		p := s.providers[s.provIdx]
		results, err := s.searchPage(ctx, p, query, 0)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			s.provIdx++
			return nil
		}
		s.provider = p
		s.page = 1
		s.buffer(results)
		return nil
	}

	// Keep paginating the engine that answered, up to the page cap.
	if s.page >= s.maxPages {
		s.advanceQuery()
		return nil
	}
	results, err := s.searchPage(ctx, s.provider, query, s.page)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		s.advanceQuery()
		return nil
	}
	s.page++
	s.buffer(results)
	return nil
}

// searchPage runs one provider query. A backend failure is non-fatal: it is
// logged and reported as an empty page so the stream moves on.
func (s *Stream) searchPage(ctx context.Context, p Provider, query string, page int) ([]Result, error) {
	if s.requests > 0 && s.pause > 0 {
		if err := s.sleep(ctx, s.pause); err != nil {
			return nil, err
		}
	}
	s.requests++

	s.logger.Debug("search request",
		zap.String("engine", p.Name()),
		zap.String("query", query),
		zap.Int("page", page),
	)
	results, err := p.Search(ctx, query, page)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("search page failed",
			zap.String("engine", p.Name()),
			zap.String("query", query),
			zap.Int("page", page),
			zap.Error(err),
		)
		return nil, nil
	}
	return results, nil
}

func (s *Stream) advanceQuery() {
	s.queryIdx++
	s.provIdx = 0
	s.provider = nil
	s.page = 0
}

// buffer appends results not seen before in this session, keyed by
// normalized URL.
func (s *Stream) buffer(results []Result) {
	for _, r := range results {
		key, err := Normalize(r.URL)
		if err != nil {
			continue
		}
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.buffered = append(s.buffered, r)
	}
}
