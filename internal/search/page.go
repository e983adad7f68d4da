package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/docfetch/docfetch/internal/retry"
)

// Getter retrieves search result pages through a shared Colly collector,
// rotating User-Agents and retrying transient failures with backoff.
// HTTP 429 counts as transient; other 4xx responses do not.
type Getter struct {
	base   *colly.Collector
	agents []string
	policy *retry.Policy
	logger *zap.Logger
}

// NewGetter constructs a Getter with the given per-request timeout.
func NewGetter(timeout time.Duration, agents []string, logger *zap.Logger) *Getter {
	base := colly.NewCollector(
		colly.Async(true),
		colly.IgnoreRobotsTxt(),
	)
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(timeout)

	return &Getter{
		base:   base,
		agents: agents,
		policy: retry.New(3, time.Second),
		logger: logger,
	}
}

// WithRetryPolicy replaces the backoff policy, mainly for tests.
func (g *Getter) WithRetryPolicy(p *retry.Policy) *Getter {
	g.policy = p
	return g
}

// Get fetches one result page, retrying transient failures.
func (g *Getter) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	attempts, err := g.policy.Execute(ctx, func(ctx context.Context) error {
		b, ferr := g.fetchOnce(ctx, rawURL)
		if ferr != nil {
			return ferr
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get %s after %d attempts: %w", rawURL, attempts, err)
	}
	return body, nil
}

type pageResult struct {
	body []byte
	err  error
}

func (g *Getter) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	collector := g.base.Clone()
	resultCh := make(chan pageResult, 1)
	var once sync.Once
	send := func(res pageResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", g.randomAgent())
	})
	collector.OnResponse(func(r *colly.Response) {
		send(pageResult{body: append([]byte{}, r.Body...)})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		if r != nil && r.StatusCode >= 400 && r.StatusCode < 500 && r.StatusCode != http.StatusTooManyRequests {
			send(pageResult{err: retry.Fatal(fmt.Errorf("http status %d: %w", r.StatusCode, err))})
			return
		}
		send(pageResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return nil, retry.Fatal(fmt.Errorf("visit %s: %w", rawURL, err))
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if cerr := ctx.Err(); cerr != nil {
			return nil, retry.Fatal(cerr)
		}
		return res.body, res.err
	default:
		return nil, errors.New("search page fetch produced no result")
	}
}

func (g *Getter) randomAgent() string {
	if len(g.agents) == 0 {
		return "docfetch/0.1"
	}
	return g.agents[rand.Intn(len(g.agents))]
}
