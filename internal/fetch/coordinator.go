package fetch

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/docfetch/docfetch/internal/metrics"
	"github.com/docfetch/docfetch/internal/search"
)

// Candidates yields candidate URLs to download.
type Candidates interface {
	Next(ctx context.Context) (search.Result, error)
}

// Runner executes a single download job; satisfied by *JobRunner.
type Runner interface {
	Run(ctx context.Context, rawURL string) Outcome
}

// CoordinatorConfig bounds a session.
type CoordinatorConfig struct {
	Workers      int
	MaxDocuments int
	// MaxDispatch caps total jobs issued so a session against an
	// unreachable target still terminates. Zero means 8x MaxDocuments.
	MaxDispatch int
}

// Coordinator drives the download session. It pulls candidates lazily (one
// per free worker slot while the target is unmet), keeps at most Workers
// jobs in flight, and owns all tallies itself: workers report back over a
// completion channel, so there is exactly one writer of shared state.
type Coordinator struct {
	stream Candidates
	runner Runner
	clock  Clock
	cfg    CoordinatorConfig
	logger *zap.Logger
}

// NewCoordinator wires a coordinator.
func NewCoordinator(stream Candidates, runner Runner, clock Clock, cfg CoordinatorConfig, logger *zap.Logger) *Coordinator {
	if cfg.MaxDispatch <= 0 {
		cfg.MaxDispatch = 8 * cfg.MaxDocuments
	}
	return &Coordinator{
		stream: stream,
		runner: runner,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
}

// Run executes the session until the accepted target is met, candidates are
// exhausted, or the dispatch ceiling is hit. In-flight jobs always drain;
// only a session that never obtained a single candidate returns an error.
func (c *Coordinator) Run(ctx context.Context) (Stats, error) {
	start := c.clock.Now()
	stats := Stats{Failures: make(map[Kind]int)}
	results := make(chan Outcome)
	inflight := 0
	exhausted := false

	for {
		for !exhausted && inflight < c.cfg.Workers &&
			stats.Accepted < c.cfg.MaxDocuments && stats.Dispatched < c.cfg.MaxDispatch {
			res, err := c.stream.Next(ctx)
			if err != nil {
				exhausted = true
				if errors.Is(err, search.ErrNoResults) && stats.Dispatched == 0 {
					stats.Elapsed = c.clock.Now().Sub(start)
					return stats, err
				}
				if !errors.Is(err, search.ErrExhausted) {
					c.logger.Warn("candidate stream stopped", zap.Error(err))
				}
				break
			}
			stats.Dispatched++
			inflight++
			go func(u string) {
				results <- c.runner.Run(ctx, u)
			}(res.URL)
		}

		if inflight == 0 {
			break
		}

		out := <-results
		inflight--
		c.record(&stats, out)
	}

	stats.Elapsed = c.clock.Now().Sub(start)
	c.logger.Info("session finished",
		zap.Int("accepted", stats.Accepted),
		zap.Int("rejected", stats.Rejected),
		zap.Int("failed", stats.Failed),
		zap.Int("dispatched", stats.Dispatched),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}

func (c *Coordinator) record(stats *Stats, out Outcome) {
	switch out.Status {
	case StatusAccepted:
		// Jobs already in flight when the target is met may still accept.
		// Those finishes are surplus: the file is removed and the tally
		// stays at MaxDocuments.
		if stats.Accepted >= c.cfg.MaxDocuments {
			stats.Surplus++
			c.removeSurplus(out)
			return
		}
		stats.Accepted++
		stats.AcceptedPaths = append(stats.AcceptedPaths, out.Path)
		metrics.DocumentsAccepted.Inc()
	case StatusRejected:
		stats.Rejected++
		metrics.DocumentsRejected.Inc()
	case StatusFailed:
		stats.Failed++
		stats.Failures[out.Kind]++
		metrics.DownloadsFailed.WithLabelValues(string(out.Kind)).Inc()
	}
}

func (c *Coordinator) removeSurplus(out Outcome) {
	c.logger.Info("discarding surplus document",
		zap.String("url", out.URL),
		zap.String("path", out.Path),
	)
	if out.Path == "" {
		return
	}
	if err := os.Remove(out.Path); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to remove surplus document", zap.String("path", out.Path), zap.Error(err))
	}
}
