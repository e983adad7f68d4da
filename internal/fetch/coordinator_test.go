package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docfetch/docfetch/internal/doctype"
	"github.com/docfetch/docfetch/internal/search"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

// fakeStream yields a fixed list of candidates, then the given final error.
type fakeStream struct {
	mu      sync.Mutex
	urls    []string
	next    int
	finalEr error
}

func newFakeStream(finalEr error, urls ...string) *fakeStream {
	return &fakeStream{urls: urls, finalEr: finalEr}
}

func (s *fakeStream) Next(context.Context) (search.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.urls) {
		return search.Result{}, s.finalEr
	}
	u := s.urls[s.next]
	s.next++
	return search.Result{URL: u, Engine: search.EngineDuckDuckGo}, nil
}

func (s *fakeStream) pulled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// fakeRunner maps each URL to a canned outcome.
type fakeRunner struct {
	mu       sync.Mutex
	outcomes map[string]Outcome
	ran      []string
}

func newFakeRunner(outcomes map[string]Outcome) *fakeRunner {
	return &fakeRunner{outcomes: outcomes}
}

func (r *fakeRunner) Run(_ context.Context, rawURL string) Outcome {
	r.mu.Lock()
	r.ran = append(r.ran, rawURL)
	r.mu.Unlock()
	out, ok := r.outcomes[rawURL]
	if !ok {
		out = Outcome{Status: StatusRejected, Type: doctype.TypeHTML}
	}
	out.URL = rawURL
	out.Attempts = 1
	return out
}

func accepted(path string) Outcome {
	return Outcome{Status: StatusAccepted, Path: path, Type: doctype.TypePDF}
}

func TestCoordinatorStopsAtTarget(t *testing.T) {
	t.Parallel()

	stream := newFakeStream(search.ErrExhausted,
		"https://a.test/one.pdf",
		"https://a.test/two.html",
		"https://a.test/three.pdf",
		"https://a.test/four.html",
		"https://a.test/five.html",
	)
	runner := newFakeRunner(map[string]Outcome{
		"https://a.test/one.pdf":   accepted("/tmp/one.pdf"),
		"https://a.test/three.pdf": accepted("/tmp/three.pdf"),
	})
	coord := NewCoordinator(stream, runner, &fakeClock{now: time.Unix(0, 0)}, CoordinatorConfig{
		Workers:      3,
		MaxDocuments: 2,
	}, zap.NewNop())

	stats, err := coord.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, stats.Accepted)
	require.ElementsMatch(t, []string{"/tmp/one.pdf", "/tmp/three.pdf"}, stats.AcceptedPaths)
	require.LessOrEqual(t, stats.Dispatched, 5)
	require.GreaterOrEqual(t, stats.Dispatched, 3)
	require.Equal(t, stats.Dispatched, stats.Accepted+stats.Rejected+stats.Failed+stats.Surplus)
}

func TestCoordinatorAcceptedNeverExceedsTarget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	urls := []string{
		"https://a.test/one.pdf",
		"https://a.test/two.pdf",
		"https://a.test/three.pdf",
	}
	outcomes := make(map[string]Outcome, len(urls))
	paths := make([]string, 0, len(urls))
	for i, u := range urls {
		p := filepath.Join(dir, fmt.Sprintf("doc-%d.pdf", i))
		require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4\n"), 0o644))
		outcomes[u] = accepted(p)
		paths = append(paths, p)
	}

	stream := newFakeStream(search.ErrExhausted, urls...)
	runner := newFakeRunner(outcomes)
	coord := NewCoordinator(stream, runner, &fakeClock{}, CoordinatorConfig{
		Workers:      3,
		MaxDocuments: 2,
	}, zap.NewNop())

	stats, err := coord.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, stats.Accepted)
	require.Equal(t, 1, stats.Surplus)
	require.Len(t, stats.AcceptedPaths, 2)
	require.Equal(t, stats.Dispatched, stats.Accepted+stats.Rejected+stats.Failed+stats.Surplus)

	for _, p := range paths {
		_, statErr := os.Stat(p)
		if slices.Contains(stats.AcceptedPaths, p) {
			require.NoError(t, statErr)
		} else {
			require.True(t, os.IsNotExist(statErr), "surplus file %s should be removed", p)
		}
	}
}

func TestCoordinatorNoDispatchAfterTargetMet(t *testing.T) {
	t.Parallel()

	stream := newFakeStream(search.ErrExhausted,
		"https://a.test/one.pdf",
		"https://a.test/two.pdf",
		"https://a.test/three.pdf",
	)
	runner := newFakeRunner(map[string]Outcome{
		"https://a.test/one.pdf": accepted("/tmp/one.pdf"),
	})
	coord := NewCoordinator(stream, runner, &fakeClock{}, CoordinatorConfig{
		Workers:      1,
		MaxDocuments: 1,
	}, zap.NewNop())

	stats, err := coord.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, stats.Accepted)
	require.Equal(t, 1, stats.Dispatched)
	require.Equal(t, 1, stream.pulled())
	require.Equal(t, []string{"https://a.test/one.pdf"}, runner.ran)
}

func TestCoordinatorDrainsOnExhaustion(t *testing.T) {
	t.Parallel()

	stream := newFakeStream(search.ErrExhausted,
		"https://a.test/one.html",
		"https://a.test/two.html",
	)
	runner := newFakeRunner(nil)
	coord := NewCoordinator(stream, runner, &fakeClock{}, CoordinatorConfig{
		Workers:      4,
		MaxDocuments: 5,
	}, zap.NewNop())

	stats, err := coord.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, stats.Accepted)
	require.Equal(t, 2, stats.Rejected)
	require.Equal(t, 2, stats.Dispatched)
}

func TestCoordinatorNoResultsIsFatal(t *testing.T) {
	t.Parallel()

	stream := newFakeStream(search.ErrNoResults)
	runner := newFakeRunner(nil)
	coord := NewCoordinator(stream, runner, &fakeClock{}, CoordinatorConfig{
		Workers:      2,
		MaxDocuments: 3,
	}, zap.NewNop())

	stats, err := coord.Run(context.Background())
	require.ErrorIs(t, err, search.ErrNoResults)
	require.Equal(t, 0, stats.Dispatched)
	require.Empty(t, runner.ran)
}

func TestCoordinatorDispatchCeiling(t *testing.T) {
	t.Parallel()

	urls := make([]string, 0, 20)
	outcomes := make(map[string]Outcome, 20)
	for i := 0; i < 20; i++ {
		u := "https://a.test/" + string(rune('a'+i)) + ".pdf"
		urls = append(urls, u)
		outcomes[u] = Outcome{Status: StatusFailed, Kind: KindNetwork}
	}
	stream := newFakeStream(search.ErrExhausted, urls...)
	runner := newFakeRunner(outcomes)
	coord := NewCoordinator(stream, runner, &fakeClock{}, CoordinatorConfig{
		Workers:      2,
		MaxDocuments: 1,
		MaxDispatch:  4,
	}, zap.NewNop())

	stats, err := coord.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, stats.Accepted)
	require.Equal(t, 4, stats.Dispatched)
	require.Equal(t, 4, stats.Failed)
	require.Equal(t, 4, stats.Failures[KindNetwork])
}

func TestCoordinatorDefaultDispatchCeiling(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator(newFakeStream(search.ErrExhausted), newFakeRunner(nil), &fakeClock{}, CoordinatorConfig{
		Workers:      2,
		MaxDocuments: 5,
	}, zap.NewNop())
	require.Equal(t, 40, coord.cfg.MaxDispatch)
}
