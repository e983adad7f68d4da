package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/docfetch/docfetch/internal/doctype"
	"github.com/docfetch/docfetch/internal/metrics"
	"github.com/docfetch/docfetch/internal/retry"
	"github.com/docfetch/docfetch/internal/store"
)

// JobConfig tunes individual download jobs.
type JobConfig struct {
	// Timeout bounds each attempt; retries get a fresh window.
	Timeout time.Duration
	// SampleBytes is how much of the body feeds the classifier.
	SampleBytes int
	// UserAgents is the rotation pool for outbound requests.
	UserAgents []string
	// AllowedTypes gates acceptance; empty means every supported type.
	AllowedTypes []doctype.Type
}

// JobRunner downloads one candidate URL per job: stream to a temp file,
// classify the payload, then commit or discard. Retryable failures are
// re-attempted under the configured policy.
type JobRunner struct {
	client *http.Client
	store  *store.Store
	policy *retry.Policy
	cfg    JobConfig
	logger *zap.Logger
}

// NewJobRunner constructs a runner over the session store.
func NewJobRunner(st *store.Store, policy *retry.Policy, cfg JobConfig, logger *zap.Logger) *JobRunner {
	if cfg.SampleBytes <= 0 {
		cfg.SampleBytes = 3072
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &JobRunner{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		store:  st,
		policy: policy,
		cfg:    cfg,
		logger: logger,
	}
}

// Run executes the job to its single terminal outcome. Errors never escape;
// they are folded into a failed Outcome.
func (r *JobRunner) Run(ctx context.Context, rawURL string) Outcome {
	var out Outcome
	attempts, err := r.policy.Execute(ctx, func(ctx context.Context) error {
		o, aerr := r.attempt(ctx, rawURL)
		if aerr != nil {
			return aerr
		}
		out = o
		return nil
	})
	out.URL = rawURL
	out.Attempts = attempts
	if err != nil {
		out.Status = StatusFailed
		out.Kind = kindOf(err)
		r.logger.Warn("download failed",
			zap.String("url", rawURL),
			zap.Int("attempts", attempts),
			zap.String("kind", string(out.Kind)),
			zap.Error(err),
		)
	}
	return out
}

// attempt performs one download try. A nil error means a terminal outcome
// was reached (accepted or rejected); a returned error is either retryable
// or wrapped retry.Fatal.
func (r *JobRunner) attempt(ctx context.Context, rawURL string) (Outcome, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Outcome{}, retry.Fatal(&DownloadError{Kind: KindBadURL, Err: fmt.Errorf("malformed url %q", rawURL)})
	}

	start := time.Now()
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Outcome{}, retry.Fatal(&DownloadError{Kind: KindBadURL, Err: err})
	}
	req.Header.Set("User-Agent", r.randomAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		return Outcome{}, &DownloadError{Kind: netKind(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Outcome{}, retry.Fatal(&DownloadError{Kind: KindHTTPClient, Err: fmt.Errorf("http status %d", resp.StatusCode)})
	default:
		return Outcome{}, &DownloadError{Kind: KindNetwork, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}

	tmp, err := r.store.Temp()
	if err != nil {
		return Outcome{}, &DownloadError{Kind: KindIO, Err: err}
	}

	sample := newSampleWriter(r.cfg.SampleBytes)
	_, copyErr := io.Copy(io.MultiWriter(tmp, sample), resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		r.store.Discard(tmp.Name())
		ioErr := copyErr
		if ioErr == nil {
			ioErr = closeErr
		}
		return Outcome{}, &DownloadError{Kind: netKind(ioErr), Err: ioErr}
	}
	metrics.DownloadDuration.Observe(time.Since(start).Seconds())

	detected := doctype.Classify(sample.Bytes(), r.hint(u, resp.Header.Get("Content-Type")))
	if !doctype.Allowed(detected, r.cfg.AllowedTypes) {
		r.store.Discard(tmp.Name())
		r.logger.Info("document rejected",
			zap.String("url", rawURL),
			zap.String("detected", string(detected)),
		)
		return Outcome{Status: StatusRejected, Type: detected}, nil
	}

	final, err := r.store.Commit(tmp.Name(), rawURL, detected)
	if err != nil {
		r.store.Discard(tmp.Name())
		return Outcome{}, &DownloadError{Kind: KindIO, Err: err}
	}
	return Outcome{Status: StatusAccepted, Path: final, Type: detected}, nil
}

// hint derives the advisory type from the URL extension, falling back to the
// declared Content-Type header.
func (r *JobRunner) hint(u *url.URL, contentType string) doctype.Type {
	if t := doctype.FromExtension(path.Ext(u.Path)); t != doctype.TypeUnknown {
		return t
	}
	return doctype.FromMIME(contentType)
}

func (r *JobRunner) randomAgent() string {
	if len(r.cfg.UserAgents) == 0 {
		return "docfetch/0.1"
	}
	return r.cfg.UserAgents[rand.Intn(len(r.cfg.UserAgents))]
}

// sampleWriter keeps the first limit bytes it sees and discards the rest.
type sampleWriter struct {
	limit int
	buf   []byte
}

func newSampleWriter(limit int) *sampleWriter {
	return &sampleWriter{limit: limit}
}

func (w *sampleWriter) Write(p []byte) (int, error) {
	if remaining := w.limit - len(w.buf); remaining > 0 {
		if len(p) > remaining {
			w.buf = append(w.buf, p[:remaining]...)
		} else {
			w.buf = append(w.buf, p...)
		}
	}
	return len(p), nil
}

func (w *sampleWriter) Bytes() []byte {
	return w.buf
}
