// Package fetch implements the concurrent download pipeline: single-URL
// fetch jobs, retry orchestration, and the session coordinator.
package fetch

import (
	"time"

	"github.com/docfetch/docfetch/internal/doctype"
)

// Status enumerates terminal job results.
type Status string

// Every job produces exactly one of these.
const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Outcome is the single terminal result of one fetch job.
type Outcome struct {
	URL      string
	Status   Status
	Path     string       // set when accepted
	Type     doctype.Type // detected type, when the payload was classified
	Kind     Kind         // set when failed
	Attempts int
}

// Stats summarizes a completed session.
type Stats struct {
	Accepted int
	Rejected int
	Failed   int
	// Surplus counts in-flight jobs that finished accepted after the
	// target was already met; their files are removed.
	Surplus       int
	Dispatched    int
	Elapsed       time.Duration
	AcceptedPaths []string
	Failures      map[Kind]int
}

// Clock reports wall time (useful for testing).
type Clock interface {
	Now() time.Time
}
