package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies job failures for reporting and metrics.
type Kind string

// Failure kinds surfaced in session stats.
const (
	KindNetwork    Kind = "network"
	KindTimeout    Kind = "timeout"
	KindHTTPClient Kind = "http_client"
	KindBadURL     Kind = "bad_url"
	KindIO         Kind = "io"
)

// DownloadError tags a failure with its kind so the coordinator can report
// per-kind counts without inspecting wrapped causes.
type DownloadError struct {
	Kind Kind
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// kindOf extracts the kind from err, defaulting to network.
func kindOf(err error) Kind {
	var derr *DownloadError
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return netKind(err)
}

// netKind separates timeouts from other transport failures.
func netKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}
