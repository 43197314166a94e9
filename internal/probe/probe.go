// Package probe checks whether a backend URL is currently answering.
//
// Presence is what matters, not correctness: a 404 on the root path still
// proves a server is listening, so both 200 and 404 count as reachable.
// Anything at the connection level (refused, DNS, TLS, timeout) does not.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

var (
	// ErrUnreachable wraps connection-level failures.
	ErrUnreachable = errors.New("probe: unreachable")

	// ErrTimeout wraps probes that did not finish within the time bound.
	ErrTimeout = errors.New("probe: timed out")
)

// StatusError is returned when the server answers with a status outside {200, 404}.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("probe: unexpected status %d", e.Status)
}

// client has no Timeout of its own; every probe is bounded by a context deadline.
var client = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return http.ErrUseLastResponse
		}
		return nil
	},
}

// Check issues a GET to url and reports why it is not reachable, or nil.
// It returns within timeout regardless of how the server behaves.
func Check(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
		}
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	// Drain a little so the connection can be reused, but never wait on a slow body.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound:
		return nil
	default:
		return &StatusError{Status: resp.StatusCode}
	}
}

// Probe reports whether url is reachable within timeout. It never fails;
// every error collapses to false.
func Probe(ctx context.Context, url string, timeout time.Duration) bool {
	start := time.Now()
	err := Check(ctx, url, timeout)
	if err != nil {
		slog.Debug("backend probe failed", "url", url, "duration", time.Since(start), "error", err)
		return false
	}
	slog.Debug("backend probe succeeded", "url", url, "duration", time.Since(start))
	return true
}

// Func is the signature shared by Probe and test doubles.
type Func func(ctx context.Context, url string, timeout time.Duration) bool
