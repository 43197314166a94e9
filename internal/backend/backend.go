// Package backend holds the process-wide remote backend session.
//
// A Session owns the active endpoint and its cached reachability. State is
// kept in an immutable snapshot behind an atomic pointer: request handlers
// read it concurrently while the negotiator or an explicit reconfiguration
// replaces it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nadzzz/nova/internal/message"
	"github.com/nadzzz/nova/internal/probe"
)

var (
	// ErrBackendUnset is returned by Send when no endpoint is configured.
	ErrBackendUnset = errors.New("backend: no endpoint configured")

	// ErrBackendUnreachable wraps network and timeout failures.
	ErrBackendUnreachable = errors.New("backend: unreachable")

	// ErrMalformedResponse is returned for a 2xx body that is not JSON.
	ErrMalformedResponse = errors.New("backend: malformed response")
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: status %d", e.Status)
	}
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Body)
}

// Options configures a Session. Zero values select the defaults.
type Options struct {
	ProbeTimeout  time.Duration // default 2s
	SendTimeout   time.Duration // default 10s
	ProbeInterval time.Duration // default 30s; how long a reachability result is trusted
	Probe         probe.Func    // default probe.Probe
	Client        *http.Client
}

type state struct {
	url       string
	online    bool
	checkedAt time.Time
}

// Session is the active backend endpoint plus its cached reachability.
type Session struct {
	cur           atomic.Pointer[state]
	probeTimeout  time.Duration
	sendTimeout   time.Duration
	probeInterval time.Duration
	probe         probe.Func
	client        *http.Client
	now           func() time.Time
}

// NewSession creates a session with no backend configured.
func NewSession(opts Options) *Session {
	s := &Session{
		probeTimeout:  opts.ProbeTimeout,
		sendTimeout:   opts.SendTimeout,
		probeInterval: opts.ProbeInterval,
		probe:         opts.Probe,
		client:        opts.Client,
		now:           time.Now,
	}
	if s.probeTimeout <= 0 {
		s.probeTimeout = 2 * time.Second
	}
	if s.sendTimeout <= 0 {
		s.sendTimeout = 10 * time.Second
	}
	if s.probeInterval <= 0 {
		s.probeInterval = 30 * time.Second
	}
	if s.probe == nil {
		s.probe = probe.Probe
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	s.cur.Store(&state{})
	return s
}

// SetBackend replaces the active endpoint. An empty url switches the
// session to offline-only mode. Cached reachability is reset.
func (s *Session) SetBackend(url string) {
	url = strings.TrimRight(url, "/")
	s.cur.Store(&state{url: url})
	if url == "" {
		slog.Info("backend cleared, offline-only mode")
	} else {
		slog.Info("backend set", "url", url)
	}
}

// Backend returns the active endpoint and whether one is configured.
func (s *Session) Backend() (string, bool) {
	st := s.cur.Load()
	return st.url, st.url != ""
}

// MarkReachable records a reachability result for url. The result is
// dropped if url is no longer the active endpoint.
func (s *Session) MarkReachable(url string, online bool) {
	url = strings.TrimRight(url, "/")
	next := &state{url: url, online: online, checkedAt: s.now()}
	for {
		old := s.cur.Load()
		if old.url != url || url == "" {
			return
		}
		if s.cur.CompareAndSwap(old, next) {
			if old.online != online {
				slog.Info("backend reachability changed", "url", url, "online", online)
			}
			return
		}
	}
}

// Reachable reports whether the active backend is answering. The cached
// result is used while fresh; otherwise the backend is probed again,
// bounded by the probe timeout.
func (s *Session) Reachable(ctx context.Context) bool {
	st := s.cur.Load()
	if st.url == "" {
		return false
	}
	if !st.checkedAt.IsZero() && s.now().Sub(st.checkedAt) < s.probeInterval {
		return st.online
	}
	return s.Refresh(ctx)
}

// Refresh probes the active backend now and caches the result.
func (s *Session) Refresh(ctx context.Context) bool {
	url, ok := s.Backend()
	if !ok {
		return false
	}
	online := s.probe(ctx, url, s.probeTimeout)
	if ctx.Err() != nil {
		// The caller gave up; that says nothing about the backend.
		return online
	}
	s.MarkReachable(url, online)
	return online
}

// Status returns a snapshot of the active backend.
func (s *Session) Status() message.BackendStatus {
	st := s.cur.Load()
	return message.BackendStatus{URL: st.url, Online: st.online, CheckedAt: st.checkedAt}
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Send posts prompt to the backend's /chat endpoint and returns its reply.
// There are no retries; the caller decides what a failure means.
func (s *Session) Send(ctx context.Context, prompt string) (string, error) {
	url, ok := s.Backend()
	if !ok {
		return "", ErrBackendUnset
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	bodyBytes, err := json.Marshal(chatRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshalling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, url+"/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %w", ErrBackendUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			s.MarkReachable(url, false)
		}
		return "", fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	// Any HTTP answer proves the process is listening.
	s.MarkReachable(url, true)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &StatusError{Status: resp.StatusCode, Body: errorDetail(respBody)}
	}

	respData, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %w", ErrBackendUnreachable, err)
	}

	var cr chatResponse
	if err := json.Unmarshal(respData, &cr); err != nil {
		return "", fmt.Errorf("%w: %.200s", ErrMalformedResponse, respData)
	}

	slog.Debug("backend reply received", "url", url, "reply_length", len(cr.Reply))
	return cr.Reply, nil
}

// errorDetail pulls a human-readable message out of an error body.
// JSON bodies with an "error" or "detail" field yield that field.
func errorDetail(body []byte) string {
	var decoded struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if decoded.Error != "" {
			return decoded.Error
		}
		if decoded.Detail != "" {
			return decoded.Detail
		}
	}
	return strings.TrimSpace(string(body))
}
