// Package bootstrap negotiates which backend the daemon talks to.
//
// At startup the persisted URL is probed; if it does not answer, a Resolver
// is asked for an alternate. A blank answer means offline-only. A new URL is
// persisted only after it has been probed successfully. The same rules back
// explicit reconfiguration while the daemon runs.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nadzzz/nova/internal/config"
	"github.com/nadzzz/nova/internal/probe"
)

// ErrUnreachable is returned by Reconfigure when the new URL does not answer.
var ErrUnreachable = errors.New("bootstrap: backend unreachable")

// ErrInvalidURL is returned by Reconfigure for input that is not a usable URL.
var ErrInvalidURL = errors.New("bootstrap: invalid backend url")

// Mode describes how the negotiation ended.
type Mode string

const (
	// ModeConfigured means the persisted backend answered.
	ModeConfigured Mode = "configured"

	// ModeAlternate means a newly supplied backend answered and was saved.
	ModeAlternate Mode = "alternate"

	// ModeOffline means no backend is active.
	ModeOffline Mode = "offline"
)

// Outcome reports the result of a negotiation.
type Outcome struct {
	Backend   string `json:"backend,omitempty"`
	Mode      Mode   `json:"mode"`
	Persisted bool   `json:"persisted"`
}

// Resolver supplies an alternate backend URL when the configured one does
// not answer. An empty answer selects offline-only mode.
type Resolver interface {
	ResolveURL(ctx context.Context, unreachable string) (string, error)
}

// Store persists the backend record.
type Store interface {
	Load() config.Persisted
	Save(config.Persisted) error
}

// Session is the backend session the negotiator activates.
type Session interface {
	SetBackend(url string)
	MarkReachable(url string, online bool)
}

// Options configures a Negotiator.
type Options struct {
	Store         Store
	Session       Session
	Resolver      Resolver
	Probe         probe.Func    // default probe.Probe
	ProbeTimeout  time.Duration // default 2s
	DefaultScheme string        // default "https"
}

// Negotiator runs the startup backend negotiation.
type Negotiator struct {
	store         Store
	session       Session
	resolver      Resolver
	probe         probe.Func
	probeTimeout  time.Duration
	defaultScheme string
}

// New creates a Negotiator.
func New(opts Options) *Negotiator {
	n := &Negotiator{
		store:         opts.Store,
		session:       opts.Session,
		resolver:      opts.Resolver,
		probe:         opts.Probe,
		probeTimeout:  opts.ProbeTimeout,
		defaultScheme: opts.DefaultScheme,
	}
	if n.probe == nil {
		n.probe = probe.Probe
	}
	if n.probeTimeout <= 0 {
		n.probeTimeout = 2 * time.Second
	}
	if n.defaultScheme == "" {
		n.defaultScheme = "https"
	}
	if n.resolver == nil {
		n.resolver = StaticResolver("")
	}
	return n
}

// Run performs the one-shot startup negotiation. The only error it
// returns is a failure to persist a newly validated URL.
func (n *Negotiator) Run(ctx context.Context) (Outcome, error) {
	configured := n.store.Load().URL()

	if configured != "" {
		slog.Info("trying configured backend", "url", configured)
		if n.probe(ctx, configured, n.probeTimeout) {
			n.activate(configured)
			slog.Info("backend reachable", "url", configured)
			return Outcome{Backend: configured, Mode: ModeConfigured}, nil
		}
		slog.Warn("configured backend unreachable", "url", configured)
	}

	answer, err := n.resolver.ResolveURL(ctx, configured)
	if err != nil {
		slog.Warn("could not read alternate backend, running offline", "error", err)
		return n.offline(), nil
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		slog.Info("no alternate backend given, running offline")
		return n.offline(), nil
	}

	candidate, err := NormalizeURL(answer, n.defaultScheme)
	if err != nil {
		slog.Warn("alternate backend is not a valid url, running offline", "input", answer, "error", err)
		return n.offline(), nil
	}

	if !n.probe(ctx, candidate, n.probeTimeout) {
		slog.Warn("could not reach alternate backend, running offline", "url", candidate)
		return n.offline(), nil
	}

	if err := n.store.Save(config.WithURL(candidate)); err != nil {
		n.offline()
		return Outcome{Mode: ModeOffline}, fmt.Errorf("persisting backend: %w", err)
	}
	n.activate(candidate)
	slog.Info("backend reachable", "url", candidate)
	return Outcome{Backend: candidate, Mode: ModeAlternate, Persisted: true}, nil
}

// Reconfigure switches to raw while the daemon runs. A blank value selects
// offline-only mode without touching the persisted record. A URL that does
// not answer leaves the current backend untouched.
func (n *Negotiator) Reconfigure(ctx context.Context, raw string) (Outcome, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return n.offline(), nil
	}

	candidate, err := NormalizeURL(raw, n.defaultScheme)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	if !n.probe(ctx, candidate, n.probeTimeout) {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnreachable, candidate)
	}

	if err := n.store.Save(config.WithURL(candidate)); err != nil {
		return Outcome{}, fmt.Errorf("persisting backend: %w", err)
	}
	n.activate(candidate)
	slog.Info("backend reconfigured", "url", candidate)
	return Outcome{Backend: candidate, Mode: ModeAlternate, Persisted: true}, nil
}

func (n *Negotiator) activate(url string) {
	n.session.SetBackend(url)
	n.session.MarkReachable(url, true)
}

func (n *Negotiator) offline() Outcome {
	n.session.SetBackend("")
	return Outcome{Mode: ModeOffline}
}

// NormalizeURL turns user input into an absolute URL, prepending
// defaultScheme when no scheme is given. Trailing slashes are removed.
func NormalizeURL(raw, defaultScheme string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = defaultScheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}
