// Package dispatch implements the core request routing engine.
//
// The dispatcher answers every utterance locally when an offline rule
// matches, and only on a local miss forwards it to the remote backend.
// The sender always receives a non-empty reply: backend failures are
// folded into fallback text and never surface as errors.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/nova/internal/message"
	"github.com/nadzzz/nova/internal/offline"
)

// FallbackPrefix marks replies produced after a failed backend call.
const FallbackPrefix = "[Offline fallback]"

// Classifier answers utterances without the network.
type Classifier interface {
	Classify(ctx context.Context, prompt string) offline.Result
}

// Remote is the backend the dispatcher falls through to.
type Remote interface {
	Backend() (string, bool)
	Reachable(ctx context.Context) bool
	Send(ctx context.Context, prompt string) (string, error)
}

// Dispatcher is the central routing engine.
type Dispatcher struct {
	classifier Classifier
	remote     Remote
}

// New creates a new Dispatcher over the given classifier and backend.
func New(classifier Classifier, remote Remote) *Dispatcher {
	return &Dispatcher{classifier: classifier, remote: remote}
}

// Handle processes a single request through the full pipeline.
// It never fails; the returned reply always carries text.
func (d *Dispatcher) Handle(ctx context.Context, req *message.Request) *message.Reply {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	logger := slog.With("request_id", req.ID, "source", req.Source)

	reply := d.handle(ctx, req, logger)
	reply.RequestID = req.ID
	if reply.Text == "" {
		reply.Text = offline.FallbackReply
	}

	logger.Info("dispatch complete",
		"origin", reply.Origin,
		"rule", reply.Rule,
		"degraded", reply.Degraded,
		"duration", time.Since(start))
	return reply
}

func (d *Dispatcher) handle(ctx context.Context, req *message.Request, logger *slog.Logger) *message.Reply {
	// Step 1: Local rules. A handled result never goes remote.
	local := d.classifier.Classify(ctx, req.Text)
	if local.Handled {
		logger.Debug("answered locally", "rule", local.Rule)
		return &message.Reply{Text: local.Reply, Origin: message.OriginLocal, Rule: local.Rule}
	}

	fallback := &message.Reply{Text: local.Reply, Origin: message.OriginFallback}

	if strings.TrimSpace(req.Text) == "" {
		return fallback
	}

	// Step 2: Is there a backend worth asking?
	url, ok := d.remote.Backend()
	if !ok {
		logger.Debug("no backend configured, offline-only")
		return fallback
	}
	if !d.remote.Reachable(ctx) {
		logger.Info("backend unreachable, using offline reply", "backend", url)
		return fallback
	}

	// Step 3: Ask the backend.
	text, err := d.remote.Send(ctx, req.Text)
	if err != nil {
		logger.Warn("backend request failed", "backend", url, "error", err)
		return &message.Reply{
			Text:     ComposeFallback(local.Reply, err),
			Origin:   message.OriginFallback,
			Degraded: true,
			Error:    err.Error(),
		}
	}
	if strings.TrimSpace(text) == "" {
		logger.Warn("backend returned an empty reply", "backend", url)
		return fallback
	}

	return &message.Reply{Text: text, Origin: message.OriginRemote}
}

// ComposeFallback builds the degraded-mode reply from the offline text and
// the backend error.
func ComposeFallback(localReply string, err error) string {
	return fmt.Sprintf("%s %s (cloud error: %v)", FallbackPrefix, localReply, err)
}
