package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nadzzz/nova/internal/backend"
	"github.com/nadzzz/nova/internal/bootstrap"
	"github.com/nadzzz/nova/internal/config"
	"github.com/nadzzz/nova/internal/dispatch"
	"github.com/nadzzz/nova/internal/message"
	"github.com/nadzzz/nova/internal/offline"
)

// stdin is shared by the backend prompt and the chat loop so neither
// swallows input buffered by the other.
var stdin = bufio.NewReader(os.Stdin)

// app holds the wired components of a nova process.
type app struct {
	cfg        *config.Config
	store      *config.Store
	session    *backend.Session
	classifier *offline.Classifier
	negotiator *bootstrap.Negotiator
	dispatcher *dispatch.Dispatcher
}

// newApp builds every component from cfg. Nothing touches the network
// until negotiate is called.
func newApp(cfg *config.Config, flags *globalFlags, in io.Reader, out io.Writer) *app {
	store := config.NewStore(cfg.Backend.ConfigFile, cfg.Backend.DefaultURL)

	session := backend.NewSession(backend.Options{
		ProbeTimeout:  cfg.Backend.ProbeTimeout,
		SendTimeout:   cfg.Backend.SendTimeout,
		ProbeInterval: cfg.Backend.ProbeInterval,
	})

	classifier := offline.New(offline.Options{
		CPUSampleInterval: cfg.Offline.CPUSampleInterval,
		TopProcesses:      cfg.Offline.TopProcesses,
		DiskPath:          cfg.Offline.DiskPath,
		Applications:      offline.MergeApplications(offline.DefaultApplications, cfg.Offline.Applications),
	})

	negotiator := bootstrap.New(bootstrap.Options{
		Store:         store,
		Session:       session,
		Resolver:      resolverFor(flags, in, out),
		ProbeTimeout:  cfg.Backend.ProbeTimeout,
		DefaultScheme: cfg.Backend.DefaultScheme,
	})

	return &app{
		cfg:        cfg,
		store:      store,
		session:    session,
		classifier: classifier,
		negotiator: negotiator,
		dispatcher: dispatch.New(classifier, session),
	}
}

// resolverFor picks how an unreachable backend is replaced: a --backend
// flag wins, --no-prompt means offline, otherwise the user is asked.
func resolverFor(flags *globalFlags, in io.Reader, out io.Writer) bootstrap.Resolver {
	switch {
	case flags.backendURL != "":
		return bootstrap.StaticResolver(flags.backendURL)
	case flags.noPrompt:
		return bootstrap.StaticResolver("")
	default:
		return bootstrap.PromptResolver{In: in, Out: out}
	}
}

// negotiate selects the backend for this process. With --offline the
// negotiation is skipped and no backend is set.
func (a *app) negotiate(ctx context.Context, flags *globalFlags) error {
	if flags.offline {
		slog.Info("offline mode forced, skipping backend negotiation")
		return nil
	}
	outcome, err := a.negotiator.Run(ctx)
	if err != nil {
		return fmt.Errorf("backend negotiation: %w", err)
	}
	slog.Info("backend negotiated",
		"mode", outcome.Mode,
		"backend", outcome.Backend,
		"persisted", outcome.Persisted)
	return nil
}

// ask dispatches a single utterance.
func (a *app) ask(ctx context.Context, source, text string) *message.Reply {
	return a.dispatcher.Handle(ctx, message.NewRequest(source, text))
}

// backendAdmin joins the session's status with the negotiator's
// reconfiguration for the HTTP front-end.
type backendAdmin struct {
	*backend.Session
	*bootstrap.Negotiator
}
