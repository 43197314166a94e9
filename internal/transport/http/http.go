// Package http implements the HTTP front-end for nova.
//
// It exposes the assistant's query endpoint (local rules first, backend on
// a miss), the offline-only command endpoint, and backend inspection and
// reconfiguration. Swagger UI documents the API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nadzzz/nova/internal/bootstrap"
	"github.com/nadzzz/nova/internal/message"
	"github.com/nadzzz/nova/internal/offline"
	"github.com/nadzzz/nova/internal/transport"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const maxBodyBytes = 1 << 20

// Classifier runs the offline rules alone, for POST /api/command.
type Classifier interface {
	Classify(ctx context.Context, prompt string) offline.Result
}

// BackendAdmin inspects and switches the active backend.
type BackendAdmin interface {
	Status() message.BackendStatus
	Reconfigure(ctx context.Context, raw string) (bootstrap.Outcome, error)
}

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port       int
	classifier Classifier
	admin      BackendAdmin

	mu     sync.Mutex // guards server and closed
	server *http.Server
	closed bool
}

// New creates a new HTTP transport on the given port. classifier and admin
// may be nil, in which case their endpoints answer 501.
func New(port int, classifier Classifier, admin BackendAdmin) *Transport {
	return &Transport{port: port, classifier: classifier, admin: admin}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Routes builds the request multiplexer.
func (t *Transport) Routes(handler transport.Handler) http.Handler {
	mux := http.NewServeMux()

	// POST /api/query: local rules first, backend on a miss.
	mux.HandleFunc("POST /api/query", func(w http.ResponseWriter, r *http.Request) {
		t.handleQuery(w, r, handler)
	})

	// POST /api/command: offline rules only.
	mux.HandleFunc("POST /api/command", t.handleCommand)

	mux.HandleFunc("GET /api/backend", t.handleBackendStatus)
	mux.HandleFunc("PUT /api/backend", t.handleBackendUpdate)

	// Swagger UI serves the OpenAPI docs registered by the docs package.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return mux
}

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Routes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.server = srv
	t.mu.Unlock()

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

type promptRequest struct {
	Prompt string `json:"prompt"`
	Source string `json:"source,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type commandResponse struct {
	Handled bool   `json:"handled"`
	Reply   string `json:"reply"`
	Rule    string `json:"rule,omitempty"`
}

type backendUpdate struct {
	URL string `json:"url"`
}

type backendUpdateResponse struct {
	Outcome bootstrap.Outcome     `json:"outcome"`
	Status  message.BackendStatus `json:"status"`
}

// decodePrompt reads a {"prompt": ...} body. It writes the 400 itself and
// reports false when the body is unusable.
func decodePrompt(w http.ResponseWriter, r *http.Request) (promptRequest, bool) {
	var pr promptRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&pr); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
		return pr, false
	}
	pr.Prompt = strings.TrimSpace(pr.Prompt)
	if pr.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Empty prompt"})
		return pr, false
	}
	return pr, true
}

// handleQuery processes a POST /api/query request.
//
// @Summary     Ask the assistant
// @Description Runs the utterance through the offline rules; on a miss it is forwarded to the
// @Description configured backend. A reply is always returned. When the backend was tried and
// @Description failed, the degraded reply is returned with status 502.
// @Tags        assistant
// @Accept      json
// @Produce     json
// @Param       request  body      promptRequest  true  "Utterance"
// @Success     200  {object}  message.Reply  "Answer"
// @Failure     400  {object}  errorResponse  "Empty prompt or invalid body"
// @Failure     502  {object}  message.Reply  "Backend failed; offline fallback reply"
// @Router      /api/query [post]
func (t *Transport) handleQuery(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	pr, ok := decodePrompt(w, r)
	if !ok {
		return
	}

	source := pr.Source
	if source == "" {
		source = "http"
	}
	reply := handler(r.Context(), message.NewRequest(source, pr.Prompt))

	status := http.StatusOK
	if reply.Degraded {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, reply)
}

// handleCommand processes a POST /api/command request.
//
// @Summary     Run an offline command
// @Description Evaluates the utterance against the offline rules only. handled=false means no
// @Description rule matched and reply holds the capability description.
// @Tags        assistant
// @Accept      json
// @Produce     json
// @Param       request  body      promptRequest  true  "Utterance"
// @Success     200  {object}  commandResponse
// @Failure     400  {object}  errorResponse
// @Router      /api/command [post]
func (t *Transport) handleCommand(w http.ResponseWriter, r *http.Request) {
	if t.classifier == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "offline commands disabled"})
		return
	}
	pr, ok := decodePrompt(w, r)
	if !ok {
		return
	}

	res := t.classifier.Classify(r.Context(), pr.Prompt)
	writeJSON(w, http.StatusOK, commandResponse{Handled: res.Handled, Reply: res.Reply, Rule: res.Rule})
}

// handleBackendStatus processes a GET /api/backend request.
//
// @Summary     Show the active backend
// @Tags        backend
// @Produce     json
// @Success     200  {object}  message.BackendStatus
// @Router      /api/backend [get]
func (t *Transport) handleBackendStatus(w http.ResponseWriter, r *http.Request) {
	if t.admin == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "backend administration disabled"})
		return
	}
	writeJSON(w, http.StatusOK, t.admin.Status())
}

// handleBackendUpdate processes a PUT /api/backend request.
//
// @Summary     Switch the backend
// @Description Probes the new URL and, if it answers, persists and activates it. An empty url
// @Description switches to offline-only mode without changing the persisted value.
// @Tags        backend
// @Accept      json
// @Produce     json
// @Param       request  body      backendUpdate  true  "New backend"
// @Success     200  {object}  backendUpdateResponse
// @Failure     400  {object}  errorResponse  "Invalid or unreachable URL"
// @Failure     500  {object}  errorResponse  "Could not persist the backend"
// @Router      /api/backend [put]
func (t *Transport) handleBackendUpdate(w http.ResponseWriter, r *http.Request) {
	if t.admin == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "backend administration disabled"})
		return
	}

	var upd backendUpdate
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
		return
	}

	out, err := t.admin.Reconfigure(r.Context(), upd.URL)
	switch {
	case errors.Is(err, bootstrap.ErrInvalidURL), errors.Is(err, bootstrap.ErrUnreachable):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case err != nil:
		slog.Error("backend reconfiguration failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, backendUpdateResponse{Outcome: out, Status: t.admin.Status()})
}

// Close gracefully shuts down the HTTP server.
// A Listen that has not started yet returns immediately.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	srv := t.server
	t.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
