package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pianista-dev/pianista/api"
	"github.com/pianista-dev/pianista/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// maxRequestBody bounds submitted PDDL and MiniZinc payloads.
	maxRequestBody = 4 << 20

	defaultTitle     = "Pianista Jobs"
	titlePlaceholder = "{{.Title}}"
)

// ErrTrackingUnavailable is returned by a [Tracker] that cannot accept
// more jobs (for example because its tracking limit is reached).
var ErrTrackingUnavailable = errors.New("job tracking unavailable")

// Tracker submits jobs to the Pianista API and follows them until they
// finish. It is implemented by the root package's Monitor.
type Tracker interface {
	SubmitPlan(ctx context.Context, req api.PlanRequest) (store.JobRecord, error)
	SubmitSolve(ctx context.Context, req api.SolveRequest) (store.JobRecord, error)
	Cancel(id string) bool
}

// Server is the local job gateway: a REST API over the job store, a
// Server-Sent Events stream of job transitions, and an optional dashboard.
//
// Routes:
//   - GET /: embedded dashboard (when assets are configured)
//   - GET /healthz: liveness probe
//   - GET /api/jobs: all tracked jobs, most recently updated first
//   - GET /api/jobs/{id}: one tracked job
//   - DELETE /api/jobs/{id}: stop polling a job and forget it
//   - POST /api/plans: submit a PDDL planning job
//   - POST /api/solves: submit a MiniZinc job
//   - GET /api/sse: Server-Sent Events stream of job updates
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store   store.Store
	tracker Tracker
	port    int
	assets  fs.FS
	title   string
	logger  *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	addr       net.Addr
}

// NewServer creates a new HTTP [Server].
//
// tracker may be nil, in which case the submission routes answer 503.
// assets may be nil, in which case no dashboard is served. The server is
// not started until [Server.Start] is called.
func NewServer(st store.Store, tracker Tracker, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:   st,
		tracker: tracker,
		port:    port,
		assets:  assets,
		title:   title,
		logger:  logger,
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDeleteJob)
	mux.HandleFunc("POST /api/plans", s.handleSubmitPlan)
	mux.HandleFunc("POST /api/solves", s.handleSubmitSolve)
	mux.HandleFunc("GET /api/sse", s.handleSSE)

	if s.assets != nil {
		mux.HandleFunc("GET /{$}", s.handleDashboard)
	}

	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx, so SSE handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the address the server is listening on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.GetAll(), s.logger)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %q is not tracked", id), s.logger)
		return
	}
	writeJSON(w, http.StatusOK, record, s.logger)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cancelled := false
	if s.tracker != nil {
		cancelled = s.tracker.Cancel(id)
	}
	if !s.store.Delete(id) && !cancelled {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %q is not tracked", id), s.logger)
		return
	}
	s.logger.Info("job removed", "job_id", id, "was_polling", cancelled)
	w.WriteHeader(http.StatusNoContent)
}

// planSubmission is the JSON body of POST /api/plans.
type planSubmission struct {
	Domain           string `json:"domain"`
	Problem          string `json:"problem"`
	PlannerID        string `json:"planner_id"`
	ConvertRealTypes *bool  `json:"convert_real_types"`
}

// solveSubmission is the JSON body of POST /api/solves.
type solveSubmission struct {
	Model      string         `json:"model_str"`
	Params     map[string]any `json:"model_params"`
	SolverName string         `json:"solver_name"`
}

func (s *Server) handleSubmitPlan(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "job submission is not enabled", s.logger)
		return
	}

	var body planSubmission
	if !s.decodeBody(w, r, &body) {
		return
	}

	record, err := s.tracker.SubmitPlan(r.Context(), api.PlanRequest{
		Domain:           body.Domain,
		Problem:          body.Problem,
		PlannerID:        body.PlannerID,
		ConvertRealTypes: body.ConvertRealTypes,
	})
	s.writeSubmission(w, record, err, "plan submission")
}

func (s *Server) handleSubmitSolve(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "job submission is not enabled", s.logger)
		return
	}

	var body solveSubmission
	if !s.decodeBody(w, r, &body) {
		return
	}

	record, err := s.tracker.SubmitSolve(r.Context(), api.SolveRequest{
		Model:      body.Model,
		Params:     body.Params,
		SolverName: body.SolverName,
	})
	s.writeSubmission(w, record, err, "solve submission")
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), s.logger)
		return false
	}
	return true
}

// writeSubmission maps a tracker result onto the response. Upstream API
// errors keep their status code; transport errors become 502.
func (s *Server) writeSubmission(w http.ResponseWriter, record store.JobRecord, err error, op string) {
	if err != nil {
		code := http.StatusBadGateway
		switch {
		case errors.Is(err, api.ErrMissingField):
			code = http.StatusBadRequest
		case errors.Is(err, ErrTrackingUnavailable):
			code = http.StatusServiceUnavailable
		case api.StatusCode(err) != 0:
			code = api.StatusCode(err)
		}
		s.logger.Warn("job submission failed", "op", op, "status_code", code, "error", err.Error())
		writeError(w, code, api.StatusMessage(err, op), s.logger)
		return
	}

	code := http.StatusAccepted
	if record.Terminal() {
		code = http.StatusOK
	}
	writeJSON(w, code, record, s.logger)
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// titles are HTML-escaped before substitution
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleSSE streams job updates via Server-Sent Events.
//
// Writes use deadlines so a slow or vanished client cannot pin the handler
// goroutine past shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before the snapshot so no transition falls in between
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, record := range s.store.GetAll() {
		data, err := json.Marshal(record)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case record, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(record)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string, logger *slog.Logger) {
	writeJSON(w, code, map[string]string{"error": msg}, logger)
}
