package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abhisek/codequiz/internal/metrics"
	"github.com/abhisek/codequiz/internal/orchestrator"
	"github.com/abhisek/codequiz/internal/plugin"
	"github.com/abhisek/codequiz/internal/quiz"
	"github.com/abhisek/codequiz/internal/run"
)

// Runner executes a generation request. *orchestrator.Orchestrator
// satisfies it.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// QuizRequest is the body of both quiz endpoints.
type QuizRequest struct {
	Chunks       []string `json:"chunks"`
	Types        []string `json:"types,omitempty"`
	NumQuestions int      `json:"num_questions"`
	Difficulty   string   `json:"difficulty,omitempty"`
	Language     string   `json:"language,omitempty"`
	Premium      bool     `json:"premium,omitempty"`
	UserID       string   `json:"user_id,omitempty"`
}

// QuizResponse is the body of a batch response.
type QuizResponse struct {
	RunID     string          `json:"run_id"`
	Questions []quiz.Question `json:"questions"`
	Summary   run.Snapshot    `json:"summary"`
}

// Config holds server configuration.
type Config struct {
	// Address is the listen address (e.g. ":8080").
	Address string

	// Settings are applied to every run.
	Settings orchestrator.Settings

	// MaxBodyBytes caps a request body. Defaults to 4 MiB.
	MaxBodyBytes int64

	// MaxQuestions caps num_questions. Defaults to 50.
	MaxQuestions int

	// ShutdownTimeout bounds connection draining. Defaults to 30 seconds.
	ShutdownTimeout time.Duration

	// ReadTimeout defaults to 10 seconds. There is no write timeout since
	// a stream lasts as long as its run.
	ReadTimeout time.Duration

	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// Server serves quiz generation over HTTP.
type Server struct {
	runner          Runner
	cfg             Config
	logger          *slog.Logger
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// NewServer creates a server for runner.
func NewServer(runner Runner, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 4 << 20
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = 50
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		runner:          runner,
		cfg:             cfg,
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	s.httpServer = &http.Server{
		Addr:        cfg.Address,
		Handler:     s.Handler(),
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/quiz", s.handleBatch)
	mux.HandleFunc("POST /v1/quiz/stream", s.handleStream)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.cfg.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.HandlerFor(s.cfg.Gatherer))
	}
	return mux
}

// Start blocks serving requests. It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.cfg.Address)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains connections for up to the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.httpServer.SetKeepAlivesEnabled(false)
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// handleBatch runs a request to completion and returns every question.
// POST /v1/quiz
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	req, err := s.decode(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.runner.Run(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	questions := res.Questions
	if questions == nil {
		questions = []quiz.Question{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(QuizResponse{
		RunID:     res.RunID,
		Questions: questions,
		Summary:   res.Summary,
	}); err != nil {
		s.logger.WarnContext(r.Context(), "failed to write response", "error", err)
	}
}

// handleStream writes a meta record, one question record per accepted
// question as it is accepted, then done or error.
// POST /v1/quiz/stream
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.decode(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	out := NewWriter(w)
	if err := out.Write(Meta(req.NumQuestions)); err != nil {
		s.logger.DebugContext(r.Context(), "client gone before meta", "error", err)
		return
	}
	req.Sink = NDJSONSink{W: out}

	res, err := s.runner.Run(r.Context(), req)
	if err != nil {
		_ = out.Write(Error(err.Error()))
		return
	}
	if r.Context().Err() != nil {
		return
	}
	if err := out.Write(Done(len(res.Questions))); err != nil {
		s.logger.DebugContext(r.Context(), "client gone before done", "run_id", res.RunID, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (orchestrator.Request, error) {
	var body QuizRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return orchestrator.Request{}, fmt.Errorf("invalid request body: %w", err)
	}
	return s.toRequest(body)
}

func (s *Server) toRequest(body QuizRequest) (orchestrator.Request, error) {
	types, err := quiz.ParseTypes(body.Types)
	if err != nil {
		return orchestrator.Request{}, err
	}
	n := body.NumQuestions
	if n <= 0 {
		n = 1
	}
	if n > s.cfg.MaxQuestions {
		return orchestrator.Request{}, fmt.Errorf("num_questions %d exceeds the limit of %d", n, s.cfg.MaxQuestions)
	}
	return orchestrator.Request{
		Chunks:       body.Chunks,
		Types:        types,
		NumQuestions: n,
		Settings:     s.cfg.Settings,
		Credentials:  plugin.Credentials{UserID: body.UserID, Premium: body.Premium},
		Options:      plugin.Options{Difficulty: body.Difficulty},
		Language:     body.Language,
	}, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrNoChunks), errors.Is(err, orchestrator.ErrNoPlugins):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
