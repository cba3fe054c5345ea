package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/qnopt/internal/config"
	qerrors "github.com/copyleftdev/qnopt/internal/errors"
	"github.com/copyleftdev/qnopt/internal/logging"
	"github.com/copyleftdev/qnopt/internal/optimization"
	"github.com/copyleftdev/qnopt/internal/solve"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server implements the HTTP and JSON-RPC server for the optimization service.
// Solves run asynchronously; at most cfg.Optimization.WorkerCount at once.
type Server struct {
	cfg       *config.Config
	logger    Logger
	solverLog *zap.Logger
	metrics   *Metrics

	jobs *jobStore
	sem  chan struct{}
	wg   sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new server instance with the given config and logger.
// Solver traces are forwarded to logger through a zap adapter.
func NewServer(cfg *config.Config, logger Logger, metrics *Metrics) (*Server, error) {
	jobs, err := newJobStore(cfg.Optimization.MaxJobs)
	if err != nil {
		return nil, fmt.Errorf("creating job store: %w", err)
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:       cfg,
		logger:    logger,
		solverLog: logging.NewZapLogger(logger.WithFields(map[string]interface{}{"component": "solver"})),
		metrics:   metrics,
		jobs:      jobs,
		sem:       make(chan struct{}, cfg.Optimization.WorkerCount),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
		r.Get("/problems", s.handleProblems)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// ProblemInfo describes a catalog problem.
type ProblemInfo struct {
	Name     string    `json:"name"`
	Dim      int       `json:"dim,omitempty"`
	Start    []float64 `json:"start"`
	Minimum  []float64 `json:"minimum,omitempty"`
	MinValue float64   `json:"min_value"`
}

func problemInfos() []ProblemInfo {
	names := optimization.ProblemNames()
	out := make([]ProblemInfo, 0, len(names))
	for _, name := range names {
		p, _ := optimization.LookupProblem(name)
		out = append(out, ProblemInfo{
			Name:     p.Name,
			Dim:      p.Dim,
			Start:    p.Start,
			Minimum:  p.Minimum,
			MinValue: p.MinValue,
		})
	}
	return out
}

// startJob validates req and queues it.
func (s *Server) startJob(req solve.Request) (JobView, error) {
	const op = "Server.startJob"

	req = req.WithDefaults(s.cfg.SolveDefaults())
	if err := req.Validate(); err != nil {
		return JobView{}, qerrors.Wrap(err, qerrors.CodeInvalidParams, "invalid optimization request").WithOperation(op)
	}

	j := s.jobs.add(s.ctx, req)
	if j == nil {
		return JobView{}, qerrors.New(qerrors.CodeUnavailable, "too many unfinished optimizations").WithOperation(op)
	}
	s.metrics.jobsStarted.WithLabelValues(req.Method).Inc()

	s.logger.Info("Optimization queued", map[string]interface{}{
		"optimization_id": j.id,
		"method":          req.Method,
		"problem":         req.Problem,
	})

	s.wg.Add(1)
	go s.run(j)

	v, _ := s.jobs.get(j.id)
	return v, nil
}

// run waits for a worker slot and executes the solve.
func (s *Server) run(j *job) {
	defer s.wg.Done()

	select {
	case s.sem <- struct{}{}:
	case <-j.ctx.Done():
		s.jobs.cancel(j.id)
		s.jobs.finish(j, nil, nil)
		return
	}
	defer func() { <-s.sem }()

	if !s.jobs.start(j) {
		s.jobs.finish(j, nil, nil)
		return
	}

	s.metrics.running.Inc()
	defer s.metrics.running.Dec()

	method := j.request.Method
	begin := time.Now()
	res, err := s.solve(j)
	s.metrics.duration.WithLabelValues(method).Observe(time.Since(begin).Seconds())

	status := s.jobs.finish(j, res, err)
	reason := ""
	if res != nil && status == StatusCompleted {
		reason = res.Reason.String()
		s.metrics.iterations.WithLabelValues(method).Observe(float64(res.Iterations))
	}
	s.metrics.jobsFinished.WithLabelValues(method, string(status), reason).Inc()

	fields := map[string]interface{}{
		"optimization_id": j.id,
		"status":          status,
		"duration_ms":     float64(time.Since(begin).Microseconds()) / 1000.0,
	}
	if err != nil {
		fields["error"] = err.Error()
		s.logger.Error("Optimization failed", fields)
		return
	}
	if reason != "" {
		fields["reason"] = reason
		fields["iterations"] = res.Iterations
	}
	s.logger.Info("Optimization finished", fields)
}

// solve runs the request, converting a panic in the objective into an error.
func (s *Server) solve(j *job) (res *optimization.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = qerrors.Errorf(qerrors.CodeInternal, "solver panicked: %v", rec).WithOperation("Server.solve")
		}
	}()
	return solve.Run(j.request, s.solverLog.With(zap.String("optimization_id", j.id)))
}

func (s *Server) status(id string) (JobView, error) {
	v, ok := s.jobs.get(id)
	if !ok {
		return JobView{}, qerrors.Errorf(qerrors.CodeNotFound, "optimization %q not found", id)
	}
	return v, nil
}

// cancelJob marks a job cancelled. A running solve is not interrupted; its
// result is discarded when it finishes.
func (s *Server) cancelJob(id string) (JobView, error) {
	prev, ok := s.jobs.cancel(id)
	if !ok {
		return JobView{}, qerrors.Errorf(qerrors.CodeNotFound, "optimization %q not found", id)
	}
	if prev.Terminal() {
		return JobView{}, qerrors.Errorf(qerrors.CodeInvalidRequest, "cannot cancel optimization with status: %s", prev)
	}

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
		"previous_status": prev,
	})
	v, _ := s.jobs.get(id)
	return v, nil
}

// Close cancels queued jobs and waits for running solves to finish.
func (s *Server) Close() error {
	s.cancel()
	s.jobs.cancelAll()
	s.wg.Wait()
	return nil
}

// httpStatus maps an error code to the REST status code.
func httpStatus(code qerrors.Code) int {
	switch code {
	case qerrors.CodeParseError, qerrors.CodeInvalidParams:
		return http.StatusBadRequest
	case qerrors.CodeNotFound:
		return http.StatusNotFound
	case qerrors.CodeInvalidRequest:
		return http.StatusConflict
	case qerrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := qerrors.CodeOf(err)
	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request error", map[string]interface{}{"error": err.Error()})
	}
	writeJSON(w, status, map[string]interface{}{
		"code":  code,
		"error": err.Error(),
	})
}

// handleOptimize handles POST /api/v1/optimize
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req solve.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, qerrors.Wrap(err, qerrors.CodeParseError, "invalid request body"))
		return
	}

	v, err := s.startJob(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, v)
}

// handleStatus handles GET /api/v1/status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	v, err := s.status(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleCancel handles DELETE /api/v1/optimization/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	v, err := s.cancelJob(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleProblems handles GET /api/v1/problems
func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, problemInfos())
}
