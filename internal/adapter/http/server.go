package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/couchcryptid/geode/internal/plan"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

// maxPlanBytes bounds the request body of POST /v1/plans.
const maxPlanBytes = 1 << 20

// PlanRunner executes a plan synchronously.
type PlanRunner interface {
	Execute(ctx context.Context, p plan.Plan) plan.Result
}

// Server exposes health, readiness and metrics endpoints, plus a synchronous
// plan endpoint for callers that do not go through Kafka.
type Server struct {
	httpServer *http.Server
	runner     PlanRunner
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// POST /v1/plans routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, runner PlanRunner, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		runner: runner,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/plans", s.handlePlan)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handlePlan runs the posted plan and answers with its result. A plan that
// fails still gets its result document, with a status code derived from the
// error kind.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPlanBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		return
	}
	p, err := plan.Parse(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	res := s.runner.Execute(r.Context(), p)
	s.logger.Debug("plan served", "plan_id", res.PlanID, "status", res.Status)
	writeJSON(w, statusFor(res), res)
}

func statusFor(res plan.Result) int {
	if res.Error == nil {
		return http.StatusOK
	}
	switch res.Error.Kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState, domain.KindDegenerate:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
