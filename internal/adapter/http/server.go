package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/crop-advisor-service/internal/advisor"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Advisor is the recommendation service behind the HTTP API.
type Advisor interface {
	sharedobs.ReadinessChecker
	RecommendRules(season, soil string) ([]string, error)
	RecommendML(ctx context.Context, req advisor.MLRequest) (domain.Recommendation, error)
	RegionCrops(ctx context.Context, state, district string) ([]string, error)
	RegionStates() ([]string, error)
	RegionDistricts(state string) ([]string, error)
	Info() (advisor.ModelInfo, error)
	Retrain(ctx context.Context) (advisor.ModelInfo, error)
}

// Server exposes the recommendation API alongside health, readiness, and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	advisor    Advisor
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the API and operational routes.
// ready gates /readyz and may differ from svc when other components must
// also be up.
func NewServer(addr string, svc Advisor, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second, // retrain runs inline
			IdleTimeout:  60 * time.Second,
		},
		advisor: svc,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/rules", s.handleRules)
	mux.HandleFunc("POST /v1/recommendations", s.handleRecommend)
	mux.HandleFunc("GET /v1/regions", s.handleStates)
	mux.HandleFunc("GET /v1/regions/{state}/districts", s.handleDistricts)
	mux.HandleFunc("GET /v1/regions/{state}/{district}/crops", s.handleRegionCrops)
	mux.HandleFunc("GET /v1/model", s.handleModel)
	mux.HandleFunc("POST /admin/retrain", s.handleRetrain)

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
