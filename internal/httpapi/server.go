// Package httpapi implements the discovery service's HTTP surface:
// session lifecycle (discover, status, programs), the shortlist →
// ROI-refinement cycle, a spreadsheet export, and liveness/usage
// probes. This layer is a thin façade over pkg/orchestrator — it holds
// no discovery logic of its own, only request validation, rate-limit
// gating, and response shaping.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/Mindburn-Labs/incentive-discovery/pkg/observability"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/orchestrator"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/ratelimit"
)

// Server wires the orchestrator graph, the rate limiter, and metrics
// into a chi router.
type Server struct {
	graph    *orchestrator.Graph
	limiter  *ratelimit.Limiter
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewServer constructs the HTTP façade. metrics may be nil to disable
// request instrumentation (e.g. in tests).
func NewServer(graph *orchestrator.Graph, limiter *ratelimit.Limiter, metrics *observability.Metrics) *Server {
	return &Server{
		graph:    graph,
		limiter:  limiter,
		metrics:  metrics,
		validate: validator.New(),
	}
}

// Router builds the chi.Mux exposing every route in spec §6.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/usage", s.handleUsage)
	if s.metrics != nil {
		r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	}

	r.Route("/incentives", func(r chi.Router) {
		r.Post("/discover", s.handleDiscover)
		r.Get("/{id}/status", s.handleStatus)
		r.Get("/{id}/programs", s.handlePrograms)
		r.Post("/{id}/shortlist", s.handleShortlist)
		r.Get("/{id}/roi-questions", s.handleROIQuestions)
		r.Post("/{id}/roi-answers", s.handleROIAnswers)
		r.Get("/{id}/roi-spreadsheet", s.handleROISpreadsheet)
	})

	return r
}

// metricsMiddleware records RED metrics for every request when
// metrics are configured.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		s.metrics.ObserveRequest(route, r.Method, strconv.Itoa(ww.Status()), time.Since(start))
	})
}
