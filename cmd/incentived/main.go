// Command incentived runs the hiring-incentive discovery service: the
// HTTP façade, the discovery orchestrator, and the shared rate
// limiter and program cache behind it. Grounded on the teacher's
// cmd/helm/main.go wiring style (env-driven config → backend
// selection → subsystem construction → serve → signal-driven
// shutdown), trimmed to this service's much smaller dependency graph.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/incentive-discovery/internal/httpapi"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/config"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/extractor"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/llm"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/observability"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/orchestrator"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/programcache"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/ratelimit"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/router"
	"github.com/Mindburn-Labs/incentive-discovery/pkg/searchclient"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "health" {
		os.Exit(runHealthCheck())
	}
	runServer()
}

func runHealthCheck() int {
	resp, err := http.Get("http://localhost:8081/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	fmt.Println("OK")
	return 0
}

func runServer() {
	ctx := context.Background()
	logger := slog.Default()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	cache, err := openCache(cfg)
	if err != nil {
		log.Fatalf("failed to open program cache: %v", err)
	}
	defer cache.Close()
	logger.Info("program cache ready", "backend", cfg.CacheBackend)

	var llmClient llm.Client
	if cfg.DemoMode {
		llmClient = demoLLMClient{}
	} else {
		llmClient = llm.NewAnthropicClient(cfg.AnthropicAPIKey, anthropic.Model(cfg.LLMModel))
	}

	var searcher searchclient.Searcher
	if cfg.DemoMode {
		searcher = demoSearcher{}
	} else {
		searcher = searchclient.NewBreakerSearcher(
			searchclient.NewHTTPSearcher(cfg.SearchBaseURL, cfg.SearchAPIKey),
			searchclient.DefaultRetryPolicy,
		)
	}

	limiter := ratelimit.New(ratelimit.Limits{
		MaxConcurrentSessions: cfg.Limits.MaxConcurrentSessions,
		MaxSessionsPerDay:     cfg.Limits.MaxSessionsPerDay,
		MaxSearchPerSession:   cfg.Limits.MaxSearchPerSession,
		MaxLLMPerSession:      cfg.Limits.MaxLLMPerSession,
	})

	var redisLimiter *ratelimit.RedisLimiter
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		redisLimiter = ratelimit.NewRedisLimiter(redis.NewClient(opt), ratelimit.Limits{
			MaxConcurrentSessions: cfg.Limits.MaxConcurrentSessions,
			MaxSessionsPerDay:     cfg.Limits.MaxSessionsPerDay,
			MaxSearchPerSession:   cfg.Limits.MaxSearchPerSession,
			MaxLLMPerSession:      cfg.Limits.MaxLLMPerSession,
		})
		logger.Info("rate limiter using redis backend")
	}

	graph := &orchestrator.Graph{
		Store:        orchestrator.NewStore(),
		Events:       orchestrator.NewEventBus(),
		Router:       router.New(llmClient),
		Cache:        cache,
		Search:       searcher,
		Extractor:    extractor.New(llmClient),
		LLMClient:    llmClient,
		Retry:        searchclient.DefaultRetryPolicy,
		Limiter:      limiter,
		RedisLimiter: redisLimiter,
		MaxROIRounds: cfg.MaxROIRounds,
		DemoMode:     cfg.DemoMode,
	}

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	obs, err := observability.New(ctx, &observability.Config{
		ServiceName: "incentive-discovery",
		Enabled:     false,
	})
	if err != nil {
		log.Fatalf("failed to init observability: %v", err)
	}
	defer obs.Shutdown(ctx)

	server := httpapi.NewServer(graph, limiter, metrics)

	addr := ":" + cfg.Port
	httpServer := &http.Server{Addr: addr, Handler: server.Router()}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	healthServer := &http.Server{Addr: ":8081", Handler: healthMux}

	go func() {
		logger.Info("health server listening", "addr", ":8081")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", "error", err)
		}
	}()

	go func() {
		logger.Info("incentive discovery service listening", "addr", addr, "demo_mode", cfg.DemoMode)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = healthServer.Shutdown(shutdownCtx)
}

// openCache selects the embedded or networked programcache backend
// per config.CacheBackend. Both satisfy programcache.Cache.
func openCache(cfg *config.Config) (programcache.Cache, error) {
	switch cfg.CacheBackend {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(context.Background()); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return programcache.OpenPostgresCache(db), nil
	default:
		return programcache.OpenSQLiteCache(cfg.SQLitePath)
	}
}

// demoLLMClient drives the scripted demo-mode simulation: no external
// calls, a fixed empty-result response so the pipeline still runs its
// full state machine end to end.
type demoLLMClient struct{}

func (demoLLMClient) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolDefinition, options *llm.SamplingOptions) (*llm.Response, error) {
	return &llm.Response{Content: "[]"}, nil
}

// demoSearcher is the other half of the scripted demo simulation: no
// outbound HTTP to the search provider, just enough canned snippet
// text that a worker's extraction step has something to chew on.
type demoSearcher struct{}

func (demoSearcher) Search(ctx context.Context, query string) ([]searchclient.Snippet, error) {
	return []searchclient.Snippet{{
		URL:     "https://example.gov/demo-incentives",
		Title:   "Demo hiring incentive programs",
		Content: "This is demo mode. No live search provider was queried for: " + query,
	}}, nil
}
