package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/court-assistant-go/internal/config"
	"github.com/boddenberg/court-assistant-go/internal/domain"
	"github.com/boddenberg/court-assistant-go/internal/handler"
	"github.com/boddenberg/court-assistant-go/internal/infra/observability"
	"github.com/boddenberg/court-assistant-go/internal/infra/orchestrate"
	"github.com/boddenberg/court-assistant-go/internal/infra/resilience"
	"github.com/boddenberg/court-assistant-go/internal/port"
	"github.com/boddenberg/court-assistant-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("demo_mode", cfg.DemoMode),
		zap.String("service_url", cfg.ServiceURL),
		zap.String("auth_scheme", cfg.AuthScheme),
		zap.String("endpoint_template", cfg.EndpointTemplate),
		zap.Duration("timeout", cfg.Timeout),
		zap.Int("retry_count", cfg.RetryCount),
		zap.Float64("retry_backoff", cfg.RetryBackoff),
		zap.Bool("auth_refresh_per_endpoint", cfg.AuthRefreshPerEndpoint),
	)

	// Missing live settings surface per call as chat errors and a failed
	// smoketest; only an unusable AUTH_SCHEME stops startup below.
	if err := cfg.Validate(); err != nil {
		logger.Warn("incomplete live configuration", zap.Error(err))
	}

	// --- Tracing ---
	otlpEndpoint := ""
	if cfg.OTelEnabled {
		otlpEndpoint = cfg.OTLPEndpoint
	}
	shutdown, err := observability.InitTracer(otlpEndpoint, "court-assistant")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Agent client ---
	diagnostics := domain.Diagnostics{
		BaseURL:          cfg.ServiceURL,
		AuthScheme:       cfg.AuthScheme,
		EndpointTemplate: cfg.EndpointTemplate,
	}

	var agent port.AgentCaller
	if !cfg.DemoMode {
		client, err := newAgentClient(cfg, metrics, logger)
		if err != nil {
			logger.Fatal("failed to build agent client", zap.Error(err))
		}
		agent = client
		if cfg.ServiceURL != "" {
			diagnostics.Candidates = client.Resolver().All(cfg.Agents[domain.TopicTheft])
		}
	} else {
		logger.Info("demo mode: replies are stubbed, no outbound calls")
	}

	// --- Services ---
	smoketest := service.NewSmoketest(agent, service.SmoketestConfig{
		DemoMode:    cfg.DemoMode,
		Agents:      cfg.Agents,
		ProbeLimit:  cfg.MaxConcurrency,
		Diagnostics: diagnostics,
	}, logger)

	chatSvc := service.NewChatService(
		service.NewSessionStore(),
		agent,
		smoketest,
		service.ChatConfig{
			DemoMode:      cfg.DemoMode,
			HistoryWindow: cfg.HistoryWindow,
			JudgeName:     cfg.JudgeName,
			Agents:        cfg.Agents,
		},
		metrics,
		logger,
	)

	// One connectivity check at startup, as the status banner expects.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), callBudget(cfg))
	smoketest.Run(startupCtx)
	cancelStartup()

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Chat:       chatSvc,
		Smoketest:  smoketest,
		Agent:      agent,
		Metrics:    metrics,
		DebugToken: cfg.DebugToken,
	}, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: callBudget(cfg) + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newAgentClient(cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (*orchestrate.Client, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	auth := orchestrate.NewAuthenticator(httpClient, cfg.IAMURL, cfg.APIKey, metrics, logger)
	headers, err := orchestrate.NewHeaderSource(cfg.AuthScheme, auth, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	return orchestrate.NewClient(
		httpClient,
		orchestrate.Config{
			ServiceURL:       cfg.ServiceURL,
			APIKey:           cfg.APIKey,
			EndpointTemplate: cfg.EndpointTemplate,
			Timeout:          cfg.Timeout,
			Retry: resilience.Config{
				MaxRetries:     cfg.RetryCount,
				Backoff:        cfg.RetryBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			RefreshAuthPerEndpoint: cfg.AuthRefreshPerEndpoint,
			Metadata: &domain.AgentMetadata{
				UserID:  cfg.RequestUserID,
				Purpose: cfg.RequestPurpose,
			},
		},
		headers,
		orchestrate.NewCircuitBreaker("orchestrate"),
		metrics,
		logger,
	), nil
}

// callBudget is the worst case of one agent call: every default endpoint,
// every retry timing out, plus the backoff sleeps between retries.
func callBudget(cfg *config.Config) time.Duration {
	retry := resilience.Config{Backoff: cfg.RetryBackoff}
	var sleeps time.Duration
	for i := 0; i < cfg.RetryCount; i++ {
		sleeps += retry.Delay(i)
	}
	perEndpoint := time.Duration(cfg.RetryCount+1)*cfg.Timeout + sleeps
	return 4*perEndpoint + 10*time.Second
}
