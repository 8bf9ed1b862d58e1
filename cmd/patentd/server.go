package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/valkryhx/patent-agents-sub002/agent"
	"github.com/valkryhx/patent-agents-sub002/api/handlers"
	"github.com/valkryhx/patent-agents-sub002/config"
	"github.com/valkryhx/patent-agents-sub002/internal/metrics"
	"github.com/valkryhx/patent-agents-sub002/internal/server"
	"github.com/valkryhx/patent-agents-sub002/internal/telemetry"
	"github.com/valkryhx/patent-agents-sub002/llm"
	llmfactory "github.com/valkryhx/patent-agents-sub002/llm/factory"
	"github.com/valkryhx/patent-agents-sub002/llm/tokenizer"
	"github.com/valkryhx/patent-agents-sub002/progress"
	"github.com/valkryhx/patent-agents-sub002/workflow"
)

const metricsNamespace = "patent_agents"

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 组装协调器的全部组件：LLM 客户端、代理注册表、产物存储、
// 工作流管理器与 HTTP 路由。
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	promRegistry *prometheus.Registry
	collector    *metrics.Collector

	gen      llm.Generator
	registry *agent.Registry
	store    *progress.FileStore
	manager  *workflow.Manager
	handler  http.Handler

	httpManager    *server.Manager
	metricsManager *server.Manager

	rateLimiterCancel context.CancelFunc
	shutdownOnce      sync.Once
	shutdownErr       error
}

// NewServer 构建所有组件但不监听端口。otelProviders 可为 nil。
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, logger: logger, otel: otelProviders}

	s.promRegistry = prometheus.NewRegistry()
	s.promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.collector = metrics.NewCollectorWith(s.promRegistry, metricsNamespace, logger)

	s.initLLM()

	store, err := progress.NewFileStore(cfg.Progress.Root, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init progress store: %w", err)
	}
	s.store = store

	s.registry = agent.NewDefaultRegistry(s.gen, agent.RegistryOptions{
		Temperature:     cfg.LLM.Temperature,
		TestDelay:       cfg.Workflow.TestStageDelay,
		SummaryMaxBytes: cfg.Workflow.SummaryMaxBytes,
		Tokenizer:       tokenizer.New(cfg.Workflow.Tokenizer, cfg.LLM.Model),
		Logger:          logger,
	})

	if err := s.initManager(); err != nil {
		return nil, err
	}
	s.handler = s.buildHandler()
	return s, nil
}

// initLLM 没有可用密钥时只记录告警，服务退化为仅测试模式。
func (s *Server) initLLM() {
	client, err := llmfactory.NewClient(s.cfg.LLM, s.logger, llm.WithMetrics(s.collector))
	if err != nil {
		s.logger.Warn("LLM client unavailable, real mode disabled", zap.Error(err))
		return
	}
	s.gen = client
}

func (s *Server) initManager() error {
	wfType, err := workflow.ParseType(s.cfg.Workflow.DefaultType)
	if err != nil {
		return err
	}

	opts := []workflow.Option{
		workflow.WithLogger(s.logger),
		workflow.WithMetrics(s.collector),
		workflow.WithTracer(s.otel.Tracer("patent-agents/workflow")),
		workflow.WithMaxConcurrent(s.cfg.Workflow.MaxConcurrent),
		workflow.WithDefaultType(wfType),
		workflow.WithDefaultTestMode(s.defaultTestMode()),
	}
	if s.gen != nil {
		opts = append(opts, workflow.WithGenerator(s.gen))
	}
	s.manager = workflow.NewManager(s.registry, s.store, opts...)
	return nil
}

func (s *Server) defaultTestMode() bool {
	return s.cfg.Workflow.DefaultTestMode || s.gen == nil
}

// =============================================================================
// 🌐 路由与中间件
// =============================================================================

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	services := []string{"coordinator"}
	for _, role := range s.registry.Roles() {
		services = append(services, string(role))
	}
	health := handlers.NewHealthHandler(Version, services, s.manager.ActiveCount, s.logger)
	health.RegisterCheck(handlers.NewFuncCheck("progress_dir", func(context.Context) error {
		_, err := os.Stat(s.store.Root())
		return err
	}))
	if !s.defaultTestMode() {
		health.RegisterCheck(handlers.NewFuncCheck("llm", func(context.Context) error {
			if s.gen == nil {
				return errors.New("no LLM client configured")
			}
			return nil
		}))
	}

	health.RegisterRoutes(mux)
	handlers.NewCoordinatorHandler(s.manager, s.logger).RegisterRoutes(mux)
	handlers.NewAgentHandler(s.registry, s.defaultTestMode(), s.logger).RegisterRoutes(mux)
	handlers.NewListingHandler(s.manager, s.logger).RegisterRoutes(mux)
	handlers.NewDocsHandler(s.logger).RegisterRoutes(mux)

	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	)
}

// Handler 返回带完整中间件链的 API handler。
func (s *Server) Handler() http.Handler { return s.handler }

// MetricsHandler 返回 /metrics 使用的 handler。
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{Registry: s.promRegistry})
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Start 启动 API 端口与 metrics 端口（非阻塞）。
func (s *Server) Start() error {
	s.httpManager = server.NewManager(s.handler,
		server.FromServerConfig("api", s.cfg.Server.HTTPPort, s.cfg.Server), s.logger)
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if s.cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.MetricsHandler())
		s.metricsManager = server.NewManager(mux,
			server.FromServerConfig("metrics", s.cfg.Server.MetricsPort, s.cfg.Server), s.logger)
		if err := s.metricsManager.Start(); err != nil {
			_ = s.httpManager.Shutdown(context.Background())
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	s.logger.Info("all servers started",
		zap.String("http_addr", s.httpManager.Addr()),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("default_test_mode", s.defaultTestMode()),
	)
	return nil
}

// Run 启动服务并阻塞到 ctx 结束或任一服务器出错，随后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watchErrors(gctx, s.httpManager) })
	if s.metricsManager != nil {
		g.Go(func() error { return watchErrors(gctx, s.metricsManager) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func watchErrors(ctx context.Context, m *server.Manager) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-m.Errors():
		return err
	}
}

// Shutdown 依次取消未完成的工作流、关闭 HTTP 与 metrics 服务器、刷新遥测。
// 可重复调用。
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info("starting graceful shutdown")
		var errs []error

		if err := s.manager.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("workflow manager: %w", err))
		}
		if s.rateLimiterCancel != nil {
			s.rateLimiterCancel()
		}
		if s.httpManager != nil {
			if err := s.httpManager.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("http server: %w", err))
			}
		}
		if s.metricsManager != nil {
			if err := s.metricsManager.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server: %w", err))
			}
		}
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}

		s.shutdownErr = errors.Join(errs...)
		s.logger.Info("graceful shutdown completed")
	})
	return s.shutdownErr
}
