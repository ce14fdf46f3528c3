package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	billingdomain "github.com/smallbiznis/schoolbilling/internal/billing/domain"
	"github.com/smallbiznis/schoolbilling/internal/clock"
	"github.com/smallbiznis/schoolbilling/internal/config"
	"github.com/smallbiznis/schoolbilling/internal/observability"
	obsmiddleware "github.com/smallbiznis/schoolbilling/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/schoolbilling/internal/observability/metrics"
	obstracing "github.com/smallbiznis/schoolbilling/internal/observability/tracing"
	pricingdomain "github.com/smallbiznis/schoolbilling/internal/pricing/domain"
	"github.com/smallbiznis/schoolbilling/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	ObsConfig   observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           p.ObsConfig.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(p.HTTPMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	clock        clock.Clock
	pricingSvc   pricingdomain.Service
	billingSvc   billingdomain.Service
	quoteLimiter quoteLimiter
}

type quoteLimiter interface {
	Enabled() bool
	Allow(ctx context.Context, endpoint, client string) *ratelimit.Result
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Clock        clock.Clock `optional:"true"`
	PricingSvc   pricingdomain.Service
	BillingSvc   billingdomain.Service
	QuoteLimiter *ratelimit.QuoteLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		clock:        clk,
		pricingSvc:   p.PricingSvc,
		billingSvc:   p.BillingSvc,
		quoteLimiter: p.QuoteLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) now() time.Time {
	return s.clock.Now()
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Tiers --------
	api.GET("/tiers", s.ListTiers)
	api.GET("/tiers/recommend", s.QuoteRateLimit(), s.RecommendTier)

	// -------- Pricing --------
	pricing := api.Group("/pricing", s.QuoteRateLimit())
	{
		pricing.POST("/quote", s.Quote)
		pricing.POST("/programs", s.ProgramPricing)
		pricing.POST("/programs/validate", s.ValidatePrograms)
		pricing.POST("/overage", s.CheckOverage)
	}

	// -------- Entities --------
	api.POST("/entities", s.CreateEntity)
	api.GET("/entities", s.ListEntities)
	api.GET("/entities/:id", s.GetEntity)
	api.PATCH("/entities/:id/usage", s.UpdateEntityUsage)
	api.GET("/entities/:id/billing", s.GetEntityBilling)

	// -------- Reports --------
	api.GET("/reports/portfolio", s.GetPortfolio)
	api.GET("/reports/portfolio.csv", s.ExportPortfolioCSV)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
