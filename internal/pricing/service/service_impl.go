package service

import (
	"context"
	"errors"

	"github.com/smallbiznis/schoolbilling/internal/observability/logger"
	"github.com/smallbiznis/schoolbilling/internal/observability/metrics"
	"github.com/smallbiznis/schoolbilling/internal/observability/tracing"
	pricingdomain "github.com/smallbiznis/schoolbilling/internal/pricing/domain"
	"github.com/smallbiznis/schoolbilling/internal/pricing/engine"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Catalog pricingdomain.CatalogSource
	Metrics *metrics.PricingMetrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	catalog pricingdomain.CatalogSource
	metrics *metrics.PricingMetrics
	tracer  trace.Tracer
}

func New(p Params) pricingdomain.Service {
	svc := &Service{
		log:     p.Log.Named("pricing.service"),
		catalog: p.Catalog,
		metrics: p.Metrics,
		tracer:  otel.Tracer("pricing.service"),
	}
	if cat := p.Catalog.Catalog(); cat != nil {
		svc.metrics.SetCatalogTiers(len(cat.Tiers()))
	}
	return svc
}

func (s *Service) Catalog(ctx context.Context) *pricingdomain.Catalog {
	return s.catalog.Catalog()
}

func (s *Service) RecommendTier(ctx context.Context, numSchools int) (pricingdomain.TierRecommendation, error) {
	rec := engine.RecommendTier(s.catalog.Catalog(), numSchools)
	if rec.CustomPricing {
		logger.WithContext(ctx, s.log).Info("school count above catalog range",
			zap.Int("num_schools", numSchools),
			zap.String("tier", rec.Tier),
		)
	}
	return rec, nil
}

func (s *Service) Quote(ctx context.Context, req pricingdomain.QuoteRequest) (*pricingdomain.PricingResult, error) {
	_, span := s.tracer.Start(ctx, "pricing.Quote")
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("pricing.tier", req.TierID),
		attribute.Int("pricing.num_schools", req.NumSchools),
	)...)

	res, err := engine.CalculateDiocesePrice(s.catalog.Catalog(), req)
	if err != nil {
		s.metrics.ObserveQuoteError(errorReason(err))
		span.RecordError(tracing.SafeError(err))
		return nil, err
	}

	span.SetAttributes(attribute.Bool("pricing.clamped", res.Clamped))
	s.metrics.ObserveQuote(res.Tier, res.Clamped)
	if res.Clamped {
		logger.WithContext(ctx, s.log).Warn("discounts exceeded subtotal, total clamped to zero",
			zap.String("tier", res.Tier),
			zap.Int("num_schools", res.NumSchools),
			zap.Int64("subtotal", res.Subtotal),
			zap.Int64("discount", res.Discounts.Amount),
		)
	}
	return res, nil
}

func (s *Service) ProgramPricing(ctx context.Context, tierID string, selected int, override pricingdomain.ProgramOverride) (*pricingdomain.ProgramPricing, error) {
	return engine.CalculateProgramPricing(s.catalog.Catalog(), tierID, selected, override)
}

func (s *Service) ValidatePrograms(ctx context.Context, tierID string, programs []string, override pricingdomain.ProgramOverride) (*pricingdomain.ProgramPricing, error) {
	res, err := engine.ValidateProgramSelection(s.catalog.Catalog(), tierID, programs, override)
	if res != nil && res.OverrideApplied {
		logger.WithContext(ctx, s.log).Info("program cap override applied",
			zap.String("tier", res.Tier),
			zap.Int("selected", res.Selected),
			zap.Int("max_programs", res.MaxPrograms),
		)
	}
	return res, err
}

func (s *Service) CheckOverage(ctx context.Context, currentSchools, tierLimit int) (*pricingdomain.OverageStatus, error) {
	st, err := engine.CheckOverageStatus(s.catalog.Catalog().Overage(), currentSchools, tierLimit)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveOverage(string(st.Status))
	return st, nil
}

func errorReason(err error) string {
	for _, known := range []error{
		pricingdomain.ErrUnknownTier,
		pricingdomain.ErrInvalidSchoolCount,
		pricingdomain.ErrInvalidProgramCount,
		pricingdomain.ErrInvalidMultiYear,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "unknown"
}
