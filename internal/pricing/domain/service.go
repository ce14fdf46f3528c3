package domain

import "context"

// Service exposes the pricing engine bound to the currently loaded catalog.
type Service interface {
	Catalog(ctx context.Context) *Catalog
	RecommendTier(ctx context.Context, numSchools int) (TierRecommendation, error)
	Quote(ctx context.Context, req QuoteRequest) (*PricingResult, error)
	ProgramPricing(ctx context.Context, tierID string, selected int, override ProgramOverride) (*ProgramPricing, error)
	ValidatePrograms(ctx context.Context, tierID string, programs []string, override ProgramOverride) (*ProgramPricing, error)
	CheckOverage(ctx context.Context, currentSchools, tierLimit int) (*OverageStatus, error)
}

// CatalogSource hands out the active catalog snapshot.
type CatalogSource interface {
	Catalog() *Catalog
}
