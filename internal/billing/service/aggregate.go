package service

import (
	"context"
	"math"
	"sort"
	"time"

	billingdomain "github.com/smallbiznis/schoolbilling/internal/billing/domain"
	pricingdomain "github.com/smallbiznis/schoolbilling/internal/pricing/domain"
	"github.com/smallbiznis/schoolbilling/internal/pricing/engine"
	"golang.org/x/sync/errgroup"
)

// CalculateBilling prices a record and classifies its overage. The priced
// school count is the reported usage, falling back to the licensed maximum.
func CalculateBilling(cat *pricingdomain.Catalog, rec billingdomain.EntityBillingRecord) (*billingdomain.BillingSummary, error) {
	schools := rec.PricedSchools()

	pricing, err := engine.CalculateDiocesePrice(cat, pricingdomain.QuoteRequest{
		NumSchools:           schools,
		TierID:               rec.Tier,
		SelectedProgramCount: len(rec.SelectedPrograms),
		SpecialDiscounts:     rec.SpecialDiscounts(),
	})
	if err != nil {
		return nil, err
	}

	overage, err := engine.CheckOverageStatus(cat.Overage(), schools, rec.MaxSubEntities)
	if err != nil {
		return nil, err
	}

	return &billingdomain.BillingSummary{
		EntityID:      rec.ID,
		Name:          rec.Name,
		Tier:          pricing.Tier,
		BillingStatus: rec.BillingStatus,
		Pricing:       pricing,
		Overage:       overage,
		TotalDue:      pricing.TotalPrice + overage.OverageCost,
	}, nil
}

type outcome struct {
	summary *billingdomain.BillingSummary
	err     error
}

// BuildPortfolio summarizes every record and folds the results. Records are
// priced on up to workers goroutines; the fold itself is order-preserving so
// the report does not depend on scheduling. Records that cannot be priced are
// listed in Skipped.
func BuildPortfolio(ctx context.Context, cat *pricingdomain.Catalog, records []billingdomain.EntityBillingRecord, now time.Time, workers int) (*billingdomain.PortfolioReport, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]outcome, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			summary, err := CalculateBilling(cat, records[i])
			results[i] = outcome{summary: summary, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return foldPortfolio(cat, records, results, now), nil
}

func foldPortfolio(cat *pricingdomain.Catalog, records []billingdomain.EntityBillingRecord, results []outcome, now time.Time) *billingdomain.PortfolioReport {
	tiers := cat.Tiers()
	tierIdx := make(map[string]int, len(tiers))
	byTier := make([]billingdomain.TierRollup, len(tiers))
	for i, t := range tiers {
		tierIdx[t.ID] = i
		byTier[i] = billingdomain.TierRollup{Tier: t.ID, TierName: t.Name}
	}

	statuses := billingdomain.BillingStatuses()
	statusIdx := make(map[billingdomain.BillingStatus]int, len(statuses))
	byStatus := make([]billingdomain.StatusRollup, len(statuses))
	for i, s := range statuses {
		statusIdx[s] = i
		byStatus[i] = billingdomain.StatusRollup{Status: s, Label: s.Label()}
	}

	report := &billingdomain.PortfolioReport{
		GeneratedAt:       now,
		ByTier:            byTier,
		ByStatus:          byStatus,
		RenewalCandidates: []billingdomain.RenewalCandidate{},
		Skipped:           []billingdomain.SkippedEntity{},
		Summaries:         make([]billingdomain.BillingSummary, 0, len(records)),
	}

	for i, rec := range records {
		res := results[i]
		if res.err != nil {
			report.Skipped = append(report.Skipped, billingdomain.SkippedEntity{
				EntityID: rec.ID,
				Name:     rec.Name,
				Reason:   res.err.Error(),
			})
			continue
		}
		s := res.summary
		schools := s.Pricing.NumSchools

		report.Summaries = append(report.Summaries, *s)
		report.EntityCount++
		report.TotalRevenue += s.TotalDue
		report.TotalSchools += schools

		if idx, ok := tierIdx[s.Tier]; ok {
			byTier[idx].Revenue += s.TotalDue
			byTier[idx].Count++
			byTier[idx].Schools += schools
		}
		if idx, ok := statusIdx[s.BillingStatus]; ok {
			byStatus[idx].Revenue += s.TotalDue
			byStatus[idx].Count++
			byStatus[idx].Schools += schools
		}

		if days, ok := renewalDays(rec.LicenseExpiration, now); ok {
			report.RenewalCandidates = append(report.RenewalCandidates, billingdomain.RenewalCandidate{
				EntityID:          rec.ID,
				Name:              rec.Name,
				Tier:              s.Tier,
				BillingStatus:     s.BillingStatus,
				LicenseExpiration: *rec.LicenseExpiration,
				DaysRemaining:     days,
				TotalDue:          s.TotalDue,
			})
		}
	}

	sort.SliceStable(report.RenewalCandidates, func(i, j int) bool {
		return report.RenewalCandidates[i].DaysRemaining < report.RenewalCandidates[j].DaysRemaining
	})

	return report
}

// renewalDays reports whole days (rounded up) until exp when it falls inside
// the renewal window. Expired licenses are not renewal candidates.
func renewalDays(exp *time.Time, now time.Time) (int, bool) {
	if exp == nil {
		return 0, false
	}
	remaining := exp.Sub(now)
	if remaining < 0 || remaining > billingdomain.RenewalWindow {
		return 0, false
	}
	return int(math.Ceil(remaining.Hours() / 24)), true
}
