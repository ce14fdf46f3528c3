package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/schoolbilling/internal/billing/domain"
	pricingdomain "github.com/smallbiznis/schoolbilling/internal/pricing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var portfolioNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func portfolioRecords() []billingdomain.EntityBillingRecord {
	return []billingdomain.EntityBillingRecord{
		{
			ID: 1, Name: "Diocese A", Tier: "medium", MaxSubEntities: 10,
			SelectedPrograms:  datatypes.JSONSlice[string]{"elementary", "middle", "high"},
			BillingStatus:     billingdomain.StatusActive,
			LicenseExpiration: timePtr(portfolioNow.Add(30 * 24 * time.Hour)),
		},
		{
			ID: 2, Name: "Diocese B", Tier: "large", MaxSubEntities: 20, CurrentSubEntities: intPtr(24),
			SelectedPrograms:  datatypes.JSONSlice[string]{"elementary", "middle"},
			Founding:          true,
			BillingStatus:     billingdomain.StatusTrial,
			LicenseExpiration: timePtr(portfolioNow.Add(10*24*time.Hour + time.Hour)),
		},
		{ID: 3, Name: "Unknown Tier", Tier: "gold", MaxSubEntities: 5, BillingStatus: billingdomain.StatusActive},
		{ID: 4, Name: "No License", Tier: "small", MaxSubEntities: 0, BillingStatus: billingdomain.StatusPendingContract},
		{
			ID: 5, Name: "District E", Tier: "small", MaxSubEntities: 5, CurrentSubEntities: intPtr(5),
			BillingStatus:     billingdomain.StatusActive,
			LicenseExpiration: timePtr(portfolioNow.Add(-24 * time.Hour)),
		},
		{
			ID: 6, Name: "Diocese F", Tier: "xlarge", MaxSubEntities: 40,
			BillingStatus:     billingdomain.StatusActive,
			LicenseExpiration: timePtr(portfolioNow.Add(100 * 24 * time.Hour)),
		},
	}
}

func TestCalculateBilling_ComposesPricingAndOverage(t *testing.T) {
	cat := pricingdomain.DefaultCatalog()
	rec := portfolioRecords()[1]

	summary, err := CalculateBilling(cat, rec)
	require.NoError(t, err)

	assert.Equal(t, snowflake.ID(2), summary.EntityID)
	assert.Equal(t, 24, summary.Pricing.NumSchools)
	assert.Equal(t, int64(10080), summary.Pricing.Subtotal)
	assert.Equal(t, int64(8568), summary.Pricing.TotalPrice)
	assert.Equal(t, pricingdomain.BandUpgradeRecommended, summary.Overage.Status)
	assert.Equal(t, int64(1485), summary.Overage.OverageCost)
	assert.Equal(t, int64(10053), summary.TotalDue)
}

func TestCalculateBilling_UsesLicensedCountWhenUsageUnknown(t *testing.T) {
	cat := pricingdomain.DefaultCatalog()

	summary, err := CalculateBilling(cat, portfolioRecords()[0])
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Pricing.NumSchools)
	assert.Equal(t, pricingdomain.BandWithinLimit, summary.Overage.Status)
	assert.Equal(t, int64(4600), summary.TotalDue)
}

func TestCalculateBilling_Failures(t *testing.T) {
	cat := pricingdomain.DefaultCatalog()
	records := portfolioRecords()

	_, err := CalculateBilling(cat, records[2])
	assert.ErrorIs(t, err, pricingdomain.ErrUnknownTier)

	_, err = CalculateBilling(cat, records[3])
	assert.ErrorIs(t, err, pricingdomain.ErrDivisionByZero)
}

func TestBuildPortfolio(t *testing.T) {
	cat := pricingdomain.DefaultCatalog()

	report, err := BuildPortfolio(context.Background(), cat, portfolioRecords(), portfolioNow, 4)
	require.NoError(t, err)

	assert.Equal(t, 4, report.EntityCount)
	assert.Equal(t, int64(32803), report.TotalRevenue)
	assert.Equal(t, 79, report.TotalSchools)
	assert.Len(t, report.Summaries, 4)

	require.Len(t, report.ByTier, 5)
	assert.Equal(t, billingdomain.TierRollup{Tier: "small", TierName: "Small", Revenue: 2350, Count: 1, Schools: 5}, report.ByTier[0])
	assert.Equal(t, billingdomain.TierRollup{Tier: "large", TierName: "Large", Revenue: 10053, Count: 1, Schools: 24}, report.ByTier[2])
	assert.Equal(t, 0, report.ByTier[4].Count)

	require.Len(t, report.ByStatus, 7)
	active := report.ByStatus[3]
	assert.Equal(t, billingdomain.StatusActive, active.Status)
	assert.Equal(t, "Active", active.Label)
	assert.Equal(t, int64(22750), active.Revenue)
	assert.Equal(t, 3, active.Count)
	assert.Equal(t, 55, active.Schools)

	require.Len(t, report.RenewalCandidates, 2)
	assert.Equal(t, "Diocese B", report.RenewalCandidates[0].Name)
	assert.Equal(t, 11, report.RenewalCandidates[0].DaysRemaining)
	assert.Equal(t, "Diocese A", report.RenewalCandidates[1].Name)
	assert.Equal(t, 30, report.RenewalCandidates[1].DaysRemaining)

	require.Len(t, report.Skipped, 2)
	assert.Equal(t, snowflake.ID(3), report.Skipped[0].EntityID)
	assert.Equal(t, "unknown_tier", report.Skipped[0].Reason)
	assert.Equal(t, snowflake.ID(4), report.Skipped[1].EntityID)
}

func TestBuildPortfolio_WorkerCountDoesNotChangeResult(t *testing.T) {
	cat := pricingdomain.DefaultCatalog()
	records := portfolioRecords()

	sequential, err := BuildPortfolio(context.Background(), cat, records, portfolioNow, 1)
	require.NoError(t, err)
	parallel, err := BuildPortfolio(context.Background(), cat, records, portfolioNow, 16)
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
}

func TestBuildPortfolio_Empty(t *testing.T) {
	report, err := BuildPortfolio(context.Background(), pricingdomain.DefaultCatalog(), nil, portfolioNow, 4)
	require.NoError(t, err)
	assert.Zero(t, report.TotalRevenue)
	assert.Empty(t, report.RenewalCandidates)
	assert.Len(t, report.ByTier, 5)
}

func TestBuildPortfolio_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildPortfolio(ctx, pricingdomain.DefaultCatalog(), portfolioRecords(), portfolioNow, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenewalDays(t *testing.T) {
	cases := []struct {
		name   string
		offset time.Duration
		days   int
		ok     bool
	}{
		{"today", 0, 0, true},
		{"partial day rounds up", 90 * time.Minute, 1, true},
		{"window edge", 90 * 24 * time.Hour, 90, true},
		{"past window", 90*24*time.Hour + time.Second, 0, false},
		{"expired", -time.Second, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			days, ok := renewalDays(timePtr(portfolioNow.Add(tc.offset)), portfolioNow)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.days, days)
		})
	}

	_, ok := renewalDays(nil, portfolioNow)
	assert.False(t, ok)
}

func TestWriteSummariesCSV(t *testing.T) {
	cat := pricingdomain.DefaultCatalog()
	summary, err := CalculateBilling(cat, portfolioRecords()[1])
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSummariesCSV(&buf, []billingdomain.BillingSummary{*summary}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, summaryCSVHeader, rows[0])
	assert.Equal(t, []string{
		"2", "Diocese B", "large", "trial", "Trial", "24", "10080", "0", "1512", "8568",
		"upgrade_recommended", "1485", "10053", "$10,053",
	}, rows[1])
}
