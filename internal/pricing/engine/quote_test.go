package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbilling/internal/pricing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateDiocesePrice_MediumRoundTrip(t *testing.T) {
	cat := domain.DefaultCatalog()

	res, err := CalculateDiocesePrice(cat, domain.QuoteRequest{
		NumSchools:           10,
		TierID:               "medium",
		SelectedProgramCount: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(4450), res.BasePrice)
	assert.Equal(t, 1, res.ExtraPrograms)
	assert.Equal(t, int64(150), res.ProgramCost)
	assert.Equal(t, int64(4600), res.Subtotal)
	assert.Equal(t, int64(0), res.Discounts.Amount)
	assert.Equal(t, int64(4600), res.TotalPrice)
	assert.Equal(t, int64(383), res.MonthlyEquivalent)
	require.NotNil(t, res.PerSchoolEffective)
	assert.Equal(t, int64(460), *res.PerSchoolEffective)
	assert.Equal(t, int64(500), res.Savings)
	require.NotNil(t, res.SavingsPercent)
	assert.Equal(t, int64(10), *res.SavingsPercent)
	assert.False(t, res.Clamped)
	assert.Empty(t, res.Warnings)
}

func TestCalculateDiocesePrice_UnknownTier(t *testing.T) {
	_, err := CalculateDiocesePrice(domain.DefaultCatalog(), domain.QuoteRequest{NumSchools: 3, TierID: "platinum"})
	assert.ErrorIs(t, err, domain.ErrUnknownTier)
}

func TestCalculateDiocesePrice_InvalidInputs(t *testing.T) {
	cat := domain.DefaultCatalog()

	_, err := CalculateDiocesePrice(cat, domain.QuoteRequest{NumSchools: -1, TierID: "small"})
	assert.ErrorIs(t, err, domain.ErrInvalidSchoolCount)

	_, err = CalculateDiocesePrice(cat, domain.QuoteRequest{NumSchools: 3, TierID: "small", SelectedProgramCount: -2})
	assert.ErrorIs(t, err, domain.ErrInvalidProgramCount)

	_, err = CalculateDiocesePrice(cat, domain.QuoteRequest{NumSchools: 3, TierID: "small",
		SpecialDiscounts: domain.SpecialDiscounts{MultiYear: -1}})
	assert.ErrorIs(t, err, domain.ErrInvalidMultiYear)
}

func TestCalculateDiocesePrice_ZeroSchoolsIsUndefinedNotInfinite(t *testing.T) {
	res, err := CalculateDiocesePrice(domain.DefaultCatalog(), domain.QuoteRequest{NumSchools: 0, TierID: "small"})
	require.NoError(t, err)

	assert.Nil(t, res.PerSchoolEffective)
	assert.Nil(t, res.SavingsPercent)
	assert.Equal(t, int64(0), res.TotalPrice)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, domain.WarningPerSchoolUndefined, res.Warnings[0].Code)
}

func TestCalculateDiocesePrice_DiscountsAreAdditive(t *testing.T) {
	cat := domain.DefaultCatalog()

	res, err := CalculateDiocesePrice(cat, domain.QuoteRequest{
		NumSchools:       10,
		TierID:           "medium",
		SpecialDiscounts: domain.SpecialDiscounts{Founding: true, Referral: true},
	})
	require.NoError(t, err)

	subtotal := decimal.NewFromInt(res.Subtotal)
	assert.True(t, res.Discounts.Total.Equal(subtotal.Mul(decimal.RequireFromString("0.25"))),
		"expected 0.25*S, got %s", res.Discounts.Total)
	compounded := subtotal.Sub(subtotal.Mul(decimal.RequireFromString("0.85")).Mul(decimal.RequireFromString("0.90")))
	assert.False(t, res.Discounts.Total.Equal(compounded))
	assert.Equal(t, int64(1113), res.Discounts.Amount)
	assert.Equal(t, int64(3338), res.TotalPrice)
	assert.True(t, res.Discounts.Founding)
	assert.True(t, res.Discounts.Referral)
	assert.Len(t, res.Discounts.Lines, 2)
}

func TestCalculateDiocesePrice_MultiYearCap(t *testing.T) {
	cat := domain.DefaultCatalog()
	quote := func(years int) *domain.PricingResult {
		res, err := CalculateDiocesePrice(cat, domain.QuoteRequest{
			NumSchools:       20,
			TierID:           "large",
			SpecialDiscounts: domain.SpecialDiscounts{MultiYear: years},
		})
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, int64(0), quote(0).Discounts.Amount)
	assert.Equal(t, int64(0), quote(1).Discounts.Amount)
	assert.Equal(t, int64(420), quote(2).Discounts.Amount)
	assert.Equal(t, int64(840), quote(3).Discounts.Amount)
	assert.True(t, quote(5).Discounts.Total.Equal(quote(3).Discounts.Total))
	assert.Equal(t, 5, quote(5).Discounts.MultiYear)
}

func TestCalculateDiocesePrice_ClampsNegativeTotal(t *testing.T) {
	spec := domain.DefaultCatalogSpec()
	spec.Discounts.FoundingRate = 0.6
	spec.Discounts.ReferralRate = 0.5
	cat, err := domain.NewCatalog(spec)
	require.NoError(t, err)

	res, err := CalculateDiocesePrice(cat, domain.QuoteRequest{
		NumSchools:       3,
		TierID:           "small",
		SpecialDiscounts: domain.SpecialDiscounts{Founding: true, Referral: true},
	})
	require.NoError(t, err)

	assert.True(t, res.Clamped)
	assert.Equal(t, int64(0), res.TotalPrice)
	assert.Equal(t, int64(0), res.MonthlyEquivalent)
	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, domain.WarningDiscountExceededSubtotal, res.Warnings[0].Code)
}

func TestCalculateDiocesePrice_MonotonicInSchools(t *testing.T) {
	cat := domain.DefaultCatalog()
	for _, tier := range cat.Tiers() {
		var prev int64 = -1
		for n := 0; n <= 200; n++ {
			res, err := CalculateDiocesePrice(cat, domain.QuoteRequest{NumSchools: n, TierID: tier.ID})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.TotalPrice, prev, "tier %s n=%d", tier.ID, n)
			prev = res.TotalPrice
		}
	}
}

func TestCalculateDiocesePrice_Idempotent(t *testing.T) {
	cat := domain.DefaultCatalog()
	req := domain.QuoteRequest{
		NumSchools:           42,
		TierID:               "xlarge",
		SelectedProgramCount: 5,
		SpecialDiscounts:     domain.SpecialDiscounts{Founding: true, MultiYear: 3},
	}

	a, err := CalculateDiocesePrice(cat, req)
	require.NoError(t, err)
	b, err := CalculateDiocesePrice(cat, req)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
