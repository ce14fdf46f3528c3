package engine

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbilling/internal/pricing/domain"
)

// ResolveDiscounts turns the caller's flags into typed discount variants.
// The result is ordered founding, referral, multi-year, but stacking does
// not depend on the order.
func ResolveDiscounts(rules domain.DiscountRules, flags domain.SpecialDiscounts) ([]domain.Discount, error) {
	if flags.MultiYear < 0 {
		return nil, domain.ErrInvalidMultiYear
	}

	out := make([]domain.Discount, 0, 3)
	if flags.Founding {
		out = append(out, domain.Discount{Kind: domain.DiscountFounding, Rate: domain.Rate(rules.FoundingRate)})
	}
	if flags.Referral {
		out = append(out, domain.Discount{Kind: domain.DiscountReferral, Rate: domain.Rate(rules.ReferralRate)})
	}
	if years := multiYearExtraYears(rules, flags.MultiYear); years > 0 {
		rate := domain.Rate(rules.MultiYearRatePerYear).Mul(decimal.NewFromInt(int64(years)))
		out = append(out, domain.Discount{Kind: domain.DiscountMultiYear, Rate: rate, Years: flags.MultiYear})
	}
	return out, nil
}

// multiYearExtraYears is the number of discounted years beyond the first,
// capped by the catalog.
func multiYearExtraYears(rules domain.DiscountRules, term int) int {
	if term < 2 {
		return 0
	}
	extra := term - 1
	if extra > rules.MultiYearMaxExtraYears {
		extra = rules.MultiYearMaxExtraYears
	}
	return extra
}

// StackDiscounts applies each discount independently to subtotal and sums the
// results. Discounts never compound.
func StackDiscounts(subtotal int64, discounts []domain.Discount) domain.DiscountBreakdown {
	base := decimal.NewFromInt(subtotal)
	total := decimal.Zero
	lines := make([]domain.DiscountLine, 0, len(discounts))

	var b domain.DiscountBreakdown
	for _, d := range discounts {
		amount := base.Mul(d.Rate)
		total = total.Add(amount)
		lines = append(lines, domain.DiscountLine{
			Kind:   d.Kind,
			Rate:   d.Rate,
			Years:  d.Years,
			Amount: amount,
		})
		switch d.Kind {
		case domain.DiscountFounding:
			b.Founding = true
		case domain.DiscountReferral:
			b.Referral = true
		case domain.DiscountMultiYear:
			b.MultiYear = d.Years
		}
	}

	b.Total = total
	b.Amount = total.Round(0).IntPart()
	b.Lines = lines
	return b
}
