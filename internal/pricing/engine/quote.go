package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolbilling/internal/format"
	"github.com/smallbiznis/schoolbilling/internal/pricing/domain"
)

var (
	months  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// CalculateDiocesePrice prices a full contract: schools at the tier rate,
// programs beyond the included count, then special discounts stacked
// additively against the subtotal. A total driven below zero by discounts is
// clamped to zero and flagged.
func CalculateDiocesePrice(cat *domain.Catalog, req domain.QuoteRequest) (*domain.PricingResult, error) {
	tier, ok := cat.Tier(req.TierID)
	if !ok {
		return nil, domain.ErrUnknownTier
	}
	if req.NumSchools < 0 {
		return nil, domain.ErrInvalidSchoolCount
	}
	if req.SelectedProgramCount < 0 {
		return nil, domain.ErrInvalidProgramCount
	}

	discounts, err := ResolveDiscounts(cat.DiscountRules(), req.SpecialDiscounts)
	if err != nil {
		return nil, err
	}

	basePrice := int64(req.NumSchools) * tier.PerSchoolPrice
	extra := extraPrograms(tier.Programs, req.SelectedProgramCount)
	programCost := int64(extra) * tier.Programs.ExtraCost
	subtotal := basePrice + programCost

	breakdown := StackDiscounts(subtotal, discounts)

	res := &domain.PricingResult{
		Tier:             tier.ID,
		TierName:         tier.Name,
		NumSchools:       req.NumSchools,
		PerSchoolPrice:   tier.PerSchoolPrice,
		BasePrice:        basePrice,
		ProgramsIncluded: tier.Programs.Included,
		ExtraPrograms:    extra,
		ProgramCost:      programCost,
		Subtotal:         subtotal,
		Discounts:        breakdown,
	}

	net := decimal.NewFromInt(subtotal).Sub(breakdown.Total)
	if net.IsNegative() {
		res.Clamped = true
		res.Warnings = append(res.Warnings, domain.Warning{
			Code: domain.WarningDiscountExceededSubtotal,
			Message: fmt.Sprintf("discounts of %s exceed the subtotal of %s; total clamped to zero",
				format.Currency(breakdown.Amount), format.Currency(subtotal)),
		})
		net = decimal.Zero
	}
	res.TotalPrice = net.Round(0).IntPart()
	res.MonthlyEquivalent = divRound(res.TotalPrice, months)

	listPrice := int64(req.NumSchools) * cat.SingleSchoolPrice()
	res.Savings = listPrice - basePrice

	if req.NumSchools == 0 {
		res.Warnings = append(res.Warnings, domain.Warning{
			Code:    domain.WarningPerSchoolUndefined,
			Message: "per-school figures are undefined for zero schools",
		})
		return res, nil
	}

	perSchool := divRound(res.TotalPrice, decimal.NewFromInt(int64(req.NumSchools)))
	res.PerSchoolEffective = &perSchool

	pct := decimal.NewFromInt(res.Savings).Mul(hundred).Div(decimal.NewFromInt(listPrice)).Round(0).IntPart()
	res.SavingsPercent = &pct

	return res, nil
}

func divRound(amount int64, by decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Div(by).Round(0).IntPart()
}
