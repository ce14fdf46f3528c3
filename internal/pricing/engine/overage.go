package engine

import (
	"fmt"

	"github.com/smallbiznis/schoolbilling/internal/format"
	"github.com/smallbiznis/schoolbilling/internal/pricing/domain"
)

// CheckOverageStatus classifies currentSchools against the licensed
// tierLimit. Bands are checked in order and the first match wins.
func CheckOverageStatus(rule domain.OverageRule, currentSchools, tierLimit int) (*domain.OverageStatus, error) {
	if currentSchools < 0 || tierLimit < 0 {
		return nil, domain.ErrInvalidSchoolCount
	}
	if tierLimit == 0 {
		return nil, domain.ErrDivisionByZero
	}

	overage := currentSchools - tierLimit
	percent := float64(overage) / float64(tierLimit)
	billable := overage - rule.GraceSchools
	if billable < 0 {
		billable = 0
	}
	graceRemaining := rule.GraceSchools - overage
	if graceRemaining < 0 {
		graceRemaining = 0
	}

	st := &domain.OverageStatus{
		CurrentSchools:  currentSchools,
		TierLimit:       tierLimit,
		IsOver:          overage > 0,
		Overage:         overage,
		OveragePercent:  percent,
		BillableOverage: billable,
		OverageCost:     int64(billable) * rule.OverageRate,
		GraceRemaining:  graceRemaining,
	}

	switch {
	case overage <= 0:
		st.Status = domain.BandWithinLimit
		st.Action = domain.ActionNone
		st.Message = fmt.Sprintf("Within licensed limit (%s of %s)", format.Number(int64(currentSchools)), schools(tierLimit))
	case overage <= rule.GraceSchools:
		st.Status = domain.BandGracePeriod
		st.Action = domain.ActionNone
		st.Message = fmt.Sprintf("%s over limit, covered by grace allowance (%d remaining)", schools(overage), graceRemaining)
	case percent <= rule.SoftLimitPercent:
		st.Status = domain.BandSoftWarning
		st.Action = domain.ActionInvoiceOverage
		st.Message = fmt.Sprintf("%s over limit (%.1f%%); %s billed at %s per school",
			schools(overage), percent*100, schools(billable), format.Currency(rule.OverageRate))
	case percent <= rule.HardLimitPercent:
		st.Status = domain.BandUpgradeRecommended
		st.Action = domain.ActionRecommendUpgrade
		st.Message = fmt.Sprintf("%s over limit (%.1f%%); a tier upgrade is recommended", schools(overage), percent*100)
	default:
		st.Status = domain.BandUpgradeRequired
		if rule.EnforceHardLimit {
			st.Action = domain.ActionBlockAdditions
			st.Message = fmt.Sprintf("%s over limit (%.1f%%); new schools are blocked until the contract is upgraded", schools(overage), percent*100)
		} else {
			st.Action = domain.ActionForceUpgrade
			st.Message = fmt.Sprintf("%s over limit (%.1f%%); a tier upgrade is required", schools(overage), percent*100)
		}
	}

	return st, nil
}

func schools(n int) string {
	if n == 1 {
		return "1 school"
	}
	return format.Number(int64(n)) + " schools"
}
