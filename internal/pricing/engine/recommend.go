// Package engine implements the pure pricing calculations. Every function
// takes the catalog explicitly and has no side effects, so results can be
// recomputed at any time from the same inputs.
package engine

import (
	"fmt"

	"github.com/smallbiznis/schoolbilling/internal/pricing/domain"
)

// RecommendTier maps a raw school count to the best-fit pricing. A single
// school always gets the flat single-school rate without consulting tier
// ranges. Counts above every tier fall back to the top tier.
func RecommendTier(cat *domain.Catalog, numSchools int) domain.TierRecommendation {
	if numSchools == domain.SingleSchoolCount {
		return domain.TierRecommendation{
			NumSchools:     numSchools,
			SingleSchool:   true,
			PerSchoolPrice: cat.SingleSchoolPrice(),
			Note:           "single-school pricing",
		}
	}

	if numSchools < domain.SingleSchoolCount {
		tier := cat.Tiers()[0]
		return recommendation(numSchools, tier, false, "no schools licensed; showing entry tier")
	}

	if tier, ok := cat.TierFor(numSchools); ok {
		return recommendation(numSchools, tier, false, "")
	}

	top := cat.TopTier()
	return recommendation(numSchools, top, true,
		fmt.Sprintf("%d schools exceeds the %s tier range; custom pricing applies", numSchools, top.Name))
}

func recommendation(n int, tier domain.TierDefinition, custom bool, note string) domain.TierRecommendation {
	return domain.TierRecommendation{
		NumSchools:     n,
		Tier:           tier.ID,
		TierName:       tier.Name,
		PerSchoolPrice: tier.PerSchoolPrice,
		CustomPricing:  custom,
		Note:           note,
	}
}
