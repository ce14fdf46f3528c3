package engine

import (
	"strings"

	"github.com/smallbiznis/schoolbilling/internal/pricing/domain"
)

// CalculateProgramPricing prices selected programs against the tier's
// included/extra-cost rules. An enabled override replaces the reported max
// but never changes pricing.
func CalculateProgramPricing(cat *domain.Catalog, tierID string, selected int, override domain.ProgramOverride) (*domain.ProgramPricing, error) {
	tier, ok := cat.Tier(tierID)
	if !ok {
		return nil, domain.ErrUnknownTier
	}
	if selected < 0 {
		return nil, domain.ErrInvalidProgramCount
	}
	if override.Enabled && override.Max < 0 {
		return nil, domain.ErrInvalidOverride
	}

	extra := extraPrograms(tier.Programs, selected)
	out := &domain.ProgramPricing{
		Tier:             tier.ID,
		Selected:         selected,
		IncludedPrograms: tier.Programs.Included,
		MaxPrograms:      tier.Programs.Max,
		ExtraPrograms:    extra,
		ExtraCost:        int64(extra) * tier.Programs.ExtraCost,
	}
	if override.Enabled {
		out.MaxPrograms = override.Max
		out.OverrideApplied = true
	}
	return out, nil
}

// ValidateProgramSelection checks a program list against the tier cap. It
// only reports: a selection over the cap returns the priced selection along
// with a *domain.ProgramCapError.
func ValidateProgramSelection(cat *domain.Catalog, tierID string, programs []string, override domain.ProgramOverride) (*domain.ProgramPricing, error) {
	if len(programs) == 0 {
		return nil, domain.ErrEmptySelection
	}
	for _, p := range programs {
		if strings.TrimSpace(p) == "" {
			return nil, domain.ErrInvalidProgram
		}
	}

	pricing, err := CalculateProgramPricing(cat, tierID, len(programs), override)
	if err != nil {
		return nil, err
	}
	if pricing.OverrideApplied {
		return pricing, nil
	}

	if pricing.Selected > pricing.MaxPrograms {
		return pricing, &domain.ProgramCapError{
			TierID:        pricing.Tier,
			Selected:      pricing.Selected,
			Max:           pricing.MaxPrograms,
			ExtraPrograms: pricing.ExtraPrograms,
			ExtraCost:     pricing.ExtraCost,
		}
	}
	return pricing, nil
}

func extraPrograms(rules domain.ProgramRules, selected int) int {
	if selected > rules.Included {
		return selected - rules.Included
	}
	return 0
}
