// Package domain holds the pricing catalog and the value types produced by the
// pricing engine.
package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// SingleSchoolCount is priced at the flat single-school rate and never
// matched against tier ranges.
const SingleSchoolCount = 1

// ProgramRules describes how many reading programs a tier includes and what
// each additional program costs.
type ProgramRules struct {
	Included  int   `json:"included" mapstructure:"included"`
	Max       int   `json:"max" mapstructure:"max"`
	ExtraCost int64 `json:"extra_cost" mapstructure:"extraCost"`
}

// TierDefinition is a named pricing bracket keyed by an inclusive school-count range.
type TierDefinition struct {
	ID             string       `json:"id" mapstructure:"id"`
	Name           string       `json:"name" mapstructure:"name"`
	MinSchools     int          `json:"min_schools" mapstructure:"minSchools"`
	MaxSchools     int          `json:"max_schools" mapstructure:"maxSchools"`
	PerSchoolPrice int64        `json:"per_school_price" mapstructure:"perSchoolPrice"`
	DiscountRate   float64      `json:"discount_rate" mapstructure:"discountRate"`
	Programs       ProgramRules `json:"programs" mapstructure:"programs"`
}

// Contains reports whether n falls inside the tier's range.
func (t TierDefinition) Contains(n int) bool {
	return n >= t.MinSchools && n <= t.MaxSchools
}

// OverageRule classifies usage beyond the licensed school count.
type OverageRule struct {
	GraceSchools     int     `json:"grace_schools" mapstructure:"graceSchools"`
	SoftLimitPercent float64 `json:"soft_limit_percent" mapstructure:"softLimitPercent"`
	HardLimitPercent float64 `json:"hard_limit_percent" mapstructure:"hardLimitPercent"`
	OverageRate      int64   `json:"overage_rate" mapstructure:"overageRate"`
	EnforceHardLimit bool    `json:"enforce_hard_limit" mapstructure:"enforceHardLimit"`
}

// DiscountRules carries the rate of each special discount variant.
type DiscountRules struct {
	FoundingRate           float64 `json:"founding_rate" mapstructure:"foundingRate"`
	ReferralRate           float64 `json:"referral_rate" mapstructure:"referralRate"`
	MultiYearRatePerYear   float64 `json:"multi_year_rate_per_year" mapstructure:"multiYearRatePerYear"`
	MultiYearMaxExtraYears int     `json:"multi_year_max_extra_years" mapstructure:"multiYearMaxExtraYears"`
}

// CatalogSpec is the raw, unvalidated shape of a catalog as read from config.
type CatalogSpec struct {
	SingleSchoolPrice int64            `json:"single_school_price" mapstructure:"singleSchoolPrice"`
	Tiers             []TierDefinition `json:"tiers" mapstructure:"tiers"`
	Overage           OverageRule      `json:"overage" mapstructure:"overage"`
	Discounts         DiscountRules    `json:"discounts" mapstructure:"discounts"`
}

// Catalog is an immutable, validated pricing catalog. All accessors return
// copies so callers cannot mutate the shared value.
type Catalog struct {
	singleSchoolPrice int64
	tiers             []TierDefinition
	byID              map[string]int
	overage           OverageRule
	discounts         DiscountRules
}

// DefaultCatalogSpec returns the catalog used when no pricing config is present.
func DefaultCatalogSpec() CatalogSpec {
	return CatalogSpec{
		SingleSchoolPrice: 495,
		Tiers: []TierDefinition{
			{ID: "small", Name: "Small", MinSchools: 2, MaxSchools: 7, PerSchoolPrice: 470, DiscountRate: 0.05,
				Programs: ProgramRules{Included: 1, Max: 2, ExtraCost: 150}},
			{ID: "medium", Name: "Medium", MinSchools: 8, MaxSchools: 15, PerSchoolPrice: 445, DiscountRate: 0.10,
				Programs: ProgramRules{Included: 2, Max: 3, ExtraCost: 150}},
			{ID: "large", Name: "Large", MinSchools: 16, MaxSchools: 30, PerSchoolPrice: 420, DiscountRate: 0.15,
				Programs: ProgramRules{Included: 2, Max: 4, ExtraCost: 125}},
			{ID: "xlarge", Name: "Extra Large", MinSchools: 31, MaxSchools: 60, PerSchoolPrice: 395, DiscountRate: 0.20,
				Programs: ProgramRules{Included: 3, Max: 5, ExtraCost: 100}},
			{ID: "unlimited", Name: "Unlimited", MinSchools: 61, MaxSchools: 1_000_000, PerSchoolPrice: 370, DiscountRate: 0.25,
				Programs: ProgramRules{Included: 4, Max: 6, ExtraCost: 100}},
		},
		Overage: OverageRule{
			GraceSchools:     1,
			SoftLimitPercent: 0.10,
			HardLimitPercent: 0.20,
			OverageRate:      495,
			EnforceHardLimit: false,
		},
		Discounts: DiscountRules{
			FoundingRate:           0.15,
			ReferralRate:           0.10,
			MultiYearRatePerYear:   0.05,
			MultiYearMaxExtraYears: 2,
		},
	}
}

// DefaultCatalog returns the validated default catalog.
func DefaultCatalog() *Catalog {
	cat, err := NewCatalog(DefaultCatalogSpec())
	if err != nil {
		panic(fmt.Sprintf("default pricing catalog is invalid: %v", err))
	}
	return cat
}

// NewCatalog validates spec and builds an indexed catalog. Tiers are sorted by
// MinSchools; the ranges must be contiguous and start right after the
// single-school count.
func NewCatalog(spec CatalogSpec) (*Catalog, error) {
	if spec.SingleSchoolPrice <= 0 {
		return nil, catalogErr("singleSchoolPrice must be positive")
	}
	if len(spec.Tiers) == 0 {
		return nil, catalogErr("tiers cannot be empty")
	}

	tiers := make([]TierDefinition, len(spec.Tiers))
	copy(tiers, spec.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinSchools < tiers[j].MinSchools })

	byID := make(map[string]int, len(tiers))
	for i := range tiers {
		t := &tiers[i]
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return nil, catalogErr("tier id is required")
		}
		if _, dup := byID[t.ID]; dup {
			return nil, catalogErr("duplicate tier %q", t.ID)
		}
		byID[t.ID] = i

		if t.MinSchools > t.MaxSchools {
			return nil, catalogErr("tier %q: minSchools %d exceeds maxSchools %d", t.ID, t.MinSchools, t.MaxSchools)
		}
		if i == 0 && t.MinSchools != SingleSchoolCount+1 {
			return nil, catalogErr("tier %q: first tier must start at %d schools", t.ID, SingleSchoolCount+1)
		}
		if i > 0 && t.MinSchools != tiers[i-1].MaxSchools+1 {
			return nil, catalogErr("tier %q: range must start at %d to follow %q", t.ID, tiers[i-1].MaxSchools+1, tiers[i-1].ID)
		}
		if t.PerSchoolPrice <= 0 {
			return nil, catalogErr("tier %q: perSchoolPrice must be positive", t.ID)
		}
		if t.DiscountRate < 0 || t.DiscountRate >= 1 {
			return nil, catalogErr("tier %q: discountRate must be in [0, 1)", t.ID)
		}
		if t.Programs.Included < 0 {
			return nil, catalogErr("tier %q: programs.included cannot be negative", t.ID)
		}
		if t.Programs.Max < t.Programs.Included {
			return nil, catalogErr("tier %q: programs.max must be >= programs.included", t.ID)
		}
		if t.Programs.ExtraCost <= 0 {
			return nil, catalogErr("tier %q: programs.extraCost must be positive", t.ID)
		}
		if strings.TrimSpace(t.Name) == "" {
			t.Name = t.ID
		}
	}

	o := spec.Overage
	if o.GraceSchools < 0 {
		return nil, catalogErr("overage.graceSchools cannot be negative")
	}
	if o.SoftLimitPercent <= 0 || o.HardLimitPercent <= o.SoftLimitPercent {
		return nil, catalogErr("overage limits must satisfy 0 < softLimitPercent < hardLimitPercent")
	}
	if o.OverageRate <= 0 {
		return nil, catalogErr("overage.overageRate must be positive")
	}

	d := spec.Discounts
	for name, rate := range map[string]float64{
		"foundingRate":         d.FoundingRate,
		"referralRate":         d.ReferralRate,
		"multiYearRatePerYear": d.MultiYearRatePerYear,
	} {
		if rate < 0 || rate > 1 {
			return nil, catalogErr("discounts.%s must be in [0, 1]", name)
		}
	}
	if d.MultiYearMaxExtraYears < 0 {
		return nil, catalogErr("discounts.multiYearMaxExtraYears cannot be negative")
	}

	return &Catalog{
		singleSchoolPrice: spec.SingleSchoolPrice,
		tiers:             tiers,
		byID:              byID,
		overage:           o,
		discounts:         d,
	}, nil
}

// SingleSchoolPrice is the flat annual price for a one-school contract.
func (c *Catalog) SingleSchoolPrice() int64 { return c.singleSchoolPrice }

// Overage returns the overage rule.
func (c *Catalog) Overage() OverageRule { return c.overage }

// DiscountRules returns the special discount rates.
func (c *Catalog) DiscountRules() DiscountRules { return c.discounts }

// Tiers returns the tiers in ascending range order.
func (c *Catalog) Tiers() []TierDefinition {
	out := make([]TierDefinition, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Tier looks a tier up by id.
func (c *Catalog) Tier(id string) (TierDefinition, bool) {
	idx, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return TierDefinition{}, false
	}
	return c.tiers[idx], true
}

// TopTier is the tier with the highest range; it doubles as the catch-all.
func (c *Catalog) TopTier() TierDefinition {
	return c.tiers[len(c.tiers)-1]
}

// TierFor returns the tier whose range contains n using binary search over
// the sorted, contiguous ranges.
func (c *Catalog) TierFor(n int) (TierDefinition, bool) {
	idx := sort.Search(len(c.tiers), func(i int) bool { return c.tiers[i].MaxSchools >= n })
	if idx < len(c.tiers) && c.tiers[idx].Contains(n) {
		return c.tiers[idx], true
	}
	return TierDefinition{}, false
}

// Spec returns the catalog back in its raw form.
func (c *Catalog) Spec() CatalogSpec {
	return CatalogSpec{
		SingleSchoolPrice: c.singleSchoolPrice,
		Tiers:             c.Tiers(),
		Overage:           c.overage,
		Discounts:         c.discounts,
	}
}

// Rate converts a catalog float rate into an exact decimal.
func Rate(r float64) decimal.Decimal {
	return decimal.NewFromFloat(r)
}

func catalogErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidCatalog, fmt.Sprintf(format, args...))
}
