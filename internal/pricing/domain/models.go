package domain

import "github.com/shopspring/decimal"

// DiscountKind enumerates the special discount variants.
type DiscountKind string

const (
	DiscountFounding  DiscountKind = "founding"
	DiscountReferral  DiscountKind = "referral"
	DiscountMultiYear DiscountKind = "multi_year"
)

// SpecialDiscounts are the per-contract discount flags supplied by the caller.
// MultiYear of 0 or 1 means no multi-year term.
type SpecialDiscounts struct {
	Founding  bool `json:"founding"`
	Referral  bool `json:"referral"`
	MultiYear int  `json:"multi_year"`
}

// Discount is one resolved discount variant with its own rate.
type Discount struct {
	Kind  DiscountKind    `json:"kind"`
	Rate  decimal.Decimal `json:"rate"`
	Years int             `json:"years,omitempty"`
}

// DiscountLine is a discount applied to a subtotal.
type DiscountLine struct {
	Kind   DiscountKind    `json:"kind"`
	Rate   decimal.Decimal `json:"rate"`
	Years  int             `json:"years,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

// DiscountBreakdown is the additive sum of all discount lines.
type DiscountBreakdown struct {
	Total     decimal.Decimal `json:"-"`
	Amount    int64           `json:"amount"`
	Founding  bool            `json:"founding"`
	Referral  bool            `json:"referral"`
	MultiYear int             `json:"multi_year"`
	Lines     []DiscountLine  `json:"lines"`
}

// WarningCode identifies a non-fatal condition raised during pricing.
type WarningCode string

const (
	WarningDiscountExceededSubtotal WarningCode = "discount_exceeded_subtotal"
	WarningPerSchoolUndefined       WarningCode = "per_school_undefined"
	WarningCustomPricing            WarningCode = "custom_pricing"
)

type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// QuoteRequest is the input to the contract price calculation.
type QuoteRequest struct {
	NumSchools           int              `json:"num_schools"`
	TierID               string           `json:"tier"`
	SelectedProgramCount int              `json:"selected_program_count"`
	SpecialDiscounts     SpecialDiscounts `json:"special_discounts"`
}

// PricingResult is a full contract quote. PerSchoolEffective and
// SavingsPercent are nil when the school count is zero.
type PricingResult struct {
	Tier               string            `json:"tier"`
	TierName           string            `json:"tier_name"`
	NumSchools         int               `json:"num_schools"`
	PerSchoolPrice     int64             `json:"per_school_price"`
	BasePrice          int64             `json:"base_price"`
	ProgramsIncluded   int               `json:"programs_included"`
	ExtraPrograms      int               `json:"extra_programs"`
	ProgramCost        int64             `json:"program_cost"`
	Subtotal           int64             `json:"subtotal"`
	Discounts          DiscountBreakdown `json:"discounts"`
	TotalPrice         int64             `json:"total_price"`
	Clamped            bool              `json:"clamped"`
	MonthlyEquivalent  int64             `json:"monthly_equivalent"`
	PerSchoolEffective *int64            `json:"per_school_effective"`
	Savings            int64             `json:"savings"`
	SavingsPercent     *int64            `json:"savings_percent"`
	Warnings           []Warning         `json:"warnings,omitempty"`
}

// TierRecommendation is the best-fit pricing for a raw school count.
type TierRecommendation struct {
	NumSchools     int    `json:"num_schools"`
	SingleSchool   bool   `json:"single_school"`
	Tier           string `json:"tier,omitempty"`
	TierName       string `json:"tier_name,omitempty"`
	PerSchoolPrice int64  `json:"per_school_price"`
	CustomPricing  bool   `json:"custom_pricing"`
	Note           string `json:"note,omitempty"`
}

// ProgramOverride is the administrative escape hatch for the program cap.
type ProgramOverride struct {
	Enabled bool `json:"enabled"`
	Max     int  `json:"max"`
}

// ProgramPricing prices a program selection against a tier.
type ProgramPricing struct {
	Tier             string `json:"tier"`
	Selected         int    `json:"selected"`
	IncludedPrograms int    `json:"included_programs"`
	MaxPrograms      int    `json:"max_programs"`
	ExtraPrograms    int    `json:"extra_programs"`
	ExtraCost        int64  `json:"extra_cost"`
	OverrideApplied  bool   `json:"override_applied"`
}

// OverageBand is the classification of usage against the licensed count.
type OverageBand string

const (
	BandWithinLimit        OverageBand = "within_limit"
	BandGracePeriod        OverageBand = "grace_period"
	BandSoftWarning        OverageBand = "soft_warning"
	BandUpgradeRecommended OverageBand = "upgrade_recommended"
	BandUpgradeRequired    OverageBand = "upgrade_required"
)

// OverageAction is what the caller is expected to do for a band.
type OverageAction string

const (
	ActionNone             OverageAction = "none"
	ActionInvoiceOverage   OverageAction = "invoice_overage"
	ActionRecommendUpgrade OverageAction = "recommend_upgrade"
	ActionBlockAdditions   OverageAction = "block_additions"
	ActionForceUpgrade     OverageAction = "force_upgrade"
)

// OverageStatus is the capacity classification for an entity.
type OverageStatus struct {
	CurrentSchools  int           `json:"current_schools"`
	TierLimit       int           `json:"tier_limit"`
	IsOver          bool          `json:"is_over"`
	Overage         int           `json:"overage"`
	OveragePercent  float64       `json:"overage_percent"`
	BillableOverage int           `json:"billable_overage"`
	OverageCost     int64         `json:"overage_cost"`
	GraceRemaining  int           `json:"grace_remaining"`
	Status          OverageBand   `json:"status"`
	Message         string        `json:"message"`
	Action          OverageAction `json:"action"`
}
