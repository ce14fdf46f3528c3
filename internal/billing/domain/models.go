package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/smallbiznis/schoolbilling/internal/pricing/domain"
	"gorm.io/datatypes"
)

type EntityType string

const (
	EntityTypeDiocese  EntityType = "diocese"
	EntityTypeDistrict EntityType = "district"
	EntityTypeSchool   EntityType = "school"
)

// ParseEntityType normalizes raw; an empty value defaults to diocese.
func ParseEntityType(raw string) (EntityType, error) {
	switch EntityType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", EntityTypeDiocese:
		return EntityTypeDiocese, nil
	case EntityTypeDistrict:
		return EntityTypeDistrict, nil
	case EntityTypeSchool:
		return EntityTypeSchool, nil
	default:
		return "", ErrInvalidEntityType
	}
}

type BillingStatus string

const (
	StatusPendingContract BillingStatus = "pending_contract"
	StatusPendingPayment  BillingStatus = "pending_payment"
	StatusTrial           BillingStatus = "trial"
	StatusActive          BillingStatus = "active"
	StatusGracePeriod     BillingStatus = "grace_period"
	StatusSuspended       BillingStatus = "suspended"
	StatusCancelled       BillingStatus = "cancelled"
)

var billingStatuses = []BillingStatus{
	StatusPendingContract,
	StatusPendingPayment,
	StatusTrial,
	StatusActive,
	StatusGracePeriod,
	StatusSuspended,
	StatusCancelled,
}

var statusLabels = map[BillingStatus]string{
	StatusPendingContract: "Pending Contract",
	StatusPendingPayment:  "Pending Payment",
	StatusTrial:           "Trial",
	StatusActive:          "Active",
	StatusGracePeriod:     "Grace Period",
	StatusSuspended:       "Suspended",
	StatusCancelled:       "Cancelled",
}

// BillingStatuses lists every status in display order.
func BillingStatuses() []BillingStatus {
	out := make([]BillingStatus, len(billingStatuses))
	copy(out, billingStatuses)
	return out
}

// ParseBillingStatus rejects anything outside the enumeration. An empty
// value defaults to pending_contract.
func ParseBillingStatus(raw string) (BillingStatus, error) {
	status := BillingStatus(strings.ToLower(strings.TrimSpace(raw)))
	if status == "" {
		return StatusPendingContract, nil
	}
	if _, ok := statusLabels[status]; !ok {
		return "", ErrInvalidBillingStatus
	}
	return status, nil
}

// Label is the human-readable status name.
func (s BillingStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// EntityBillingRecord is the persisted contract state of a billed entity.
type EntityBillingRecord struct {
	ID                 snowflake.ID `gorm:"primaryKey"`
	Name               string       `gorm:"not null"`
	Slug               string       `gorm:"uniqueIndex;not null"`
	EntityType         EntityType   `gorm:"not null"`
	Tier               string       `gorm:"index;not null"`
	MaxSubEntities     int          `gorm:"not null"`
	CurrentSubEntities *int
	SelectedPrograms   datatypes.JSONSlice[string] `gorm:"type:json"`
	Founding           bool                        `gorm:"not null;default:false"`
	Referral           bool                        `gorm:"not null;default:false"`
	MultiYear          int                         `gorm:"not null;default:0"`
	BillingStatus      BillingStatus               `gorm:"index;not null"`
	LicenseExpiration  *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (EntityBillingRecord) TableName() string { return "entity_billing_records" }

// PricedSchools is the school count a contract is priced on: actual usage
// when reported, otherwise the licensed maximum.
func (r EntityBillingRecord) PricedSchools() int {
	if r.CurrentSubEntities != nil {
		return *r.CurrentSubEntities
	}
	return r.MaxSubEntities
}

func (r EntityBillingRecord) SpecialDiscounts() pricingdomain.SpecialDiscounts {
	return pricingdomain.SpecialDiscounts{
		Founding:  r.Founding,
		Referral:  r.Referral,
		MultiYear: r.MultiYear,
	}
}

// BillingSummary combines contract pricing with any overage surcharge.
type BillingSummary struct {
	EntityID      snowflake.ID                 `json:"entity_id"`
	Name          string                       `json:"name"`
	Tier          string                       `json:"tier"`
	BillingStatus BillingStatus                `json:"billing_status"`
	Pricing       *pricingdomain.PricingResult `json:"pricing"`
	Overage       *pricingdomain.OverageStatus `json:"overage"`
	TotalDue      int64                        `json:"total_due"`
}

type TierRollup struct {
	Tier     string `json:"tier"`
	TierName string `json:"tier_name"`
	Revenue  int64  `json:"revenue"`
	Count    int    `json:"count"`
	Schools  int    `json:"schools"`
}

type StatusRollup struct {
	Status  BillingStatus `json:"status"`
	Label   string        `json:"label"`
	Revenue int64         `json:"revenue"`
	Count   int           `json:"count"`
	Schools int           `json:"schools"`
}

type RenewalCandidate struct {
	EntityID          snowflake.ID  `json:"entity_id"`
	Name              string        `json:"name"`
	Tier              string        `json:"tier"`
	BillingStatus     BillingStatus `json:"billing_status"`
	LicenseExpiration time.Time     `json:"license_expiration"`
	DaysRemaining     int           `json:"days_remaining"`
	TotalDue          int64         `json:"total_due"`
}

type SkippedEntity struct {
	EntityID snowflake.ID `json:"entity_id"`
	Name     string       `json:"name"`
	Reason   string       `json:"reason"`
}

// PortfolioReport folds many entities' summaries into revenue rollups.
type PortfolioReport struct {
	GeneratedAt       time.Time          `json:"generated_at"`
	TotalRevenue      int64              `json:"total_revenue"`
	TotalSchools      int                `json:"total_schools"`
	EntityCount       int                `json:"entity_count"`
	ByTier            []TierRollup       `json:"by_tier"`
	ByStatus          []StatusRollup     `json:"by_status"`
	RenewalCandidates []RenewalCandidate `json:"renewal_candidates"`
	Skipped           []SkippedEntity    `json:"skipped"`
	Summaries         []BillingSummary   `json:"-"`
}

// RenewalWindow is how far ahead a license expiration flags a renewal.
const RenewalWindow = 90 * 24 * time.Hour
