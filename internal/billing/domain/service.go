package domain

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbilling/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Get(ctx context.Context, id string) (*Response, error)
	UpdateUsage(ctx context.Context, id string, req UpdateUsageRequest) (*Response, error)
	GetBilling(ctx context.Context, id string) (*BillingSummary, error)
	Portfolio(ctx context.Context) (*PortfolioReport, error)
	ExportPortfolioCSV(ctx context.Context, w io.Writer) error
}

type CreateRequest struct {
	Name               string     `json:"name"`
	EntityType         string     `json:"entity_type"`
	Tier               string     `json:"tier"`
	MaxSubEntities     int        `json:"max_sub_entities"`
	CurrentSubEntities *int       `json:"current_sub_entities"`
	SelectedPrograms   []string   `json:"selected_programs"`
	Founding           bool       `json:"founding"`
	Referral           bool       `json:"referral"`
	MultiYear          int        `json:"multi_year"`
	BillingStatus      string     `json:"billing_status"`
	LicenseExpiration  *time.Time `json:"license_expiration"`
}

type ListRequest struct {
	pagination.Pagination
	Tier          string `form:"tier"`
	BillingStatus string `form:"billing_status"`
}

type ListResponse struct {
	pagination.PageInfo
	Entities []Response `json:"entities"`
}

type UpdateUsageRequest struct {
	CurrentSubEntities *int    `json:"current_sub_entities"`
	BillingStatus      *string `json:"billing_status"`
}

type Response struct {
	ID                 snowflake.ID  `json:"id"`
	Name               string        `json:"name"`
	Slug               string        `json:"slug"`
	EntityType         EntityType    `json:"entity_type"`
	Tier               string        `json:"tier"`
	MaxSubEntities     int           `json:"max_sub_entities"`
	CurrentSubEntities *int          `json:"current_sub_entities,omitempty"`
	SelectedPrograms   []string      `json:"selected_programs"`
	Founding           bool          `json:"founding"`
	Referral           bool          `json:"referral"`
	MultiYear          int           `json:"multi_year"`
	BillingStatus      BillingStatus `json:"billing_status"`
	LicenseExpiration  *time.Time    `json:"license_expiration,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}
