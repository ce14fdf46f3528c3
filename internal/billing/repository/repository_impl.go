package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/schoolbilling/internal/billing/domain"
	"gorm.io/gorm"
)

const recordColumns = `id, name, slug, entity_type, tier, max_sub_entities, current_sub_entities,
	 selected_programs, founding, referral, multi_year, billing_status, license_expiration,
	 created_at, updated_at`

type repo struct{}

func Provide() billingdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, e *billingdomain.EntityBillingRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO entity_billing_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Name,
		e.Slug,
		e.EntityType,
		e.Tier,
		e.MaxSubEntities,
		e.CurrentSubEntities,
		e.SelectedPrograms,
		e.Founding,
		e.Referral,
		e.MultiYear,
		e.BillingStatus,
		e.LicenseExpiration,
		e.CreatedAt,
		e.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingdomain.EntityBillingRecord, error) {
	var e billingdomain.EntityBillingRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+` FROM entity_billing_records WHERE id = ?`,
		id,
	).Scan(&e).Error
	if err != nil {
		return nil, err
	}
	if e.ID == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*billingdomain.EntityBillingRecord, error) {
	var e billingdomain.EntityBillingRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+` FROM entity_billing_records WHERE slug = ?`,
		slug,
	).Scan(&e).Error
	if err != nil {
		return nil, err
	}
	if e.ID == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter billingdomain.ListFilter) ([]billingdomain.EntityBillingRecord, error) {
	var (
		where []string
		args  []any
	)
	if tier := strings.TrimSpace(filter.Tier); tier != "" {
		where = append(where, "tier = ?")
		args = append(args, tier)
	}
	if filter.BillingStatus != "" {
		where = append(where, "billing_status = ?")
		args = append(args, filter.BillingStatus)
	}
	if filter.AfterID != 0 {
		where = append(where, "id > ?")
		args = append(args, filter.AfterID)
	}

	query := `SELECT ` + recordColumns + ` FROM entity_billing_records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var items []billingdomain.EntityBillingRecord
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, current *int, status billingdomain.BillingStatus, updatedAt time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE entity_billing_records
		 SET current_sub_entities = ?, billing_status = ?, updated_at = ?
		 WHERE id = ?`,
		current,
		status,
		updatedAt,
		id,
	)
	return res.RowsAffected, res.Error
}
