package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Tier          string
	BillingStatus BillingStatus
	// AfterID resumes a listing after the given record. Zero starts at the beginning.
	AfterID snowflake.ID
	// Limit caps the number of rows. Zero returns every match.
	Limit int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *EntityBillingRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*EntityBillingRecord, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*EntityBillingRecord, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]EntityBillingRecord, error)
	UpdateUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, current *int, status BillingStatus, updatedAt time.Time) (int64, error)
}

// EntityLocker serializes read-modify-write updates of a single entity across replicas.
type EntityLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}
