package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	billingdomain "github.com/smallbiznis/schoolbilling/internal/billing/domain"
	"github.com/smallbiznis/schoolbilling/internal/clock"
	"github.com/smallbiznis/schoolbilling/internal/observability/logger"
	"github.com/smallbiznis/schoolbilling/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/schoolbilling/internal/pricing/domain"
	dbpkg "github.com/smallbiznis/schoolbilling/pkg/db"
	"github.com/smallbiznis/schoolbilling/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPortfolioWorkers = 8
	usageLockTTL            = 5 * time.Second
	keyUsageLock            = "usage:%s"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Repo           billingdomain.Repository
	Catalog        pricingdomain.CatalogSource
	Clock          clock.Clock
	Metrics        *metrics.Metrics           `optional:"true"`
	PricingMetrics *metrics.PricingMetrics    `optional:"true"`
	Locker         billingdomain.EntityLocker `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	repo           billingdomain.Repository
	catalog        pricingdomain.CatalogSource
	clock          clock.Clock
	metrics        *metrics.Metrics
	pricingMetrics *metrics.PricingMetrics
	locker         billingdomain.EntityLocker
	workers        int
}

func New(p Params) billingdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("billing.service"),
		genID:          p.GenID,
		repo:           p.Repo,
		catalog:        p.Catalog,
		clock:          clk,
		metrics:        p.Metrics,
		pricingMetrics: p.PricingMetrics,
		locker:         p.Locker,
		workers:        defaultPortfolioWorkers,
	}
}

func (s *Service) Create(ctx context.Context, req billingdomain.CreateRequest) (*billingdomain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, billingdomain.ErrInvalidName
	}
	entityType, err := billingdomain.ParseEntityType(req.EntityType)
	if err != nil {
		return nil, err
	}
	status, err := billingdomain.ParseBillingStatus(req.BillingStatus)
	if err != nil {
		return nil, err
	}

	tierID := strings.TrimSpace(req.Tier)
	if _, ok := s.catalog.Catalog().Tier(tierID); !ok {
		return nil, billingdomain.ErrInvalidTier
	}
	if req.MaxSubEntities < 0 || (req.CurrentSubEntities != nil && *req.CurrentSubEntities < 0) {
		return nil, billingdomain.ErrInvalidSchoolCount
	}
	if req.MultiYear < 0 {
		return nil, billingdomain.ErrInvalidMultiYear
	}

	entitySlug := slug.Make(name)
	if entitySlug == "" {
		return nil, billingdomain.ErrInvalidName
	}

	now := s.clock.Now()
	var expiration *time.Time
	if req.LicenseExpiration != nil {
		if req.LicenseExpiration.IsZero() {
			return nil, billingdomain.ErrInvalidExpiration
		}
		exp := req.LicenseExpiration.UTC()
		expiration = &exp
	}

	record := &billingdomain.EntityBillingRecord{
		ID:                 s.genID.Generate(),
		Name:               name,
		Slug:               entitySlug,
		EntityType:         entityType,
		Tier:               tierID,
		MaxSubEntities:     req.MaxSubEntities,
		CurrentSubEntities: req.CurrentSubEntities,
		SelectedPrograms:   datatypes.JSONSlice[string](normalizePrograms(req.SelectedPrograms)),
		Founding:           req.Founding,
		Referral:           req.Referral,
		MultiYear:          req.MultiYear,
		BillingStatus:      status,
		LicenseExpiration:  expiration,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindBySlug(ctx, tx, record.Slug)
		if err != nil {
			return err
		}
		if existing != nil {
			return billingdomain.ErrDuplicateEntity
		}
		return s.repo.Insert(ctx, tx, record)
	})
	if dbpkg.IsDuplicateKeyErr(err) {
		return nil, billingdomain.ErrDuplicateEntity
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordEntityCreated(ctx, string(record.EntityType), record.Tier)
	logger.WithEntity(logger.WithContext(ctx, s.log), record.ID.String()).Info("entity created",
		zap.String("slug", record.Slug),
		zap.String("tier", record.Tier),
		zap.String("billing_status", string(record.BillingStatus)),
	)

	return toResponse(record), nil
}

func (s *Service) List(ctx context.Context, req billingdomain.ListRequest) (*billingdomain.ListResponse, error) {
	filter := billingdomain.ListFilter{Tier: strings.TrimSpace(req.Tier)}
	if strings.TrimSpace(req.BillingStatus) != "" {
		status, err := billingdomain.ParseBillingStatus(req.BillingStatus)
		if err != nil {
			return nil, err
		}
		filter.BillingStatus = status
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, err
		}
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		filter.AfterID = afterID
	}

	pageSize := req.Size()
	filter.Limit = pageSize + 1

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(rec billingdomain.EntityBillingRecord) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: rec.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})

	resp := &billingdomain.ListResponse{
		PageInfo: pageInfo,
		Entities: make([]billingdomain.Response, 0, len(items)),
	}
	for i := range items {
		resp.Entities = append(resp.Entities, *toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*billingdomain.Response, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(record), nil
}

func (s *Service) UpdateUsage(ctx context.Context, id string, req billingdomain.UpdateUsageRequest) (*billingdomain.Response, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		key := fmt.Sprintf(keyUsageLock, record.ID.String())
		token, ok, err := s.locker.TryLock(ctx, key, usageLockTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", billingdomain.ErrLockUnavailable, err)
		}
		if !ok {
			return nil, billingdomain.ErrConcurrentUpdate
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("release usage lock", zap.String("entity_id", record.ID.String()), zap.Error(err))
			}
		}()
		// re-read under the lock
		if record, err = s.find(ctx, id); err != nil {
			return nil, err
		}
	}

	current := record.CurrentSubEntities
	if req.CurrentSubEntities != nil {
		if *req.CurrentSubEntities < 0 {
			return nil, billingdomain.ErrInvalidSchoolCount
		}
		v := *req.CurrentSubEntities
		current = &v
	}
	status := record.BillingStatus
	if req.BillingStatus != nil {
		status, err = billingdomain.ParseBillingStatus(*req.BillingStatus)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	affected, err := s.repo.UpdateUsage(ctx, s.db, record.ID, current, status, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, billingdomain.ErrNotFound
	}

	record.CurrentSubEntities = current
	record.BillingStatus = status
	record.UpdatedAt = now

	s.metrics.RecordUsageUpdate(ctx, record.Tier)
	return toResponse(record), nil
}

func (s *Service) GetBilling(ctx context.Context, id string) (*billingdomain.BillingSummary, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	summary, err := CalculateBilling(s.catalog.Catalog(), *record)
	if err != nil {
		return nil, err
	}
	s.pricingMetrics.ObserveQuote(summary.Tier, summary.Pricing.Clamped)
	s.pricingMetrics.ObserveOverage(string(summary.Overage.Status))
	if summary.Pricing.Clamped {
		logger.WithEntity(logger.WithContext(ctx, s.log), record.ID.String()).Warn("discounts exceeded subtotal, total clamped to zero",
			zap.String("tier", summary.Tier),
			zap.Int64("subtotal", summary.Pricing.Subtotal),
		)
	}
	return summary, nil
}

func (s *Service) Portfolio(ctx context.Context) (*billingdomain.PortfolioReport, error) {
	started := time.Now()

	records, err := s.repo.List(ctx, s.db, billingdomain.ListFilter{})
	if err != nil {
		return nil, err
	}

	report, err := BuildPortfolio(ctx, s.catalog.Catalog(), records, s.clock.Now(), s.workers)
	if err != nil {
		return nil, err
	}

	s.pricingMetrics.ObservePortfolio(time.Since(started), len(report.Skipped))
	if len(report.Skipped) > 0 {
		logger.WithContext(ctx, s.log).Warn("portfolio skipped entities",
			zap.Int("skipped", len(report.Skipped)),
			zap.Int("entities", len(records)),
		)
	}
	return report, nil
}

func (s *Service) find(ctx context.Context, id string) (*billingdomain.EntityBillingRecord, error) {
	entityID, err := parseID(id)
	if err != nil {
		return nil, billingdomain.ErrInvalidID
	}
	record, err := s.repo.FindByID(ctx, s.db, entityID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, billingdomain.ErrNotFound
	}
	return record, nil
}

func parseID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}

func normalizePrograms(programs []string) []string {
	out := make([]string, 0, len(programs))
	for _, p := range programs {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toResponse(r *billingdomain.EntityBillingRecord) *billingdomain.Response {
	programs := []string(r.SelectedPrograms)
	if programs == nil {
		programs = []string{}
	}
	return &billingdomain.Response{
		ID:                 r.ID,
		Name:               r.Name,
		Slug:               r.Slug,
		EntityType:         r.EntityType,
		Tier:               r.Tier,
		MaxSubEntities:     r.MaxSubEntities,
		CurrentSubEntities: r.CurrentSubEntities,
		SelectedPrograms:   programs,
		Founding:           r.Founding,
		Referral:           r.Referral,
		MultiYear:          r.MultiYear,
		BillingStatus:      r.BillingStatus,
		LicenseExpiration:  r.LicenseExpiration,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}
