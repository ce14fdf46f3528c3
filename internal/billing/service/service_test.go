package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/smallbiznis/schoolbilling/internal/billing/domain"
	"github.com/smallbiznis/schoolbilling/internal/billing/repository"
	"github.com/smallbiznis/schoolbilling/internal/clock"
	pricingdomain "github.com/smallbiznis/schoolbilling/internal/pricing/domain"
	"github.com/smallbiznis/schoolbilling/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type staticCatalog struct{ cat *pricingdomain.Catalog }

func (s staticCatalog) Catalog() *pricingdomain.Catalog { return s.cat }

func newTestService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&billingdomain.EntityBillingRecord{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(portfolioNow)

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repository.Provide(),
		Catalog: staticCatalog{cat: pricingdomain.DefaultCatalog()},
		Clock:   clk,
	})
	return svc.(*Service), clk
}

func TestService_CreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	exp := portfolioNow.Add(45 * 24 * time.Hour)

	created, err := svc.Create(ctx, billingdomain.CreateRequest{
		Name:              "  Diocese of Saint Example ",
		Tier:              "medium",
		MaxSubEntities:    12,
		SelectedPrograms:  []string{"elementary", " ", "middle"},
		Referral:          true,
		MultiYear:         3,
		BillingStatus:     "active",
		LicenseExpiration: &exp,
	})
	require.NoError(t, err)
	assert.Equal(t, "Diocese of Saint Example", created.Name)
	assert.Equal(t, "diocese-of-saint-example", created.Slug)
	assert.Equal(t, billingdomain.EntityTypeDiocese, created.EntityType)
	assert.Equal(t, []string{"elementary", "middle"}, created.SelectedPrograms)
	assert.Equal(t, portfolioNow, created.CreatedAt)

	got, err := svc.Get(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "medium", got.Tier)
	assert.Equal(t, []string{"elementary", "middle"}, got.SelectedPrograms)
	assert.True(t, got.Referral)
	assert.Equal(t, 3, got.MultiYear)
	assert.Nil(t, got.CurrentSubEntities)
	require.NotNil(t, got.LicenseExpiration)
	assert.True(t, exp.Equal(*got.LicenseExpiration))
}

func TestService_CreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  billingdomain.CreateRequest
		err  error
	}{
		{"blank name", billingdomain.CreateRequest{Name: " ", Tier: "small"}, billingdomain.ErrInvalidName},
		{"unknown tier", billingdomain.CreateRequest{Name: "A", Tier: "gold"}, billingdomain.ErrInvalidTier},
		{"bad status", billingdomain.CreateRequest{Name: "A", Tier: "small", BillingStatus: "paid"}, billingdomain.ErrInvalidBillingStatus},
		{"bad type", billingdomain.CreateRequest{Name: "A", Tier: "small", EntityType: "parish"}, billingdomain.ErrInvalidEntityType},
		{"negative max", billingdomain.CreateRequest{Name: "A", Tier: "small", MaxSubEntities: -1}, billingdomain.ErrInvalidSchoolCount},
		{"negative multi-year", billingdomain.CreateRequest{Name: "A", Tier: "small", MultiYear: -2}, billingdomain.ErrInvalidMultiYear},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	_, err := svc.Create(ctx, billingdomain.CreateRequest{Name: "!!!", Tier: "small", MaxSubEntities: 3})
	assert.ErrorIs(t, err, billingdomain.ErrInvalidName)
	_, err = svc.Create(ctx, billingdomain.CreateRequest{Name: "???", Tier: "small", MaxSubEntities: 3})
	assert.ErrorIs(t, err, billingdomain.ErrInvalidName)

	_, err = svc.Create(ctx, billingdomain.CreateRequest{Name: "Same Name", Tier: "small", MaxSubEntities: 3})
	require.NoError(t, err)
	_, err = svc.Create(ctx, billingdomain.CreateRequest{Name: "same name", Tier: "small", MaxSubEntities: 3})
	assert.ErrorIs(t, err, billingdomain.ErrDuplicateEntity)
}

func TestService_GetErrors(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "not-a-number")
	assert.ErrorIs(t, err, billingdomain.ErrInvalidID)

	_, err = svc.Get(context.Background(), "12345")
	assert.ErrorIs(t, err, billingdomain.ErrNotFound)
}

func TestService_ListFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, req := range []billingdomain.CreateRequest{
		{Name: "One", Tier: "small", MaxSubEntities: 3, BillingStatus: "active"},
		{Name: "Two", Tier: "medium", MaxSubEntities: 9, BillingStatus: "trial"},
		{Name: "Three", Tier: "small", MaxSubEntities: 4, BillingStatus: "trial"},
	} {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, billingdomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, all.Entities, 3)
	assert.Equal(t, "One", all.Entities[0].Name)
	assert.False(t, all.HasMore)

	small, err := svc.List(ctx, billingdomain.ListRequest{Tier: "small"})
	require.NoError(t, err)
	assert.Len(t, small.Entities, 2)

	trialSmall, err := svc.List(ctx, billingdomain.ListRequest{Tier: "small", BillingStatus: "trial"})
	require.NoError(t, err)
	require.Len(t, trialSmall.Entities, 1)
	assert.Equal(t, "Three", trialSmall.Entities[0].Name)

	first, err := svc.List(ctx, billingdomain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Entities, 2)
	require.True(t, first.HasMore)
	assert.Equal(t, "Two", first.Entities[1].Name)

	rest, err := svc.List(ctx, billingdomain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, rest.Entities, 1)
	assert.Equal(t, "Three", rest.Entities[0].Name)
	assert.False(t, rest.HasMore)

	_, err = svc.List(ctx, billingdomain.ListRequest{Pagination: pagination.Pagination{PageToken: "garbage"}})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)

	_, err = svc.List(ctx, billingdomain.ListRequest{BillingStatus: "archived"})
	assert.ErrorIs(t, err, billingdomain.ErrInvalidBillingStatus)
}

func TestService_UpdateUsageAndBilling(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, billingdomain.CreateRequest{
		Name: "Growing Diocese", Tier: "medium", MaxSubEntities: 15, BillingStatus: "active",
	})
	require.NoError(t, err)

	clk.Advance(time.Hour)
	current := 19
	grace := "grace_period"
	updated, err := svc.UpdateUsage(ctx, created.ID.String(), billingdomain.UpdateUsageRequest{
		CurrentSubEntities: &current,
		BillingStatus:      &grace,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.CurrentSubEntities)
	assert.Equal(t, 19, *updated.CurrentSubEntities)
	assert.Equal(t, billingdomain.StatusGracePeriod, updated.BillingStatus)
	assert.Equal(t, portfolioNow.Add(time.Hour), updated.UpdatedAt)

	summary, err := svc.GetBilling(ctx, created.ID.String())
	require.NoError(t, err)
	// 19 schools on medium at $445, overage 4 of 15 (26.7%) with 3 billable.
	assert.Equal(t, int64(19*445), summary.Pricing.TotalPrice)
	assert.Equal(t, pricingdomain.BandUpgradeRequired, summary.Overage.Status)
	assert.Equal(t, pricingdomain.ActionForceUpgrade, summary.Overage.Action)
	assert.Equal(t, int64(3*495), summary.Overage.OverageCost)
	assert.Equal(t, int64(19*445+3*495), summary.TotalDue)

	negative := -1
	_, err = svc.UpdateUsage(ctx, created.ID.String(), billingdomain.UpdateUsageRequest{CurrentSubEntities: &negative})
	assert.ErrorIs(t, err, billingdomain.ErrInvalidSchoolCount)
}

type stubLocker struct {
	grant    bool
	err      error
	keys     []string
	released []string
}

func (l *stubLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return "", false, l.err
	}
	return "token-" + key, l.grant, nil
}

func (l *stubLocker) Release(_ context.Context, key, token string) error {
	l.released = append(l.released, token)
	return nil
}

func TestService_UpdateUsageHonoursLock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, billingdomain.CreateRequest{Name: "Locked Diocese", Tier: "small", MaxSubEntities: 5})
	require.NoError(t, err)
	count := 6

	locker := &stubLocker{grant: false}
	svc.locker = locker
	_, err = svc.UpdateUsage(ctx, created.ID.String(), billingdomain.UpdateUsageRequest{CurrentSubEntities: &count})
	assert.ErrorIs(t, err, billingdomain.ErrConcurrentUpdate)
	assert.Empty(t, locker.released)

	locker.grant = true
	updated, err := svc.UpdateUsage(ctx, created.ID.String(), billingdomain.UpdateUsageRequest{CurrentSubEntities: &count})
	require.NoError(t, err)
	assert.Equal(t, 6, *updated.CurrentSubEntities)
	require.Len(t, locker.keys, 2)
	assert.Equal(t, "usage:"+created.ID.String(), locker.keys[1])
	assert.Equal(t, []string{"token-" + locker.keys[1]}, locker.released)

	svc.locker = &stubLocker{err: errors.New("dial tcp: connection refused")}
	_, err = svc.UpdateUsage(ctx, created.ID.String(), billingdomain.UpdateUsageRequest{CurrentSubEntities: &count})
	assert.ErrorIs(t, err, billingdomain.ErrLockUnavailable)
}

func TestService_PortfolioAndExport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	soon := portfolioNow.Add(5 * 24 * time.Hour)
	_, err := svc.Create(ctx, billingdomain.CreateRequest{
		Name: "Renewing", Tier: "small", MaxSubEntities: 4, BillingStatus: "active", LicenseExpiration: &soon,
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, billingdomain.CreateRequest{
		Name: "Unlicensed", Tier: "small", MaxSubEntities: 0, BillingStatus: "pending_contract",
	})
	require.NoError(t, err)

	report, err := svc.Portfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.EntityCount)
	assert.Equal(t, int64(4*470), report.TotalRevenue)
	require.Len(t, report.RenewalCandidates, 1)
	assert.Equal(t, 5, report.RenewalCandidates[0].DaysRemaining)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "Unlicensed", report.Skipped[0].Name)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportPortfolioCSV(ctx, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Renewing")
	assert.Contains(t, lines[1], "\"$1,880\"")
	assert.Contains(t, lines[1], ",active,Active,")
}
