package pricing

import (
	"context"

	"github.com/smallbiznis/schoolbilling/internal/config"
	"github.com/smallbiznis/schoolbilling/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/schoolbilling/internal/pricing/domain"
	"github.com/smallbiznis/schoolbilling/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(func(h *config.CatalogHolder) pricingdomain.CatalogSource { return h }),
	fx.Provide(service.New),
	fx.Invoke(observeCatalogReloads),
)

func observeCatalogReloads(h *config.CatalogHolder, m *metrics.Metrics, pm *metrics.PricingMetrics) {
	h.OnReload(func(cat *pricingdomain.Catalog, err error) {
		if err != nil {
			m.RecordCatalogReload(context.Background(), "rejected")
			return
		}
		m.RecordCatalogReload(context.Background(), "applied")
		pm.SetCatalogTiers(len(cat.Tiers()))
	})
}
