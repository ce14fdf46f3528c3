package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PricingMetrics captures pricing engine signals scraped from /metrics.
type PricingMetrics struct {
	quotes          *prometheus.CounterVec
	quoteErrors     *prometheus.CounterVec
	clamps          *prometheus.CounterVec
	overageStatus   *prometheus.CounterVec
	portfolioBuild  prometheus.Histogram
	portfolioSkips  prometheus.Counter
	catalogTierSize prometheus.Gauge
}

// NewPricingMetrics registers pricing collectors on registerer.
func NewPricingMetrics(registerer prometheus.Registerer, cfg Config) (*PricingMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	m := &PricingMetrics{
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "schoolbilling_quotes_total",
			Help:        "Price quotes computed by tier.",
			ConstLabels: constLabels,
		}, []string{"tier"}),
		quoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "schoolbilling_quote_errors_total",
			Help:        "Price quotes rejected by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		clamps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "schoolbilling_quote_clamped_total",
			Help:        "Quotes whose discounts exceeded the subtotal and were floored at zero.",
			ConstLabels: constLabels,
		}, []string{"tier"}),
		overageStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "schoolbilling_overage_status_total",
			Help:        "Overage classifications by band.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		portfolioBuild: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "schoolbilling_portfolio_build_seconds",
			Help:        "Portfolio rollup latency.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}),
		portfolioSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "schoolbilling_portfolio_skipped_entities_total",
			Help:        "Entities left out of a portfolio rollup because they could not be priced.",
			ConstLabels: constLabels,
		}),
		catalogTierSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "schoolbilling_catalog_tiers",
			Help:        "Number of tiers in the active pricing catalog.",
			ConstLabels: constLabels,
		}),
	}

	collectors := []prometheus.Collector{
		m.quotes, m.quoteErrors, m.clamps, m.overageStatus,
		m.portfolioBuild, m.portfolioSkips, m.catalogTierSize,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveQuote records a computed quote.
func (m *PricingMetrics) ObserveQuote(tier string, clamped bool) {
	if m == nil {
		return
	}
	tier = normalizeLabel(tier)
	m.quotes.WithLabelValues(tier).Inc()
	if clamped {
		m.clamps.WithLabelValues(tier).Inc()
	}
}

// ObserveQuoteError records a rejected quote.
func (m *PricingMetrics) ObserveQuoteError(reason string) {
	if m == nil {
		return
	}
	m.quoteErrors.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveOverage records an overage classification.
func (m *PricingMetrics) ObserveOverage(status string) {
	if m == nil {
		return
	}
	m.overageStatus.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObservePortfolio records a portfolio rollup.
func (m *PricingMetrics) ObservePortfolio(elapsed time.Duration, skipped int) {
	if m == nil {
		return
	}
	m.portfolioBuild.Observe(elapsed.Seconds())
	if skipped > 0 {
		m.portfolioSkips.Add(float64(skipped))
	}
}

// SetCatalogTiers reports the size of the active catalog.
func (m *PricingMetrics) SetCatalogTiers(n int) {
	if m == nil {
		return
	}
	m.catalogTierSize.Set(float64(n))
}

func constLabelsFor(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "schoolbilling"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
