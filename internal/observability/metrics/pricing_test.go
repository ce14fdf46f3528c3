package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewPricingMetrics(registry, Config{ServiceName: "schoolbilling", Environment: "test"})
	require.NoError(t, err)

	m.ObserveQuote("medium", false)
	m.ObserveQuote("medium", true)
	m.ObserveQuote("", false)
	m.ObserveOverage("grace_period")
	m.ObserveQuoteError("unknown_tier")
	m.ObservePortfolio(20*time.Millisecond, 2)
	m.SetCatalogTiers(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.quotes.WithLabelValues("medium")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotes.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clamps.WithLabelValues("medium")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overageStatus.WithLabelValues("grace_period")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quoteErrors.WithLabelValues("unknown_tier")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.portfolioSkips))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.catalogTierSize))
}

func TestPricingMetrics_DuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPricingMetrics(registry, Config{})
	require.NoError(t, err)
	_, err = NewPricingMetrics(registry, Config{})
	assert.Error(t, err)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(registry, Config{Environment: "test"})
	require.NoError(t, err)

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/api/tiers", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tiers", nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/tiers", "200")))
}
