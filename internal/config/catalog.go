package config

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/schoolbilling/internal/pricing/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const catalogKey = "pricing"

// CatalogHolder keeps the active pricing catalog. Readers take one immutable
// snapshot per calculation; reloads swap the pointer atomically.
type CatalogHolder struct {
	current atomic.Pointer[domain.Catalog]
	source  string
	log     *zap.Logger
	v       *viper.Viper

	mu    sync.Mutex
	hooks []func(*domain.Catalog, error)
}

// NewCatalogHolder reads pricing.yml (or PRICING_CONFIG_PATH) and starts
// watching it. A missing file falls back to the default catalog.
func NewCatalogHolder(cfg Config, log *zap.Logger) (*CatalogHolder, error) {
	return newCatalogHolder(cfg.PricingConfigPath, log, true)
}

// NewStaticCatalogHolder wraps a fixed catalog. It never reloads.
func NewStaticCatalogHolder(cat *domain.Catalog) *CatalogHolder {
	h := &CatalogHolder{source: "static", log: zap.NewNop()}
	h.current.Store(cat)
	return h
}

func newCatalogHolder(path string, log *zap.Logger, watch bool) (*CatalogHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("pricing.catalog")

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pricing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/schoolbilling")
		v.AddConfigPath(".")
	}
	setCatalogDefaults(v, domain.DefaultCatalogSpec())

	holder := &CatalogHolder{source: "defaults", log: log, v: v}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info("pricing config not found, using default catalog")
		watch = false
	} else {
		holder.source = v.ConfigFileUsed()
	}

	cat, err := decodeCatalog(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cat)
	log.Info("pricing catalog loaded",
		zap.String("source", holder.source),
		zap.Int("tiers", len(cat.Tiers())),
	)

	if watch {
		v.OnConfigChange(func(e fsnotify.Event) {
			holder.reload(e.Name)
		})
		v.WatchConfig()
	}

	return holder, nil
}

// Catalog returns the current catalog snapshot.
func (h *CatalogHolder) Catalog() *domain.Catalog {
	return h.current.Load()
}

// Source names where the active catalog came from.
func (h *CatalogHolder) Source() string {
	return h.source
}

// OnReload registers fn to run after every reload attempt. err is non-nil
// when the new file was rejected and the previous catalog kept.
func (h *CatalogHolder) OnReload(fn func(*domain.Catalog, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, fn)
}

func (h *CatalogHolder) reload(name string) bool {
	cat, err := decodeCatalog(h.v)
	if err != nil {
		h.log.Warn("invalid pricing config ignored", zap.String("file", name), zap.Error(err))
		h.notify(nil, err)
		return false
	}
	h.current.Store(cat)
	h.log.Info("pricing catalog reloaded", zap.String("file", name), zap.Int("tiers", len(cat.Tiers())))
	h.notify(cat, nil)
	return true
}

func (h *CatalogHolder) notify(cat *domain.Catalog, err error) {
	h.mu.Lock()
	hooks := append([]func(*domain.Catalog, error){}, h.hooks...)
	h.mu.Unlock()
	for _, fn := range hooks {
		fn(cat, err)
	}
}

func decodeCatalog(v *viper.Viper) (*domain.Catalog, error) {
	// Unmarshal (not UnmarshalKey) so nested defaults merge with a partial file.
	var settings struct {
		Pricing domain.CatalogSpec `mapstructure:"pricing"`
	}
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}
	return domain.NewCatalog(settings.Pricing)
}

func setCatalogDefaults(v *viper.Viper, spec domain.CatalogSpec) {
	key := func(parts ...string) string {
		return catalogKey + "." + strings.Join(parts, ".")
	}
	v.SetDefault(key("singleSchoolPrice"), spec.SingleSchoolPrice)
	v.SetDefault(key("tiers"), spec.Tiers)

	v.SetDefault(key("overage", "graceSchools"), spec.Overage.GraceSchools)
	v.SetDefault(key("overage", "softLimitPercent"), spec.Overage.SoftLimitPercent)
	v.SetDefault(key("overage", "hardLimitPercent"), spec.Overage.HardLimitPercent)
	v.SetDefault(key("overage", "overageRate"), spec.Overage.OverageRate)
	v.SetDefault(key("overage", "enforceHardLimit"), spec.Overage.EnforceHardLimit)

	v.SetDefault(key("discounts", "foundingRate"), spec.Discounts.FoundingRate)
	v.SetDefault(key("discounts", "referralRate"), spec.Discounts.ReferralRate)
	v.SetDefault(key("discounts", "multiYearRatePerYear"), spec.Discounts.MultiYearRatePerYear)
	v.SetDefault(key("discounts", "multiYearMaxExtraYears"), spec.Discounts.MultiYearMaxExtraYears)
}
