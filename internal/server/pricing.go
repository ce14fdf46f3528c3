package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/schoolbilling/internal/format"
	obstracing "github.com/smallbiznis/schoolbilling/internal/observability/tracing"
	pricingdomain "github.com/smallbiznis/schoolbilling/internal/pricing/domain"
)

type tierView struct {
	pricingdomain.TierDefinition
	PerSchoolDisplay string `json:"per_school_display"`
}

type programPricingRequest struct {
	Tier     string                        `json:"tier"`
	Selected int                           `json:"selected"`
	Override pricingdomain.ProgramOverride `json:"override"`
}

type validateProgramsRequest struct {
	Tier     string                        `json:"tier"`
	Programs []string                      `json:"programs"`
	Override pricingdomain.ProgramOverride `json:"override"`
}

type overageRequest struct {
	CurrentSchools int `json:"current_schools"`
	TierLimit      int `json:"tier_limit"`
}

type quoteView struct {
	*pricingdomain.PricingResult
	TotalDisplay   string `json:"total_display"`
	MonthlyDisplay string `json:"monthly_display"`
}

func (s *Server) ListTiers(c *gin.Context) {
	cat := s.pricingSvc.Catalog(c.Request.Context())

	tiers := cat.Tiers()
	views := make([]tierView, 0, len(tiers))
	for _, tier := range tiers {
		views = append(views, tierView{TierDefinition: tier, PerSchoolDisplay: format.Currency(tier.PerSchoolPrice)})
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"single_school_price": cat.SingleSchoolPrice(),
		"tiers":               views,
		"overage":             cat.Overage(),
		"discounts":           cat.DiscountRules(),
	}})
}

func (s *Server) RecommendTier(c *gin.Context) {
	schools, err := parseRequiredInt(c.Query("schools"))
	if err != nil {
		AbortWithError(c, newValidationError("schools", "invalid_schools", "schools must be an integer"))
		return
	}

	resp, err := s.pricingSvc.RecommendTier(c.Request.Context(), schools)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.TierContextKey, resp.Tier)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Quote(c *gin.Context) {
	var req pricingdomain.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req.TierID = strings.TrimSpace(req.TierID)
	if req.TierID == "" {
		AbortWithError(c, newValidationError("tier", "required", "tier is required"))
		return
	}

	resp, err := s.pricingSvc.Quote(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.TierContextKey, resp.Tier)
	c.JSON(http.StatusOK, gin.H{"data": quoteView{
		PricingResult:  resp,
		TotalDisplay:   format.Currency(resp.TotalPrice),
		MonthlyDisplay: format.Currency(resp.MonthlyEquivalent),
	}})
}

func (s *Server) ProgramPricing(c *gin.Context) {
	var req programPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tier := strings.TrimSpace(req.Tier)
	resp, err := s.pricingSvc.ProgramPricing(c.Request.Context(), tier, req.Selected, req.Override)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.TierContextKey, tier)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ValidatePrograms(c *gin.Context) {
	var req validateProgramsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tier := strings.TrimSpace(req.Tier)
	resp, err := s.pricingSvc.ValidatePrograms(c.Request.Context(), tier, req.Programs, req.Override)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.TierContextKey, tier)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CheckOverage(c *gin.Context) {
	var req overageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pricingSvc.CheckOverage(c.Request.Context(), req.CurrentSchools, req.TierLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
