package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/schoolbilling/internal/billing/domain"
	"github.com/smallbiznis/schoolbilling/internal/format"
	obstracing "github.com/smallbiznis/schoolbilling/internal/observability/tracing"
)

type billingView struct {
	*billingdomain.BillingSummary
	TotalDueDisplay string `json:"total_due_display"`
}

func (s *Server) CreateEntity(c *gin.Context) {
	var req billingdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.TierContextKey, resp.Tier)
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListEntities(c *gin.Context) {
	var query billingdomain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.List(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Entities, "page_info": resp.PageInfo})
}

func (s *Server) GetEntity(c *gin.Context) {
	resp, err := s.billingSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.TierContextKey, resp.Tier)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateEntityUsage(c *gin.Context) {
	var req billingdomain.UpdateUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.CurrentSubEntities == nil && req.BillingStatus == nil {
		AbortWithError(c, newValidationError("request", "empty_update", "current_sub_entities or billing_status is required"))
		return
	}

	resp, err := s.billingSvc.UpdateUsage(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.TierContextKey, resp.Tier)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetEntityBilling(c *gin.Context) {
	resp, err := s.billingSvc.GetBilling(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.TierContextKey, resp.Tier)
	c.JSON(http.StatusOK, gin.H{"data": billingView{
		BillingSummary:  resp,
		TotalDueDisplay: format.Currency(resp.TotalDue),
	}})
}
