package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/schoolbilling/internal/format"
	"github.com/smallbiznis/schoolbilling/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Server) GetPortfolio(c *gin.Context) {
	resp, err := s.billingSvc.Portfolio(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "total_revenue_display": format.Currency(resp.TotalRevenue)})
}

// ExportPortfolioCSV streams one row per priced entity. Once the header is
// written a failure can only be logged.
func (s *Server) ExportPortfolioCSV(c *gin.Context) {
	ctx := c.Request.Context()
	filename := fmt.Sprintf("portfolio-%s.csv", s.now().Format("20060102"))

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if err := s.billingSvc.ExportPortfolioCSV(ctx, c.Writer); err != nil {
		if !c.Writer.Written() {
			c.Header("Content-Disposition", "")
			AbortWithError(c, err)
			return
		}
		logger.FromContext(ctx).Error("portfolio export failed mid-stream", zap.Error(err))
	}
}
