package service

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	billingdomain "github.com/smallbiznis/schoolbilling/internal/billing/domain"
	"github.com/smallbiznis/schoolbilling/internal/format"
)

var summaryCSVHeader = []string{
	"entity_id",
	"name",
	"tier",
	"billing_status",
	"billing_status_label",
	"schools",
	"base_price",
	"program_cost",
	"discount",
	"total_price",
	"overage_status",
	"overage_cost",
	"total_due",
	"total_due_display",
}

// WriteSummariesCSV writes one flattened row per summary.
func WriteSummariesCSV(w io.Writer, summaries []billingdomain.BillingSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryCSVHeader); err != nil {
		return err
	}
	for _, s := range summaries {
		row := []string{
			s.EntityID.String(),
			s.Name,
			s.Tier,
			string(s.BillingStatus),
			s.BillingStatus.Label(),
			strconv.Itoa(s.Pricing.NumSchools),
			strconv.FormatInt(s.Pricing.BasePrice, 10),
			strconv.FormatInt(s.Pricing.ProgramCost, 10),
			strconv.FormatInt(s.Pricing.Discounts.Amount, 10),
			strconv.FormatInt(s.Pricing.TotalPrice, 10),
			string(s.Overage.Status),
			strconv.FormatInt(s.Overage.OverageCost, 10),
			strconv.FormatInt(s.TotalDue, 10),
			format.Currency(s.TotalDue),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Service) ExportPortfolioCSV(ctx context.Context, w io.Writer) error {
	report, err := s.Portfolio(ctx)
	if err != nil {
		return err
	}
	return WriteSummariesCSV(w, report.Summaries)
}
