package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	billingdomain "github.com/smallbiznis/schoolbilling/internal/billing/domain"
	pricingdomain "github.com/smallbiznis/schoolbilling/internal/pricing/domain"
	"github.com/smallbiznis/schoolbilling/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{pricingdomain.ErrUnknownTier, http.StatusBadRequest, "validation_error"},
		{fmt.Errorf("list: %w", pagination.ErrInvalidPageToken), http.StatusBadRequest, "validation_error"},
		{&pricingdomain.ProgramCapError{TierID: "small", Selected: 4, Max: 2}, http.StatusUnprocessableEntity, "tier_program_cap_exceeded"},
		{pricingdomain.ErrDivisionByZero, http.StatusUnprocessableEntity, "division_by_zero"},
		{billingdomain.ErrDuplicateEntity, http.StatusConflict, "conflict"},
		{billingdomain.ErrConcurrentUpdate, http.StatusConflict, "conflict"},
		{billingdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{fmt.Errorf("%w: dial tcp", billingdomain.ErrLockUnavailable), http.StatusServiceUnavailable, "service_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
		})
	}
}

func TestMapErrorValidationCodes(t *testing.T) {
	_, payload := mapError(fmt.Errorf("quote: %w", pricingdomain.ErrUnknownTier))
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "unknown_tier", payload.Errors[0].Code)
		assert.Equal(t, "tier", payload.Errors[0].Field)
	}

	_, payload = mapError(billingdomain.ErrInvalidBillingStatus)
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "invalid_billing_status", payload.Errors[0].Code)
		assert.Equal(t, "billing_status", payload.Errors[0].Field)
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(billingdomain.ErrNotFound)
	assert.Equal(t, "client", kind)
	assert.Equal(t, "not_found", code)

	kind, code = classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "server", kind)
	assert.Equal(t, "internal_error", code)
}
