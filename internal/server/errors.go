package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/schoolbilling/internal/billing/domain"
	pricingdomain "github.com/smallbiznis/schoolbilling/internal/pricing/domain"
	"github.com/smallbiznis/schoolbilling/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
	Details any               `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

type programCapDetails struct {
	Tier          string `json:"tier"`
	Selected      int    `json:"selected"`
	MaxPrograms   int    `json:"max_programs"`
	ExtraPrograms int    `json:"extra_programs"`
	ExtraCost     int64  `json:"extra_cost"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var capErr *pricingdomain.ProgramCapError
	if errors.As(err, &capErr) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "tier_program_cap_exceeded",
			Message: capErr.Error(),
			Details: programCapDetails{
				Tier:          capErr.TierID,
				Selected:      capErr.Selected,
				MaxPrograms:   capErr.Max,
				ExtraPrograms: capErr.ExtraPrograms,
				ExtraCost:     capErr.ExtraCost,
			},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isUnprocessableError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    err.Error(),
			Message: unprocessableMessage(err),
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, billingdomain.ErrDuplicateEntity),
		errors.Is(err, billingdomain.ErrConcurrentUpdate):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, billingdomain.ErrLockUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code attached to request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	switch {
	case status >= http.StatusInternalServerError:
		return "server", code
	default:
		return "client", code
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, pricingdomain.ErrInvalidSchoolCount),
		errors.Is(err, pricingdomain.ErrInvalidProgramCount),
		errors.Is(err, pricingdomain.ErrInvalidProgram),
		errors.Is(err, pricingdomain.ErrInvalidMultiYear),
		errors.Is(err, pricingdomain.ErrInvalidOverride),
		errors.Is(err, pricingdomain.ErrEmptySelection),
		errors.Is(err, pricingdomain.ErrUnknownTier):
		return true
	case errors.Is(err, billingdomain.ErrInvalidID),
		errors.Is(err, billingdomain.ErrInvalidName),
		errors.Is(err, billingdomain.ErrInvalidEntityType),
		errors.Is(err, billingdomain.ErrInvalidBillingStatus),
		errors.Is(err, billingdomain.ErrInvalidSchoolCount),
		errors.Is(err, billingdomain.ErrInvalidTier),
		errors.Is(err, billingdomain.ErrInvalidMultiYear),
		errors.Is(err, billingdomain.ErrInvalidExpiration):
		return true
	default:
		return false
	}
}

// isUnprocessableError covers well-formed requests the pricing rules cannot price.
func isUnprocessableError(err error) bool {
	return errors.Is(err, pricingdomain.ErrDivisionByZero)
}

func unprocessableMessage(err error) string {
	if errors.Is(err, pricingdomain.ErrDivisionByZero) {
		return "tier limit must be greater than zero"
	}
	return "unprocessable request"
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, billingdomain.ErrDuplicateEntity):
		return "an entity with this name already exists"
	case errors.Is(err, billingdomain.ErrConcurrentUpdate):
		return "entity is being updated, retry shortly"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, billingdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, pricingdomain.ErrUnknownTier):
		return "unknown_tier"
	default:
		return rootCode(err)
	}
}

// rootCode unwraps to the sentinel so wrapped messages never leak into codes.
func rootCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "unknown_tier":
		return "tier"
	case "empty_selection":
		return "programs"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "unknown_tier":
		return "unknown tier"
	case "empty_selection":
		return "at least one program must be selected"
	default:
		return "invalid value"
	}
}
