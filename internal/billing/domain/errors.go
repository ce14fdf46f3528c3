package domain

import "errors"

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidEntityType    = errors.New("invalid_entity_type")
	ErrInvalidBillingStatus = errors.New("invalid_billing_status")
	ErrInvalidSchoolCount   = errors.New("invalid_school_count")
	ErrInvalidTier          = errors.New("invalid_tier")
	ErrInvalidMultiYear     = errors.New("invalid_multi_year")
	ErrInvalidExpiration    = errors.New("invalid_license_expiration")
	ErrDuplicateEntity      = errors.New("duplicate_entity")
	ErrNotFound             = errors.New("not_found")
	ErrConcurrentUpdate     = errors.New("concurrent_update")
	ErrLockUnavailable      = errors.New("lock_unavailable")
)
