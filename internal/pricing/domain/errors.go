package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCatalog         = errors.New("invalid_catalog")
	ErrUnknownTier            = errors.New("unknown_tier")
	ErrDivisionByZero         = errors.New("division_by_zero")
	ErrInvalidSchoolCount     = errors.New("invalid_school_count")
	ErrInvalidProgramCount    = errors.New("invalid_program_count")
	ErrInvalidProgram         = errors.New("invalid_program")
	ErrInvalidMultiYear       = errors.New("invalid_multi_year")
	ErrInvalidOverride        = errors.New("invalid_override")
	ErrEmptySelection         = errors.New("empty_selection")
	ErrTierProgramCapExceeded = errors.New("tier_program_cap_exceeded")
)

// ProgramCapError reports a selection above the tier's program cap together
// with what the extra programs would cost, so callers can offer an upgrade.
type ProgramCapError struct {
	TierID        string
	Selected      int
	Max           int
	ExtraPrograms int
	ExtraCost     int64
}

func (e *ProgramCapError) Error() string {
	return fmt.Sprintf("%s: tier %q allows %d programs, %d selected", ErrTierProgramCapExceeded, e.TierID, e.Max, e.Selected)
}

func (e *ProgramCapError) Unwrap() error { return ErrTierProgramCapExceeded }
