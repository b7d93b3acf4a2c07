/*
errors.go - Error types for credit accounting

ERROR CATEGORIES:
  1. Not found - only returned where the caller explicitly asked for strictness
     (strict updates, catalog edits). Plain lookups return nil instead.
  2. Validation - malformed periods, negative counts, unknown statuses
  3. Uniqueness - a natural key (client+month, engagement service+month,
     client+type+month) already exists; raised by stores

USAGE:
  if errors.Is(err, credits.ErrClientMonthNotFound) {
      ...
  }
*/
package credits

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrClientMonthNotFound is returned by strict updates on an unknown ledger id.
	ErrClientMonthNotFound = errors.New("client month not found")

	// ErrOutputTypeNotFound is returned when editing an unknown output type.
	ErrOutputTypeNotFound = errors.New("output type not found")

	// ErrInvalidPeriod is returned for a month outside 1-12 or a nonsensical year.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidCount is returned when a deliverable count would become negative.
	ErrInvalidCount = errors.New("invalid output count")

	// ErrInvalidStatus is returned for a ledger status other than active/inactive.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidCredits is returned for negative credit or price values.
	ErrInvalidCredits = errors.New("invalid credit value")

	// ErrMissingField is returned when a required name or id is blank.
	ErrMissingField = errors.New("required field missing")

	// ErrDuplicateClientMonth is raised by a store when a ledger row for the same
	// client+month or engagement service+month already exists.
	ErrDuplicateClientMonth = errors.New("duplicate client month")

	// ErrDuplicateOutput is raised by a store when an output row for the same
	// client+type+month already exists.
	ErrDuplicateOutput = errors.New("duplicate output")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientMonthNotFound) ||
		errors.Is(err, ErrOutputTypeNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidCount) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidCredits) ||
		errors.Is(err, ErrMissingField)
}

// IsConflict returns true if the error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateClientMonth) ||
		errors.Is(err, ErrDuplicateOutput)
}
