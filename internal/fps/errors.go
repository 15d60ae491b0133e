package fps

import "errors"

var (
	// ErrAxisMismatch is returned when sample and library axes differ and harmonisation is off.
	ErrAxisMismatch = errors.New("fps: sample and library 2theta axes differ (enable harmonise)")

	// ErrUnknownReference is returned when a requested reference is not in the library.
	ErrUnknownReference = errors.New("fps: reference not in library")

	// ErrNoReferences is returned when no reference patterns remain to fit.
	ErrNoReferences = errors.New("fps: no reference patterns selected")

	// ErrStandardRequired is returned when an option needs an internal standard that was not named.
	ErrStandardRequired = errors.New("fps: internal standard required")

	// ErrStandardNotSelected is returned when the internal standard is absent from the selected references.
	ErrStandardNotSelected = errors.New("fps: internal standard not among selected references")

	// ErrStandardNotDetected is returned when the internal standard fits with a non-positive coefficient.
	ErrStandardNotDetected = errors.New("fps: internal standard not detected in sample")

	// ErrNonPositiveTotal is returned when signed coefficients sum to zero or less after RIR scaling.
	ErrNonPositiveTotal = errors.New("fps: RIR-scaled coefficients do not sum to a positive total")

	// ErrInvalidConcentration is returned for a standard concentration outside (0, 100).
	ErrInvalidConcentration = errors.New("fps: concentration must be between 0 and 100")

	// ErrInvalidOption is returned for malformed fitting options.
	ErrInvalidOption = errors.New("fps: invalid option")

	// ErrSingular is returned when the reference patterns are linearly dependent.
	ErrSingular = errors.New("fps: reference patterns are linearly dependent")

	// ErrNotConverged is returned when the active-set solver exceeds its iteration budget.
	ErrNotConverged = errors.New("fps: solver did not converge")
)
