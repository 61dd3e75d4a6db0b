package settlement

import "errors"

var (
	// ErrConfigurationNotFound is returned when a customer has no active pricing configuration.
	ErrConfigurationNotFound = errors.New("settlement: pricing configuration not found")
	// ErrAmbiguousConfiguration is returned when more than one active configuration exists.
	ErrAmbiguousConfiguration = errors.New("settlement: ambiguous pricing configuration")
	// ErrNoMatchingBracket is returned when no tier contains the usage quantity.
	ErrNoMatchingBracket = errors.New("settlement: no matching bracket")
	// ErrUnsupportedPricingModel is returned for a price model the calculator does not know.
	ErrUnsupportedPricingModel = errors.New("settlement: unsupported pricing model")
	// ErrCalculation wraps internal failures during settlement evaluation.
	ErrCalculation = errors.New("settlement: calculation failed")

	// ErrNotFound is returned when a settlement record does not exist.
	ErrNotFound = errors.New("settlement: record not found")
	// ErrAlreadyApproved is returned when approving an approved record.
	ErrAlreadyApproved = errors.New("settlement: already approved")
	// ErrAlreadyRejected is returned when acting on a rejected record.
	ErrAlreadyRejected = errors.New("settlement: already rejected")
	// ErrInvalidTransition is returned for any other illegal status change.
	ErrInvalidTransition = errors.New("settlement: invalid status transition")
	// ErrReasonRequired is returned when rejecting without a reason.
	ErrReasonRequired = errors.New("settlement: rejection reason required")
	// ErrActorRequired is returned when a transition carries no actor.
	ErrActorRequired = errors.New("settlement: actor required")

	// ErrVersionConflict is returned when an optimistic update lost the race.
	ErrVersionConflict = errors.New("settlement: version conflict")
	// ErrDuplicatePeriod is returned when a record for the customer and period already exists.
	ErrDuplicatePeriod = errors.New("settlement: duplicate record for period")
	// ErrNilRecord is returned when persisting a nil record.
	ErrNilRecord = errors.New("settlement: nil record")
	// ErrUsageUnavailable is returned when the usage source has no data
	// for the customer and period.
	ErrUsageUnavailable = errors.New("settlement: usage unavailable")
)
