package schedule

import (
	"errors"
	"fmt"

	"github.com/slotbookhq/slotbook/services/booking-service/internal/model"
)

var (
	// ErrValidation marks client-input failures: out-of-range template
	// bounds, bad horizons, unknown timezones, duration mismatches.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks references to rows that do not exist or belong
	// to a different provider.
	ErrNotFound = errors.New("not found")

	ErrDurationMismatch = fmt.Errorf("%w: window length does not match appointment type duration", ErrValidation)
	ErrNoOpenWindow     = fmt.Errorf("%w: no open availability window for the requested time", ErrValidation)
)

// OverlapError reports a template write that would clash with an existing
// template of the same provider.
type OverlapError struct {
	Conflicting model.Template
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("clashing periods: template %s covers [%d, %d)",
		e.Conflicting.ID, e.Conflicting.FromMinute, e.Conflicting.ToMinute)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
