package audit

import (
	"github.com/majorcontext/restpcv/internal/log"
	"github.com/majorcontext/restpcv/internal/validator"
)

// Outcome values stored in ValidationData.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// ValidationDataFrom converts a finished attempt into audit data.
func ValidationDataFrom(a validator.Attempt) ValidationData {
	d := ValidationData{
		AttemptID:  a.ID,
		Username:   a.Username,
		Outcome:    a.Outcome.String(),
		StatusCode: a.StatusCode,
		DurationMs: a.Duration.Milliseconds(),
	}
	if a.Err != nil {
		d.Outcome = OutcomeError
		d.Kind = string(validator.KindOf(a.Err))
		d.Error = a.Err.Error()
	}
	return d
}

// Observer returns a validator.Observer that appends every attempt to s.
// Append failures are logged and do not affect the validation result.
func Observer(s *Store) validator.Observer {
	return func(a validator.Attempt) {
		if _, err := s.AppendValidation(ValidationDataFrom(a)); err != nil {
			log.Warn("failed to record validation attempt", "attempt", a.ID, "error", err)
		}
	}
}
