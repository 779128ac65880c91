package dialogue

import "fmt"

// ValidationFailure reports a candidate line rejected by the Validator.
type ValidationFailure struct {
	Persona string
	Reason  Reason
	Detail  string
}

func (e *ValidationFailure) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: response rejected (%s)", e.Persona, e.Reason)
	}
	return fmt.Sprintf("%s: response rejected (%s): %s", e.Persona, e.Reason, e.Detail)
}

// CompletionError wraps a failed text completion call.
type CompletionError struct {
	Persona string
	Attempt int
	Err     error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s: completion attempt %d failed: %v", e.Persona, e.Attempt, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }
