package scenario

import (
	"errors"
	"fmt"
)

// ErrEmptyScript is returned when a script has no steps.
var ErrEmptyScript = errors.New("scenario: script has no steps")

// ConfigurationError reports an interactive step whose task cannot be
// mounted. It is recovered locally by rendering a placeholder.
type ConfigurationError struct {
	StepID int
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("scenario: step %d: %s", e.StepID, e.Reason)
}
