package render

import "fmt"

// MissingVariableError identifies the placeholder that aborted a render.
type MissingVariableError struct {
	Placeholder string
	Reason      string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing variable %q: %s", e.Placeholder, e.Reason)
}
