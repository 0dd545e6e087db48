package siteimport

import "errors"

var (
	ErrImportNotFound    = errors.New("import not found")
	ErrSiteNotFound      = errors.New("site not found")
	ErrInvalidTransition = errors.New("invalid import status transition")
)

// ValidationError reports a source record that cannot be normalized into a
// canonical event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid record: " + e.Reason
	}
	return "invalid record: " + e.Field + ": " + e.Reason
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
