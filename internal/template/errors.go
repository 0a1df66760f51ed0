package template

import "errors"

// Domain errors for template loading.
var (
	// ErrNotFound indicates no template definition matches the id.
	ErrNotFound = errors.New("template: not found")

	// ErrMalformed indicates a structurally invalid template document.
	ErrMalformed = errors.New("template: malformed")
)
