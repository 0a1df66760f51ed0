package extract

import "errors"

// Domain errors for parameter extraction. Both are recoverable by the
// caller: re-prompt on ErrParse, fall back to template defaults on
// ErrUnavailable.
var (
	// ErrParse indicates the model reply did not match the documented
	// response schema.
	ErrParse = errors.New("extract: unparseable model response")

	// ErrUnavailable indicates the model itself could not be invoked.
	ErrUnavailable = errors.New("extract: model unavailable")
)
