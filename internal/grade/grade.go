// Package grade compares student answers against simulation-derived
// target values and selects the template's feedback message for the
// outcome.
package grade

import (
	"errors"
	"fmt"
	"math"

	"github.com/dverner/edusim/internal/template"
)

// Verdict classifies one submitted answer.
type Verdict string

const (
	Correct   Verdict = "correct"
	Partial   Verdict = "partial"
	Incorrect Verdict = "incorrect"
)

// partialBand widens the tolerance for the partial verdict. The source
// material never fixed this width; 3x is the documented choice here.
const partialBand = 3.0

// ErrFeedbackMissing indicates the template omits a feedback message
// for a verdict it can produce. Template authoring bug.
var ErrFeedbackMissing = errors.New("grade: feedback missing")

// Grade compares a submitted value with the expected one. A difference
// of exactly the tolerance still grades correct; within three times
// the tolerance grades partial.
func Grade(target template.TargetSpec, expected, submitted float64) Verdict {
	diff := math.Abs(submitted - expected)
	switch {
	case diff <= target.Tolerance:
		return Correct
	case diff <= partialBand*target.Tolerance:
		return Partial
	default:
		return Incorrect
	}
}

// FeedbackFor looks the verdict up in the template's feedback map.
func FeedbackFor(tpl *template.Template, v Verdict) (string, error) {
	msg, ok := tpl.Feedback[string(v)]
	if !ok {
		return "", fmt.Errorf("%w: template %s has no %q feedback", ErrFeedbackMissing, tpl.ID, v)
	}
	return msg, nil
}
