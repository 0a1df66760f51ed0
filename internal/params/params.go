// Package params reconciles LLM-extracted parameter candidates against
// a template's declared schema. Validation is a total function: it
// always yields a complete, in-range parameter set.
package params

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/dverner/edusim/internal/template"
)

// Status describes how a validated value was obtained.
type Status string

const (
	StatusOK        Status = "ok"        // extracted value used as-is
	StatusClamped   Status = "clamped"   // extracted value clamped to a range bound
	StatusDefaulted Status = "defaulted" // absent from the candidate, template default used
	StatusRejected  Status = "rejected"  // unconvertible unit, template default used
)

// CandidateValue is one unvalidated extracted parameter.
type CandidateValue struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Candidate is the raw extraction output: parameter name -> value+unit.
type Candidate map[string]CandidateValue

// Value is one schema-complete, unit-normalized parameter.
type Value struct {
	Value  float64
	Status Status
}

// Validated holds the complete parameter set for one template. Every
// parameter the template declares is present, within [min, max].
type Validated struct {
	Values   map[string]Value
	Warnings []string
}

// Get returns the validated value for name.
func (v Validated) Get(name string) (float64, bool) {
	val, ok := v.Values[name]
	return val.Value, ok
}

// Map returns a plain name -> value view.
func (v Validated) Map() map[string]float64 {
	out := make(map[string]float64, len(v.Values))
	for name, val := range v.Values {
		out[name] = val.Value
	}
	return out
}

// Validate reconciles a candidate set against the template schema. It
// never fails: missing parameters default, out-of-range values clamp,
// unconvertible units reject to the default, and names the template
// does not declare are dropped with a warning.
func Validate(tpl *template.Template, cand Candidate) Validated {
	out := Validated{Values: make(map[string]Value, len(tpl.Parameters.Names))}

	for _, name := range tpl.Parameters.Names {
		spec := tpl.Parameters.Specs[name]
		cv, present := cand[name]
		if !present {
			out.Values[name] = Value{Value: spec.Default, Status: StatusDefaulted}
			continue
		}

		val, err := ConvertUnit(cv.Value, cv.Unit, spec.Unit)
		if err != nil {
			out.warnf("parameter %s: %v, using default %g", name, err, spec.Default)
			out.Values[name] = Value{Value: spec.Default, Status: StatusRejected}
			continue
		}

		switch {
		case math.IsNaN(val) || math.IsInf(val, 0):
			out.warnf("parameter %s: non-finite value, using default %g", name, spec.Default)
			out.Values[name] = Value{Value: spec.Default, Status: StatusRejected}
		case val < spec.Min:
			out.Values[name] = Value{Value: spec.Min, Status: StatusClamped}
		case val > spec.Max:
			out.Values[name] = Value{Value: spec.Max, Status: StatusClamped}
		default:
			out.Values[name] = Value{Value: val, Status: StatusOK}
		}
	}

	for name := range cand {
		if _, declared := tpl.Parameters.Specs[name]; !declared {
			out.warnf("dropping parameter %s: not declared by template %s", name, tpl.ID)
		}
	}

	for _, w := range out.Warnings {
		slog.Warn("validation", "template", tpl.ID, "detail", w)
	}
	return out
}

// Defaults returns the validated set a template produces with an empty
// candidate: every parameter at its default, status defaulted.
func Defaults(tpl *template.Template) Validated {
	return Validate(tpl, nil)
}

func (v *Validated) warnf(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
