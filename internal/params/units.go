package params

import (
	"fmt"
	"math"
	"strings"
)

// unitDef maps a unit symbol to its dimension and its factor to that
// dimension's base unit (m, kg, s, m/s, m/s^2, rad).
type unitDef struct {
	dimension string
	factor    float64
}

var unitTable = map[string]unitDef{
	"m":       {"length", 1.0},
	"cm":      {"length", 0.01},
	"mm":      {"length", 0.001},
	"km":      {"length", 1000.0},
	"kg":      {"mass", 1.0},
	"g":       {"mass", 0.001},
	"s":       {"time", 1.0},
	"ms":      {"time", 0.001},
	"min":     {"time", 60.0},
	"m/s":     {"velocity", 1.0},
	"km/h":    {"velocity", 1.0 / 3.6},
	"m/s^2":   {"acceleration", 1.0},
	"m/s2":    {"acceleration", 1.0},
	"m/s²":    {"acceleration", 1.0},
	"rad":     {"angle", 1.0},
	"radians": {"angle", 1.0},
	"deg":     {"angle", math.Pi / 180},
	"degrees": {"angle", math.Pi / 180},
	"°":       {"angle", math.Pi / 180},
	"n":       {"force", 1.0},
}

func lookupUnit(unit string) (unitDef, bool) {
	d, ok := unitTable[strings.ToLower(strings.TrimSpace(unit))]
	return d, ok
}

// ConvertUnit converts value from one unit to another. An empty source
// unit is taken to already be in the target unit. Unknown units or a
// dimension mismatch yield an error; validation maps that to a rejected
// status rather than failing.
func ConvertUnit(value float64, from, to string) (float64, error) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" || strings.EqualFold(from, to) {
		return value, nil
	}

	fromDef, ok := lookupUnit(from)
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", from)
	}
	toDef, ok := lookupUnit(to)
	if !ok {
		return 0, fmt.Errorf("no conversion from %q to unknown unit %q", from, to)
	}
	if fromDef.dimension != toDef.dimension {
		return 0, fmt.Errorf("cannot convert %s (%s) to %s (%s)", from, fromDef.dimension, to, toDef.dimension)
	}
	return value * fromDef.factor / toDef.factor, nil
}
