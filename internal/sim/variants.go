package sim

import (
	"fmt"

	"github.com/dverner/edusim/internal/scene"
)

// A variant supplies the termination condition and target formulas for
// one simulation type. Template polymorphism is a tagged variant keyed
// by simulation_type, not inheritance: adding a domain means adding an
// entry here.
type variant struct {
	done   func(sc *scene.Scene, tr *Trajectory) bool
	target func(sc *scene.Scene, tr *Trajectory, id string) (float64, error)
}

var variants = map[string]variant{
	"projectile_motion": {done: projectileDone, target: projectileTarget},
	"free_fall":         {done: freeFallDone, target: freeFallTarget},
	"pendulum":          {done: neverDone, target: pendulumTarget},
}

func variantFor(simType string) (variant, error) {
	v, ok := variants[simType]
	if !ok {
		return variant{}, fmt.Errorf("unknown simulation type: %s", simType)
	}
	return v, nil
}

// SupportedTypes lists the registered simulation types, for CLI help
// and template validation messages.
func SupportedTypes() []string {
	out := make([]string, 0, len(variants))
	for name := range variants {
		out = append(out, name)
	}
	return out
}

// --- projectile_motion ---

// projectileDone fires on the first downward crossing of the launch
// height. Up to that point the flight is purely ballistic, so targets
// interpolate between the two ticks around the crossing.
func projectileDone(sc *scene.Scene, tr *Trajectory) bool {
	n := len(tr.Samples)
	if n < 2 {
		return false
	}
	prev, cur := tr.Samples[n-2], tr.Samples[n-1]
	return cur.VY < 0 && cur.Y <= sc.Launch.Y && prev.Y > sc.Launch.Y
}

func projectileTarget(sc *scene.Scene, tr *Trajectory, id string) (float64, error) {
	switch id {
	case "max_height":
		maxY := sc.Launch.Y
		for _, s := range tr.Samples {
			if s.Y > maxY {
				maxY = s.Y
			}
		}
		return maxY - sc.Launch.Y, nil
	case "range":
		cross, ok := crossingDown(tr, sc.Launch.Y)
		if !ok {
			return 0, fmt.Errorf("trajectory never returned to launch height")
		}
		return cross.X - sc.Launch.X, nil
	case "flight_time":
		cross, ok := crossingDown(tr, sc.Launch.Y)
		if !ok {
			return 0, fmt.Errorf("trajectory never returned to launch height")
		}
		return cross.T, nil
	default:
		return 0, fmt.Errorf("no projectile formula for target %s", id)
	}
}

// --- free_fall ---

func freeFallDone(sc *scene.Scene, tr *Trajectory) bool {
	return tr.Last().Y <= sc.ContactY
}

func freeFallTarget(sc *scene.Scene, tr *Trajectory, id string) (float64, error) {
	cross, ok := crossingDown(tr, sc.ContactY)
	if !ok {
		return 0, fmt.Errorf("body never reached the ground")
	}
	switch id {
	case "fall_time":
		return cross.T, nil
	case "final_speed":
		// Contact impulses can land in the tick straddling the
		// crossing, so the interpolated velocity there is unreliable.
		// Free fall accelerates monotonically until impact, which makes
		// the peak recorded speed the impact speed.
		speed := 0.0
		for _, s := range tr.Samples {
			if v := s.Speed(); v > speed {
				speed = v
			}
		}
		return speed, nil
	default:
		return 0, fmt.Errorf("no free-fall formula for target %s", id)
	}
}

// --- pendulum ---

func neverDone(*scene.Scene, *Trajectory) bool { return false }

// pendulumTarget measures the period from successive zero crossings of
// the bob's horizontal displacement around the anchor: crossings are
// half a period apart.
func pendulumTarget(sc *scene.Scene, tr *Trajectory, id string) (float64, error) {
	if id != "period" {
		return 0, fmt.Errorf("no pendulum formula for target %s", id)
	}

	var crossings []float64
	for i := 1; i < len(tr.Samples); i++ {
		prev := tr.Samples[i-1].X - sc.Anchor.X
		cur := tr.Samples[i].X - sc.Anchor.X
		if prev == 0 || prev*cur >= 0 {
			continue
		}
		frac := prev / (prev - cur)
		crossings = append(crossings, tr.Samples[i-1].T+frac*Tick)
	}
	if len(crossings) < 3 {
		return 0, fmt.Errorf("too few swings recorded to measure a period")
	}

	total := crossings[len(crossings)-1] - crossings[0]
	halves := float64(len(crossings) - 1)
	return 2 * total / halves, nil
}

// crossingDown finds the first sample pair straddling level from above
// and returns the linearly interpolated state at the crossing.
func crossingDown(tr *Trajectory, level float64) (Sample, bool) {
	for i := 1; i < len(tr.Samples); i++ {
		prev, cur := tr.Samples[i-1], tr.Samples[i]
		if prev.Y > level && cur.Y <= level {
			frac := (prev.Y - level) / (prev.Y - cur.Y)
			return Sample{
				T:  prev.T + frac*(cur.T-prev.T),
				X:  prev.X + frac*(cur.X-prev.X),
				Y:  level,
				VX: prev.VX + frac*(cur.VX-prev.VX),
				VY: prev.VY + frac*(cur.VY-prev.VY),
			}, true
		}
	}
	return Sample{}, false
}
