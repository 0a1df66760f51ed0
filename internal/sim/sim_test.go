package sim_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverner/edusim/internal/params"
	"github.com/dverner/edusim/internal/scene"
	"github.com/dverner/edusim/internal/sim"
	"github.com/dverner/edusim/internal/template"
)

func buildScene(t *testing.T, id string, cand params.Candidate) *scene.Scene {
	t.Helper()
	tpl, err := template.NewStore("").Load(id)
	require.NoError(t, err)
	sc, err := scene.Build(tpl, params.Validate(tpl, cand))
	require.NoError(t, err)
	return sc
}

func runScene(t *testing.T, sc *scene.Scene) (*sim.Trajectory, map[string]float64) {
	t.Helper()
	tr, err := sim.Run(context.Background(), sc, sim.DefaultConfig())
	require.NoError(t, err)
	targets, err := sim.ComputeTargets(sc, tr)
	require.NoError(t, err)
	return tr, targets
}

// Closed-form ballistic solutions within the target tolerances anchor
// the engine-driven results.
func TestProjectileAgainstClosedForm(t *testing.T) {
	const (
		v     = 20.0
		theta = 45.0 * math.Pi / 180
		g     = 9.8
	)
	sc := buildScene(t, "projectile_motion", params.Candidate{
		"initial_velocity": {Value: v, Unit: "m/s"},
		"launch_angle":     {Value: 45, Unit: "degrees"},
		"gravity":          {Value: g, Unit: "m/s^2"},
	})
	tr, targets := runScene(t, sc)

	require.True(t, tr.Settled, "projectile flight never completed")

	wantHeight := v * v * math.Sin(theta) * math.Sin(theta) / (2 * g)
	wantRange := v * v * math.Sin(2*theta) / g
	wantTime := 2 * v * math.Sin(theta) / g

	assert.InDelta(t, wantHeight, targets["max_height"], 0.1)
	assert.InDelta(t, wantRange, targets["range"], 0.5)
	assert.InDelta(t, wantTime, targets["flight_time"], 0.1)
}

func TestProjectileSteeperLaunchFliesHigherNotFarther(t *testing.T) {
	shallow := buildScene(t, "projectile_motion", params.Candidate{
		"launch_angle": {Value: 30, Unit: "degrees"},
	})
	steep := buildScene(t, "projectile_motion", params.Candidate{
		"launch_angle": {Value: 75, Unit: "degrees"},
	})
	_, shallowTargets := runScene(t, shallow)
	_, steepTargets := runScene(t, steep)

	assert.Greater(t, steepTargets["max_height"], shallowTargets["max_height"])
	assert.Greater(t, shallowTargets["range"], steepTargets["range"])
}

func TestFreeFallAgainstClosedForm(t *testing.T) {
	const (
		h = 20.0
		g = 9.8
	)
	sc := buildScene(t, "free_fall", params.Candidate{
		"drop_height": {Value: h, Unit: "m"},
		"gravity":     {Value: g, Unit: "m/s^2"},
	})
	tr, targets := runScene(t, sc)

	require.True(t, tr.Settled, "free fall never reached the ground")

	// The body stops falling when its surface meets the ground
	// surface, not when its center reaches y=0.
	dist := h - sc.ContactY
	wantTime := math.Sqrt(2 * dist / g)
	wantSpeed := math.Sqrt(2 * g * dist)

	assert.InDelta(t, wantTime, targets["fall_time"], 0.05)
	assert.InDelta(t, wantSpeed, targets["final_speed"], 0.2)
}

func TestFreeFallStopsAtContact(t *testing.T) {
	sc := buildScene(t, "free_fall", nil)
	tr, _ := runScene(t, sc)

	require.True(t, tr.Settled)
	last := tr.Last()
	assert.LessOrEqual(t, last.Y, sc.ContactY+1e-9)
}

func TestPendulumPeriod(t *testing.T) {
	const (
		length = 1.0
		g      = 9.8
	)
	sc := buildScene(t, "pendulum", params.Candidate{
		"length":        {Value: length, Unit: "m"},
		"initial_angle": {Value: 10, Unit: "degrees"},
		"gravity":       {Value: g, Unit: "m/s^2"},
	})
	_, targets := runScene(t, sc)

	// Small-angle analytic period; the constrained simulation tracks
	// it loosely, not to the grading tolerance.
	want := 2 * math.Pi * math.Sqrt(length/g)
	assert.InDelta(t, want, targets["period"], want*0.15)
}

func TestRunIsDeterministic(t *testing.T) {
	cand := params.Candidate{
		"initial_velocity": {Value: 17.5, Unit: "m/s"},
		"launch_angle":     {Value: 38, Unit: "degrees"},
	}

	a, aTargets := runScene(t, buildScene(t, "projectile_motion", cand))
	b, bTargets := runScene(t, buildScene(t, "projectile_motion", cand))

	require.Equal(t, len(a.Samples), len(b.Samples))
	for i := range a.Samples {
		require.Equal(t, a.Samples[i], b.Samples[i], "sample %d diverged", i)
	}
	assert.Equal(t, aTargets, bTargets)
}

func TestRunHonorsContext(t *testing.T) {
	sc := buildScene(t, "pendulum", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Run(ctx, sc, sim.DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsBadConfig(t *testing.T) {
	sc := buildScene(t, "free_fall", nil)
	_, err := sim.Run(context.Background(), sc, sim.Config{MaxTime: 0})
	assert.Error(t, err)
}

func TestUnknownSimulationType(t *testing.T) {
	tpl, err := template.Parse([]byte(`
id: orbit
simulation_type: orbital_motion
parameters:
  gravity: {value: 9.8, min: 1, max: 20, unit: m/s^2}
objects:
  - type: circle
    name: moon
    radius: 0.1
    dynamic: true
    tracked: true
    position: {x: 0, y: 5}
`))
	require.NoError(t, err)
	sc, err := scene.Build(tpl, params.Defaults(tpl))
	require.NoError(t, err)

	_, err = sim.Run(context.Background(), sc, sim.DefaultConfig())
	assert.Error(t, err)
}

func TestSupportedTypes(t *testing.T) {
	types := sim.SupportedTypes()
	assert.ElementsMatch(t, []string{"projectile_motion", "free_fall", "pendulum"}, types)
}
