package template

// Built-in exercise templates. A template directory can override any of
// these by id.

const physicsPrompt = `You are a physics simulation expert. Convert the following exercise into simulation parameters.

Exercise:
{exercise_text}

Instructions:
1. Extract all relevant parameters (e.g., mass, velocity, angle, etc.)
2. Determine the type of simulation (e.g., projectile, pendulum, etc.)
3. Provide values with appropriate units
4. Format the output as a JSON object with the following structure:
{
  "simulation_type": "projectile_motion",
  "parameters": {
    "mass": {"value": 1.0, "unit": "kg"},
    "initial_velocity": {"value": 10.0, "unit": "m/s"},
    "launch_angle": {"value": 45.0, "unit": "degrees"},
    "gravity": {"value": 9.8, "unit": "m/s^2"}
  },
  "objects": [
    {"type": "circle", "name": "projectile", "radius": 0.1, "position": {"x": 0, "y": 0}}
  ]
}

Respond with the JSON object only.`

var presets = map[string]*Template{}

func registerPreset(t *Template) {
	if err := t.validate(); err != nil {
		panic(err)
	}
	presets[t.ID] = t
}

func params(names []string, specs map[string]ParamSpec) ParamMap {
	return ParamMap{Names: names, Specs: specs}
}

func init() {
	registerPreset(&Template{
		ID:             "projectile_motion",
		Name:           "Projectile Motion",
		Description:    "A body launched at an angle from flat ground, no air resistance.",
		SimulationType: "projectile_motion",
		Prompt:         physicsPrompt,
		Parameters: params(
			[]string{"initial_velocity", "launch_angle", "gravity", "mass"},
			map[string]ParamSpec{
				"initial_velocity": {Default: 20.0, Min: 0.5, Max: 100, Step: 0.5, Unit: "m/s", Description: "launch speed"},
				"launch_angle":     {Default: 45.0, Min: 1, Max: 89, Step: 1, Unit: "degrees", Description: "angle above the horizontal"},
				"gravity":          {Default: 9.8, Min: 0.5, Max: 25, Step: 0.1, Unit: "m/s^2", Description: "gravitational acceleration"},
				"mass":             {Default: 1.0, Min: 0.1, Max: 10, Step: 0.1, Unit: "kg", Description: "projectile mass"},
			},
		),
		Objects: []ObjectSpec{
			{
				Type: "segment", Name: "ground", Static: true,
				A: Point{X: -10, Y: 0}, B: Point{X: 500, Y: 0},
				Radius: 0.05, Friction: 1.0, Color: "#666666",
			},
			{
				Type: "circle", Name: "projectile", Dynamic: true, Tracked: true,
				Radius: 0.1, MassParam: "mass",
				Position:   Point{X: 0, Y: 0.5},
				Velocity:   &VelocityRef{SpeedParam: "initial_velocity", AngleParam: "launch_angle"},
				Elasticity: 0.0, Friction: 0.5, Color: "#4682b4",
			},
		},
		Targets: []TargetSpec{
			{ID: "max_height", Description: "maximum height above the launch point", Unit: "m", Tolerance: 0.1},
			{ID: "range", Description: "horizontal distance at return to launch height", Unit: "m", Tolerance: 0.5},
			{ID: "flight_time", Description: "time until return to launch height", Unit: "s", Tolerance: 0.1},
		},
		Hints: []HintRule{
			{Triggers: []string{"height", "high", "apex", "top"}, Text: "At the highest point the vertical velocity is zero. Use v_y^2 = (v0 sin a)^2 - 2 g h."},
			{Triggers: []string{"range", "distance", "far", "horizontal"}, Text: "The horizontal velocity never changes. Range = v0 cos(a) * flight time."},
			{Triggers: []string{"time", "long", "duration"}, Text: "Flight time is twice the time to the apex: t = 2 v0 sin(a) / g."},
		},
		Feedback: map[string]string{
			"correct":   "Correct! Your answer matches the simulation.",
			"partial":   "Close - your answer is near the simulated value but outside tolerance. Check your rounding and units.",
			"incorrect": "Not quite. Try adjusting the parameters and watch how the trajectory changes.",
		},
	})

	registerPreset(&Template{
		ID:             "free_fall",
		Name:           "Free Fall",
		Description:    "A body dropped from rest, no air resistance.",
		SimulationType: "free_fall",
		Prompt:         physicsPrompt,
		Parameters: params(
			[]string{"drop_height", "gravity", "mass"},
			map[string]ParamSpec{
				"drop_height": {Default: 20.0, Min: 0.5, Max: 200, Step: 0.5, Unit: "m", Description: "height above the ground"},
				"gravity":     {Default: 9.8, Min: 0.5, Max: 25, Step: 0.1, Unit: "m/s^2", Description: "gravitational acceleration"},
				"mass":        {Default: 1.0, Min: 0.1, Max: 10, Step: 0.1, Unit: "kg", Description: "body mass"},
			},
		),
		Objects: []ObjectSpec{
			{
				Type: "segment", Name: "ground", Static: true,
				A: Point{X: -10, Y: 0}, B: Point{X: 10, Y: 0},
				Radius: 0.05, Friction: 1.0, Color: "#666666",
			},
			{
				Type: "circle", Name: "ball", Dynamic: true, Tracked: true,
				Radius: 0.1, MassParam: "mass",
				Position: Point{X: 0, Y: 20}, YParam: "drop_height",
				Elasticity: 0.0, Friction: 0.5, Color: "#b22222",
			},
		},
		Targets: []TargetSpec{
			{ID: "fall_time", Description: "time to reach the ground", Unit: "s", Tolerance: 0.05},
			{ID: "final_speed", Description: "speed just before impact", Unit: "m/s", Tolerance: 0.2},
		},
		Hints: []HintRule{
			{Triggers: []string{"time", "long", "fall"}, Text: "From rest, h = g t^2 / 2. Solve for t."},
			{Triggers: []string{"speed", "velocity", "fast", "impact"}, Text: "The impact speed is v = g t, or v = sqrt(2 g h)."},
		},
		Feedback: map[string]string{
			"correct":   "Correct! The dropped body behaves exactly as you predicted.",
			"partial":   "Almost - compare your value against the simulated impact once more.",
			"incorrect": "Not quite. Drop the ball again and watch the timer.",
		},
	})

	registerPreset(&Template{
		ID:             "pendulum",
		Name:           "Simple Pendulum",
		Description:    "A point mass on a rigid rod swinging under gravity.",
		SimulationType: "pendulum",
		Prompt:         physicsPrompt,
		Parameters: params(
			[]string{"length", "initial_angle", "gravity", "mass"},
			map[string]ParamSpec{
				"length":        {Default: 1.0, Min: 0.1, Max: 10, Step: 0.1, Unit: "m", Description: "rod length"},
				"initial_angle": {Default: 10.0, Min: 1, Max: 60, Step: 1, Unit: "degrees", Description: "release angle from vertical"},
				"gravity":       {Default: 9.8, Min: 0.5, Max: 25, Step: 0.1, Unit: "m/s^2", Description: "gravitational acceleration"},
				"mass":          {Default: 1.0, Min: 0.1, Max: 10, Step: 0.1, Unit: "kg", Description: "bob mass"},
			},
		),
		Objects: []ObjectSpec{
			{
				Type: "circle", Name: "bob", Dynamic: true, Tracked: true,
				Radius: 0.08, MassParam: "mass",
				Anchor: &Point{X: 0, Y: 2},
				Color:  "#2e8b57",
			},
		},
		Targets: []TargetSpec{
			{ID: "period", Description: "time for one full swing", Unit: "s", Tolerance: 0.1},
		},
		Hints: []HintRule{
			{Triggers: []string{"period", "time", "swing"}, Text: "For small angles, T = 2 pi sqrt(L / g). Note the mass cancels out."},
			{Triggers: []string{"mass", "heavy", "weight"}, Text: "Try changing the mass - does the period change?"},
		},
		Feedback: map[string]string{
			"correct":   "Correct! The period matches the simulation.",
			"partial":   "Close - the small-angle formula is an approximation; compare with the simulated swing.",
			"incorrect": "Not quite. Watch one full swing and time it.",
		},
	})
}
