// Package scene translates a template's object specs plus a validated
// parameter set into a Chipmunk rigid-body space. Each Build produces
// an independent scene: the grading run and the interactive run never
// share engine state.
package scene

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"

	"github.com/dverner/edusim/internal/params"
	"github.com/dverner/edusim/internal/template"
)

// Scene wraps a physics space with the bookkeeping the runner and
// target computation need.
type Scene struct {
	Space    *cp.Space
	Template *template.Template
	Bodies   map[string]*cp.Body

	// Tracked is the body whose trajectory drives target computation.
	Tracked     *cp.Body
	TrackedName string

	// Launch is the tracked body's initial position.
	Launch cp.Vector

	// ContactY is the y coordinate at which the tracked body first
	// touches the ground plane, when the scene has one.
	ContactY  float64
	HasGround bool

	// Pendulum geometry, set only for pendulum scenes.
	Anchor cp.Vector
	Length float64
}

// Step advances the space by dt. The engine tick is the caller's
// responsibility; see sim.Run for the deterministic fixed tick.
func (s *Scene) Step(dt float64) {
	s.Space.Step(dt)
}

// collisionSlop is the allowed contact penetration. The engine default
// of 0.1 is sized for pixel-scale scenes; at meter scale it lets a
// body rest a tenth of a meter deep in the ground.
const collisionSlop = 1e-3

// Build maps every object spec to a body and shape. Wherever a spec
// references a parameter name, the value comes from the validated set;
// a missing name is a template integrity bug and fails with ErrBuild.
func Build(tpl *template.Template, vp params.Validated) (*Scene, error) {
	sc := &Scene{
		Space:    cp.NewSpace(),
		Template: tpl,
		Bodies:   make(map[string]*cp.Body, len(tpl.Objects)),
	}

	gravity, err := paramValue(tpl, vp, "gravity")
	if err != nil {
		return nil, err
	}
	sc.Space.SetGravity(cp.Vector{X: 0, Y: -gravity})
	sc.Space.SetCollisionSlop(collisionSlop)

	var groundSurfaceY float64
	var groundRadius float64

	// Statics first, so ground geometry is known before any dynamic
	// body computes its contact height, whatever the declared order.
	for i := range tpl.Objects {
		obj := &tpl.Objects[i]
		if !obj.Static {
			continue
		}
		if err := addStatic(sc, obj); err != nil {
			return nil, err
		}
		if obj.Type == "segment" && obj.Name == "ground" {
			groundSurfaceY = math.Max(obj.A.Y, obj.B.Y)
			groundRadius = obj.Radius
			sc.HasGround = true
		}
	}

	for i := range tpl.Objects {
		obj := &tpl.Objects[i]
		if obj.Static {
			continue
		}
		pos, err := objectPosition(tpl, vp, obj)
		if err != nil {
			return nil, err
		}

		body, radius, err := addDynamic(sc, tpl, vp, obj, pos)
		if err != nil {
			return nil, err
		}

		if obj.Velocity != nil {
			vx, vy, err := launchVelocity(tpl, vp, obj.Velocity)
			if err != nil {
				return nil, err
			}
			body.SetVelocity(vx, vy)
		}

		if obj.Tracked {
			sc.Tracked = body
			sc.TrackedName = obj.Name
			sc.Launch = body.Position()
			sc.ContactY = groundSurfaceY + groundRadius + radius
		}
	}

	if sc.Tracked == nil {
		return nil, fmt.Errorf("%w: template %s declares no tracked dynamic object", ErrBuild, tpl.ID)
	}
	return sc, nil
}

func addStatic(sc *Scene, obj *template.ObjectSpec) error {
	body := sc.Space.StaticBody
	var shape *cp.Shape
	switch obj.Type {
	case "segment":
		shape = cp.NewSegment(body,
			cp.Vector{X: obj.A.X, Y: obj.A.Y},
			cp.Vector{X: obj.B.X, Y: obj.B.Y},
			obj.Radius)
	case "circle":
		shape = cp.NewCircle(body, obj.Radius, cp.Vector{X: obj.Position.X, Y: obj.Position.Y})
	case "box":
		return fmt.Errorf("%w: static boxes are not supported (object %s)", ErrBuild, obj.Name)
	default:
		return fmt.Errorf("%w: unknown shape %q for %s", ErrBuild, obj.Type, obj.Name)
	}
	shape.SetElasticity(obj.Elasticity)
	shape.SetFriction(obj.Friction)
	sc.Space.AddShape(shape)
	return nil
}

// addDynamic creates the body and shape for a dynamic spec and returns
// the body plus its collision radius.
func addDynamic(sc *Scene, tpl *template.Template, vp params.Validated, obj *template.ObjectSpec, pos cp.Vector) (*cp.Body, float64, error) {
	mass, err := objectMass(tpl, vp, obj)
	if err != nil {
		return nil, 0, err
	}

	var body *cp.Body
	var shape *cp.Shape
	var radius float64

	switch obj.Type {
	case "circle":
		radius = obj.Radius
		moment := cp.MomentForCircle(mass, 0, radius, cp.Vector{})
		body = cp.NewBody(mass, moment)
		body.SetPosition(pos)
		shape = cp.NewCircle(body, radius, cp.Vector{})
	case "box":
		moment := cp.MomentForBox(mass, obj.Width, obj.Height)
		body = cp.NewBody(mass, moment)
		body.SetPosition(pos)
		shape = cp.NewBox(body, obj.Width, obj.Height, 0)
		radius = math.Max(obj.Width, obj.Height) / 2
	default:
		return nil, 0, fmt.Errorf("%w: dynamic %q objects are not supported (object %s)", ErrBuild, obj.Type, obj.Name)
	}

	shape.SetElasticity(obj.Elasticity)
	shape.SetFriction(obj.Friction)
	sc.Space.AddBody(body)
	sc.Space.AddShape(shape)
	sc.Bodies[obj.Name] = body

	if obj.Anchor != nil {
		if err := attachPendulum(sc, tpl, vp, obj, body); err != nil {
			return nil, 0, err
		}
	}
	return body, radius, nil
}

// attachPendulum positions the bob on its rod and pins it to the
// anchor. The pendulum variant derives the bob position from length
// and release angle rather than taking it from the object spec.
func attachPendulum(sc *Scene, tpl *template.Template, vp params.Validated, obj *template.ObjectSpec, body *cp.Body) error {
	length, err := paramValue(tpl, vp, "length")
	if err != nil {
		return err
	}
	angleDeg, err := paramValue(tpl, vp, "initial_angle")
	if err != nil {
		return err
	}
	angle := angleDeg * math.Pi / 180

	anchor := cp.Vector{X: obj.Anchor.X, Y: obj.Anchor.Y}
	bob := cp.Vector{
		X: anchor.X + length*math.Sin(angle),
		Y: anchor.Y - length*math.Cos(angle),
	}
	body.SetPosition(bob)

	joint := cp.NewPinJoint(sc.Space.StaticBody, body, anchor, cp.Vector{})
	sc.Space.AddConstraint(joint)

	sc.Anchor = anchor
	sc.Length = length
	return nil
}

func objectPosition(tpl *template.Template, vp params.Validated, obj *template.ObjectSpec) (cp.Vector, error) {
	pos := cp.Vector{X: obj.Position.X, Y: obj.Position.Y}
	if obj.XParam != "" {
		v, err := paramValue(tpl, vp, obj.XParam)
		if err != nil {
			return cp.Vector{}, err
		}
		pos.X = v
	}
	if obj.YParam != "" {
		v, err := paramValue(tpl, vp, obj.YParam)
		if err != nil {
			return cp.Vector{}, err
		}
		pos.Y = v
	}
	return pos, nil
}

func objectMass(tpl *template.Template, vp params.Validated, obj *template.ObjectSpec) (float64, error) {
	if obj.MassParam != "" {
		return paramValue(tpl, vp, obj.MassParam)
	}
	if obj.Mass > 0 {
		return obj.Mass, nil
	}
	return 1.0, nil
}

func launchVelocity(tpl *template.Template, vp params.Validated, ref *template.VelocityRef) (float64, float64, error) {
	speed, err := paramValue(tpl, vp, ref.SpeedParam)
	if err != nil {
		return 0, 0, err
	}
	angleDeg := 0.0
	if ref.AngleParam != "" {
		angleDeg, err = paramValue(tpl, vp, ref.AngleParam)
		if err != nil {
			return 0, 0, err
		}
	}
	angle := angleDeg * math.Pi / 180
	return speed * math.Cos(angle), speed * math.Sin(angle), nil
}

func paramValue(tpl *template.Template, vp params.Validated, name string) (float64, error) {
	if v, ok := vp.Get(name); ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: template %s references undeclared parameter %q", ErrBuild, tpl.ID, name)
}
