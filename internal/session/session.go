// Package session owns the lifecycle of one active exercise: the
// template, the validated parameter set, the live interactive scene,
// the cached expected target values, and the student's answers. Only
// one session is active at a time.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dverner/edusim/internal/grade"
	"github.com/dverner/edusim/internal/hint"
	"github.com/dverner/edusim/internal/params"
	"github.com/dverner/edusim/internal/scene"
	"github.com/dverner/edusim/internal/sim"
	"github.com/dverner/edusim/internal/template"
)

// Answer records one submitted answer and its verdict.
type Answer struct {
	TargetID  string
	Submitted float64
	Expected  float64
	Verdict   grade.Verdict
}

type expectedResult struct {
	targets map[string]float64
	err     error
}

// Session is the core's surface toward the renderer/UI layer. The UI
// owns all drawing and input capture and calls only these methods.
type Session struct {
	tpl *template.Template

	mu         sync.Mutex
	validated  params.Validated
	live       *scene.Scene
	pending    <-chan expectedResult
	cancelPre  context.CancelFunc
	expected   map[string]float64
	answers    map[string]Answer
	manualFill bool
	runCfg     sim.Config
}

// New builds a session from a confirmed validated parameter set. The
// live scene and the grading run are built independently from the same
// parameters: the grading copy is build-and-discard on a background
// worker and is never exposed, so the student cannot observe the
// precomputed answer trajectory.
func New(tpl *template.Template, vp params.Validated) (*Session, error) {
	s := &Session{
		tpl:     tpl,
		answers: make(map[string]Answer),
		runCfg:  sim.DefaultConfig(),
	}
	if err := s.rebuild(vp); err != nil {
		return nil, err
	}
	return s, nil
}

// rebuild swaps in a new validated set, rebuilds the live scene, and
// restarts the expected-value precompute. Caller must not hold s.mu.
func (s *Session) rebuild(vp params.Validated) error {
	live, err := scene.Build(s.tpl, vp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelPre != nil {
		s.cancelPre()
	}
	s.validated = vp
	s.live = live
	s.expected = nil

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelPre = cancel
	s.pending = precompute(ctx, s.tpl, vp, s.runCfg)
	return nil
}

// precompute runs the grading copy to completion off the interactive
// path and delivers the target values on a one-shot channel.
func precompute(ctx context.Context, tpl *template.Template, vp params.Validated, cfg sim.Config) <-chan expectedResult {
	ch := make(chan expectedResult, 1)
	go func() {
		defer close(ch)
		sc, err := scene.Build(tpl, vp)
		if err != nil {
			ch <- expectedResult{err: err}
			return
		}
		tr, err := sim.Run(ctx, sc, cfg)
		if err != nil {
			ch <- expectedResult{err: err}
			return
		}
		targets, err := sim.ComputeTargets(sc, tr)
		ch <- expectedResult{targets: targets, err: err}
	}()
	return ch
}

// Template returns the immutable template backing this session.
func (s *Session) Template() *template.Template { return s.tpl }

// Restart rebuilds the live scene from the current parameters,
// returning the simulation to t=0. Graded answers are kept.
func (s *Session) Restart() error {
	s.mu.Lock()
	vp := s.validated
	s.mu.Unlock()
	return s.rebuild(vp)
}

// ManualFill reports whether extraction degraded and the parameters
// came from template defaults for the student to adjust by hand.
func (s *Session) ManualFill() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manualFill
}

// Parameters returns a copy of the current validated parameter set.
func (s *Session) Parameters() map[string]params.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]params.Value, len(s.validated.Values))
	for name, v := range s.validated.Values {
		out[name] = v
	}
	return out
}

// SetParameter updates one parameter and re-triggers a rebuild of both
// the live scene and the expected-value precompute. Values outside the
// declared range clamp, matching validation semantics.
func (s *Session) SetParameter(name string, value float64) error {
	spec, ok := s.tpl.Parameters.Get(name)
	if !ok {
		return fmt.Errorf("template %s declares no parameter %q", s.tpl.ID, name)
	}

	status := params.StatusOK
	switch {
	case value < spec.Min:
		value, status = spec.Min, params.StatusClamped
	case value > spec.Max:
		value, status = spec.Max, params.StatusClamped
	}

	s.mu.Lock()
	next := params.Validated{Values: make(map[string]params.Value, len(s.validated.Values))}
	for n, v := range s.validated.Values {
		next.Values[n] = v
	}
	next.Values[name] = params.Value{Value: value, Status: status}
	s.mu.Unlock()

	return s.rebuild(next)
}

// Step advances the live scene by a caller-supplied delta and returns
// the tracked body's state. The live scene is stepped independently of
// the grading run.
func (s *Session) Step(dt float64) sim.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live.Step(dt)
	pos := s.live.Tracked.Position()
	vel := s.live.Tracked.Velocity()
	return sim.Sample{X: pos.X, Y: pos.Y, VX: vel.X, VY: vel.Y}
}

// ExpectedTargets returns the precomputed target values, waiting for
// the background run if it is still outstanding. Values are computed
// once per validated parameter set and cached for the session.
func (s *Session) ExpectedTargets(ctx context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expected != nil {
		return s.expected, nil
	}
	select {
	case res, ok := <-s.pending:
		if !ok {
			return nil, fmt.Errorf("expected-value run was cancelled")
		}
		if res.err != nil {
			return nil, res.err
		}
		s.expected = res.targets
		return s.expected, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubmitAnswer grades one answer against the cached expected value and
// returns the verdict plus the template's feedback message.
func (s *Session) SubmitAnswer(ctx context.Context, targetID string, value float64) (grade.Verdict, string, error) {
	var target *template.TargetSpec
	for i := range s.tpl.Targets {
		if s.tpl.Targets[i].ID == targetID {
			target = &s.tpl.Targets[i]
			break
		}
	}
	if target == nil {
		return "", "", fmt.Errorf("template %s declares no target %q", s.tpl.ID, targetID)
	}

	expected, err := s.ExpectedTargets(ctx)
	if err != nil {
		return "", "", err
	}
	want, ok := expected[targetID]
	if !ok {
		return "", "", fmt.Errorf("no expected value for target %q", targetID)
	}

	verdict := grade.Grade(*target, want, value)
	feedback, err := grade.FeedbackFor(s.tpl, verdict)
	if err != nil {
		return verdict, "", err
	}

	s.mu.Lock()
	s.answers[targetID] = Answer{TargetID: targetID, Submitted: value, Expected: want, Verdict: verdict}
	s.mu.Unlock()

	slog.Info("answer graded", "template", s.tpl.ID, "target", targetID, "verdict", verdict)
	return verdict, feedback, nil
}

// QueryHint matches the student's free-text question against the
// template's hint rules.
func (s *Session) QueryHint(text string) []hint.Hint {
	return hint.HintsFor(s.tpl, text)
}

// Answers returns a copy of all graded answers so far.
func (s *Session) Answers() []Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Answer, 0, len(s.answers))
	for _, tgt := range s.tpl.Targets {
		if a, ok := s.answers[tgt.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Validated returns the current validated parameter set.
func (s *Session) Validated() params.Validated {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validated
}

// Close cancels any outstanding background run.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelPre != nil {
		s.cancelPre()
	}
}
