package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverner/edusim/internal/extract"
	"github.com/dverner/edusim/internal/grade"
	"github.com/dverner/edusim/internal/params"
	"github.com/dverner/edusim/internal/session"
	"github.com/dverner/edusim/internal/sim"
	"github.com/dverner/edusim/internal/template"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func startDefaults(t *testing.T, id string) *session.Session {
	t.Helper()
	mgr := session.NewManager(template.NewStore(""), nil)
	s, err := mgr.StartWithDefaults(id)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestDefaultsWorkflow(t *testing.T) {
	s := startDefaults(t, "projectile_motion")

	assert.False(t, s.ManualFill(), "explicit defaults are not a degraded extraction")

	vals := s.Parameters()
	for name, v := range vals {
		assert.Equal(t, params.StatusDefaulted, v.Status, "parameter %s", name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	expected, err := s.ExpectedTargets(ctx)
	require.NoError(t, err)
	assert.Contains(t, expected, "max_height")
	assert.Contains(t, expected, "range")
	assert.Contains(t, expected, "flight_time")
}

func TestSubmitAnswerVerdicts(t *testing.T) {
	s := startDefaults(t, "projectile_motion")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expected, err := s.ExpectedTargets(ctx)
	require.NoError(t, err)
	want := expected["max_height"]

	verdict, feedback, err := s.SubmitAnswer(ctx, "max_height", want)
	require.NoError(t, err)
	assert.Equal(t, grade.Correct, verdict)
	assert.NotEmpty(t, feedback)

	verdict, _, err = s.SubmitAnswer(ctx, "max_height", want+0.2)
	require.NoError(t, err)
	assert.Equal(t, grade.Partial, verdict)

	verdict, _, err = s.SubmitAnswer(ctx, "max_height", want+5)
	require.NoError(t, err)
	assert.Equal(t, grade.Incorrect, verdict)

	answers := s.Answers()
	require.Len(t, answers, 1, "resubmission replaces the recorded answer")
	assert.Equal(t, grade.Incorrect, answers[0].Verdict)
}

func TestSubmitAnswerUnknownTarget(t *testing.T) {
	s := startDefaults(t, "free_fall")
	_, _, err := s.SubmitAnswer(context.Background(), "escape_velocity", 11.2)
	assert.Error(t, err)
}

func TestSetParameterRebuildsExpectations(t *testing.T) {
	s := startDefaults(t, "free_fall")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	before, err := s.ExpectedTargets(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SetParameter("drop_height", 5))

	after, err := s.ExpectedTargets(ctx)
	require.NoError(t, err)
	assert.Less(t, after["fall_time"], before["fall_time"],
		"a lower drop must fall for less time")

	v := s.Parameters()["drop_height"]
	assert.Equal(t, 5.0, v.Value)
	assert.Equal(t, params.StatusOK, v.Status)
}

func TestSetParameterClamps(t *testing.T) {
	s := startDefaults(t, "free_fall")
	tpl := s.Template()
	spec, _ := tpl.Parameters.Get("drop_height")

	require.NoError(t, s.SetParameter("drop_height", spec.Max*10))
	v := s.Parameters()["drop_height"]
	assert.Equal(t, spec.Max, v.Value)
	assert.Equal(t, params.StatusClamped, v.Status)

	assert.Error(t, s.SetParameter("air_density", 1.2))
}

func TestStepAdvancesLiveScene(t *testing.T) {
	s := startDefaults(t, "free_fall")

	var prevY float64
	first := true
	for i := 0; i < 50; i++ {
		sample := s.Step(sim.Tick)
		if !first {
			assert.Less(t, sample.Y, prevY, "a dropped body keeps falling")
		}
		prevY = sample.Y
		first = false
	}
}

func TestRestartReturnsToInitialState(t *testing.T) {
	s := startDefaults(t, "free_fall")

	for i := 0; i < 200; i++ {
		s.Step(sim.Tick)
	}
	require.NoError(t, s.Restart())

	spec, _ := s.Template().Parameters.Get("drop_height")
	sample := s.Step(sim.Tick)
	assert.InDelta(t, spec.Default, sample.Y, 0.01, "restart puts the body back at the drop height")
}

func TestQueryHint(t *testing.T) {
	s := startDefaults(t, "projectile_motion")
	assert.NotEmpty(t, s.QueryHint("how high does it go?"))
	assert.Empty(t, s.QueryHint("what is for lunch"))
}

func TestExtractionFillsParameters(t *testing.T) {
	gen := &stubGenerator{reply: `{
		"simulation_type": "projectile_motion",
		"parameters": {
			"initial_velocity": {"value": 12, "unit": "m/s"},
			"launch_angle": {"value": 30, "unit": "degrees"}
		}
	}`}
	mgr := session.NewManager(template.NewStore(""), extract.New(gen))

	s, err := mgr.StartExercise(context.Background(), "projectile_motion",
		"A ball is kicked at 12 m/s at 30 degrees above the horizontal.")
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.ManualFill())
	vals := s.Parameters()
	assert.Equal(t, 12.0, vals["initial_velocity"].Value)
	assert.Equal(t, params.StatusOK, vals["initial_velocity"].Status)
	assert.Equal(t, params.StatusDefaulted, vals["gravity"].Status)
}

func TestExtractionUnavailableFallsBack(t *testing.T) {
	gen := &stubGenerator{err: errors.New("connection refused")}
	mgr := session.NewManager(template.NewStore(""), extract.New(gen))

	s, err := mgr.StartExercise(context.Background(), "free_fall", "A stone falls from a cliff.")
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.ManualFill(), "unavailable model degrades to manual fill")
	assert.Equal(t, 1, gen.calls, "unavailability is not retried")
	for _, v := range s.Parameters() {
		assert.Equal(t, params.StatusDefaulted, v.Status)
	}
}

func TestExtractionParseFailureRetries(t *testing.T) {
	gen := &stubGenerator{reply: "I do not feel like producing JSON today."}
	mgr := session.NewManager(template.NewStore(""), extract.New(gen))

	s, err := mgr.StartExercise(context.Background(), "free_fall", "A stone falls from a cliff.")
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.ManualFill())
	assert.Equal(t, 3, gen.calls, "parse failures re-prompt up to the attempt budget")
}

func TestManualTextWithoutExtractor(t *testing.T) {
	mgr := session.NewManager(template.NewStore(""), nil)
	s, err := mgr.StartExercise(context.Background(), "free_fall", "A stone falls 20 m.")
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.ManualFill(), "exercise text with no model wired leaves the student filling in values")
}

func TestManagerActiveReplaced(t *testing.T) {
	mgr := session.NewManager(template.NewStore(""), nil)

	a, err := mgr.StartWithDefaults("free_fall")
	require.NoError(t, err)
	assert.Same(t, a, mgr.Active())

	b, err := mgr.StartWithDefaults("pendulum")
	require.NoError(t, err)
	assert.Same(t, b, mgr.Active())
	assert.NotSame(t, a, b)

	mgr.Reset()
	assert.Nil(t, mgr.Active())
}

func TestManagerUnknownTemplate(t *testing.T) {
	mgr := session.NewManager(template.NewStore(""), nil)
	_, err := mgr.StartWithDefaults("orbital_mechanics")
	assert.ErrorIs(t, err, template.ErrNotFound)
}

// stuckGenerator ignores its context entirely and blocks until
// released, like a backend that never times out.
type stuckGenerator struct {
	release chan struct{}
}

func (g *stuckGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	<-g.release
	return "", errors.New("released")
}

func TestStartExerciseCancelDuringExtraction(t *testing.T) {
	gen := &stuckGenerator{release: make(chan struct{})}
	t.Cleanup(func() { close(gen.release) })

	mgr := session.NewManager(template.NewStore(""), extract.New(gen))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() {
		_, err := mgr.StartExercise(ctx, "free_fall", "A stone falls.")
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not unblock the exercise start")
	}
}

func TestStartExerciseCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &stubGenerator{reply: "{}"}
	mgr := session.NewManager(template.NewStore(""), extract.New(gen))
	_, err := mgr.StartExercise(ctx, "free_fall", "A stone falls.")
	assert.ErrorIs(t, err, context.Canceled)
}
