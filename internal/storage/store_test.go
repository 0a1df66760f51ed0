package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverner/edusim/internal/grade"
	"github.com/dverner/edusim/internal/session"
	"github.com/dverner/edusim/internal/sim"
	"github.com/dverner/edusim/internal/template"
)

func finishedSession(t *testing.T) (*session.Session, map[string]float64, *sim.Trajectory) {
	t.Helper()
	mgr := session.NewManager(template.NewStore(""), nil)
	s, err := mgr.StartWithDefaults("free_fall")
	require.NoError(t, err)
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	expected, err := s.ExpectedTargets(ctx)
	require.NoError(t, err)

	_, _, err = s.SubmitAnswer(ctx, "fall_time", expected["fall_time"])
	require.NoError(t, err)
	_, _, err = s.SubmitAnswer(ctx, "final_speed", 0)
	require.NoError(t, err)

	tr := &sim.Trajectory{Samples: []sim.Sample{
		{T: 0, X: 0, Y: 20, VX: 0, VY: 0},
		{T: sim.Tick, X: 0, Y: 19.9998, VX: 0, VY: -0.04},
	}}
	return s, expected, tr
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	sess, expected, tr := finishedSession(t)
	id, err := st.Save(sess, expected, tr)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	meta, err := st.Load(id)
	require.NoError(t, err)
	assert.Equal(t, id, meta.ID)
	assert.Equal(t, "free_fall", meta.TemplateID)
	assert.False(t, meta.ManualFill)
	assert.Contains(t, meta.Parameters, "drop_height")
	assert.InDelta(t, expected["fall_time"], meta.Expected["fall_time"], 1e-9)

	require.Len(t, meta.Answers, 2)
	assert.Equal(t, "fall_time", meta.Answers[0].TargetID)
	assert.Equal(t, grade.Correct, meta.Answers[0].Verdict)
	assert.Equal(t, grade.Incorrect, meta.Answers[1].Verdict)
}

func TestTrajectoryRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	sess, expected, tr := finishedSession(t)
	id, err := st.Save(sess, expected, tr)
	require.NoError(t, err)

	samples, err := st.LoadTrajectory(id)
	require.NoError(t, err)
	require.Len(t, samples, len(tr.Samples))
	for i, want := range tr.Samples {
		assert.InDelta(t, want.T, samples[i].T, 1e-6)
		assert.InDelta(t, want.Y, samples[i].Y, 1e-6)
		assert.InDelta(t, want.VY, samples[i].VY, 1e-6)
	}
}

func TestSaveWithoutTrajectory(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	sess, expected, _ := finishedSession(t)
	id, err := st.Save(sess, expected, nil)
	require.NoError(t, err)

	_, err = st.LoadTrajectory(id)
	assert.Error(t, err, "no trajectory file was written")
}

func TestListNewestFirst(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	sess, expected, tr := finishedSession(t)
	_, err := st.Save(sess, expected, tr)
	require.NoError(t, err)
	_, err = st.Save(sess, expected, tr)
	require.NoError(t, err)

	list, err := st.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].Timestamp.Before(list[1].Timestamp))
}

func TestListEmptyDir(t *testing.T) {
	st := New(t.TempDir() + "/missing")
	list, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoadMissing(t *testing.T) {
	st := New(t.TempDir())
	_, err := st.Load("free_fall_12345")
	assert.Error(t, err)
}
