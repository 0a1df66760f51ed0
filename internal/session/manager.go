package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dverner/edusim/internal/extract"
	"github.com/dverner/edusim/internal/params"
	"github.com/dverner/edusim/internal/template"
)

// maxExtractionAttempts bounds re-prompting on unparseable replies
// before the workflow gives up and surfaces the manual-fill state.
const maxExtractionAttempts = 3

// Manager runs the exercise workflow: extraction, validation, session
// creation. It holds the single active session reference; starting a
// new exercise destroys the previous session.
type Manager struct {
	store     *template.Store
	extractor *extract.Extractor

	mu     sync.Mutex
	active *Session
}

func NewManager(store *template.Store, extractor *extract.Extractor) *Manager {
	return &Manager{store: store, extractor: extractor}
}

// Active returns the current session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// StartExercise loads the template, extracts parameters from the
// exercise text, validates them, and replaces the active session.
//
// Parse failures re-prompt up to a small fixed number of attempts.
// A model that is unavailable, or exhausted attempts, degrade to
// template defaults with the session flagged for manual fill - a
// failed extraction never terminates the workflow.
func (m *Manager) StartExercise(ctx context.Context, templateID, exerciseText string) (*Session, error) {
	tpl, err := m.store.Load(templateID)
	if err != nil {
		return nil, err
	}

	vp, manual := m.extractParameters(ctx, tpl, exerciseText)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := New(tpl, vp)
	if err != nil {
		return nil, err
	}
	s.manualFill = manual

	m.mu.Lock()
	if m.active != nil {
		m.active.Close()
	}
	m.active = s
	m.mu.Unlock()
	return s, nil
}

// StartWithDefaults skips extraction entirely and opens a session on
// the template's default parameters.
func (m *Manager) StartWithDefaults(templateID string) (*Session, error) {
	return m.StartExercise(context.Background(), templateID, "")
}

func (m *Manager) extractParameters(ctx context.Context, tpl *template.Template, exerciseText string) (params.Validated, bool) {
	if m.extractor == nil || exerciseText == "" {
		// Defaults were asked for (empty text) or no model is wired;
		// only the latter leaves the student filling values in.
		return params.Defaults(tpl), exerciseText != ""
	}

	for attempt := 1; attempt <= maxExtractionAttempts; attempt++ {
		var res *extract.Result
		var err error
		// The one-shot channel keeps the workflow responsive to
		// cancellation even when the backend ignores its context.
		select {
		case out := <-m.extractor.ExtractAsync(ctx, tpl, exerciseText):
			res, err = out.Result, out.Err
		case <-ctx.Done():
			return params.Defaults(tpl), true
		}
		if err == nil {
			if res.SimulationType != tpl.SimulationType {
				slog.Warn("extraction identified a different simulation type",
					"template", tpl.SimulationType, "extracted", res.SimulationType)
			}
			return params.Validate(tpl, res.Candidate), false
		}

		switch {
		case errors.Is(err, extract.ErrParse):
			slog.Warn("extraction parse failure", "attempt", attempt, "err", err)
			continue
		case errors.Is(err, extract.ErrUnavailable):
			slog.Warn("model unavailable, falling back to defaults", "err", err)
			return params.Defaults(tpl), true
		default:
			// Context cancellation; caller checks ctx.Err.
			return params.Defaults(tpl), true
		}
	}

	slog.Warn("extraction attempts exhausted, falling back to defaults",
		"template", tpl.ID, "attempts", maxExtractionAttempts)
	return params.Defaults(tpl), true
}

// Templates lists available template ids.
func (m *Manager) Templates() []string {
	return m.store.List()
}

// Reset destroys the active session.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		m.active.Close()
		m.active = nil
	}
}
