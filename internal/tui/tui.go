// Package tui is the interactive terminal front-end for an exercise
// session: a live scene view, parameter tuning, answer entry, and
// hints, all driven by the bubbletea event loop.
package tui

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/dverner/edusim/internal/grade"
	"github.com/dverner/edusim/internal/params"
	"github.com/dverner/edusim/internal/session"
	"github.com/dverner/edusim/internal/sim"
)

const (
	canvasCols = 70
	canvasRows = 22
	frameRate  = 60

	historyCapacity = 600
)

var (
	canvasStyle   = lipgloss.NewStyle().Padding(1, 2)
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(46)
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	graphStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	correctStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	partialStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	wrongStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// input modes
type mode int

const (
	modeWatch mode = iota
	modeAnswer
	modeHint
)

// Model runs one exercise session inside the terminal.
type Model struct {
	sess   *session.Session
	canvas *Canvas

	running bool
	mode    mode

	last    sim.Sample
	trail   []sim.Sample
	heights []float64

	paramNames []string
	selected   int

	targetIdx int
	input     string
	status    string
	hints     []string
}

// NewModel wraps an already-started session.
func NewModel(sess *session.Session) Model {
	tpl := sess.Template()
	m := Model{
		sess:       sess,
		canvas:     NewCanvas(canvasCols, canvasRows),
		running:    true,
		paramNames: append([]string(nil), tpl.Parameters.Names...),
		trail:      make([]sim.Sample, 0, historyCapacity),
		heights:    make([]float64, 0, historyCapacity),
	}
	if sess.ManualFill() {
		m.status = "extraction unavailable, using defaults; tune values by hand"
	}
	m.resetViewport()
	return m
}

func (m *Model) resetViewport() {
	m.canvas.SetViewport(-2, 8, -1, 6)
	for _, obj := range m.sess.Template().Objects {
		if obj.Type == "segment" {
			m.canvas.Grow(obj.A.X, obj.A.Y)
			m.canvas.Grow(obj.B.X, obj.B.Y)
		}
		if obj.Anchor != nil {
			m.canvas.Grow(obj.Anchor.X, obj.Anchor.Y)
		}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode != modeWatch {
			return m.updateInput(msg), nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			m.sess.Close()
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.restart()
		case "tab":
			if len(m.paramNames) > 0 {
				m.selected = (m.selected + 1) % len(m.paramNames)
			}
		case "up", "k":
			m.adjustParam(1)
		case "down", "j":
			m.adjustParam(-1)
		case "a":
			if len(m.sess.Template().Targets) > 0 {
				m.mode = modeAnswer
				m.input = ""
				m.status = ""
			}
		case "n":
			if n := len(m.sess.Template().Targets); n > 0 {
				m.targetIdx = (m.targetIdx + 1) % n
			}
		case "h":
			m.mode = modeHint
			m.input = ""
			m.hints = nil
		}
	case TickMsg:
		if m.running {
			m.advance()
		}
		return m, tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
	}
	return m, nil
}

// updateInput handles the answer and hint text prompts.
func (m Model) updateInput(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.mode = modeWatch
		m.input = ""
	case "enter":
		if m.mode == modeAnswer {
			m.submitAnswer()
		} else {
			m.hints = nil
			for _, h := range m.sess.QueryHint(m.input) {
				m.hints = append(m.hints, h.Text)
			}
			if len(m.hints) == 0 {
				m.hints = []string{"no hint matched; try naming the quantity you are stuck on"}
			}
		}
		m.mode = modeWatch
		m.input = ""
	case "backspace":
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	default:
		if msg.Type == tea.KeyRunes || msg.String() == " " {
			m.input += msg.String()
		}
	}
	return m
}

func (m *Model) submitAnswer() {
	targets := m.sess.Template().Targets
	if m.targetIdx >= len(targets) {
		return
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(m.input), 64)
	if err != nil {
		m.status = "could not read that as a number"
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	verdict, feedback, err := m.sess.SubmitAnswer(ctx, targets[m.targetIdx].ID, value)
	if err != nil {
		m.status = fmt.Sprintf("grading failed: %v", err)
		return
	}
	m.status = fmt.Sprintf("%s: %s", verdict, feedback)
}

// adjustParam nudges the selected parameter by its declared step.
func (m *Model) adjustParam(dir float64) {
	if len(m.paramNames) == 0 {
		return
	}
	name := m.paramNames[m.selected]
	spec, ok := m.sess.Template().Parameters.Get(name)
	if !ok {
		return
	}
	step := spec.Step
	if step <= 0 {
		step = (spec.Max - spec.Min) / 100
	}
	cur := m.sess.Parameters()[name]
	if err := m.sess.SetParameter(name, cur.Value+dir*step); err != nil {
		m.status = fmt.Sprintf("parameter update failed: %v", err)
		return
	}
	m.resetAfterRebuild()
}

func (m *Model) restart() {
	if err := m.sess.Restart(); err != nil {
		m.status = fmt.Sprintf("restart failed: %v", err)
		return
	}
	m.resetAfterRebuild()
}

func (m *Model) resetAfterRebuild() {
	m.trail = m.trail[:0]
	m.heights = m.heights[:0]
	m.last = sim.Sample{}
	m.resetViewport()
}

// advance steps the fixed-tick physics enough times to cover one frame.
func (m *Model) advance() {
	ticksPerFrame := int(math.Round(1.0 / (float64(frameRate) * sim.Tick)))
	for i := 0; i < ticksPerFrame; i++ {
		m.last = m.sess.Step(sim.Tick)
	}

	m.trail = append(m.trail, m.last)
	if len(m.trail) > historyCapacity {
		m.trail = m.trail[1:]
	}
	m.heights = append(m.heights, m.last.Y)
	if len(m.heights) > historyCapacity {
		m.heights = m.heights[1:]
	}
	m.canvas.Grow(m.last.X, m.last.Y)
}

func (m *Model) draw() {
	m.canvas.Clear()
	tpl := m.sess.Template()

	for _, obj := range tpl.Objects {
		switch {
		case obj.Type == "segment":
			m.canvas.Line(obj.A.X, obj.A.Y, obj.B.X, obj.B.Y)
		case obj.Anchor != nil:
			m.canvas.Dot(obj.Anchor.X, obj.Anchor.Y)
			m.canvas.Line(obj.Anchor.X, obj.Anchor.Y, m.last.X, m.last.Y)
		}
	}

	for _, s := range m.trail {
		m.canvas.Point(s.X, s.Y)
	}
	m.canvas.Dot(m.last.X, m.last.Y)
}

func (m Model) View() string {
	m.draw()
	tpl := m.sess.Template()

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(tpl.Name)) + "\n")
	status := "RUNNING"
	if !m.running {
		status = "PAUSED"
	}
	s.WriteString(status + "\n\n")

	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.2fs", m.last.T)) + "\n")
	s.WriteString(labelStyle.Render("Position") + valueStyle.Render(fmt.Sprintf("(%.2f, %.2f) m", m.last.X, m.last.Y)) + "\n")
	s.WriteString(labelStyle.Render("Speed") + valueStyle.Render(fmt.Sprintf("%.2f m/s", m.last.Speed())) + "\n")

	if len(m.heights) > 1 {
		chart := asciigraph.Plot(m.heights, asciigraph.Height(4), asciigraph.Width(32), asciigraph.Caption("Height"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	s.WriteString("\nPARAMETERS\n")
	vals := m.sess.Parameters()
	for i, name := range m.paramNames {
		spec, _ := tpl.Parameters.Get(name)
		v := vals[name]
		line := fmt.Sprintf("%-16s %8.2f %s", name, v.Value, spec.Unit)
		if v.Status != params.StatusOK {
			line += " " + warnStyle.Render("("+string(v.Status)+")")
		}
		if i == m.selected {
			s.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + line + "\n")
		}
	}

	s.WriteString("\nTARGETS\n")
	answered := make(map[string]session.Answer)
	for _, a := range m.sess.Answers() {
		answered[a.TargetID] = a
	}
	for i, tgt := range tpl.Targets {
		marker := "  "
		if i == m.targetIdx {
			marker = "> "
		}
		line := fmt.Sprintf("%s%s (%s)", marker, tgt.ID, tgt.Unit)
		if a, ok := answered[tgt.ID]; ok {
			line += " " + renderVerdict(a)
		}
		s.WriteString(line + "\n")
	}

	switch m.mode {
	case modeAnswer:
		s.WriteString("\n" + selectedStyle.Render(fmt.Sprintf("answer %s = %s_", tpl.Targets[m.targetIdx].ID, m.input)) + "\n")
	case modeHint:
		s.WriteString("\n" + selectedStyle.Render("ask: "+m.input+"_") + "\n")
	}
	if m.status != "" {
		s.WriteString("\n" + m.status + "\n")
	}
	for _, h := range m.hints {
		s.WriteString(warnStyle.Render("hint: "+h) + "\n")
	}

	s.WriteString(helpStyle.Render("SP:pause R:restart Tab:param ↑↓:tune\nN:target A:answer H:hint Q:quit"))

	canvasView := canvasStyle.Render(m.canvas.String())
	panelView := panelStyle.Render(s.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, panelView)
}

func renderVerdict(a session.Answer) string {
	text := fmt.Sprintf("%s (%.3g)", a.Verdict, a.Submitted)
	switch a.Verdict {
	case grade.Correct:
		return correctStyle.Render(text)
	case grade.Partial:
		return partialStyle.Render(text)
	default:
		return wrongStyle.Render(text)
	}
}

// Run blocks on the bubbletea program until the student quits.
func Run(sess *session.Session) error {
	p := tea.NewProgram(NewModel(sess))
	_, err := p.Run()
	return err
}
