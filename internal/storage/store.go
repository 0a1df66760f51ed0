// Package storage persists finished exercise sessions under a data
// directory: one JSON metadata file plus a CSV trajectory per session.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/dverner/edusim/internal/grade"
	"github.com/dverner/edusim/internal/session"
	"github.com/dverner/edusim/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// AnswerRecord is one graded answer as persisted.
type AnswerRecord struct {
	TargetID  string        `json:"target_id"`
	Submitted float64       `json:"submitted"`
	Expected  float64       `json:"expected"`
	Verdict   grade.Verdict `json:"verdict"`
}

// SessionMetadata describes one saved session.
type SessionMetadata struct {
	ID         string             `json:"id"`
	TemplateID string             `json:"template_id"`
	Timestamp  time.Time          `json:"timestamp"`
	ManualFill bool               `json:"manual_fill"`
	Parameters map[string]float64 `json:"parameters"`
	Expected   map[string]float64 `json:"expected"`
	Answers    []AnswerRecord     `json:"answers"`
}

// Save writes the session outcome and, when given, the grading-run
// trajectory. It returns the generated session id.
func (s *Store) Save(sess *session.Session, expected map[string]float64, tr *sim.Trajectory) (string, error) {
	tpl := sess.Template()
	id := fmt.Sprintf("%s_%d", tpl.ID, time.Now().UnixNano())
	dir := filepath.Join(s.baseDir, id)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	answers := sess.Answers()
	records := make([]AnswerRecord, len(answers))
	for i, a := range answers {
		records[i] = AnswerRecord{
			TargetID:  a.TargetID,
			Submitted: a.Submitted,
			Expected:  a.Expected,
			Verdict:   a.Verdict,
		}
	}

	meta := SessionMetadata{
		ID:         id,
		TemplateID: tpl.ID,
		Timestamp:  time.Now(),
		ManualFill: sess.ManualFill(),
		Parameters: sess.Validated().Map(),
		Expected:   expected,
		Answers:    records,
	}

	metaFile, err := os.Create(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if tr != nil {
		if err := s.writeTrajectory(dir, tr); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (s *Store) writeTrajectory(dir string, tr *sim.Trajectory) error {
	f, err := os.Create(filepath.Join(dir, "trajectory.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"time", "x", "y", "vx", "vy"}); err != nil {
		return err
	}
	for _, sm := range tr.Samples {
		row := []string{
			strconv.FormatFloat(sm.T, 'f', 6, 64),
			strconv.FormatFloat(sm.X, 'f', 6, 64),
			strconv.FormatFloat(sm.Y, 'f', 6, 64),
			strconv.FormatFloat(sm.VX, 'f', 6, 64),
			strconv.FormatFloat(sm.VY, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Load reads one saved session's metadata.
func (s *Store) Load(id string) (*SessionMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta SessionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTrajectory reads one saved session's trajectory samples.
func (s *Store) LoadTrajectory(id string) ([]sim.Sample, error) {
	f, err := os.Open(filepath.Join(s.baseDir, id, "trajectory.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, nil
	}

	samples := make([]sim.Sample, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 5 {
			continue
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				return nil, fmt.Errorf("bad trajectory row: %w", err)
			}
			vals[i] = v
		}
		samples = append(samples, sim.Sample{T: vals[0], X: vals[1], Y: vals[2], VX: vals[3], VY: vals[4]})
	}
	return samples, nil
}

// List returns metadata for every saved session, newest first.
func (s *Store) List() ([]SessionMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []SessionMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		out = append(out, *meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
