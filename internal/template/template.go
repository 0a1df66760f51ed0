package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// PromptSlot is the substitution point for the exercise text in an
// extraction prompt.
const PromptSlot = "{exercise_text}"

// ParamSpec declares one tunable simulation parameter.
type ParamSpec struct {
	Default     float64 `yaml:"value"`
	Min         float64 `yaml:"min"`
	Max         float64 `yaml:"max"`
	Step        float64 `yaml:"step"`
	Unit        string  `yaml:"unit"`
	Description string  `yaml:"description"`
}

// ParamMap is an ordered name -> ParamSpec mapping. YAML maps do not
// preserve key order through a plain map, so decoding walks the node
// pairs directly.
type ParamMap struct {
	Names []string
	Specs map[string]ParamSpec
}

func (p *ParamMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("parameters must be a mapping, got %s", node.Tag)
	}
	p.Names = make([]string, 0, len(node.Content)/2)
	p.Specs = make(map[string]ParamSpec, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var spec ParamSpec
		if err := node.Content[i+1].Decode(&spec); err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		p.Names = append(p.Names, name)
		p.Specs[name] = spec
	}
	return nil
}

func (p ParamMap) MarshalYAML() (any, error) {
	out := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range p.Names {
		var key, val yaml.Node
		key.SetString(name)
		if err := val.Encode(p.Specs[name]); err != nil {
			return nil, err
		}
		out.Content = append(out.Content, &key, &val)
	}
	return out, nil
}

// Get returns the spec for name.
func (p ParamMap) Get(name string) (ParamSpec, bool) {
	s, ok := p.Specs[name]
	return s, ok
}

// Point is a 2D position in world coordinates (meters, y up).
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// VelocityRef names the parameters an object's launch velocity is
// derived from. Empty fields mean the object starts at rest.
type VelocityRef struct {
	SpeedParam string `yaml:"speed_param"`
	AngleParam string `yaml:"angle_param"`
}

// ObjectSpec is the blueprint for one body in the scene. Shape-specific
// geometry fields apply depending on Type.
type ObjectSpec struct {
	Type       string       `yaml:"type"` // circle, segment, box
	Name       string       `yaml:"name"`
	Radius     float64      `yaml:"radius"`
	Width      float64      `yaml:"width"`
	Height     float64      `yaml:"height"`
	A          Point        `yaml:"a"` // segment endpoints
	B          Point        `yaml:"b"`
	Position   Point        `yaml:"position"`
	XParam     string       `yaml:"x_param"` // parameter overriding Position.X
	YParam     string       `yaml:"y_param"` // parameter overriding Position.Y
	Color      string       `yaml:"color"`
	Static     bool         `yaml:"static"`
	Dynamic    bool         `yaml:"dynamic"`
	Mass       float64      `yaml:"mass"`
	MassParam  string       `yaml:"mass_param"`
	Elasticity float64      `yaml:"elasticity"`
	Friction   float64      `yaml:"friction"`
	Tracked    bool         `yaml:"tracked"`
	Velocity   *VelocityRef `yaml:"velocity"`
	Anchor     *Point       `yaml:"anchor"` // pin-joint anchor (pendulum)
}

// TargetSpec declares one gradable quantity. The expected value is
// derived by running the simulation, keyed by ID and simulation type.
type TargetSpec struct {
	ID          string  `yaml:"id"`
	Description string  `yaml:"description"`
	Unit        string  `yaml:"unit"`
	Tolerance   float64 `yaml:"tolerance"`
}

// HintRule maps a set of trigger keywords to a hint text.
type HintRule struct {
	Triggers []string `yaml:"triggers"`
	Text     string   `yaml:"text"`
}

// Template is a declarative schema for one exercise type. Immutable
// once loaded; safe for concurrent reads.
type Template struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	SimulationType string            `yaml:"simulation_type"`
	Parameters     ParamMap          `yaml:"parameters"`
	Objects        []ObjectSpec      `yaml:"objects"`
	Targets        []TargetSpec      `yaml:"targets"`
	Hints          []HintRule        `yaml:"hints"`
	Feedback       map[string]string `yaml:"feedback"`
	Prompt         string            `yaml:"prompt"`
}

var shapeKinds = map[string]bool{
	"circle":  true,
	"segment": true,
	"box":     true,
}

func (t *Template) validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformed)
	}
	if t.SimulationType == "" {
		return fmt.Errorf("%w: %s has no simulation_type", ErrMalformed, t.ID)
	}
	if len(t.Parameters.Names) == 0 {
		return fmt.Errorf("%w: %s declares no parameters", ErrMalformed, t.ID)
	}
	for _, name := range t.Parameters.Names {
		spec := t.Parameters.Specs[name]
		if spec.Min > spec.Max {
			return fmt.Errorf("%w: %s.%s min %g > max %g", ErrMalformed, t.ID, name, spec.Min, spec.Max)
		}
		if spec.Default < spec.Min || spec.Default > spec.Max {
			return fmt.Errorf("%w: %s.%s default %g outside [%g, %g]", ErrMalformed, t.ID, name, spec.Default, spec.Min, spec.Max)
		}
	}
	for i, obj := range t.Objects {
		if obj.Name == "" {
			return fmt.Errorf("%w: %s object %d has no name", ErrMalformed, t.ID, i)
		}
		if !shapeKinds[obj.Type] {
			return fmt.Errorf("%w: %s object %s has unknown type %q", ErrMalformed, t.ID, obj.Name, obj.Type)
		}
		if obj.Static == obj.Dynamic {
			return fmt.Errorf("%w: %s object %s must be exactly one of static/dynamic", ErrMalformed, t.ID, obj.Name)
		}
	}
	seen := make(map[string]bool, len(t.Targets))
	for _, tgt := range t.Targets {
		if tgt.ID == "" {
			return fmt.Errorf("%w: %s has a target without id", ErrMalformed, t.ID)
		}
		if seen[tgt.ID] {
			return fmt.Errorf("%w: %s duplicate target %s", ErrMalformed, t.ID, tgt.ID)
		}
		seen[tgt.ID] = true
		if tgt.Tolerance <= 0 {
			return fmt.Errorf("%w: %s target %s tolerance must be positive", ErrMalformed, t.ID, tgt.ID)
		}
	}
	return nil
}

// Parse decodes and validates a single template document.
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Store loads and caches templates. Built-in presets are always
// available; a template directory, when set, takes precedence and can
// add new ids. Templates are read many times and written never, so the
// cache is shared process-wide by design.
type Store struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*Template
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, cache: make(map[string]*Template)}
}

// Load returns the template with the given id. Loading is idempotent:
// repeated calls return the same immutable instance.
func (s *Store) Load(id string) (*Template, error) {
	s.mu.RLock()
	if t, ok := s.cache[id]; ok {
		s.mu.RUnlock()
		return t, nil
	}
	s.mu.RUnlock()

	t, err := s.read(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[id]; ok {
		return cached, nil
	}
	s.cache[id] = t
	return t, nil
}

func (s *Store) read(id string) (*Template, error) {
	t, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	return s.withPromptFile(t)
}

func (s *Store) resolve(id string) (*Template, error) {
	if s.dir != "" {
		path := filepath.Join(s.dir, id+".yaml")
		data, err := os.ReadFile(path)
		if err == nil {
			t, perr := Parse(data)
			if perr != nil {
				return nil, fmt.Errorf("%s: %w", path, perr)
			}
			if t.ID != id {
				return nil, fmt.Errorf("%w: %s declares id %q", ErrMalformed, path, t.ID)
			}
			return t, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if t, ok := presets[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// withPromptFile swaps in <dir>/prompts/<simulation_type>.txt when the
// template directory carries one. Prompt files are plain text with the
// single substitution slot; the embedded prompt is the fallback. The
// result is a copy, so shared presets are never mutated.
func (s *Store) withPromptFile(t *Template) (*Template, error) {
	if s.dir == "" {
		return t, nil
	}
	path := filepath.Join(s.dir, "prompts", t.SimulationType+".txt")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	if !strings.Contains(string(data), PromptSlot) {
		return nil, fmt.Errorf("%w: prompt file %s has no %s slot", ErrMalformed, path, PromptSlot)
	}
	clone := *t
	clone.Prompt = string(data)
	return &clone, nil
}

// List returns all available template ids, sorted.
func (s *Store) List() []string {
	ids := make(map[string]bool, len(presets))
	for id := range presets {
		ids[id] = true
	}
	if s.dir != "" {
		entries, err := os.ReadDir(s.dir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
					ids[e.Name()[:len(e.Name())-len(ext)]] = true
				}
			}
		}
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
