package ability

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry holds all known ability Defs keyed by ID. It is populated once at
// process start and read-only afterwards.
type Registry struct {
	defs map[string]Def
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Def)}
}

// Register adds def, overwriting any existing entry with the same ID.
//
// Precondition: def must have passed Validate().
func (r *Registry) Register(def Def) {
	r.defs[def.ID] = def
}

// Get returns the Def for id, or (Def{}, false) if not found.
func (r *Registry) Get(id string) (Def, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// FirstOfKind returns the catalog Def with the given kind, preferring the
// lexically smallest ID so the choice is stable across processes.
func (r *Registry) FirstOfKind(k Kind) (Def, bool) {
	var best Def
	found := false
	for _, d := range r.defs {
		if d.Kind != k {
			continue
		}
		if !found || d.ID < best.ID {
			best = d
			found = true
		}
	}
	return best, found
}

// All returns every registered Def sorted by ID.
func (r *Registry) All() []Def {
	out := make([]Def, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// defDoc is the YAML document shape for one ability definition file.
type defDoc struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Kind         string  `yaml:"kind"`
	Trigger      string  `yaml:"trigger"`
	Chance       float64 `yaml:"chance"`
	Magnitude    float64 `yaml:"magnitude"`
	Duration     int     `yaml:"duration"`
	Cooldown     int     `yaml:"cooldown"`
	DebuffAmount float64 `yaml:"debuff_amount"`
	Radius       float64 `yaml:"radius"`
}

func (d defDoc) toDef() (Def, error) {
	kind, err := ParseKind(d.Kind)
	if err != nil {
		return Def{}, fmt.Errorf("ability %q: %w", d.ID, err)
	}
	trigger, err := ParseTrigger(d.Trigger)
	if err != nil {
		return Def{}, fmt.Errorf("ability %q: %w", d.ID, err)
	}
	def := Def{
		ID:           d.ID,
		Name:         d.Name,
		Kind:         kind,
		Trigger:      trigger,
		Chance:       d.Chance,
		Magnitude:    d.Magnitude,
		Duration:     d.Duration,
		Cooldown:     d.Cooldown,
		DebuffAmount: d.DebuffAmount,
		Radius:       d.Radius,
	}
	if err := def.Validate(); err != nil {
		return Def{}, err
	}
	return def, nil
}

// LoadDirectory reads every *.yaml file in dir, parses each as one ability
// definition, and returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to
// parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading ability dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var doc defDoc
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		def, err := doc.toDef()
		if err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		reg.Register(def)
	}
	return reg, nil
}

// Builtin returns the default catalog used when no content directory is
// configured. One definition per kind.
func Builtin() *Registry {
	reg := NewRegistry()
	for _, def := range []Def{
		{ID: "siphoning-fangs", Name: "Siphoning Fangs", Kind: KindLifesteal, Trigger: TriggerOnAttack, Chance: 1, Magnitude: 0.1},
		{ID: "rending-bite", Name: "Rending Bite", Kind: KindBleed, Trigger: TriggerOnAttack, Chance: 0.25, Magnitude: 3, Duration: 3, Cooldown: 5},
		{ID: "crushing-maw", Name: "Crushing Maw", Kind: KindStun, Trigger: TriggerOnHit, Chance: 0.15, Duration: 2, Cooldown: 8},
		{ID: "dusk-frenzy", Name: "Dusk Frenzy", Kind: KindRage, Trigger: TriggerOnLowHealth, Chance: 0.2, Magnitude: 0.5, Duration: 3, Cooldown: 10},
		{ID: "hollow-howl", Name: "Hollow Howl", Kind: KindHowl, Trigger: TriggerOnKill, Chance: 0.3, Cooldown: 12, DebuffAmount: 2, Radius: 3},
	} {
		reg.Register(def)
	}
	return reg
}
