package thrall

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/duskhollow/arena/internal/game/ability"
)

// Roster is a map-backed Provider, loaded once at startup from content
// files. Read-only after loading.
type Roster struct {
	thralls map[string]*Thrall
}

// NewRoster creates an empty Roster.
func NewRoster() *Roster {
	return &Roster{thralls: make(map[string]*Thrall)}
}

// Register adds t, overwriting any existing entry with the same ID.
//
// Precondition: t must not be nil and t.ID must not be empty.
func (r *Roster) Register(t *Thrall) {
	r.thralls[t.ID] = t
}

// Thrall implements Provider.
func (r *Roster) Thrall(_ context.Context, id string) (*Thrall, error) {
	t, ok := r.thralls[id]
	if !ok {
		return nil, fmt.Errorf("thrall %q: %w", id, ErrThrallNotFound)
	}
	return t, nil
}

// Len returns the number of registered thralls.
func (r *Roster) Len() int {
	return len(r.thralls)
}

type thrallDoc struct {
	ID        string   `yaml:"id"`
	OwnerID   string   `yaml:"owner_id"`
	Name      string   `yaml:"name"`
	Level     int      `yaml:"level"`
	Stats     statsDoc `yaml:"stats"`
	Abilities []string `yaml:"abilities"`
	Clan      string   `yaml:"clan"`
}

type statsDoc struct {
	MaxHealth        int     `yaml:"max_health"`
	Attack           int     `yaml:"attack"`
	Defense          int     `yaml:"defense"`
	Speed            int     `yaml:"speed"`
	CritChance       float64 `yaml:"crit_chance"`
	LifestealPercent float64 `yaml:"lifesteal_percent"`
	BleedChance      float64 `yaml:"bleed_chance"`
}

// LoadRoster reads every *.yaml file in dir, parses each as one thrall, and
// resolves clan and ability references against the given registries.
//
// Precondition: dir must be a readable directory; catalog must not be nil.
// Postcondition: Returns a non-nil Roster, or an error if any file fails to
// parse, validate, or resolve a reference.
func LoadRoster(dir string, catalog *ability.Registry, clans *ClanRegistry) (*Roster, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading thrall dir %q: %w", dir, err)
	}
	roster := NewRoster()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var doc thrallDoc
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		t, err := doc.toThrall(catalog, clans)
		if err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		roster.Register(t)
	}
	return roster, nil
}

func (d thrallDoc) toThrall(catalog *ability.Registry, clans *ClanRegistry) (*Thrall, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("thrall: id must not be empty")
	}
	stats := Stats{
		MaxHealth:        d.Stats.MaxHealth,
		Attack:           d.Stats.Attack,
		Defense:          d.Stats.Defense,
		Speed:            d.Stats.Speed,
		CritChance:       d.Stats.CritChance,
		LifestealPercent: d.Stats.LifestealPercent,
		BleedChance:      d.Stats.BleedChance,
	}
	if err := stats.Validate(); err != nil {
		return nil, fmt.Errorf("thrall %q: %w", d.ID, err)
	}

	t := &Thrall{
		ID:      d.ID,
		OwnerID: d.OwnerID,
		Name:    d.Name,
		Level:   d.Level,
		Stats:   stats,
	}
	for _, id := range d.Abilities {
		def, ok := catalog.Get(id)
		if !ok {
			return nil, fmt.Errorf("thrall %q: unknown ability %q", d.ID, id)
		}
		t.Abilities = append(t.Abilities, def)
	}
	if d.Clan != "" {
		if clans == nil {
			return nil, fmt.Errorf("thrall %q: clan %q referenced but no clan registry loaded", d.ID, d.Clan)
		}
		clan, ok := clans.Get(d.Clan)
		if !ok {
			return nil, fmt.Errorf("thrall %q: unknown clan %q", d.ID, d.Clan)
		}
		t.Clan = clan
	}
	return t, nil
}
