package thrall

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClanRegistry holds all known Clans keyed by ID, loaded once at startup.
type ClanRegistry struct {
	clans map[string]*Clan
}

// NewClanRegistry creates an empty ClanRegistry.
func NewClanRegistry() *ClanRegistry {
	return &ClanRegistry{clans: make(map[string]*Clan)}
}

// Register adds c, overwriting any existing entry with the same ID.
//
// Precondition: c must not be nil and c.ID must not be empty.
func (r *ClanRegistry) Register(c *Clan) {
	r.clans[c.ID] = c
}

// Get returns the Clan for id, or (nil, false) if not found.
func (r *ClanRegistry) Get(id string) (*Clan, bool) {
	c, ok := r.clans[id]
	return c, ok
}

// All returns every registered Clan sorted by ID.
func (r *ClanRegistry) All() []*Clan {
	out := make([]*Clan, 0, len(r.clans))
	for _, c := range r.clans {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type clanDoc struct {
	ID               string  `yaml:"id"`
	Name             string  `yaml:"name"`
	AttackSpeedBonus float64 `yaml:"attack_speed_bonus"`
	LifestealBonus   float64 `yaml:"lifesteal_bonus"`
	BleedChanceBonus float64 `yaml:"bleed_chance_bonus"`
}

// LoadClanDirectory reads every *.yaml file in dir, parses each as one Clan,
// and returns a populated ClanRegistry.
//
// Precondition: dir must be a readable directory.
func LoadClanDirectory(dir string) (*ClanRegistry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading clan dir %q: %w", dir, err)
	}
	reg := NewClanRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var doc clanDoc
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if doc.ID == "" {
			return nil, fmt.Errorf("clan file %q: id must not be empty", path)
		}
		reg.Register(&Clan{
			ID:               doc.ID,
			Name:             doc.Name,
			AttackSpeedBonus: doc.AttackSpeedBonus,
			LifestealBonus:   doc.LifestealBonus,
			BleedChanceBonus: doc.BleedChanceBonus,
		})
	}
	return reg, nil
}
