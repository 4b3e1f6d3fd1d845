package preset

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lk2023060901/ai-search-dispatcher/internal/search/filter"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

//go:embed presets.yaml
var builtin []byte

// Table is an immutable, name-indexed set of presets. It is built once and
// only read afterwards, so it is safe to share without locking.
type Table struct {
	presets map[string]types.PresetDefinition
	names   []string
}

type document struct {
	Presets []types.PresetDefinition `yaml:"presets"`
}

// Load parses a preset document
func Load(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}

	t := &Table{presets: make(map[string]types.PresetDefinition, len(doc.Presets))}
	for _, p := range doc.Presets {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return nil, fmt.Errorf("preset without a name")
		}
		if _, dup := t.presets[name]; dup {
			return nil, fmt.Errorf("duplicate preset %q", name)
		}
		if domains, ok := p.Options.Domains.Get(); ok {
			if _, err := filter.ValidateDomains(domains); err != nil {
				return nil, fmt.Errorf("preset %q: %w", name, err)
			}
		}
		p.Name = name
		t.presets[name] = p
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)

	return t, nil
}

// Lookup returns the preset with the given name (case-insensitive)
func (t *Table) Lookup(name string) (types.PresetDefinition, bool) {
	p, ok := t.presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return types.PresetDefinition{}, false
	}
	if domains, set := p.Options.Domains.Get(); set {
		p.Options.Domains = types.Some(append([]string(nil), domains...))
	}
	return p, true
}

// Names returns the sorted preset names
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// All returns every preset in name order
func (t *Table) All() []types.PresetDefinition {
	out := make([]types.PresetDefinition, 0, len(t.names))
	for _, n := range t.names {
		p, _ := t.Lookup(n)
		out = append(out, p)
	}
	return out
}

var defaultTable = mustLoad(builtin)

func mustLoad(data []byte) *Table {
	t, err := Load(data)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the built-in preset table
func Default() *Table {
	return defaultTable
}
