// Package profiles loads the virus profile catalog from YAML.
package profiles

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"pandemus/internal/epidemic"
)

//go:embed catalog.yaml
var defaultCatalog []byte

//go:embed schema.json
var catalogSchema string

// DefaultProfile is the profile used when none is requested.
const DefaultProfile = "baseline"

// Measure is one selectable intervention of a profile.
type Measure struct {
	ID              string  `yaml:"id" json:"id"`
	Label           string  `yaml:"label" json:"label"`
	Description     string  `yaml:"description" json:"description"`
	InfectionFactor float64 `yaml:"infection_factor" json:"infectionFactor"`
	RecoveryFactor  float64 `yaml:"recovery_factor" json:"recoveryFactor"`
}

// Profile is a virus profile together with the text the viewer displays.
type Profile struct {
	Name           string    `yaml:"name" json:"name"`
	Title          string    `yaml:"title" json:"title"`
	Description    string    `yaml:"description" json:"description"`
	Features       []string  `yaml:"features" json:"features,omitempty"`
	Transmission   string    `yaml:"transmission" json:"transmission,omitempty"`
	InfectionRate  float64   `yaml:"infection_rate" json:"baseInfectionRate"`
	RecoveryRate   float64   `yaml:"recovery_rate" json:"baseRecoveryRate"`
	MortalityRate  float64   `yaml:"mortality_rate" json:"baseMortalityRate"`
	DisplayCeiling int       `yaml:"display_ceiling" json:"displayCeiling"`
	Measures       []Measure `yaml:"measures" json:"measures"`
}

// VirusProfile converts p into the simulator's profile type.
func (p Profile) VirusProfile() epidemic.VirusProfile {
	registry := make(epidemic.Registry, len(p.Measures))
	for _, m := range p.Measures {
		registry[m.ID] = epidemic.InterventionEffect{
			InfectionFactor: m.InfectionFactor,
			RecoveryFactor:  m.RecoveryFactor,
		}
	}
	return epidemic.VirusProfile{
		Name:           p.Name,
		InfectionRate:  p.InfectionRate,
		RecoveryRate:   p.RecoveryRate,
		MortalityRate:  p.MortalityRate,
		Interventions:  registry,
		DisplayCeiling: p.DisplayCeiling,
	}
}

type document struct {
	Profiles []Profile `yaml:"profiles"`
}

// Catalog is an immutable set of profiles keyed by name.
type Catalog struct {
	profiles map[string]Profile
}

// Get returns the profile registered under name.
func (c *Catalog) Get(name string) (Profile, bool) {
	p, ok := c.profiles[name]
	return p, ok
}

// Names returns the profile names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.profiles))
	for name := range c.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all profiles sorted by name.
func (c *Catalog) List() []Profile {
	out := make([]Profile, 0, len(c.profiles))
	for _, name := range c.Names() {
		out = append(out, c.profiles[name])
	}
	return out
}

// Default returns the baseline profile.
func (c *Catalog) Default() Profile {
	return c.profiles[DefaultProfile]
}

// Loader builds a catalog from the embedded defaults and an optional file.
type Loader struct {
	path   string
	logger *slog.Logger
	schema *jsonschema.Schema
}

// NewLoader compiles the catalog schema. An empty path loads only the defaults.
func NewLoader(path string, logger *slog.Logger) (*Loader, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("profiles.json", strings.NewReader(catalogSchema)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile("profiles.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Loader{
		path:   path,
		logger: logger,
		schema: schema,
	}, nil
}

// Load parses the embedded catalog and overlays the configured file, whose
// profiles replace defaults of the same name.
func (l *Loader) Load() (*Catalog, error) {
	profiles, err := l.parse(defaultCatalog, "embedded")
	if err != nil {
		return nil, err
	}

	catalog := &Catalog{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		catalog.profiles[p.Name] = p
	}

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read profiles file %s: %w", l.path, err)
		}
		overrides, err := l.parse(data, l.path)
		if err != nil {
			return nil, err
		}
		for _, p := range overrides {
			if _, exists := catalog.profiles[p.Name]; exists {
				l.logger.Info("Profile overridden by file", "profile", p.Name, "file", l.path)
			}
			catalog.profiles[p.Name] = p
		}
	}

	if _, ok := catalog.profiles[DefaultProfile]; !ok {
		return nil, fmt.Errorf("catalog has no %q profile", DefaultProfile)
	}

	l.logger.Info("Profiles loaded", "count", len(catalog.profiles), "profiles", catalog.Names())
	return catalog, nil
}

func (l *Loader) parse(data []byte, source string) ([]Profile, error) {
	if err := l.validate(data); err != nil {
		return nil, fmt.Errorf("profiles %s: %w", source, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode profiles %s: %w", source, err)
	}

	seen := make(map[string]bool, len(doc.Profiles))
	for _, p := range doc.Profiles {
		if seen[p.Name] {
			return nil, fmt.Errorf("profiles %s: duplicate profile %q", source, p.Name)
		}
		seen[p.Name] = true
		measures := make(map[string]bool, len(p.Measures))
		for _, m := range p.Measures {
			if measures[m.ID] {
				return nil, fmt.Errorf("profiles %s: profile %q: duplicate measure %q", source, p.Name, m.ID)
			}
			measures[m.ID] = true
		}
		if err := p.VirusProfile().Validate(); err != nil {
			return nil, fmt.Errorf("profiles %s: %w", source, err)
		}
	}
	return doc.Profiles, nil
}

// validate checks the YAML document against the catalog schema.
func (l *Loader) validate(data []byte) error {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to convert yaml to json: %w", err)
	}
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(asJSON))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode json: %w", err)
	}
	if err := l.schema.Validate(doc); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
