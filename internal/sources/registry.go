// Package sources maps article URLs to publisher profiles.
//
// Two layers back the lookup: operator-defined rows from storage and a
// built-in set of well-known outlets embedded at compile time. Operator
// rows are consulted first; URLs matching neither layer fall back to a
// generic external-source profile.
package sources

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"noticias_ingest/internal/model"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Profile describes a publisher used to tag provenance and render badges.
type Profile struct {
	Name          string `yaml:"name" json:"name"`
	DomainPattern string `yaml:"domain_pattern" json:"domain_pattern"`
	Badge         string `yaml:"badge" json:"badge"`
	Color         string `yaml:"color" json:"color"`
	ParseHints    string `yaml:"parse_hints" json:"parse_hints,omitempty"`
	Builtin       bool   `yaml:"-" json:"builtin"`
}

// Generic is the fallback profile for URLs no pattern matches.
var Generic = Profile{Name: "Fonte externa", Badge: "RSS", Color: "#607D8B"}

// Registry resolves URLs to publisher profiles.
type Registry struct {
	profiles []Profile
}

// New builds a registry from operator-defined sources layered over the
// embedded builtins. Inactive sources are skipped.
func New(stored []model.Source) (*Registry, error) {
	builtins, err := loadBuiltins()
	if err != nil {
		return nil, err
	}

	profiles := make([]Profile, 0, len(stored)+len(builtins))
	for _, s := range stored {
		if !s.IsActive {
			continue
		}
		profiles = append(profiles, Profile{
			Name:          s.Name,
			DomainPattern: s.DomainPattern,
			Badge:         s.Badge,
			Color:         s.Color,
			ParseHints:    s.ParseHints,
		})
	}
	profiles = append(profiles, builtins...)

	return &Registry{profiles: profiles}, nil
}

func loadBuiltins() ([]Profile, error) {
	var doc struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(builtinYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse builtin sources: %w", err)
	}
	for i := range doc.Profiles {
		doc.Profiles[i].Builtin = true
	}
	return doc.Profiles, nil
}

// Detect returns the profile whose domain pattern is contained in url,
// case-insensitively, first registered pattern wins. URLs matching no
// pattern get the Generic profile. Detect is a pure lookup.
func (r *Registry) Detect(url string) Profile {
	lowered := strings.ToLower(url)
	for _, p := range r.profiles {
		if p.DomainPattern == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(p.DomainPattern)) {
			return p
		}
	}
	return Generic
}

// Profiles returns every registered profile in lookup order.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}
