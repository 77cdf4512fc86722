// Package strategies loads the strategy presets served to clients.
// Presets are configuration only; solvers never read them.
package strategies

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed strategies.yaml
var embedded []byte

// Param units.
const (
	UnitPercent = "percent"
	UnitInteger = "integer"
	UnitNumber  = "number"
)

// Param describes one tunable preset parameter.
type Param struct {
	Key     string   `yaml:"key" json:"key"`
	Label   string   `yaml:"label" json:"label"`
	Type    string   `yaml:"type" json:"type"`
	Min     *float64 `yaml:"min" json:"min,omitempty"`
	Max     *float64 `yaml:"max" json:"max,omitempty"`
	Step    *float64 `yaml:"step" json:"step,omitempty"`
	Default float64  `yaml:"default" json:"default"`
	Suffix  string   `yaml:"suffix" json:"suffix,omitempty"`
	Unit    string   `yaml:"unit" json:"unit,omitempty"`
}

// Strategy is a named preset for one optimizer mode.
type Strategy struct {
	ID                string  `yaml:"id" json:"id"`
	Title             string  `yaml:"title" json:"title"`
	Description       string  `yaml:"description" json:"description"`
	Tip               string  `yaml:"tip" json:"tip"`
	RecommendPriority int     `yaml:"recommendPriority" json:"recommendPriority"`
	Params            []Param `yaml:"params" json:"params"`
}

type file struct {
	Strategies []Strategy `yaml:"strategies"`
}

// Registry holds the presets ordered by recommendation priority.
type Registry struct {
	strategies []Strategy
	byID       map[string]int
}

// Load reads presets from path, or the built-in presets when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Parse(embedded)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategies file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML preset document.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse strategies: %w", err)
	}
	if len(f.Strategies) == 0 {
		return nil, errors.New("no strategies defined")
	}

	sort.SliceStable(f.Strategies, func(i, j int) bool {
		return f.Strategies[i].RecommendPriority < f.Strategies[j].RecommendPriority
	})

	r := &Registry{strategies: f.Strategies, byID: make(map[string]int, len(f.Strategies))}
	for i, s := range f.Strategies {
		if s.ID == "" {
			return nil, fmt.Errorf("strategy %d has no id", i)
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate strategy id %q", s.ID)
		}
		for _, p := range s.Params {
			if p.Key == "" {
				return nil, fmt.Errorf("strategy %q has a parameter without key", s.ID)
			}
		}
		r.byID[s.ID] = i
	}
	return r, nil
}

// All returns the presets in priority order.
func (r *Registry) All() []Strategy {
	return append([]Strategy(nil), r.strategies...)
}

// Get returns the preset with the given id.
func (r *Registry) Get(id string) (Strategy, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Strategy{}, false
	}
	return r.strategies[i], true
}

// IDs returns preset ids in priority order.
func (r *Registry) IDs() []string {
	return lo.Map(r.strategies, func(s Strategy, _ int) string { return s.ID })
}

// Defaults returns the request parameters for a preset: percent values as fractions,
// integer values rounded.
func (r *Registry) Defaults(id string) (map[string]float64, bool) {
	s, ok := r.Get(id)
	if !ok {
		return nil, false
	}
	params := make(map[string]float64, len(s.Params))
	for _, p := range s.Params {
		v := p.Default
		switch p.Unit {
		case UnitPercent:
			v /= 100
		case UnitInteger:
			v = math.Round(v)
		}
		params[p.Key] = v
	}
	return params, true
}
