// Package province resolves city names to their province-level division.
//
// The lookup table is embedded from data/provinces.yaml and parsed once.
package province

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"visitmap/internal/core"
)

//go:embed data/provinces.yaml
var defaultTable []byte

var cityNameSuffixes = []string{"市", "地区", "盟"}

type (
	table struct {
		Provinces []entry `yaml:"provinces"`
	}

	entry struct {
		Name   string   `yaml:"name"`
		Short  string   `yaml:"short"`
		Cities []string `yaml:"cities"`
	}

	// Resolver answers city-to-province lookups. It is immutable after
	// construction and safe for concurrent use.
	Resolver struct {
		names     []string
		provinces map[string]struct{}
		byCity    map[string]string
		byAlias   map[string]string
	}
)

var _ core.ProvinceResolver = (*Resolver)(nil)

var (
	defaultOnce     sync.Once
	defaultResolver *Resolver
)

// Default returns the resolver built from the embedded table.
func Default() *Resolver {
	defaultOnce.Do(func() {
		r, err := Parse(defaultTable)
		if err != nil {
			panic(fmt.Sprintf("province: embedded table: %v", err))
		}
		defaultResolver = r
	})
	return defaultResolver
}

// Parse builds a resolver from a YAML table.
func Parse(data []byte) (*Resolver, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode province table: %w", err)
	}
	if len(t.Provinces) == 0 {
		return nil, fmt.Errorf("province table is empty")
	}

	r := &Resolver{
		provinces: make(map[string]struct{}, len(t.Provinces)),
		byCity:    make(map[string]string),
		byAlias:   make(map[string]string),
	}
	for _, p := range t.Provinces {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("province entry without name")
		}
		if _, dup := r.provinces[name]; dup {
			return nil, fmt.Errorf("duplicate province %q", name)
		}
		r.names = append(r.names, name)
		r.provinces[name] = struct{}{}
		if short := strings.TrimSpace(p.Short); short != "" {
			r.addAlias(short, name)
		}
	}
	for _, p := range t.Provinces {
		for _, c := range p.Cities {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if prev, dup := r.byCity[c]; dup && prev != p.Name {
				return nil, fmt.Errorf("city %q listed under %q and %q", c, prev, p.Name)
			}
			r.byCity[c] = p.Name
			for _, suffix := range cityNameSuffixes {
				if base := strings.TrimSuffix(c, suffix); base != c && base != "" {
					r.addAlias(base, p.Name)
				}
			}
		}
	}
	return r, nil
}

func (r *Resolver) addAlias(alias, province string) {
	if _, taken := r.byAlias[alias]; !taken {
		r.byAlias[alias] = province
	}
}

// IsProvince reports whether name is one of the full province names.
func (r *Resolver) IsProvince(name string) bool {
	_, ok := r.provinces[name]
	return ok
}

// Resolve looks city up by full name first, then by short form.
func (r *Resolver) Resolve(city string) (string, bool) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", false
	}
	if p, ok := r.byCity[city]; ok {
		return p, true
	}
	if p, ok := r.byAlias[city]; ok {
		return p, true
	}
	return "", false
}

// Names returns the full province names in table order.
func (r *Resolver) Names() []string {
	return append([]string(nil), r.names...)
}
