package rtconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry holds every loaded resource-type configuration, keyed by type
// name and by template id.
type Registry struct {
	byName     map[string]*Type
	byTemplate map[int64]*Type
}

// LoadDir reads every *.yaml/*.yml file in dir as one Type, validates it and
// registers it. File order does not matter; names and template ids must be
// unique across the directory.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read types dir: %w", err)
	}

	reg := &Registry{
		byName:     make(map[string]*Type),
		byTemplate: make(map[int64]*Type),
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		var t Type
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("decode %s: %w", entry.Name(), err)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("validate %s: %w", entry.Name(), err)
		}
		if err := reg.add(&t); err != nil {
			return nil, fmt.Errorf("register %s: %w", entry.Name(), err)
		}
	}

	if len(reg.byName) == 0 {
		return nil, fmt.Errorf("no resource type configurations found in %s", dir)
	}

	return reg, nil
}

func (r *Registry) add(t *Type) error {
	if _, dup := r.byName[t.Name]; dup {
		return fmt.Errorf("duplicate type name %q", t.Name)
	}
	if _, dup := r.byTemplate[t.TemplateID]; dup {
		return fmt.Errorf("duplicate template id %d", t.TemplateID)
	}
	r.byName[t.Name] = t
	r.byTemplate[t.TemplateID] = t
	return nil
}

// Get returns the configuration for a type name.
func (r *Registry) Get(name string) (*Type, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown resource type %q", name)
	}
	return t, nil
}

// ByTemplate returns the configuration for a template id, or nil.
func (r *Registry) ByTemplate(templateID int64) *Type {
	return r.byTemplate[templateID]
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
