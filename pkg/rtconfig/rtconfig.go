// Package rtconfig holds the declarative per-resource-type configuration:
// which logical fields a type has, which views its detail display offers,
// and how its recommendations are derived. Configurations are loaded from
// YAML at startup and immutable afterwards.
package rtconfig

import (
	"fmt"
	"regexp"
)

// FieldKind classifies a logical field and drives both validation and
// mutation compilation.
type FieldKind string

const (
	FieldTitle     FieldKind = "title"
	FieldText      FieldKind = "text"
	FieldDate      FieldKind = "date"
	FieldNumeric   FieldKind = "numeric"
	FieldURL       FieldKind = "url"
	FieldSingleRef FieldKind = "single-reference"
	FieldMultiRef  FieldKind = "multi-reference"
)

// ViewKind is the closed set of view renderers. Availability detection
// pattern-matches on the kind instead of inspecting rendered output.
type ViewKind string

const (
	ViewStatic          ViewKind = "static"
	ViewItemsList       ViewKind = "items-list"
	ViewCategorizedText ViewKind = "categorized-text"
	ViewReferenceList   ViewKind = "reference-list"
)

// Field declares one logical field of a resource type: a template-agnostic
// key, the ordered candidate property keys it may resolve to, and how it is
// edited.
type Field struct {
	Key string `yaml:"key"`

	// PropertyKeys are candidate namespaced property keys, tried in order
	// against the runtime property map of the active template.
	PropertyKeys []string `yaml:"property_keys"`

	Kind     FieldKind `yaml:"kind"`
	Zone     string    `yaml:"zone"`
	Required bool      `yaml:"required"`

	// Pattern is an optional format check applied by form validation.
	Pattern string `yaml:"pattern,omitempty"`

	// TemplateIDs filters picker candidates for reference fields.
	// Required for multi-reference fields.
	TemplateIDs []int64 `yaml:"template_ids,omitempty"`

	// LegacyAliases are additional form keys hydration mirrors this field's
	// value onto, so collaborators written against an older key keep working.
	LegacyAliases []string `yaml:"legacy_aliases,omitempty"`

	pattern *regexp.Regexp
}

// MatchesPattern reports whether value satisfies the field's format check.
// Fields without a pattern accept everything.
func (f *Field) MatchesPattern(value string) bool {
	if f.pattern == nil {
		return true
	}
	return f.pattern.MatchString(value)
}

// View declares one named section of the detail display.
type View struct {
	Key   string   `yaml:"key"`
	Kind  ViewKind `yaml:"kind"`
	Title string   `yaml:"title"`

	// Editable views are always offered in edit mode, even when empty, so
	// content can be added to an empty section.
	Editable bool `yaml:"editable"`

	// Default marks the view selected when the current selection is not
	// available. At most one view per type may be default.
	Default bool `yaml:"default"`

	// Source names the data backing the view: a property key for
	// reference-backed kinds, a view-data key otherwise.
	Source string `yaml:"source,omitempty"`

	// Placeholders are known "no data" strings for static views; a static
	// view whose content equals one of them counts as empty.
	Placeholders []string `yaml:"placeholders,omitempty"`
}

// Recommendation configures the related-resources strategy of a type.
type Recommendation struct {
	// Max caps the returned list. Zero means the engine default.
	Max int `yaml:"max"`

	// Strategy names a registered similarity/relation strategy. Empty means
	// only explicit ids from the fetch are used.
	Strategy string `yaml:"strategy,omitempty"`

	// Source is the property key holding explicit recommendation ids.
	Source string `yaml:"source,omitempty"`
}

// Type is the full configuration of one resource type.
type Type struct {
	Name       string `yaml:"name"`
	TemplateID int64  `yaml:"template_id"`

	// KeywordsSource is the property key linking resources to their
	// associated concepts, fetched as the keywords stage.
	KeywordsSource string `yaml:"keywords_source,omitempty"`

	Fields         []Field         `yaml:"fields"`
	Views          []View          `yaml:"views"`
	Recommendation *Recommendation `yaml:"recommendation,omitempty"`

	fieldIndex map[string]*Field
	viewIndex  map[string]*View
}

// Validate checks the configuration invariants and builds the lookup
// indexes. Must be called once after decoding, before any other use.
func (t *Type) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("type name is required")
	}
	if t.TemplateID == 0 {
		return fmt.Errorf("type %s: template_id is required", t.Name)
	}

	t.fieldIndex = make(map[string]*Field, len(t.Fields))
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Key == "" {
			return fmt.Errorf("type %s: field %d has no key", t.Name, i)
		}
		if _, dup := t.fieldIndex[f.Key]; dup {
			return fmt.Errorf("type %s: duplicate field key %q", t.Name, f.Key)
		}
		if len(f.PropertyKeys) == 0 {
			return fmt.Errorf("type %s: field %q declares no property keys", t.Name, f.Key)
		}
		if f.Kind == "" {
			return fmt.Errorf("type %s: field %q has no kind", t.Name, f.Key)
		}
		if f.Kind == FieldMultiRef && len(f.TemplateIDs) == 0 {
			return fmt.Errorf("type %s: multi-reference field %q must declare template_ids", t.Name, f.Key)
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return fmt.Errorf("type %s: field %q pattern: %w", t.Name, f.Key, err)
			}
			f.pattern = re
		}
		t.fieldIndex[f.Key] = f
	}
	for i := range t.Fields {
		f := &t.Fields[i]
		for _, alias := range f.LegacyAliases {
			if _, dup := t.fieldIndex[alias]; dup {
				return fmt.Errorf("type %s: legacy alias %q of field %q collides with another field key", t.Name, alias, f.Key)
			}
			t.fieldIndex[alias] = f
		}
	}

	t.viewIndex = make(map[string]*View, len(t.Views))
	defaults := 0
	for i := range t.Views {
		v := &t.Views[i]
		if v.Key == "" {
			return fmt.Errorf("type %s: view %d has no key", t.Name, i)
		}
		if _, dup := t.viewIndex[v.Key]; dup {
			return fmt.Errorf("type %s: duplicate view key %q", t.Name, v.Key)
		}
		switch v.Kind {
		case ViewStatic, ViewItemsList, ViewCategorizedText, ViewReferenceList:
		default:
			return fmt.Errorf("type %s: view %q has unknown kind %q", t.Name, v.Key, v.Kind)
		}
		if v.Kind != ViewStatic && v.Source == "" {
			return fmt.Errorf("type %s: view %q of kind %s must declare a source", t.Name, v.Key, v.Kind)
		}
		if v.Default {
			defaults++
		}
		t.viewIndex[v.Key] = v
	}
	if defaults > 1 {
		return fmt.Errorf("type %s: more than one default view", t.Name)
	}

	return nil
}

// Field returns the field with the given key or legacy alias, or nil.
func (t *Type) Field(key string) *Field {
	return t.fieldIndex[key]
}

// View returns the view with the given key, or nil.
func (t *Type) View(key string) *View {
	return t.viewIndex[key]
}

// DefaultView returns the configured default view, or nil.
func (t *Type) DefaultView() *View {
	for i := range t.Views {
		if t.Views[i].Default {
			return &t.Views[i]
		}
	}
	return nil
}

// RecommendationMax returns the configured cap, falling back to def.
func (t *Type) RecommendationMax(def int) int {
	if t.Recommendation != nil && t.Recommendation.Max > 0 {
		return t.Recommendation.Max
	}
	return def
}
