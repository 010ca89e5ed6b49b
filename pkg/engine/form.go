package engine

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Mathiio/edisem-sub000/pkg/models"
	"github.com/Mathiio/edisem-sub000/pkg/rtconfig"
)

// Mode is the form lifecycle mode. view -> edit -> view on cancel or save;
// create is discarded on cancel and becomes view on successful save, since
// a new identity is produced and the caller navigates to it.
type Mode string

const (
	ModeView   Mode = "view"
	ModeEdit   Mode = "edit"
	ModeCreate Mode = "create"
)

// FormState is the single mutable document of an edit/create session.
// Collaborators may read it or call its setters; they never mutate the
// underlying data directly.
type FormState struct {
	mu         sync.Mutex
	cfg        *rtconfig.Type
	logger     *zap.Logger
	mode       Mode
	data       map[string]any
	initial    map[string]any
	touched    map[string]bool
	errors     map[string]string
	dirty      bool
	submitting bool
}

// NewFormState creates a form in view mode with no data.
func NewFormState(cfg *rtconfig.Type, logger *zap.Logger) *FormState {
	return &FormState{
		cfg:     cfg,
		logger:  logger.Named("form"),
		mode:    ModeView,
		data:    map[string]any{},
		initial: map[string]any{},
		touched: map[string]bool{},
		errors:  map[string]string{},
	}
}

// Mode returns the current lifecycle mode.
func (f *FormState) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// IsDirty reports whether any field changed since hydration/reset.
func (f *FormState) IsDirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

// IsSubmitting reports whether a save is in flight.
func (f *FormState) IsSubmitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Get returns the current value of one field key.
func (f *FormState) Get(key string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key]
}

// Snapshot returns a copy of the current form data.
func (f *FormState) Snapshot() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyData(f.data)
}

// Touched returns the field keys assigned since hydration/reset.
func (f *FormState) Touched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.touched))
	for key := range f.touched {
		keys = append(keys, key)
	}
	return keys
}

// Errors returns the current validation errors per field key.
func (f *FormState) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// SetField assigns one field, marks the form dirty and clears that field's
// error. Last write wins; there is no operation queue. Writes keyed by a
// configured field's key or legacy alias are mirrored onto every name of
// that field, preserving the agreement Hydrate established.
func (f *FormState) SetField(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setFieldLocked(key, value)
}

// SetFields batch-assigns a patch of fields.
func (f *FormState) SetFields(patch map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, value := range patch {
		f.setFieldLocked(key, value)
	}
}

func (f *FormState) setFieldLocked(key string, value any) {
	f.assignLocked(key, value)
	if field := f.cfg.Field(key); field != nil {
		f.assignLocked(field.Key, value)
		for _, alias := range field.LegacyAliases {
			f.assignLocked(alias, value)
		}
	}
	f.dirty = true
}

func (f *FormState) assignLocked(key string, value any) {
	f.data[key] = value
	f.touched[key] = true
	delete(f.errors, key)
}

// BeginCreate initializes an empty form in create mode.
func (f *FormState) BeginCreate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = ModeCreate
	f.data = map[string]any{}
	f.initial = map[string]any{}
	f.resetTrackingLocked()
}

// Hydrate initializes the form from a fetch result and enters edit mode.
// Hydration is idempotent: hydrating twice from the same result with no
// edits in between produces identical state.
//
// Multi-reference fields replace each raw reference id with the richly
// described entity already materialized in the fetch result's association
// cache; unresolved references degrade to the bare reference shape. The
// hydrated value is mirrored onto the field's legacy aliases so collaborators
// written against either key keep working.
func (f *FormState) Hydrate(result *models.FetchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mode = ModeEdit
	f.data = map[string]any{}
	cache := result.AssociationCache()
	details := result.ItemDetails

	for _, field := range f.cfg.Fields {
		value, ok := hydrateField(&field, details, cache)
		if !ok {
			continue
		}
		f.data[field.Key] = value
		for _, alias := range field.LegacyAliases {
			f.data[alias] = value
		}
	}

	f.initial = copyData(f.data)
	f.resetTrackingLocked()
}

func (f *FormState) resetTrackingLocked() {
	f.touched = map[string]bool{}
	f.errors = map[string]string{}
	f.dirty = false
	f.submitting = false
}

// hydrateField derives the initial form value of one field from the fetched
// resource, trying the field's candidate property keys in order.
func hydrateField(field *rtconfig.Field, details *models.Resource, cache map[int64]models.Entity) (any, bool) {
	if details == nil {
		return nil, false
	}
	for _, key := range field.PropertyKeys {
		vals := details.Values(key)
		if len(vals) == 0 {
			continue
		}
		switch field.Kind {
		case rtconfig.FieldMultiRef:
			entities := make([]models.Entity, 0, len(vals))
			for _, v := range vals {
				if v.Type != models.TypeResource || v.ResourceID == 0 {
					continue
				}
				if entity, ok := cache[v.ResourceID]; ok {
					entities = append(entities, entity)
				} else {
					entities = append(entities, models.Entity{ID: v.ResourceID, Title: v.Label})
				}
			}
			return entities, true
		case rtconfig.FieldSingleRef:
			for _, v := range vals {
				if v.Type == models.TypeResource && v.ResourceID != 0 {
					if entity, ok := cache[v.ResourceID]; ok {
						return entity, true
					}
					return models.Entity{ID: v.ResourceID, Title: v.Label}, true
				}
			}
			return nil, false
		default:
			return vals[0].Payload(), true
		}
	}
	return nil, false
}

// Validate runs the per-field required/format checks declared in the
// configuration, populates the error map and returns overall pass/fail.
// Save is gated on this returning true.
func (f *FormState) Validate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.errors = map[string]string{}
	for _, field := range f.cfg.Fields {
		value := f.data[field.Key]

		if field.Required && valueEmpty(value) {
			f.errors[field.Key] = "required"
			continue
		}
		if valueEmpty(value) {
			continue
		}

		str, isString := value.(string)
		if !isString {
			continue
		}

		switch field.Kind {
		case rtconfig.FieldNumeric:
			if _, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err != nil {
				f.errors[field.Key] = "must be a number"
				continue
			}
		case rtconfig.FieldURL:
			parsed, err := url.Parse(str)
			if err != nil || parsed.Scheme == "" || parsed.Host == "" {
				f.errors[field.Key] = "must be an absolute URL"
				continue
			}
		}

		if !field.MatchesPattern(str) {
			f.errors[field.Key] = fmt.Sprintf("must match %s", field.Pattern)
		}
	}

	if len(f.errors) > 0 {
		f.logger.Debug("Validation failed", zap.Int("error_count", len(f.errors)))
		return false
	}
	return true
}

// Reset restores the initial snapshot. Used by cancel.
func (f *FormState) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = copyData(f.initial)
	f.resetTrackingLocked()
}

// BeginSubmit flips the submitting flag, gating duplicate save clicks.
// Returns false when a save is already in flight.
func (f *FormState) BeginSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return false
	}
	f.submitting = true
	return true
}

// EndSubmit clears the submitting flag.
func (f *FormState) EndSubmit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
}

// LeaveEdit returns the form to view mode, keeping data intact. Called after
// a successful save.
func (f *FormState) LeaveEdit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = ModeView
	f.initial = copyData(f.data)
	f.resetTrackingLocked()
}

// valueEmpty reports whether a form value counts as absent: nil, blank
// string, or an empty entity list.
func valueEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []models.Entity:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}

// copyData shallow-copies form data; values are treated as immutable by
// convention (setters replace, never mutate in place).
func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if entities, ok := v.([]models.Entity); ok {
			cp := make([]models.Entity, len(entities))
			copy(cp, entities)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}
