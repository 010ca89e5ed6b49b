package engine

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Mathiio/edisem-sub000/pkg/identity"
	"github.com/Mathiio/edisem-sub000/pkg/models"
	"github.com/Mathiio/edisem-sub000/pkg/rtconfig"
)

// Compiler translates form state into the store's mutation payload format:
// literal property updates, whole-list reference replacement, and synthesized
// properties for fields transitioning from absent to present.
type Compiler struct {
	cfg      *rtconfig.Type
	resolver *Resolver
	logger   *zap.Logger
}

// NewCompiler creates a Compiler for one resource type.
func NewCompiler(cfg *rtconfig.Type, resolver *Resolver, logger *zap.Logger) *Compiler {
	return &Compiler{cfg: cfg, resolver: resolver, logger: logger.Named("mutation-compiler")}
}

// CreateOptions carries the out-of-band context of a create: the current
// actor for ownership/creator properties and an optional contextual parent
// id supplied by navigation.
type CreateOptions struct {
	Actor    *identity.Actor
	ParentID int64
}

// CompileUpdate builds the update payload for an edited resource. The
// payload starts from a copy of the original, so properties the
// configuration does not know about pass through unchanged; only touched
// fields are rewritten. Multi-reference properties are replaced wholesale,
// which expresses additions and removals in one mutation.
func (c *Compiler) CompileUpdate(orig *models.Resource, form *FormState, pm models.PropertyMap) (models.MutationPayload, error) {
	payload := models.MutationPayload{}
	for key, vals := range orig.Clone().Properties {
		payload.SetProperty(key, vals)
	}
	if orig.TemplateID != 0 {
		payload["o:resource_template"] = models.TemplateRef(orig.TemplateID)
	}

	compiled := make(map[string]bool)
	for _, touchedKey := range form.Touched() {
		// Touched keys may be a field's canonical key or one of its legacy
		// aliases; either names the same field, compiled once.
		field := c.cfg.Field(touchedKey)
		if field == nil || compiled[field.Key] {
			continue
		}
		compiled[field.Key] = true
		value := form.Get(field.Key)

		switch field.Kind {
		case rtconfig.FieldMultiRef, rtconfig.FieldSingleRef:
			c.compileReferences(payload, field, value, pm)

		case rtconfig.FieldNumeric:
			str, ok := literalString(value)
			if !ok {
				continue
			}
			if c.overwriteFirstLiteral(payload, field, str) {
				continue
			}
			// Absent numeric properties are synthesized: the one case where
			// a field transitions from absent to present during edit.
			key, id, err := c.resolver.Resolve(field.Key, pm)
			if err != nil {
				continue
			}
			payload.SetProperty(key, []models.PropertyValue{models.NewLiteral(id, str)})

		default:
			str, ok := literalString(value)
			if !ok {
				continue
			}
			c.overwriteFirstLiteral(payload, field, str)
		}
	}

	return payload, nil
}

// compileReferences replaces the property's entire value list with one
// reference per entity currently in form state, deduplicated by target id.
func (c *Compiler) compileReferences(payload models.MutationPayload, field *rtconfig.Field, value any, pm models.PropertyMap) {
	key, id, err := c.resolver.Resolve(field.Key, pm)
	if err != nil {
		// Unresolved fields are omitted from the mutation, not fatal.
		return
	}

	entities := asEntities(value)
	refs := make([]models.PropertyValue, 0, len(entities))
	seen := make(map[int64]bool, len(entities))
	for _, e := range entities {
		if e.ID == 0 || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		ref := models.NewReference(id, e.ID)
		ref.Label = e.Title
		refs = append(refs, ref)
	}

	// The resolved key may differ from the key the original resource used
	// for this field; drop the superseded lists so the store does not keep
	// both.
	for _, candidate := range field.PropertyKeys {
		if candidate != key {
			delete(payload, candidate)
		}
	}
	payload.SetProperty(key, refs)
}

// overwriteFirstLiteral rewrites the payload of the first existing value
// under any of the field's candidate keys. Literal fields are never
// multi-valued in this model. Returns false when no candidate key holds a
// value yet.
func (c *Compiler) overwriteFirstLiteral(payload models.MutationPayload, field *rtconfig.Field, str string) bool {
	for _, key := range field.PropertyKeys {
		vals := payload.PropertyValues(key)
		if len(vals) == 0 {
			continue
		}
		updated := make([]models.PropertyValue, len(vals))
		copy(updated, vals)
		if updated[0].Type == models.TypeURI {
			updated[0].URI = str
		} else {
			updated[0].Value = str
		}
		payload.SetProperty(key, updated)
		return true
	}
	return false
}

// CompileCreate builds the payload for a new resource: the template
// reference, ownership and creator markers, every configured field with a
// non-empty value, and an open-ended pass over the remaining form entries
// whose keys are themselves namespaced property keys, so properties
// reachable only through view-level editing are still persisted.
func (c *Compiler) CompileCreate(templateID int64, form *FormState, pm models.PropertyMap, opts CreateOptions) (models.MutationPayload, error) {
	payload := models.MutationPayload{
		"o:resource_template": models.TemplateRef(templateID),
	}
	data := form.Snapshot()
	consumed := make(map[string]bool)

	if opts.Actor != nil && opts.Actor.PrincipalID != 0 {
		payload["o:owner"] = map[string]any{"o:id": opts.Actor.PrincipalID}
	}

	if opts.ParentID != 0 {
		if key, id, err := c.resolver.ResolveConcept("partOf", pm); err == nil {
			payload.SetProperty(key, []models.PropertyValue{models.NewReference(id, opts.ParentID)})
		}
	}

	// Creator reference: first resolvable among the creator-like aliases.
	if opts.Actor != nil && opts.Actor.ResourceID != 0 {
		if key, id, err := c.resolver.ResolveConcept("creator", pm); err == nil {
			payload.SetProperty(key, []models.PropertyValue{models.NewReference(id, opts.Actor.ResourceID)})
		} else {
			c.logger.Warn("No creator-like property resolvable for template",
				zap.Int64("template_id", templateID))
		}
	}

	for i := range c.cfg.Fields {
		field := &c.cfg.Fields[i]
		value, valueKey := fieldValue(field, data)
		if valueEmpty(value) {
			continue
		}
		consumed[valueKey] = true

		key, id, err := c.resolver.Resolve(field.Key, pm)
		if err != nil {
			continue
		}

		switch field.Kind {
		case rtconfig.FieldMultiRef, rtconfig.FieldSingleRef:
			c.compileReferences(payload, field, value, pm)
		case rtconfig.FieldURL:
			if str, ok := literalString(value); ok {
				payload.SetProperty(key, []models.PropertyValue{models.NewURI(id, str)})
			}
		default:
			if str, ok := literalString(value); ok {
				payload.SetProperty(key, []models.PropertyValue{models.NewLiteral(id, str)})
			}
		}
	}

	c.compileLoose(payload, data, consumed, pm)

	dropUnresolved(payload, c.logger)
	return payload, nil
}

// compileLoose is the open-ended pass: form entries whose key itself looks
// like a namespaced property key and was not consumed by a configured field
// are persisted by runtime shape.
func (c *Compiler) compileLoose(payload models.MutationPayload, data map[string]any, consumed map[string]bool, pm models.PropertyMap) {
	for key, value := range data {
		if consumed[key] || !strings.Contains(key, ":") {
			continue
		}
		if _, exists := payload[key]; exists {
			continue
		}

		id, resolved := c.resolver.ResolveKey(key, pm)
		if !resolved {
			// Kept with a zero id; the final pass drops it.
			id = 0
		}

		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			payload.SetProperty(key, []models.PropertyValue{models.NewLiteral(id, v)})
		case int, int64, float64:
			str, _ := literalString(v)
			payload.SetProperty(key, []models.PropertyValue{models.NewLiteral(id, str)})
		case []string:
			vals := make([]models.PropertyValue, 0, len(v))
			for _, s := range v {
				if strings.TrimSpace(s) == "" {
					continue
				}
				vals = append(vals, models.NewLiteral(id, s))
			}
			if len(vals) > 0 {
				payload.SetProperty(key, vals)
			}
		case []models.Entity:
			refs := make([]models.PropertyValue, 0, len(v))
			for _, e := range v {
				if e.ID != 0 {
					refs = append(refs, models.NewReference(id, e.ID))
				}
			}
			if len(refs) > 0 {
				payload.SetProperty(key, refs)
			}
		}
	}
}

// MediaDeletions diffs removed-index markers against the original resource's
// media list, yielding the media ids to delete as separate operations.
func (c *Compiler) MediaDeletions(orig *models.Resource, removedIdx []int) []int64 {
	if orig == nil {
		return nil
	}
	ids := make([]int64, 0, len(removedIdx))
	seen := make(map[int]bool, len(removedIdx))
	for _, idx := range removedIdx {
		if idx < 0 || idx >= len(orig.Media) || seen[idx] {
			continue
		}
		seen[idx] = true
		ids = append(ids, orig.Media[idx].ID)
	}
	return ids
}

// fieldValue looks the field up in form data by its key, then by its legacy
// aliases, returning the value and the key it was found under.
func fieldValue(field *rtconfig.Field, data map[string]any) (any, string) {
	if value, ok := data[field.Key]; ok && !valueEmpty(value) {
		return value, field.Key
	}
	for _, alias := range field.LegacyAliases {
		if value, ok := data[alias]; ok && !valueEmpty(value) {
			return value, alias
		}
	}
	return nil, field.Key
}

// dropUnresolved removes property entries whose identifier could not be
// resolved, so the payload never carries invalid property ids.
func dropUnresolved(payload models.MutationPayload, logger *zap.Logger) {
	for key, raw := range payload {
		vals, ok := raw.([]models.PropertyValue)
		if !ok {
			continue
		}
		for _, v := range vals {
			if v.PropertyID == 0 {
				logger.Warn("Dropping property with unresolved identifier", zap.String("key", key))
				delete(payload, key)
				break
			}
		}
	}
}

// asEntities normalizes a reference-field form value to an entity list.
func asEntities(value any) []models.Entity {
	switch v := value.(type) {
	case []models.Entity:
		return v
	case models.Entity:
		return []models.Entity{v}
	case *models.Entity:
		if v == nil {
			return nil
		}
		return []models.Entity{*v}
	}
	return nil
}

// literalString coerces a scalar form value to its literal payload.
func literalString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return fmt.Sprintf("%g", v), true
	}
	return "", false
}
