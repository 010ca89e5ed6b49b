// Package engine implements the generic resource-detail engine: progressive
// fetch, view availability, form state across view/edit/create modes, and
// compilation of form state into the store's mutation format.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Mathiio/edisem-sub000/pkg/apperrors"
	"github.com/Mathiio/edisem-sub000/pkg/models"
	"github.com/Mathiio/edisem-sub000/pkg/rtconfig"
)

// conceptAliases maps cross-cutting logical concepts to the namespaced
// property keys different templates use for them, in priority order. Used as
// the last-resort fallback when a field's own candidates all miss, and as
// the candidate chain for creator-like properties during create.
var conceptAliases = map[string][]string{
	"creator":      {"dcterms:creator", "schema:creator", "schema:agent"},
	"contributors": {"schema:contributor", "dcterms:contributor", "schema:agent", "dcterms:creator"},
	"agent":        {"schema:agent", "dcterms:contributor", "dcterms:creator"},
	"partOf":       {"dcterms:isPartOf", "schema:isPartOf"},
	"keywords":     {"jdc:hasConcept", "dcterms:subject", "schema:keywords"},
}

// Resolver maps logical field keys to the numeric property identifiers of
// the active template. Identifiers vary per template, so resolution happens
// at runtime against a fetched property map.
type Resolver struct {
	cfg    *rtconfig.Type
	logger *zap.Logger
}

// NewResolver creates a Resolver for one resource type.
func NewResolver(cfg *rtconfig.Type, logger *zap.Logger) *Resolver {
	return &Resolver{cfg: cfg, logger: logger.Named("property-resolver")}
}

// Resolve maps a logical field key to the property key and identifier to use
// for the active template. Candidates are tried in declared order, then the
// global alias table for the field key. An unresolved field returns
// apperrors.ErrPropertyUnresolved: the caller must treat the field as
// non-editable for this resource instance, not fail.
func (r *Resolver) Resolve(fieldKey string, pm models.PropertyMap) (string, int64, error) {
	field := r.cfg.Field(fieldKey)
	if field != nil {
		if key, id, ok := firstPresent(field.PropertyKeys, pm); ok {
			return key, id, nil
		}
	}

	if key, id, ok := r.resolveConcept(fieldKey, pm); ok {
		return key, id, nil
	}

	r.logger.Warn("Logical field unresolved for template",
		zap.String("type", r.cfg.Name),
		zap.String("field", fieldKey))
	return "", 0, fmt.Errorf("field %q: %w", fieldKey, apperrors.ErrPropertyUnresolved)
}

// ResolveKey resolves a raw namespaced property key directly against the
// property map, used by the open-ended create pass for keys outside the
// configured fields table.
func (r *Resolver) ResolveKey(propertyKey string, pm models.PropertyMap) (int64, bool) {
	id, ok := pm[propertyKey]
	return id, ok
}

// ResolveConcept resolves a cross-cutting concept ("creator", "partOf")
// through the alias table alone.
func (r *Resolver) ResolveConcept(concept string, pm models.PropertyMap) (string, int64, error) {
	if key, id, ok := r.resolveConcept(concept, pm); ok {
		return key, id, nil
	}
	return "", 0, fmt.Errorf("concept %q: %w", concept, apperrors.ErrPropertyUnresolved)
}

func (r *Resolver) resolveConcept(concept string, pm models.PropertyMap) (string, int64, bool) {
	aliases, ok := conceptAliases[concept]
	if !ok {
		return "", 0, false
	}
	return firstPresent(aliases, pm)
}

func firstPresent(candidates []string, pm models.PropertyMap) (string, int64, bool) {
	for _, key := range candidates {
		if id, ok := pm[key]; ok && id != 0 {
			return key, id, true
		}
	}
	return "", 0, false
}
